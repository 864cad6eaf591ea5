// Package logger wraps zerolog for the edge server: a package-level Log
// instance set up once by Initialize, plus small component-scoped
// sub-loggers. Configuring the underlying sink (where the bytes ultimately
// land) is out of scope for the core — Initialize only chooses between a
// JSON writer and a human-readable console writer on stdout.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide logger, set up once by Initialize.
var Log zerolog.Logger

// Initialize configures the global logger. level is a zerolog level name
// ("debug", "info", "warn", "error"); unparseable values fall back to info.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		log.Logger = log.Output(os.Stdout)
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "cherryrecorder-edge").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

func component(name string) *zerolog.Logger {
	l := Log.With().Str("component", name).Logger()
	return &l
}

// HTTP returns a logger scoped to the REST facade.
func HTTP() *zerolog.Logger { return component("http") }

// WebSocket returns a logger scoped to the chat transport.
func WebSocket() *zerolog.Logger { return component("websocket") }

// Hub returns a logger scoped to the chat registry.
func Hub() *zerolog.Logger { return component("hub") }

// History returns a logger scoped to the history store.
func History() *zerolog.Logger { return component("history") }

// Places returns a logger scoped to the upstream Places proxy.
func Places() *zerolog.Logger { return component("places") }

// Lifecycle returns a logger scoped to startup/shutdown orchestration.
func Lifecycle() *zerolog.Logger { return component("lifecycle") }
