// Command edge-server is the process entrypoint: it is the only place that
// reads environment variables, and it wires config, logging, the reactor,
// history, the Places client, the REST router, the chat hub, and the four
// listeners together before handing control to lifecycle.Manager.Wait.
package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	"github.com/cherryrecorder/edge-server/internal/chat"
	"github.com/cherryrecorder/edge-server/internal/config"
	"github.com/cherryrecorder/edge-server/internal/history"
	"github.com/cherryrecorder/edge-server/internal/httpapi"
	"github.com/cherryrecorder/edge-server/internal/lifecycle"
	"github.com/cherryrecorder/edge-server/internal/logger"
	"github.com/cherryrecorder/edge-server/internal/places"
	"github.com/cherryrecorder/edge-server/internal/reactor"
	"github.com/cherryrecorder/edge-server/internal/transport"
)

func main() {
	cfg := loadConfig()

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.Lifecycle()

	r := reactor.New(cfg.Threads)
	r.Run()

	hist := history.New(cfg.HistoryDir)
	placesClient := places.NewClient(cfg.PlacesAPIKey)
	hub := chat.NewHub(r, hist, chat.DefaultRoomCapacity)

	router := httpapi.Router(placesClient)

	mgr := lifecycle.New(hub, r)

	var cert tls.Certificate
	if cfg.TLSEnabled() {
		var err error
		cert, err = tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS certificate")
		}
	}

	httpLn, err := transport.NewHTTPListener(fmt.Sprintf(":%d", cfg.HTTPPort), router)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start HTTP listener")
	}
	mgr.AddListener(httpLn)
	go httpLn.Run()

	wsLn, err := transport.NewWSListener(fmt.Sprintf(":%d", cfg.WSPort), r, hub, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start WS listener")
	}
	mgr.AddListener(wsLn)
	go wsLn.Run()

	if cfg.TLSEnabled() {
		if cfg.HTTPSPort != 0 {
			httpsLn, err := transport.NewHTTPSListener(fmt.Sprintf(":%d", cfg.HTTPSPort), router, cert)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to start HTTPS listener")
			}
			mgr.AddListener(httpsLn)
			go httpsLn.Run()
		}
		if cfg.WSSPort != 0 {
			wssLn, err := transport.NewWSSListener(fmt.Sprintf(":%d", cfg.WSSPort), r, hub, 0, cert)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to start WSS listener")
			}
			mgr.AddListener(wssLn)
			go wssLn.Run()
		}
	}

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Int("ws_port", cfg.WSPort).
		Bool("tls_enabled", cfg.TLSEnabled()).
		Bool("places_enabled", placesClient.Enabled()).
		Bool("history_enabled", hist.Enabled()).
		Msg("edge-server started")

	mgr.Wait()
}

// loadConfig reads every tunable from the environment, falling back to
// config.Default()'s values. Together with the env* helpers below, it is the
// only code in the module that calls os.Getenv.
func loadConfig() config.Config {
	cfg := config.Default()

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.HTTPSPort = envInt("HTTPS_PORT", cfg.HTTPSPort)
	cfg.WSPort = envInt("WS_PORT", cfg.WSPort)
	cfg.WSSPort = envInt("WSS_PORT", cfg.WSSPort)
	cfg.Threads = envInt("THREADS", cfg.Threads)

	cfg.CertPath = envString("CERT_PATH", cfg.CertPath)
	cfg.KeyPath = envString("KEY_PATH", cfg.KeyPath)
	cfg.PlacesAPIKey = envString("PLACES_API_KEY", cfg.PlacesAPIKey)
	cfg.HistoryDir = envString("HISTORY_DIR", cfg.HistoryDir)
	cfg.RequireAuth = envBool("REQUIRE_AUTH", cfg.RequireAuth)

	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = envBool("LOG_PRETTY", cfg.LogPretty)

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
