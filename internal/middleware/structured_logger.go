// Package middleware provides HTTP middleware for the edge server's REST
// facade.
//
// This file logs one structured line per request: method, path, status,
// duration, client IP, and the correlation ID set by RequestID.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

// StructuredLoggerConfig controls which paths are skipped and how much
// detail is logged.
type StructuredLoggerConfig struct {
	// SkipPaths lists paths to omit from logging entirely (e.g. /health).
	SkipPaths []string
	// LogQuery includes the raw query string when true.
	LogQuery bool
}

// DefaultStructuredLoggerConfig skips the health check endpoint and logs
// query strings.
func DefaultStructuredLoggerConfig() StructuredLoggerConfig {
	return StructuredLoggerConfig{
		SkipPaths: []string{"/health"},
		LogQuery:  true,
	}
}

// StructuredLogger installs request logging with the default config.
func StructuredLogger() gin.HandlerFunc {
	return StructuredLoggerWithConfig(DefaultStructuredLoggerConfig())
}

// StructuredLoggerWithConfig installs request logging with a custom config.
func StructuredLoggerWithConfig(config StructuredLoggerConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		event := logger.HTTP().Info()
		if status >= 500 {
			event = logger.HTTP().Error()
		} else if status >= 400 {
			event = logger.HTTP().Warn()
		}

		event = event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if config.LogQuery && raw != "" {
			event = event.Str("query", raw)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request handled")
	}
}
