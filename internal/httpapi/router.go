// Package httpapi implements the HTTP/HTTPS REST facade: health/status
// endpoints, the Places proxy routes, and the shared middleware chain
// (request ID, structured logging,
// security headers, CORS, body size limiting, per-IP rate limiting,
// error handling).
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/cherryrecorder/edge-server/internal/apperror"
	"github.com/cherryrecorder/edge-server/internal/middleware"
	"github.com/cherryrecorder/edge-server/internal/places"
)

// Router builds the gin Engine serving both the plain and TLS HTTP
// listeners — the same Engine is reused for both, since the routes and
// middleware chain never depend on whether the connection is encrypted.
func Router(placesClient *places.Client) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(apperror.Handler())
	r.Use(middleware.DefaultSizeLimiter())

	rl := middleware.NewRateLimiter(20, 40)
	r.Use(rl.Middleware())

	h := &handlers{places: placesClient}

	r.GET("/health", h.health)
	r.GET("/status", h.status)
	r.GET("/maps/key", h.mapsKey)

	r.POST("/places/nearby", h.nearbySearch)
	r.POST("/places/search", h.textSearch)
	// Wildcards (not :id/:ref) so a trailing-slash, empty-segment request
	// reaches the handler as a 400 rather than falling through to the
	// router's generic 404.
	r.GET("/places/details/*id", h.details)
	r.GET("/places/photo/*ref", h.photo)

	r.NoRoute(func(c *gin.Context) {
		apperror.Abort(c, apperror.NotFound("route"))
	})

	return r
}
