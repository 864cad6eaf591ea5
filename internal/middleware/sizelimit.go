package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cherryrecorder/edge-server/internal/apperror"
)

// MaxRequestBodySize is the ceiling on a Places request body: these are
// small JSON payloads (coordinates, a keyword), never file uploads, so a
// generous-but-finite 1MB catches a misbehaving or hostile client without
// constraining any real request.
const MaxRequestBodySize int64 = 1 * 1024 * 1024

// RequestSizeLimiter rejects oversized bodies with a 413, and wraps the
// body in a MaxBytesReader so a lying Content-Length can't be used to
// smuggle a larger payload past the upfront check.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "GET", "HEAD", "OPTIONS":
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			apperror.Abort(c, apperror.TooLarge("request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// DefaultSizeLimiter applies MaxRequestBodySize.
func DefaultSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxRequestBodySize)
}
