package apperror

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

// Handler converts any AppError recorded on the gin context into the
// standard JSON error response, and recovers from panics in handlers so a
// single broken request can never bring the listener's accept loop down.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("recovered from panic in handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, Internal("internal error").ToResponse())
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.StatusCode >= 500 {
				logger.HTTP().Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				logger.HTTP().Warn().Str("code", appErr.Code).Msg(appErr.Message)
			}
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		logger.HTTP().Error().Err(err.Err).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, Internal("internal error").ToResponse())
	}
}

// Abort records err on the context and stops the gin chain. It does not
// write a response itself — Handler, registered ahead of every route, is
// the single place that writes the JSON body, after c.Next() returns here.
func Abort(c *gin.Context, err *AppError) {
	c.Error(err)
	c.Abort()
}
