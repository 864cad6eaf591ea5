package middleware

import "github.com/gin-gonic/gin"

// ServerBanner is the plain-HTTP Server header value stamped on every response.
const ServerBanner = "CherryRecorder/1.0"

// CORS allows any origin to call the REST facade — the Places endpoints
// are read-only lookups against a third-party API, not session-bearing,
// so there is no cookie/credential surface to restrict an origin against.
// It also stamps the Server banner on every response, since every request
// passes through here regardless of route.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Server", ServerBanner)
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
