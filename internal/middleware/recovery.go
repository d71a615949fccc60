package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 in the API's {message} shape,
// echoing the request id when there is one.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			requestID := c.GetString(requestIDHeader)
			log.Error().
				Interface("panic", r).
				Str("route", c.FullPath()).
				Str("request_id", requestID).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			body := gin.H{"message": "Internal server error"}
			if requestID != "" {
				body["requestId"] = requestID
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
