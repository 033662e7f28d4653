package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"identity-registry/internal/shared/response"
)

// Recovery turns a handler panic into the standard 500 envelope instead of
// dropping the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString("request_id")).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("recovered from handler panic")

				response.InternalError(c, "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
