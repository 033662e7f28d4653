package middleware

import (
	"github.com/gin-gonic/gin"

	"identity-registry/internal/shared/response"
)

// OwnerMiddleware checks that the authenticated subject carries the owner
// role. Every administrative setter sits behind this gate.
func OwnerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleInterface, exists := c.Get("role")
		if !exists {
			response.Forbidden(c, "access denied: owner role required")
			c.Abort()
			return
		}

		role, ok := roleInterface.(string)
		if !ok || role != "owner" {
			response.Forbidden(c, "access denied: owner role required")
			c.Abort()
			return
		}

		c.Next()
	}
}
