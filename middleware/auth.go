package middleware

import (
	"net/http"
	"strings"

	"CampusLink/tools/security"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by Auth.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// Auth verifies the bearer token on HTTP endpoints (catch-up fetch). The
// websocket path authenticates in-band instead, via the auth frame.
func Auth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if token == "" || token == h {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		ident, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserID, ident.UserID)
		c.Set(CtxRole, ident.Role)
		c.Next()
	}
}
