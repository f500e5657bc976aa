package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects websocket upgrades from browsers outside the allowed
// origins. An empty allowlist admits everything (native apps, curl, tests).
func Origin(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(set) == 0 {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" { // non-browser client
			c.Next()
			return
		}
		if _, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]; !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
