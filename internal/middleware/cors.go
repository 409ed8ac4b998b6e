package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, X-Request-Id"
	// Preflight cache lifetime in seconds.
	corsMaxAge = "600"
)

// CORS admits browser calls from the configured origins. An empty allowlist
// grants every origin; the API carries no cookies or auth headers, so a
// wildcard grant is safe for the trusted-backend deployments this service
// targets.
func CORS(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if grant := resolveOrigin(allowed, c.GetHeader("Origin")); grant != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", grant)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			if grant != "*" {
				h.Set("Vary", "Origin")
			}
			if c.Request.Method == http.MethodOptions {
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func resolveOrigin(allowed map[string]struct{}, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	if _, ok := allowed[origin]; ok {
		return origin
	}
	return ""
}
