// Package readonly switches the API into a mode where content cannot
// change, for maintenance windows and database migrations.
package readonly

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Message is returned for every rejected write.
const Message = "The site is in read-only mode"

// sessionPaths keep working so callers can still sign in and out.
var sessionPaths = []string{
	"/login/",
	"/logout/",
	"/logoutall/",
	"/tll-admin/login/",
}

// Middleware rejects writes with 503 while enabled.
type Middleware struct {
	enabled bool
}

// NewMiddleware creates a read-only middleware.
func NewMiddleware(enabled bool) *Middleware {
	return &Middleware{enabled: enabled}
}

// IsEnabled returns whether read-only mode is active.
func (m *Middleware) IsEnabled() bool {
	return m.enabled
}

// Handler returns a Gin middleware that blocks write methods.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled || isSafeMethod(c.Request.Method) || isSessionPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		c.Header("Retry-After", "300")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": Message})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isSessionPath(path string) bool {
	for _, p := range sessionPaths {
		if path == p || path == strings.TrimSuffix(p, "/") {
			return true
		}
	}
	return false
}
