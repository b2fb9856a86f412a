package auth

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// apiContentSecurityPolicy allows nothing but same-origin images, which is
// all a JSON API and its media directory ever serve.
const apiContentSecurityPolicy = "default-src 'none'; img-src 'self' data: https:; frame-ancestors 'none'; form-action 'self'"

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", apiContentSecurityPolicy)
		c.Header("Cross-Origin-Resource-Policy", "same-site")
		c.Header("Permissions-Policy",
			"accelerometer=(), "+
				"camera=(), "+
				"geolocation=(), "+
				"gyroscope=(), "+
				"magnetometer=(), "+
				"microphone=(), "+
				"payment=(), "+
				"usb=()")

		c.Next()
	}
}

// StrictTransportSecurityMiddleware adds HSTS to requests that arrived over
// HTTPS, directly or through a proxy. maxAge is in seconds.
func StrictTransportSecurityMiddleware(maxAge int) gin.HandlerFunc {
	value := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"
	return func(c *gin.Context) {
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", value)
		}
		c.Next()
	}
}
