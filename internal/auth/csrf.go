package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// CSRFTokenHeader carries the token to and from browser clients.
const CSRFTokenHeader = "X-CSRF-Token"

// csrfCookieName matches the name browser clients of the original API expect.
const csrfCookieName = "csrftoken"

// CSRFMiddleware protects cookie-session requests against cross-site
// forgery. Requests that authenticated with a token, or that carry no
// session cookie at all, are not subject to it. It must run after
// Middleware.Authenticate. The current token is echoed in X-CSRF-Token on
// every protected response.
func CSRFMiddleware(secret []byte, secure bool) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.CookieName(csrfCookieName),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if !needsCSRF(c) {
			c.Next()
			return
		}

		req := c.Request
		if !secure {
			req = csrf.PlaintextHTTPRequest(req)
		}

		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token := csrf.Token(r)
			c.Set("csrf_token", token)
			w.Header().Set(CSRFTokenHeader, token)
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, req)
		if !passed {
			c.Abort()
		}
	}
}

// needsCSRF reports whether the request rides on a session cookie.
func needsCSRF(c *gin.Context) bool {
	if GetAuthType(c) == AuthTypeToken {
		return false
	}
	_, err := c.Request.Cookie(SessionCookieName)
	return err == nil
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	zap.L().Warn("csrf check failed",
		zap.String("path", r.URL.Path),
		zap.Error(csrf.FailureReason(r)),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"message":"CSRF token invalid or missing"}`))
}

// GetCSRFToken retrieves the CSRF token from the Gin context.
func GetCSRFToken(c *gin.Context) string {
	return c.GetString("csrf_token")
}
