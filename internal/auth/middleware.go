package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theledlead/bookshelf/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUser     = "auth_user"
	ContextKeyAuthType = "auth_type"
	ContextKeyToken    = "auth_token"
)

// AuthType indicates how the user was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeToken   AuthType = "token"
)

// Default rejection messages.
const (
	MessageNotAuthenticated = "Authentication credentials were not provided."
	MessageInvalidToken     = "Invalid token."
	MessageForbidden        = "You are not authorized to perform this action"
)

// Middleware resolves the caller from an Authorization header or a
// session cookie and offers guards for routes that need one.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
	}
}

// Authenticate identifies the caller without rejecting anonymous requests.
// A presented token that does not validate is rejected outright so clients
// notice expiry instead of silently browsing as anonymous.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := ExtractToken(c.GetHeader("Authorization")); ok {
			user, err := m.service.ValidateToken(token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) {
					zap.L().Error("token validation failed", zap.Error(err))
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MessageInvalidToken})
				return
			}
			c.Set(ContextKeyToken, token)
			setUserContext(c, user, AuthTypeToken)
			c.Next()
			return
		}

		if user := m.trySessionAuth(c); user != nil {
			setUserContext(c, user, AuthTypeSession)
			c.Next()
			return
		}

		c.Set(ContextKeyAuthType, AuthTypeNone)
		c.Next()
	}
}

// ExtractToken parses "Token <t>" or "Bearer <t>".
func ExtractToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "token" && scheme != "bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// trySessionAuth attempts to authenticate using session cookie.
func (m *Middleware) trySessionAuth(c *gin.Context) *entities.User {
	if m.sessionManager == nil {
		return nil
	}

	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}

	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}

	return user
}

func setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyAuthType, authType)
}

// RequireAuth rejects anonymous callers with 401 and the given message.
// An empty message uses MessageNotAuthenticated.
func (m *Middleware) RequireAuth(message string) gin.HandlerFunc {
	if message == "" {
		message = MessageNotAuthenticated
	}
	return func(c *gin.Context) {
		if GetUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
			return
		}
		c.Next()
	}
}

// RequireStaff rejects callers without the staff or superuser flag with
// 403. It must run after RequireAuth so the 401 check comes first.
func (m *Middleware) RequireStaff(message string) gin.HandlerFunc {
	if message == "" {
		message = MessageForbidden
	}
	return func(c *gin.Context) {
		if !IsStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": message})
			return
		}
		c.Next()
	}
}

// GetUser returns the authenticated user or nil.
func GetUser(c *gin.Context) *entities.User {
	if u, exists := c.Get(ContextKeyUser); exists {
		if user, ok := u.(*entities.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID returns the authenticated user's ID, or 0 when anonymous.
func GetUserID(c *gin.Context) uint {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return 0
}

// IsStaff reports whether the caller may manage content.
func IsStaff(c *gin.Context) bool {
	user := GetUser(c)
	return user != nil && user.IsAdmin()
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// GetToken returns the plaintext token the request authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

// IsAuthenticated returns true if the request is authenticated.
func IsAuthenticated(c *gin.Context) bool {
	return GetUser(c) != nil
}
