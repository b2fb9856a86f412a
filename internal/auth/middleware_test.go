package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddleware(t *testing.T) (*Middleware, *Service) {
	t.Helper()
	service := NewService(setupTestDB(t), testAuthConfig())
	return NewMiddleware(service, nil), service
}

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":   GetUserID(c),
		"auth_type": GetAuthType(c),
		"is_staff":  IsStaff(c),
	})
}

func TestMiddleware_Anonymous(t *testing.T) {
	middleware, _ := setupMiddleware(t)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.GET("/test", whoAmI)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["user_id"])
	assert.Equal(t, string(AuthTypeNone), body["auth_type"])
}

func TestMiddleware_TokenAuth(t *testing.T) {
	middleware, service := setupMiddleware(t)

	user, err := service.CreateUser(NewUser{Username: "reader", Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	token, _, err := service.IssueToken(user.ID)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.GET("/test", whoAmI)

	for _, scheme := range []string{"Token", "Bearer", "token"} {
		t.Run(scheme, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", scheme+" "+token)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, float64(user.ID), body["user_id"])
			assert.Equal(t, string(AuthTypeToken), body["auth_type"])
			assert.Equal(t, false, body["is_staff"])
		})
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	middleware, _ := setupMiddleware(t)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.GET("/test", whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Token not-a-real-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), MessageInvalidToken)
}

func TestMiddleware_UnknownSchemeIsAnonymous(t *testing.T) {
	middleware, _ := setupMiddleware(t)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.GET("/test", whoAmI)

	for _, header := range []string{"Basic dXNlcjpwYXNz", "Token", "Bearer ", "garbage"} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", header)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}
}

func TestMiddleware_RequireAuth(t *testing.T) {
	middleware, service := setupMiddleware(t)

	user, err := service.CreateUser(NewUser{Username: "reader", Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	token, _, err := service.IssueToken(user.ID)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.GET("/default", middleware.RequireAuth(""), whoAmI)
	router.GET("/custom", middleware.RequireAuth("You are not logged in"), whoAmI)

	t.Run("default message", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/default", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), MessageNotAuthenticated)
	})

	t.Run("custom message", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/custom", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "You are not logged in")
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/default", nil)
		req.Header.Set("Authorization", "Token "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestMiddleware_RequireStaff(t *testing.T) {
	middleware, service := setupMiddleware(t)

	reader, err := service.CreateUser(NewUser{Username: "reader", Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	staff, err := service.CreateUser(NewUser{Username: "editor", Email: "editor@example.com", Password: "password123", Staff: true})
	require.NoError(t, err)
	root, err := service.CreateUser(NewUser{Username: "root", Email: "root@example.com", Password: "password123", Superuser: true})
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.Authenticate())
	router.POST("/upload", middleware.RequireAuth(""), middleware.RequireStaff(""), whoAmI)

	tests := []struct {
		name   string
		userID uint
		want   int
	}{
		{"anonymous gets 401 before 403", 0, http.StatusUnauthorized},
		{"regular user", reader.ID, http.StatusForbidden},
		{"staff user", staff.ID, http.StatusOK},
		{"superuser", root.ID, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/upload", nil)
			if tt.userID != 0 {
				token, _, err := service.IssueToken(tt.userID)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Token "+token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rr.Body.String(), MessageForbidden)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Token abc", "abc", true},
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"Basic abc", "", false},
		{"Token", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestHelpers_EmptyContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetUser(c))
	assert.Equal(t, uint(0), GetUserID(c))
	assert.False(t, IsStaff(c))
	assert.False(t, IsAuthenticated(c))
	assert.Equal(t, AuthTypeNone, GetAuthType(c))
	assert.Equal(t, "", GetToken(c))
}
