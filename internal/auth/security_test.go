package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsInitialAttempts(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     3,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("192.168.1.1", "testuser")
		if !allowed {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
		rl.RecordFailure("192.168.1.1", "testuser")
	}

	allowed, retryAfter := rl.Allow("192.168.1.1", "testuser")
	if allowed {
		t.Error("4th attempt should be blocked")
	}
	if retryAfter == 0 {
		t.Error("retryAfter should be non-zero when blocked")
	}
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     3,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
	})
	defer rl.Stop()

	rl.RecordFailure("192.168.1.1", "testuser")
	rl.RecordFailure("192.168.1.1", "testuser")
	rl.RecordSuccess("192.168.1.1", "testuser")

	allowed, _ := rl.Allow("192.168.1.1", "testuser")
	if !allowed {
		t.Error("Should be allowed after successful login")
	}
}

func TestRateLimiter_DifferentUsersAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     2,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
	})
	defer rl.Stop()

	rl.RecordFailure("192.168.1.1", "user1")
	locked, _ := rl.RecordFailure("192.168.1.1", "user1")
	if !locked {
		t.Error("second failure should lock user1")
	}

	if allowed, _ := rl.Allow("192.168.1.1", "user1"); allowed {
		t.Error("user1 should be blocked")
	}
	if allowed, _ := rl.Allow("192.168.1.1", "user2"); !allowed {
		t.Error("user2 should be allowed")
	}
	if allowed, _ := rl.Allow("10.0.0.1", "user1"); !allowed {
		t.Error("user1 from another IP should be allowed")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 1, WindowDuration: time.Minute, LockoutDuration: time.Minute})
	defer rl.Stop()

	router := gin.New()
	router.POST("/login/", rl.RateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"username": {"alice"}, "password": {"x"}}
		req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := post(); rr.Code != http.StatusOK {
		t.Fatalf("first attempt status = %d, want 200", rr.Code)
	}

	rl.RecordFailure("192.0.2.1", "alice")

	rr := post()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if got := RetryAfterSeconds(1500 * time.Millisecond); got != "2" {
		t.Errorf("RetryAfterSeconds(1.5s) = %q, want 2", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	headers := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": apiContentSecurityPolicy,
	}

	for header, expected := range headers {
		if got := rr.Header().Get(header); got != expected {
			t.Errorf("Header %s = %q, want %q", header, got, expected)
		}
	}

	if pp := rr.Header().Get("Permissions-Policy"); pp == "" {
		t.Error("Permissions-Policy header should be set")
	}
}

func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware(3600))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Error("HSTS should not be set for HTTP requests")
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts != "max-age=3600; includeSubDomains" {
		t.Errorf("HSTS = %q", hsts)
	}
}

func TestUsernameValidation(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"a", true},
		{"user123", true},
		{"user_name", true},
		{"user-name", true},
		{"user.name", true},
		{"user@name", true},
		{"user+tag", true},
		{"user name", false},
		{"user/name", false},
		{strings.Repeat("a", 151), false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := checkNewUser(NewUser{Username: tt.username, Email: "user@example.com", Password: "x"})
			if tt.valid && err != nil {
				t.Errorf("username %q rejected: %v", tt.username, err)
			}
			if !tt.valid && !errors.Is(err, ErrUsernameInvalid) {
				t.Errorf("username %q error = %v, want ErrUsernameInvalid", tt.username, err)
			}
		})
	}
}

func TestEmailValidation(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"user@sub.example.com", true},
		{"invalid", false},
		{"@example.com", false},
		{"user@", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := checkNewUser(NewUser{Username: "user", Email: tt.email, Password: "x"})
			if tt.valid && err != nil {
				t.Errorf("email %q rejected: %v", tt.email, err)
			}
			if !tt.valid && !errors.Is(err, ErrEmailInvalid) {
				t.Errorf("email %q error = %v, want ErrEmailInvalid", tt.email, err)
			}
		})
	}
}
