package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/theledlead/bookshelf/internal/config"
)

func TestIPRateLimiter_Allow(t *testing.T) {
	l := NewIPRateLimiter(config.Limiter{Enabled: true, RPS: 0.001, Burst: 2})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// other clients have their own bucket
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		wantLast int
	}{
		{"enabled rejects over the burst", true, http.StatusTooManyRequests},
		{"disabled lets everything through", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewIPRateLimiter(config.Limiter{Enabled: tt.enabled, RPS: 0.001, Burst: 1})
			defer l.Stop()

			router := gin.New()
			router.Use(l.Middleware())
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			var last *httptest.ResponseRecorder
			for i := 0; i < 2; i++ {
				last = httptest.NewRecorder()
				router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
			}
			assert.Equal(t, tt.wantLast, last.Code)
		})
	}
}

func TestIPRateLimiter_StopIsIdempotent(t *testing.T) {
	l := NewIPRateLimiter(config.Limiter{})
	l.Stop()
	l.Stop()
}
