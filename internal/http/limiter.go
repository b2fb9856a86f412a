package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/theledlead/bookshelf/internal/config"
)

// clientTTL is how long an idle client's limiter is kept.
const clientTTL = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles requests per client IP with a token bucket.
type IPRateLimiter struct {
	cfg config.Limiter

	mu      sync.Mutex
	clients map[string]*client

	stop chan struct{}
	once sync.Once
}

// NewIPRateLimiter creates a limiter and starts the goroutine that forgets
// idle clients. Call Stop to end it.
func NewIPRateLimiter(cfg config.Limiter) *IPRateLimiter {
	l := &IPRateLimiter{
		cfg:     cfg,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip, cl := range l.clients {
				if time.Since(cl.lastSeen) > clientTTL {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine.
func (l *IPRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow reports whether a request from ip may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, found := l.clients[ip]
	if !found {
		cl = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Middleware rejects requests over the limit with 429. It does nothing
// when the limiter is disabled.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.cfg.Enabled {
			c.Next()
			return
		}
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, MessageResponse{Message: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
