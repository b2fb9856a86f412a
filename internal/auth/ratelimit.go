package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
)

// RateLimiter throttles login attempts per IP+username. Records live in a
// TTL cache so abandoned keys expire on their own.
type RateLimiter struct {
	mu              sync.Mutex
	attempts        *ttlcache.Cache[string, *attemptRecord]
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // default 5
	WindowDuration  time.Duration // default 15m
	LockoutDuration time.Duration // default 30m
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
	}
}

// NewRateLimiter creates a rate limiter and starts its expiry loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}

	cache := ttlcache.New[string, *attemptRecord](
		ttlcache.WithTTL[string, *attemptRecord](cfg.WindowDuration+cfg.LockoutDuration),
		ttlcache.WithDisableTouchOnHit[string, *attemptRecord](),
	)
	go cache.Start()

	return &RateLimiter{
		attempts:        cache,
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
	}
}

// Stop stops the expiry loop.
func (rl *RateLimiter) Stop() {
	rl.attempts.Stop()
}

func (rl *RateLimiter) makeKey(ip, username string) string {
	return ip + ":" + username
}

// Allow checks if a login attempt should be allowed. When it is not,
// retryAfter tells how long the lockout still lasts.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	item := rl.attempts.Get(rl.makeKey(ip, username))
	if item == nil {
		return true, 0
	}
	record := item.Value()

	if !record.lockedUntil.IsZero() && now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > rl.windowDuration {
		return true, 0
	}
	if record.count < rl.maxAttempts {
		return true, 0
	}
	return false, rl.lockoutDuration
}

// RecordFailure records a failed login attempt and reports whether the key
// is now locked.
func (rl *RateLimiter) RecordFailure(ip, username string) (bool, time.Duration) {
	key := rl.makeKey(ip, username)
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	var record *attemptRecord
	if item := rl.attempts.Get(key); item != nil {
		record = item.Value()
	} else {
		record = &attemptRecord{firstAttempt: now}
		rl.attempts.Set(key, record, ttlcache.DefaultTTL)
	}

	if now.Sub(record.firstAttempt) > rl.windowDuration {
		record.count = 0
		record.firstAttempt = now
		record.lockedUntil = time.Time{}
	}

	record.count++

	if record.count >= rl.maxAttempts {
		record.lockedUntil = now.Add(rl.lockoutDuration)
		// keep the record at least as long as the lockout
		rl.attempts.Set(key, record, ttlcache.DefaultTTL)
		return true, rl.lockoutDuration
	}

	return false, 0
}

// RecordSuccess clears the failure record for a successful login.
func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	rl.attempts.Delete(rl.makeKey(ip, username))
	rl.mu.Unlock()
}

// RetryAfterSeconds formats a duration for the Retry-After header.
func RetryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

// RateLimitMiddleware rejects login attempts for locked IP+username pairs.
// Apply it to the login routes only.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		username := c.PostForm("username")
		if username == "" {
			c.Next()
			return
		}

		allowed, retryAfter := rl.Allow(c.ClientIP(), username)
		if !allowed {
			c.Header("Retry-After", RetryAfterSeconds(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Too many login attempts. Please try again later.",
				"retry_after": RetryAfterSeconds(retryAfter),
			})
			return
		}

		c.Next()
	}
}
