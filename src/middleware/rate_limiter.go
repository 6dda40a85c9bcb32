package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = 10 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// keyedLimiter hands out one token bucket per key and forgets idle keys
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	k := &keyedLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	go k.cleanupLoop()
	return k
}

func (k *keyedLimiter) allow(key string, now time.Time) bool {
	k.mu.Lock()
	entry, ok := k.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = entry
	}
	entry.lastUsed = now
	k.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (k *keyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			k.evictIdle(now)
		case <-k.stopCh:
			return
		}
	}
}

func (k *keyedLimiter) evictIdle(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for key, entry := range k.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(k.limiters, key)
		}
	}
}

func (k *keyedLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *keyedLimiter) stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}

// RateLimitConfig defines configuration for the rate limiting middleware
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// KeyFunc picks the bucket; defaults to the client IP
	KeyFunc func(c *gin.Context) string
}

// RateLimiter is a per-key rate limiting middleware
type RateLimiter struct {
	limiter *keyedLimiter
	keyFunc func(c *gin.Context) string
	retry   time.Duration
}

// NewRateLimiter creates a limiter; RequestsPerMinute <= 0 defaults to 60
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute / 6
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	interval := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &RateLimiter{
		limiter: newKeyedLimiter(rate.Every(interval), cfg.Burst),
		keyFunc: cfg.KeyFunc,
		retry:   interval,
	}
}

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.allow(rl.keyFunc(c), time.Now()) {
			retrySeconds := int(rl.retry.Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retrySeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// Stop terminates the idle-key cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.limiter.stop()
}

// NewIPRateLimitingMiddleware creates a per-IP rate limiting middleware
func NewIPRateLimitingMiddleware(requestsPerMinute int) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{RequestsPerMinute: requestsPerMinute}).Handler()
}
