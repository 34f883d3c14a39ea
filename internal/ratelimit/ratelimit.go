package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"shortvid-saver/pkg/models"
)

// RateLimiter limits requests per client, keyed by IP or API key
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	logger   zerolog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware(rps int, burst int) gin.HandlerFunc {
	go rl.cleanupVisitors()

	return func(c *gin.Context) {
		key := c.ClientIP()
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
			key = "api_key:" + apiKey
		}

		limiter := rl.getLimiter(key, rps, burst)

		if !limiter.Allow() {
			rl.logger.Warn().Str("client", key).Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rps))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		c.Next()
	}
}

func (rl *RateLimiter) getLimiter(key string, rps int, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		rl.visitors[key] = &visitor{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes visitors idle for over an hour
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > time.Hour {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Throttler bounds the number of concurrent in-flight requests
type Throttler struct {
	requests chan struct{}
	logger   zerolog.Logger
}

// NewThrottler creates a new throttler
func NewThrottler(maxConcurrent int) *Throttler {
	return &Throttler{
		requests: make(chan struct{}, maxConcurrent),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Middleware creates a throttling middleware
func (t *Throttler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case t.requests <- struct{}{}:
			defer func() { <-t.requests }()
			c.Next()
		default:
			t.logger.Warn().Msg("Server overloaded")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Server overloaded, please try again later",
			})
			c.Abort()
		}
	}
}

// Manager combines per-client rate limiting with concurrency throttling
type Manager struct {
	rateLimiter *RateLimiter
	throttler   *Throttler
	rps         int
	burst       int
	enabled     bool
}

// NewManager creates a new rate limiting manager from configuration
func NewManager(cfg *models.Config) *Manager {
	m := &Manager{
		rps:     cfg.RateLimit.RequestsPerSecond,
		burst:   cfg.RateLimit.Burst,
		enabled: cfg.RateLimit.Enabled,
	}

	if m.enabled {
		m.rateLimiter = NewRateLimiter()
		maxConcurrent := cfg.RateLimit.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 100
		}
		m.throttler = NewThrottler(maxConcurrent)
	}

	return m
}

// Middleware returns the combined middleware, or a no-op when disabled
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		m.throttler.Middleware()(c)
		if c.IsAborted() {
			return
		}

		m.rateLimiter.Middleware(m.rps, m.burst)(c)
	}
}
