package common

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is a sliding-window limiter keyed by client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	swept    time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.swept) >= rl.window {
		rl.sweep(cutoff)
		rl.swept = now
	}

	requests := rl.requests[ip]
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	requests = requests[i:]

	if len(requests) >= rl.limit {
		rl.requests[ip] = requests
		return false
	}

	rl.requests[ip] = append(requests, now)
	return true
}

// sweep forgets clients with no requests inside the window.
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	for ip, requests := range rl.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(rl.requests, ip)
		}
	}
}

// Middleware rejects over-limit requests; onLimit writes the response.
// Clients are keyed by c.ClientIP, so the engine's trusted proxies decide
// whether forwarding headers are honored.
func (rl *IPRateLimiter) Middleware(onLimit gin.HandlerFunc) gin.HandlerFunc {
	if onLimit == nil {
		onLimit = func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
		}
	}
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			onLimit(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
