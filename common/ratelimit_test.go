package common

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiter_Window(t *testing.T) {
	current := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return current }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))

	current = current.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewIPRateLimiter(1, time.Minute).Middleware(nil))
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIPRateLimiter_ForgetsIdleClients(t *testing.T) {
	current := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return current }

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		assert.True(t, rl.Allow(ip))
	}
	assert.Len(t, rl.requests, 3)

	current = current.Add(2 * time.Minute)
	assert.True(t, rl.Allow("4.4.4.4"))
	assert.Len(t, rl.requests, 1)
	assert.Contains(t, rl.requests, "4.4.4.4")
}

func TestIPRateLimiter_IgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	require.NoError(t, router.SetTrustedProxies(nil))
	rl := NewIPRateLimiter(5, time.Minute)
	router.Use(rl.Middleware(nil))
	router.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	limited := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 45, limited)
	assert.Len(t, rl.requests, 1)
	assert.Contains(t, rl.requests, "203.0.113.7")
}
