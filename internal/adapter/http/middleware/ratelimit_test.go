package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yield-ledger/internal/adapter/http/middleware"
	redisStore "yield-ledger/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(t *testing.T, pre ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisStore.NewRateLimitStore(client)
	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}

	r := gin.New()
	handlers := append(pre, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/test", handlers...)
	return r
}

func doGet(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		w := doGet(router, "", "")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "", "").Code)
	}

	w := doGet(router, "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_KeysByClientHeader(t *testing.T) {
	router := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, middleware.HeaderClientKey, "schedulerA").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, middleware.HeaderClientKey, "schedulerA").Code)

	// independent counter
	assert.Equal(t, http.StatusOK, doGet(router, middleware.HeaderClientKey, "schedulerB").Code)
}

func TestRateLimiter_KeysByAuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	router := setupRateLimitRouter(t, func(c *gin.Context) {
		if c.GetHeader("X-Test-User") == "a" {
			c.Set(middleware.CtxUserID, userID)
		}
		c.Next()
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "X-Test-User", "a").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "X-Test-User", "a").Code)
	// anonymous callers fall back to the client ip
	assert.Equal(t, http.StatusOK, doGet(router, "", "").Code)
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(5), rules["withdrawals_create"].Limit)
	assert.Equal(t, int64(10), rules["investments_create"].Limit)
	assert.Equal(t, int64(6), rules["sweep"].Limit)
	for group, rule := range rules {
		assert.Equal(t, time.Minute, rule.Window, group)
	}
}
