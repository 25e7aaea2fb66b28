package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimitPreservesBodyUnderLimit(t *testing.T) {
	limit := RateLimit{Surface: "login", Window: time.Minute, PerIP: 2, PerEmail: 2}
	handler := AuthRateLimit(limit, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"email":"tester@example.com"`)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com", "1.2.3.4:5678"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitEmailBudget(t *testing.T) {
	limit := RateLimit{Surface: "login", Window: time.Minute, PerEmail: 2}
	handler := AuthRateLimit(limit, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, remote := range []string{"1.1.1.1:1", "2.2.2.2:2", "3.3.3.3:3"} {
		rec := httptest.NewRecorder()
		// Case and whitespace variants count against the same address.
		handler.ServeHTTP(rec, loginRequest([]string{"blocked@example.com", "BLOCKED@example.com", " blocked@example.com"}[i], remote))
		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeRateLimit))
	}
}

func TestAuthRateLimitIPBudgetUsesForwardedFor(t *testing.T) {
	limit := RateLimit{Surface: "register", Window: time.Minute, PerIP: 1}
	handler := AuthRateLimit(limit, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	first := loginRequest("a@example.com", "10.0.0.1:1")
	first.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := loginRequest("b@example.com", "10.0.0.2:1")
	second.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthRateLimitDisabledPassesThrough(t *testing.T) {
	store := newFakeLimiter()
	calls := 0
	handler := AuthRateLimit(LoginRateLimit(config.AuthRateLimitConfig{}), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), loginRequest("a@example.com", "1.2.3.4:1"))
	}
	assert.Equal(t, 5, calls)
	assert.Empty(t, store.counts)
}

func TestRateLimitBudgetsHashEmail(t *testing.T) {
	limit := RegisterRateLimit(config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 1, RegisterEmailLimit: 1})
	budgets := limit.budgets("1.2.3.4", "a@example.com")
	require.Len(t, budgets, 2)
	assert.Equal(t, "register:ip:1.2.3.4", budgets[0].scope)
	assert.True(t, strings.HasPrefix(budgets[1].scope, "register:email:"))
	assert.NotContains(t, budgets[1].scope, "example.com")

	assert.Len(t, limit.budgets("1.2.3.4", ""), 1)
}
