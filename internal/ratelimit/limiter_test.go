package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerKey(t *testing.T) {
	l := New(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestMiddleware(t *testing.T) {
	l := New(0.5, 1)
	h := l.Middleware(func(r *http.Request) string { return "k" })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/log", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/log", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limited","retry_after_seconds":2}`, rec.Body.String())
}

func TestCleanup(t *testing.T) {
	l := New(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(11 * time.Minute)
	l.Allow("fresh")
	l.cleanup()
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "fresh")
}
