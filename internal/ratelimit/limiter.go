package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(r *http.Request) string

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is an in-memory token-bucket limiter per key.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

// New creates a limiter allowing perSecond requests per key with the given
// burst. Keys unused for ten minutes are forgotten by CleanupLoop.
func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether one more request for key fits the budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Check writes a 429 response and returns true when the request is over budget.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, key string) bool {
	if l.Allow(key) {
		return false
	}
	retry := 1
	if l.limit > 0 {
		if s := int(1 / float64(l.limit)); s > retry {
			retry = s
		}
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limited","retry_after_seconds":` + strconv.Itoa(retry) + `}`))
	return true
}

// Middleware rejects requests over budget, keyed by keyFn.
func (l *Limiter) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Check(w, r, keyFn(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CleanupLoop forgets idle keys once a minute until ctx is cancelled.
func (l *Limiter) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
}
