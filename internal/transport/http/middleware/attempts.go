package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// AttemptCounter records one attempt for key and reports whether the caller
// is still within its budget.
type AttemptCounter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// AttemptKey picks the bucket a request is counted in.
type AttemptKey func(r *http.Request) string

// PerClient counts each client address separately.
func PerClient(r *http.Request) string { return clientIP(r) }

// AllClients counts every request in one bucket, bounding guesses spread
// over many addresses.
func AllClients(*http.Request) string { return "all" }

// Attempts limits how often a guessing-sensitive endpoint (verification
// codes, reset tokens) may be hit within the counter's window. A failing
// counter lets the request through.
func Attempts(counter AttemptCounter, scope string, key AttemptKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := counter.Allow(r.Context(), scope+":"+key(r))
			if err != nil {
				slog.WarnContext(r.Context(), "attempt counter unavailable", "scope", scope, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSONError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// WindowCounter is the in-process AttemptCounter used when no Redis is
// configured. Counts are per instance.
type WindowCounter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	period    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewWindowCounter(limit int, period time.Duration) *WindowCounter {
	return &WindowCounter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

func (c *WindowCounter) Allow(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		c.sweep(now)
		w = &window{resetAt: now.Add(c.period)}
		c.windows[key] = w
	}
	w.count++
	return w.count <= c.limit, nil
}

// sweep drops expired windows, at most once per period. Callers hold c.mu.
func (c *WindowCounter) sweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.period {
		return
	}
	c.lastSweep = now
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
		}
	}
}
