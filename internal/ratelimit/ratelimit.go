// Package ratelimit provides Redis-backed fixed-window rate limiting for the
// purchase and playback endpoints.
// When Redis is unavailable (nil store), all rate limits are disabled and
// requests pass. Store errors fail open as well.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

// Store is the minimal interface required for rate limiting.
// In production this is implemented by go-redis; in tests by MemoryStore.
type Store interface {
	// Incr atomically increments a counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL on a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time-to-live on a key. Returns 0 or negative if expired/missing.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Policy is a named limit: at most Rate requests per Window per caller.
type Policy struct {
	Name   string
	Rate   int
	Window time.Duration
}

// Limiter performs rate limit checks against a Store.
type Limiter struct {
	store Store
}

// New creates a Limiter backed by the given Store.
// If store is nil, the Limiter is a no-op that always allows requests.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Enabled reports whether a store is configured.
func (l *Limiter) Enabled() bool { return l != nil && l.store != nil }

// Allow increments the counter for key under p. It returns whether the
// request is within the limit and, when it is not, how many seconds until
// the window resets. A store error is returned with allowed=true.
func (l *Limiter) Allow(ctx context.Context, p Policy, key string) (allowed bool, retryAfter int, err error) {
	if !l.Enabled() || p.Rate <= 0 {
		return true, 0, nil
	}
	k := "rl:" + p.Name + ":" + key

	count, err := l.store.Incr(ctx, k)
	if err != nil {
		return true, 0, err
	}
	if count == 1 {
		if err := l.store.Expire(ctx, k, p.Window); err != nil {
			return true, 0, err
		}
	}
	if count <= int64(p.Rate) {
		return true, 0, nil
	}

	retry := int(p.Window.Seconds())
	if ttl, err := l.store.TTL(ctx, k); err == nil && ttl > 0 {
		retry = int((ttl + time.Second - 1) / time.Second)
	}
	return false, retry, nil
}

// Middleware enforces p per caller. Callers are keyed by resolved identity
// when the identity middleware ran first, else by client IP.
func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			ok, retry, err := l.Allow(r.Context(), p, key)
			if err != nil {
				logger.FromContext(r.Context()).Warn("rate limit store unavailable", "policy", p.Name, "error", err)
			}
			if !ok {
				metrics.RateLimited.WithLabelValues(p.Name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				respond.Error(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if id := identity.FromContext(r.Context()); !id.IsZero() {
		return id.String()
	}
	return "ip:" + ClientIP(r)
}

// ClientIP extracts the client IP. chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP when it is mounted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// MemoryStore is an in-process Store for tests and single-instance dev runs.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	counts  map[string]int64
	expires map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, counts: map[string]int64{}, expires: map[string]time.Time{}}
}

func (m *MemoryStore) expireLocked(key string) {
	if exp, ok := m.expires[key]; ok && !m.now().Before(exp) {
		delete(m.counts, key)
		delete(m.expires, key)
	}
}

func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	exp, ok := m.expires[key]
	if !ok {
		return -2 * time.Second, nil
	}
	return exp.Sub(m.now()), nil
}
