package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a Limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Key extracts the bucket key from a request. Defaults to BearerOrIP.
	Key func(*http.Request) string
}

// window approximates a sliding window from two fixed ones: the previous
// window's count is weighted by how much of it still overlaps.
type window struct {
	start time.Time
	prev  int
	curr  int
}

func (w *window) roll(now time.Time, size time.Duration) {
	start := now.Truncate(size)
	switch elapsed := start.Sub(w.start); {
	case elapsed <= 0:
		return
	case elapsed == size:
		w.prev = w.curr
	default:
		w.prev = 0
	}
	w.curr = 0
	w.start = start
}

func (w *window) estimate(now time.Time, size time.Duration) float64 {
	overlap := 1 - float64(now.Sub(w.start))/float64(size)
	return float64(w.prev)*overlap + float64(w.curr)
}

// Limiter is a per-key sliding window rate limiter.
type Limiter struct {
	max  int
	size time.Duration
	key  func(*http.Request) string
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter returns a Limiter for cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.Key == nil {
		cfg.Key = BearerOrIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		max:     cfg.Max,
		size:    cfg.Window,
		key:     cfg.Key,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Take counts one request for key. It reports whether the request fits,
// how many requests remain and when the current window ends.
func (l *Limiter) Take(key string) (ok bool, remaining int, reset time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(l.size)}
		l.windows[key] = w
	}
	w.roll(now, l.size)
	reset = w.start.Add(l.size)

	used := w.estimate(now, l.size)
	if used+1 > float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(l.max-int(used)-1, 0), reset
}

// Sweep drops keys with no requests in the last two windows.
func (l *Limiter) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, w := range l.windows {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.windows, k)
		}
	}
}

// Run sweeps stale keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every response.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, reset := l.Take(l.key(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				retry := int(reset.Sub(l.now()).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerOrIP keys authenticated requests by their bearer token and the
// rest by client IP.
func BearerOrIP(r *http.Request) string {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tok != "" {
		return "bearer:" + tok
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
