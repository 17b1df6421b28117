package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, size time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(RateLimitConfig{Max: max, Window: size})
	l.now = clock.now
	return l, clock
}

func request(remote, auth string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remote
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)
	h := l.Middleware()(okHandler())

	for i := range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request("10.0.0.1:9999", ""))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.1:9999", ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	d := jx.DecodeBytes(w.Body.Bytes())
	var (
		code    int
		message string
	)
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", message)

	// Another client has its own bucket.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.2:9999", ""))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimiter_BearerTokenBucket(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	h := l.Middleware()(okHandler())

	// Same IP, different tokens.
	for _, auth := range []string{"Bearer a", "Bearer b", ""} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request("10.0.0.1:1", auth))
		assert.Equal(t, http.StatusOK, w.Code, auth)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.9:1", "Bearer a"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute)

	for range 10 {
		ok, _, _ := l.Take("k")
		require.True(t, ok)
	}
	ok, _, _ := l.Take("k")
	require.False(t, ok)

	// A quarter into the next window 75% of the previous count still applies.
	clock.advance(time.Minute + 15*time.Second)
	allowed := 0
	for range 10 {
		if ok, _, _ := l.Take("k"); ok {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)

	// Two full windows later the key starts fresh.
	clock.advance(2 * time.Minute)
	ok, remaining, _ := l.Take("k")
	assert.True(t, ok)
	assert.Equal(t, 9, remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	l.Take("a")
	clock.advance(time.Minute)
	l.Take("b")
	clock.advance(time.Minute)

	l.Sweep()
	assert.NotContains(t, l.windows, "a")
	assert.Contains(t, l.windows, "b")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "RemoteAddr", remote: "192.168.1.1:1234", want: "192.168.1.1"},
		{name: "NoPort", remote: "192.168.1.1", want: "192.168.1.1"},
		{
			name:    "ForwardedFor",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			remote:  "10.0.0.1:1",
			want:    "203.0.113.5",
		},
		{
			name:    "RealIP",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			remote:  "10.0.0.1:1",
			want:    "198.51.100.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
