// Package health serves liveness and readiness probes.
//
// Checks run in the background; a check flips to failing only after
// FailureThreshold consecutive errors and back after SuccessThreshold
// consecutive passes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// Check describes one background check.
type Check struct {
	Name             string
	Probe            Probe
	Func             CheckFunc
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

type state struct {
	Check

	failing atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the goroutine running the check.
	fails  int
	passes int
}

func (s *state) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Func(ctx); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.passes = 0
		if s.fails++; s.fails >= s.FailureThreshold {
			s.failing.Store(true)
		}
		return
	}
	s.fails = 0
	if s.passes++; s.passes >= s.SuccessThreshold {
		s.failing.Store(false)
	}
}

func (s *state) reason() string {
	if msg := s.lastErr.Load(); msg != nil {
		return *msg
	}
	return "failing"
}

// Health aggregates checks. It reports not ready until SetReady(true).
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*state
}

// New returns an empty Health.
func New() *Health {
	return &Health{}
}

// Add registers c. Zero thresholds default to 3 failures and 1 success,
// a zero timeout to one second.
func (h *Health) Add(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, &state{Check: c})
}

// SetReady marks whether the service accepts traffic. Shutdown sets false
// first so load balancers drain before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Run executes every check at interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.mu.RLock()
	checks := slices.Clone(h.checks)
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range checks {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				s.observe(ctx)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// failures returns the failing checks of probe keyed by name.
func (h *Health) failures(probe Probe) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, s := range h.checks {
		if s.Probe == probe && s.failing.Load() {
			out[s.Name] = s.reason()
		}
	}
	return out
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// Live serves GET /livez.
func (h *Health) Live(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// Readiness serves GET /readyz.
func (h *Health) Readiness(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["service"] = "not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status, text := http.StatusOK, "ok"
	if len(failures) > 0 {
		status, text = http.StatusServiceUnavailable, "unhealthy"
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(text) })
		if len(failures) == 0 {
			return
		}
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
