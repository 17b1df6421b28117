package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping fails when p cannot be reached.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Goroutines fails when more than limit goroutines are running.
func Goroutines(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}

// Backlog fails when pending reports more than limit queued items.
func Backlog(pending func() int, limit int) CheckFunc {
	return func(context.Context) error {
		if n := pending(); n > limit {
			return errors.Errorf("%d pending, limit %d", n, limit)
		}
		return nil
	}
}
