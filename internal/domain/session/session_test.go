package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/product"
)

var asha = ledger.User{Email: "asha@example.com", Name: "Asha"}

func TestRegistry_OpenAndWith(t *testing.T) {
	ctx := context.Background()
	snaps := NewMemorySnapshots()
	r := NewRegistry(snaps, []byte("pepper"))

	token, err := r.Open(ctx, asha)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Only the hash is stored.
	_, err = snaps.Load(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = snaps.Load(ctx, r.hash(token))
	require.NoError(t, err)

	err = r.With(ctx, token, func(s *Session) error {
		assert.Equal(t, "Asha", s.User.Name)
		assert.Equal(t, checkout.StateBrowsing, s.Checkout.State)
		return s.Cart.Add(product.Product{ID: "1", Name: "Cutter", Price: 999}, 1)
	})
	require.NoError(t, err)

	err = r.With(ctx, token, func(s *Session) error {
		assert.Len(t, s.Cart.Lines(), 1)
		return nil
	})
	require.NoError(t, err)

	require.ErrorIs(t, r.With(ctx, "bogus", func(*Session) error { return nil }), ErrNotFound)
	require.ErrorIs(t, r.With(ctx, "", func(*Session) error { return nil }), ErrNotFound)
}

func TestRegistry_SetUserPersists(t *testing.T) {
	ctx := context.Background()
	snaps := NewMemorySnapshots()
	r := NewRegistry(snaps, []byte("pepper"))
	token, err := r.Open(ctx, asha)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = r.With(ctx, token, func(s *Session) error {
		u := s.User.Clone()
		u.Orders = append(u.Orders, ledger.Order{ID: "#ORD-000001"})
		s.SetUser(u)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := snaps.Load(ctx, r.hash(token))
	require.NoError(t, err)
	assert.Len(t, stored.Orders, 1)
}

func TestRegistry_RestoresFromSnapshot(t *testing.T) {
	ctx := context.Background()
	snaps := NewMemorySnapshots()
	first := NewRegistry(snaps, []byte("pepper"))
	token, err := first.Open(ctx, asha)
	require.NoError(t, err)

	// A new process shares the snapshot store but not the live state.
	second := NewRegistry(snaps, []byte("pepper"))
	err = second.With(ctx, token, func(s *Session) error {
		assert.Equal(t, asha.Email, s.User.Email)
		assert.True(t, s.Cart.Empty())
		return nil
	})
	require.NoError(t, err)

	other := NewRegistry(snaps, []byte("different"))
	require.ErrorIs(t, other.With(ctx, token, func(*Session) error { return nil }), ErrNotFound)
}

func TestRegistry_Close(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemorySnapshots(), []byte("pepper"))

	a, err := r.Open(ctx, asha)
	require.NoError(t, err)
	b, err := r.Open(ctx, asha)
	require.NoError(t, err)
	c, err := r.Open(ctx, ledger.User{Email: "ravi@example.com"})
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx, a))
	noop := func(*Session) error { return nil }
	require.ErrorIs(t, r.With(ctx, a, noop), ErrNotFound)
	require.NoError(t, r.With(ctx, b, noop))

	require.NoError(t, r.CloseUser(ctx, "ASHA@example.com"))
	require.ErrorIs(t, r.With(ctx, b, noop), ErrNotFound)
	require.NoError(t, r.With(ctx, c, noop))
}

func TestRegistry_Evict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemorySnapshots(), []byte("pepper"))
	r.now = func() time.Time { return now }

	token, err := r.Open(ctx, asha)
	require.NoError(t, err)
	require.NoError(t, r.With(ctx, token, func(s *Session) error {
		return s.Cart.Add(product.Product{ID: "1"}, 1)
	}))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, r.Evict(30*time.Minute))

	// The login survives; the cart does not.
	require.NoError(t, r.With(ctx, token, func(s *Session) error {
		assert.True(t, s.Cart.Empty())
		return nil
	}))
}

func TestRegistry_WithSurvivesConcurrentEvict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemorySnapshots(), []byte("pepper"))
	r.now = func() time.Time { return now }

	token, err := r.Open(ctx, asha)
	require.NoError(t, err)

	// Evict the idle entry after With has found it but before it is locked.
	now = now.Add(time.Hour)
	evicted := 0
	r.beforeLock = func() {
		if evicted == 0 {
			evicted = r.Evict(30 * time.Minute)
		}
	}
	require.NoError(t, r.With(ctx, token, func(s *Session) error {
		return s.Cart.Add(product.Product{ID: "1"}, 2)
	}))
	require.Equal(t, 1, evicted)
	r.beforeLock = nil

	require.NoError(t, r.With(ctx, token, func(s *Session) error {
		require.Len(t, s.Cart.Lines(), 1, "the add landed on the live session")
		assert.Equal(t, 2, s.Cart.Lines()[0].Quantity)
		return nil
	}))
}

func TestRegistry_WithSerializes(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemorySnapshots(), []byte("pepper"))
	token, err := r.Open(ctx, asha)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With(ctx, token, func(s *Session) error {
				return s.Cart.Add(product.Product{ID: "1"}, 1)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, r.With(ctx, token, func(s *Session) error {
		require.Len(t, s.Cart.Lines(), 1)
		assert.Equal(t, n, s.Cart.Lines()[0].Quantity)
		return nil
	}))
}
