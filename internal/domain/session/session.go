// Package session keeps per-login state: the authenticated user snapshot,
// the cart and the checkout machine.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/ledger"
)

// ErrNotFound is returned for unknown or revoked tokens.
var ErrNotFound = errors.New("session not found")

// Snapshots persists the current-user slot of each session, keyed by the
// token hash, so sessions survive a restart. Cart and checkout are never
// persisted.
type Snapshots interface {
	Save(ctx context.Context, tokenHash string, user ledger.User) error
	Load(ctx context.Context, tokenHash string) (ledger.User, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteByEmail(ctx context.Context, email string) error
}

// Session is the state of one login. It is only accessed through
// Registry.With, which serializes access.
type Session struct {
	User     ledger.User
	Cart     cart.Cart
	Checkout checkout.Machine
	// FromCart is set while the checkout was started from the cart rather
	// than a buy-now item; the cart is cleared when such a checkout commits.
	FromCart bool

	dirty bool
}

// SetUser replaces the user snapshot; the registry persists it when the
// enclosing With call returns.
func (s *Session) SetUser(u ledger.User) {
	s.User = u
	s.dirty = true
}

type entry struct {
	email string

	mu       sync.Mutex
	sess     *Session
	lastSeen time.Time
}

// Registry maps bearer tokens to live sessions.
type Registry struct {
	snapshots Snapshots
	pepper    []byte
	now       func() time.Time

	mu   sync.Mutex
	live map[string]*entry

	// beforeLock runs between the entry lookup and taking its lock.
	beforeLock func()
}

// NewRegistry creates a Registry. Tokens are stored as HMAC-SHA256 with pepper.
func NewRegistry(snapshots Snapshots, pepper []byte) *Registry {
	return &Registry{
		snapshots: snapshots,
		pepper:    pepper,
		now:       time.Now,
		live:      make(map[string]*entry),
	}
}

func (r *Registry) hash(token string) string {
	mac := hmac.New(sha256.New, r.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Open starts a session for user and returns its bearer token.
func (r *Registry) Open(ctx context.Context, user ledger.User) (string, error) {
	token := uuid.NewString()
	key := r.hash(token)
	if err := r.snapshots.Save(ctx, key, user); err != nil {
		return "", errors.Wrap(err, "save session")
	}

	r.mu.Lock()
	r.live[key] = &entry{
		email:    user.Email,
		sess:     &Session{User: user, Checkout: checkout.New()},
		lastSeen: r.now(),
	}
	r.mu.Unlock()
	return token, nil
}

// With runs fn with exclusive access to the session of token. A session
// known only from its snapshot is restored with an empty cart. A user
// snapshot changed through SetUser is persisted after fn returns, even
// when fn fails.
func (r *Registry) With(ctx context.Context, token string, fn func(*Session) error) error {
	if token == "" {
		return ErrNotFound
	}
	key := r.hash(token)

	e, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.lastSeen = r.now()

	fnErr := fn(e.sess)
	if e.sess.dirty {
		e.sess.dirty = false
		if err := r.snapshots.Save(ctx, key, e.sess.User); err != nil && fnErr == nil {
			return errors.Wrap(err, "save session")
		}
	}
	return fnErr
}

// acquire returns the live entry of key with its lock held. An entry
// evicted or closed before the lock was taken is looked up again.
func (r *Registry) acquire(ctx context.Context, key string) (*entry, error) {
	for {
		e, err := r.entry(ctx, key)
		if err != nil {
			return nil, err
		}
		if r.beforeLock != nil {
			r.beforeLock()
		}
		e.mu.Lock()
		r.mu.Lock()
		current := r.live[key] == e
		r.mu.Unlock()
		if current {
			return e, nil
		}
		e.mu.Unlock()
	}
}

func (r *Registry) entry(ctx context.Context, key string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.live[key]
	r.mu.Unlock()
	if ok {
		return e, nil
	}

	user, err := r.snapshots.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "load session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.live[key]; ok {
		return e, nil
	}
	e = &entry{
		email:    user.Email,
		sess:     &Session{User: user, Checkout: checkout.New()},
		lastSeen: r.now(),
	}
	r.live[key] = e
	return e, nil
}

// Close ends the session of token.
func (r *Registry) Close(ctx context.Context, token string) error {
	key := r.hash(token)
	r.mu.Lock()
	delete(r.live, key)
	r.mu.Unlock()
	if err := r.snapshots.Delete(ctx, key); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// CloseUser ends every session of the user with email.
func (r *Registry) CloseUser(ctx context.Context, email string) error {
	email = ledger.NormalizeEmail(email)
	r.mu.Lock()
	for key, e := range r.live {
		if e.email == email {
			delete(r.live, key)
		}
	}
	r.mu.Unlock()
	if err := r.snapshots.DeleteByEmail(ctx, email); err != nil {
		return errors.Wrap(err, "delete user sessions")
	}
	return nil
}

// Evict drops in-memory state of sessions idle for longer than idle. Their
// snapshots stay, so a later request restores them with an empty cart.
func (r *Registry) Evict(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.live {
		if e.mu.TryLock() {
			if e.lastSeen.Before(cutoff) {
				delete(r.live, key)
				n++
			}
			e.mu.Unlock()
		}
	}
	return n
}

// RunEviction calls Evict every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(idle)
		}
	}
}
