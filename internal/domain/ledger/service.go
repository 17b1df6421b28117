package ledger

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

const defaultMaxAttempts = 5

// Ledger performs read-modify-write cycles over the user collection held in
// a Store. Every mutation loads the whole collection, changes one record and
// saves the whole collection back under the loaded version.
type Ledger struct {
	store       Store
	maxAttempts int
	hashCost    int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxAttempts bounds the number of read-modify-write attempts made when
// the store reports a version conflict.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(l *Ledger) { l.hashCost = cost }
}

// New creates a Ledger backed by store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		hashCost:    bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Get returns the user with email.
func (l *Ledger) Get(ctx context.Context, email string) (User, error) {
	users, _, err := l.store.Load(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "load users")
	}
	i := users.Index(email)
	if i < 0 {
		return User{}, ErrUserNotFound
	}
	return users[i], nil
}

// Register creates a user with an empty order history.
func (l *Ledger) Register(ctx context.Context, name, email, password string) (User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" || password == "" {
		return User{}, ErrIncompleteProfile
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.hashCost)
	if err != nil {
		return User{}, errors.Wrap(err, "hash password")
	}
	u := User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Orders:       []Order{},
		UsedCoupons:  []string{},
	}

	err = l.mutate(ctx, func(users Collection) (Collection, error) {
		if users.Index(email) >= 0 {
			return nil, ErrEmailTaken
		}
		return append(users, u), nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate returns the user when password matches.
func (l *Ledger) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := l.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Delete removes the user together with its orders.
func (l *Ledger) Delete(ctx context.Context, email string) error {
	return l.mutate(ctx, func(users Collection) (Collection, error) {
		i := users.Index(email)
		if i < 0 {
			return nil, ErrUserNotFound
		}
		return append(users[:i], users[i+1:]...), nil
	})
}

// AppendOrder prepends order to the user's history and, when couponCode is
// not empty, adds it to the redeemed set. It does not check whether the code
// was already redeemed.
func (l *Ledger) AppendOrder(ctx context.Context, email string, order Order, couponCode string) (User, error) {
	return l.appendOrder(ctx, email, order, couponCode, false)
}

// CommitOrder is AppendOrder with the redemption check performed inside the
// same versioned write: if couponCode was redeemed in the meantime it fails
// with coupon.ErrAlreadyRedeemed and nothing is written.
func (l *Ledger) CommitOrder(ctx context.Context, email string, order Order, couponCode string) (User, error) {
	return l.appendOrder(ctx, email, order, couponCode, true)
}

func (l *Ledger) appendOrder(ctx context.Context, email string, order Order, couponCode string, strict bool) (User, error) {
	code := coupon.Normalize(couponCode)
	var updated User
	err := l.mutate(ctx, func(users Collection) (Collection, error) {
		i := users.Index(email)
		if i < 0 {
			return nil, ErrUserNotFound
		}
		u := users[i].Clone()
		if code != "" {
			if strict && u.Redeemed(code) {
				return nil, coupon.ErrAlreadyRedeemed
			}
			if !u.Redeemed(code) {
				u.UsedCoupons = append(u.UsedCoupons, code)
			}
		}
		u.Orders = append(u.Orders, order)
		users[i] = u
		updated = u
		return users, nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

func (l *Ledger) mutate(ctx context.Context, fn func(Collection) (Collection, error)) error {
	for attempt := 1; ; attempt++ {
		users, version, err := l.store.Load(ctx)
		if err != nil {
			return errors.Wrap(err, "load users")
		}
		next, err := fn(users)
		if err != nil {
			return err
		}
		if _, err := l.store.Save(ctx, next, version); err != nil {
			if errors.Is(err, ErrVersionConflict) && attempt < l.maxAttempts {
				continue
			}
			return errors.Wrap(err, "save users")
		}
		return nil
	}
}
