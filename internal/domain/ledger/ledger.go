// Package ledger stores user accounts together with their order history and
// redeemed coupon codes.
package ledger

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

// Status is the lifecycle marker of an order.
type Status string

// StatusVerificationPending is assigned to every new order.
const StatusVerificationPending Status = "Verification Pending"

var (
	// ErrUserNotFound is returned when no user matches the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrIncompleteProfile is returned when a required signup field is blank.
	ErrIncompleteProfile = errors.New("name, email and password are required")
	// ErrVersionConflict is returned by Store.Save when the collection changed
	// since it was loaded.
	ErrVersionConflict = errors.New("user collection version conflict")
)

// Order is an immutable record of a committed purchase.
type Order struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"date"`
	Items      string    `json:"items"`
	Total      int64     `json:"total"`
	Status     Status    `json:"status"`
	PaymentRef string    `json:"utr"`
	CouponCode string    `json:"coupon,omitempty"`
}

// User is an account with its orders in placement order and its redeemed codes.
type User struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	PasswordHash string   `json:"passwordHash"`
	Orders       []Order  `json:"orders"`
	UsedCoupons  []string `json:"usedCoupons"`
}

var _ coupon.Redeemer = User{}

// Redeemed reports whether the user has redeemed code.
func (u User) Redeemed(code string) bool {
	code = coupon.Normalize(code)
	for _, c := range u.UsedCoupons {
		if c == code {
			return true
		}
	}
	return false
}

// HasOrder reports whether an order with id exists in the history.
func (u User) HasOrder(id string) bool {
	for _, o := range u.Orders {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	c := u
	if u.Orders != nil {
		c.Orders = append([]Order(nil), u.Orders...)
	}
	if u.UsedCoupons != nil {
		c.UsedCoupons = append([]string(nil), u.UsedCoupons...)
	}
	return c
}

// Collection is the full set of users, keyed by email.
type Collection []User

// Index returns the position of the user with email, or -1.
func (c Collection) Index(email string) int {
	email = NormalizeEmail(email)
	for i := range c {
		if c[i].Email == email {
			return i
		}
	}
	return -1
}

// NormalizeEmail canonicalizes an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
