package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindFlat subtracts a fixed amount from the subtotal.
	KindFlat Kind = "flat"
	// KindPercent subtracts a percentage of the subtotal, rounded half-up.
	KindPercent Kind = "percent"
	// KindSpecial discounts every unit by min(unit price, value).
	KindSpecial Kind = "special"
)

// Valid reports whether k is a known discount kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFlat, KindPercent, KindSpecial:
		return true
	default:
		return false
	}
}

var (
	// ErrUnknownCode is returned when a code is not in the rule table.
	ErrUnknownCode = errors.New("invalid coupon code")
	// ErrAlreadyRedeemed is returned when the user has already redeemed the code.
	ErrAlreadyRedeemed = errors.New("coupon already used")
)

// Rule binds a coupon code to its discount behaviour.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	Description string
}

// Table resolves normalized codes to rules. Implementations return
// ErrUnknownCode when the code is absent.
type Table interface {
	Lookup(ctx context.Context, code string) (*Rule, error)
}

// Redeemer exposes the set of codes a user has already redeemed.
type Redeemer interface {
	Redeemed(code string) bool
}

// Normalize canonicalizes user-entered code text.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
