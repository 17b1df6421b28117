package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// Guard decides whether a code may be applied for a given user. It never
// records a redemption; that happens when the order is committed.
type Guard struct {
	table Table
}

// NewGuard creates a Guard backed by the given rule table.
func NewGuard(table Table) *Guard {
	return &Guard{table: table}
}

// Apply normalizes codeText and returns the bound rule. It fails with
// ErrUnknownCode for codes absent from the table and ErrAlreadyRedeemed when
// user has already redeemed the code. A nil user skips the redemption check.
func (g *Guard) Apply(ctx context.Context, codeText string, user Redeemer) (Rule, error) {
	code := Normalize(codeText)
	if code == "" {
		return Rule{}, ErrUnknownCode
	}

	rule, err := g.table.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return Rule{}, ErrUnknownCode
		}
		return Rule{}, errors.Wrap(err, "lookup coupon")
	}
	if user != nil && user.Redeemed(code) {
		return Rule{}, ErrAlreadyRedeemed
	}

	r := *rule
	r.Code = code
	return r, nil
}
