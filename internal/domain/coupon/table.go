package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var _ Table = (*StaticTable)(nil)

// DefaultRules is the built-in storefront coupon table.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "WELCOME50", Kind: KindFlat, Value: decimal.NewFromInt(50), Description: "₹50 off your order"},
		{Code: "CHEF200", Kind: KindFlat, Value: decimal.NewFromInt(200), Description: "₹200 off your order"},
		{Code: "ZEROPRO99", Kind: KindSpecial, Value: decimal.NewFromInt(998), Description: "Up to ₹998 off every item"},
	}
}

// StaticTable is an immutable in-memory rule table.
type StaticTable struct {
	rules map[string]Rule
}

// NewStaticTable builds a table from rules, or from DefaultRules when none
// are given. Codes are normalized on insert.
func NewStaticTable(rules ...Rule) (*StaticTable, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	t := &StaticTable{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if !r.Kind.Valid() {
			return nil, errors.Errorf("coupon %q: unknown kind %q", r.Code, r.Kind)
		}
		if r.Value.IsNegative() {
			return nil, errors.Errorf("coupon %q: negative value", r.Code)
		}
		r.Code = Normalize(r.Code)
		if r.Code == "" {
			return nil, errors.New("coupon with empty code")
		}
		t.rules[r.Code] = r
	}
	return t, nil
}

func (t *StaticTable) Lookup(_ context.Context, code string) (*Rule, error) {
	r, ok := t.rules[Normalize(code)]
	if !ok {
		return nil, ErrUnknownCode
	}
	return &r, nil
}
