// Package checkout drives a purchase from cart to committed order.
//
// A Machine is an immutable value: every transition function takes a Machine
// and returns a new one, leaving its input untouched.
package checkout

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/pricing"
)

// MinReferenceLength is the shortest payment reference accepted.
const MinReferenceLength = 4

// State is the checkout state tag.
type State string

const (
	StateBrowsing        State = "browsing"
	StateCartOpen        State = "cart_open"
	StateCheckingOut     State = "checking_out"
	StateAwaitingPayment State = "awaiting_payment"
	StateOrderCommitted  State = "order_committed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateOrderCommitted }

// Session is the transient data of one checkout.
type Session struct {
	Lines       []cart.Line
	CouponInput string
	Applied     *coupon.Rule
	Address     string
	Phone       string
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Lines = cart.Clone(s.Lines)
	if s.Applied != nil {
		r := *s.Applied
		c.Applied = &r
	}
	return &c
}

// Totals prices the session lines with the applied coupon.
func (s *Session) Totals() pricing.Totals {
	return pricing.Compute(cart.Priced(s.Lines), s.Applied)
}

// Payment is the order snapshot frozen when payment details are requested.
type Payment struct {
	OrderID    string
	Items      string
	Totals     pricing.Totals
	CouponCode string
	FrozenAt   time.Time
}

// Machine is the checkout state with its associated data. Session is set in
// CheckingOut and AwaitingPayment, Payment only in AwaitingPayment and Order
// only in OrderCommitted.
type Machine struct {
	State   State
	Session *Session
	Payment *Payment
	Order   *ledger.Order
}

// New returns a machine in Browsing.
func New() Machine {
	return Machine{State: StateBrowsing}
}

func (m Machine) clone() Machine {
	c := Machine{State: m.State, Session: m.Session.clone()}
	if m.Payment != nil {
		p := *m.Payment
		c.Payment = &p
	}
	if m.Order != nil {
		o := *m.Order
		c.Order = &o
	}
	return c
}

// Totals returns the frozen totals while awaiting payment, the live totals
// while checking out and zeros otherwise.
func (m Machine) Totals() pricing.Totals {
	switch {
	case m.Payment != nil:
		return m.Payment.Totals
	case m.Session != nil:
		return m.Session.Totals()
	default:
		return pricing.Totals{}
	}
}

// OpenCart moves Browsing to CartOpen. Opening an open cart is a no-op.
func OpenCart(m Machine) (Machine, error) {
	switch m.State {
	case StateBrowsing, StateCartOpen:
		return Machine{State: StateCartOpen}, nil
	default:
		return m, &StateError{State: m.State, Op: "open cart"}
	}
}

// CloseCart moves CartOpen back to Browsing.
func CloseCart(m Machine) (Machine, error) {
	switch m.State {
	case StateBrowsing, StateCartOpen:
		return New(), nil
	default:
		return m, &StateError{State: m.State, Op: "close cart"}
	}
}

// Begin starts a fresh checkout over lines. No coupon, address or phone is
// carried over from an earlier checkout.
func Begin(m Machine, lines []cart.Line) (Machine, error) {
	if m.State != StateBrowsing && m.State != StateCartOpen {
		return m, &StateError{State: m.State, Op: "begin checkout"}
	}
	if len(lines) == 0 {
		return m, ErrEmptyItems
	}
	for _, l := range lines {
		if err := cart.CheckQuantity(l.Quantity); err != nil {
			return m, err
		}
	}
	return Machine{
		State:   StateCheckingOut,
		Session: &Session{Lines: cart.Clone(lines)},
	}, nil
}

// ApplyCoupon replaces the applied coupon with rule.
func ApplyCoupon(m Machine, input string, rule coupon.Rule) (Machine, error) {
	if m.State != StateCheckingOut {
		return m, &StateError{State: m.State, Op: "apply coupon"}
	}
	next := m.clone()
	next.Session.CouponInput = input
	next.Session.Applied = &rule
	return next, nil
}

// ClearCoupon removes the applied coupon.
func ClearCoupon(m Machine) (Machine, error) {
	if m.State != StateCheckingOut {
		return m, &StateError{State: m.State, Op: "clear coupon"}
	}
	next := m.clone()
	next.Session.CouponInput = ""
	next.Session.Applied = nil
	return next, nil
}

// ProceedToPayment records delivery details and freezes the order id, item
// summary and totals. The frozen totals are what will be committed.
func ProceedToPayment(m Machine, address, phone, orderID string, now time.Time) (Machine, error) {
	if m.State != StateCheckingOut {
		return m, &StateError{State: m.State, Op: "proceed to payment"}
	}
	address, phone = strings.TrimSpace(address), strings.TrimSpace(phone)
	if address == "" {
		return m, &ValidationError{Field: "address", Reason: "required"}
	}
	if phone == "" {
		return m, &ValidationError{Field: "phone", Reason: "required"}
	}

	next := m.clone()
	next.State = StateAwaitingPayment
	next.Session.Address = address
	next.Session.Phone = phone
	p := &Payment{
		OrderID:  orderID,
		Items:    cart.Describe(next.Session.Lines),
		Totals:   next.Session.Totals(),
		FrozenAt: now,
	}
	if next.Session.Applied != nil {
		p.CouponCode = next.Session.Applied.Code
	}
	next.Payment = p
	return next, nil
}

// CancelPayment discards the frozen payment and returns to an editable
// checkout with coupon, address and phone kept.
func CancelPayment(m Machine) (Machine, error) {
	if m.State != StateAwaitingPayment {
		return m, &StateError{State: m.State, Op: "cancel payment"}
	}
	next := m.clone()
	next.State = StateCheckingOut
	next.Payment = nil
	return next, nil
}

// SubmitPayment validates reference and returns the order to commit. The
// reference is length-checked and recorded exactly as entered. The machine
// does not change; Committed advances it once the ledger accepts the order.
func SubmitPayment(m Machine, reference string) (ledger.Order, error) {
	if m.State != StateAwaitingPayment {
		return ledger.Order{}, &StateError{State: m.State, Op: "submit payment"}
	}
	if utf8.RuneCountInString(reference) < MinReferenceLength {
		return ledger.Order{}, &ValidationError{Field: "reference", Reason: "must be at least 4 characters"}
	}
	p := m.Payment
	return ledger.Order{
		ID:         p.OrderID,
		CreatedAt:  p.FrozenAt,
		Items:      p.Items,
		Total:      p.Totals.FinalTotal,
		Status:     ledger.StatusVerificationPending,
		PaymentRef: reference,
		CouponCode: p.CouponCode,
	}, nil
}

// Committed moves AwaitingPayment to the terminal OrderCommitted.
func Committed(m Machine, order ledger.Order) (Machine, error) {
	if m.State != StateAwaitingPayment {
		return m, &StateError{State: m.State, Op: "commit order"}
	}
	return Machine{State: StateOrderCommitted, Order: &order}, nil
}

// Abandon drops any non-terminal checkout and returns to Browsing.
func Abandon(m Machine) (Machine, error) {
	if m.State.Terminal() {
		return m, &StateError{State: m.State, Op: "abandon checkout"}
	}
	return New(), nil
}
