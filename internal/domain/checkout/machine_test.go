package checkout

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/pricing"
	"github.com/xenking/wello-store/internal/domain/product"
)

var (
	fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cutter = product.Product{ID: "1", Name: "Electric Vegetable Cutter", Price: 999}
	brush  = product.Product{ID: "2", Name: "Silicone Oil Brush", Price: 499}

	welcome50 = coupon.Rule{Code: "WELCOME50", Kind: coupon.KindFlat, Value: decimal.NewFromInt(50)}
)

func checkingOut(t *testing.T, lines ...cart.Line) Machine {
	t.Helper()
	m, err := Begin(New(), lines)
	require.NoError(t, err)
	return m
}

func awaitingPayment(t *testing.T) Machine {
	t.Helper()
	m := checkingOut(t, cart.Line{Product: cutter, Quantity: 1})
	m, err := ApplyCoupon(m, "welcome50", welcome50)
	require.NoError(t, err)
	m, err = ProceedToPayment(m, "12 MG Road", "9999999999", "#ORD-000001", fixedNow)
	require.NoError(t, err)
	return m
}

func TestStateErrors(t *testing.T) {
	browsing := New()
	cartOpen := Machine{State: StateCartOpen}
	checking := checkingOut(t, cart.Line{Product: cutter, Quantity: 1})
	awaiting := awaitingPayment(t)
	committed, err := Committed(awaiting, ledger.Order{ID: "#ORD-000001"})
	require.NoError(t, err)

	lines := []cart.Line{{Product: cutter, Quantity: 1}}
	ops := map[string]func(Machine) (Machine, error){
		"open cart":  OpenCart,
		"close cart": CloseCart,
		"begin":      func(m Machine) (Machine, error) { return Begin(m, lines) },
		"apply":      func(m Machine) (Machine, error) { return ApplyCoupon(m, "WELCOME50", welcome50) },
		"clear":      ClearCoupon,
		"proceed": func(m Machine) (Machine, error) {
			return ProceedToPayment(m, "addr", "phone", "#ORD-000002", fixedNow)
		},
		"cancel":  CancelPayment,
		"commit":  func(m Machine) (Machine, error) { return Committed(m, ledger.Order{}) },
		"abandon": Abandon,
	}
	allowed := map[State][]string{
		StateBrowsing:        {"open cart", "close cart", "begin", "abandon"},
		StateCartOpen:        {"open cart", "close cart", "begin", "abandon"},
		StateCheckingOut:     {"apply", "clear", "proceed", "abandon"},
		StateAwaitingPayment: {"cancel", "commit", "abandon"},
		StateOrderCommitted:  {},
	}

	for _, m := range []Machine{browsing, cartOpen, checking, awaiting, committed} {
		for name, op := range ops {
			t.Run(string(m.State)+"/"+name, func(t *testing.T) {
				next, err := op(m)
				if contains(allowed[m.State], name) {
					require.NoError(t, err)
					return
				}
				var se *StateError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, m.State, se.State)
				assert.Equal(t, m, next, "rejected transition leaves machine unchanged")
			})
		}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestBegin(t *testing.T) {
	_, err := Begin(New(), nil)
	require.ErrorIs(t, err, ErrEmptyItems)

	for _, q := range []int{0, cart.MaxQuantity + 1, math.MaxInt} {
		_, err = Begin(New(), []cart.Line{{Product: cutter, Quantity: q}})
		require.ErrorIs(t, err, cart.ErrInvalidQuantity, "quantity %d", q)
	}

	lines := []cart.Line{{Product: cutter, Quantity: 1}}
	m, err := Begin(Machine{State: StateCartOpen}, lines)
	require.NoError(t, err)
	assert.Equal(t, StateCheckingOut, m.State)
	assert.Nil(t, m.Session.Applied)

	lines[0].Quantity = 7
	assert.Equal(t, 1, m.Session.Lines[0].Quantity, "session snapshots its lines")
}

func TestApplyCoupon_Replaces(t *testing.T) {
	m := checkingOut(t, cart.Line{Product: cutter, Quantity: 1})
	chef := coupon.Rule{Code: "CHEF200", Kind: coupon.KindFlat, Value: decimal.NewFromInt(200)}

	first, err := ApplyCoupon(m, "WELCOME50", welcome50)
	require.NoError(t, err)
	second, err := ApplyCoupon(first, "chef200", chef)
	require.NoError(t, err)

	assert.Equal(t, pricing.Totals{Subtotal: 999, Discount: 200, FinalTotal: 799}, second.Totals())
	assert.Equal(t, pricing.Totals{Subtotal: 999, Discount: 50, FinalTotal: 949}, first.Totals(), "input machine untouched")

	cleared, err := ClearCoupon(second)
	require.NoError(t, err)
	assert.Equal(t, pricing.Totals{Subtotal: 999, FinalTotal: 999}, cleared.Totals())
}

func TestProceedToPayment(t *testing.T) {
	m := checkingOut(t, cart.Line{Product: cutter, Quantity: 2}, cart.Line{Product: brush, Quantity: 1})

	tests := []struct {
		name    string
		address string
		phone   string
		field   string
	}{
		{name: "missing address", address: " ", phone: "999", field: "address"},
		{name: "missing phone", address: "12 MG Road", phone: "", field: "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := ProceedToPayment(m, tt.address, tt.phone, "#ORD-1", fixedNow)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, StateCheckingOut, next.State)
		})
	}

	next, err := ProceedToPayment(m, "12 MG Road", "9999999999", "#ORD-1", fixedNow)
	require.NoError(t, err)
	require.NotNil(t, next.Payment)
	assert.Equal(t, StateAwaitingPayment, next.State)
	assert.Equal(t, "#ORD-1", next.Payment.OrderID)
	assert.Equal(t, "Electric Vegetable Cutter, Electric Vegetable Cutter, Silicone Oil Brush", next.Payment.Items)
	assert.Equal(t, int64(2497), next.Totals().FinalTotal)
	assert.Empty(t, next.Payment.CouponCode)
}

func TestCancelPayment_KeepsDetails(t *testing.T) {
	m := awaitingPayment(t)

	back, err := CancelPayment(m)
	require.NoError(t, err)
	assert.Equal(t, StateCheckingOut, back.State)
	assert.Nil(t, back.Payment)
	assert.Equal(t, "12 MG Road", back.Session.Address)
	assert.Equal(t, "9999999999", back.Session.Phone)
	require.NotNil(t, back.Session.Applied)
	assert.Equal(t, "WELCOME50", back.Session.Applied.Code)
}

func TestSubmitPayment(t *testing.T) {
	m := awaitingPayment(t)

	for _, ref := range []string{"", "abc", "ab "} {
		_, err := SubmitPayment(m, ref)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "reference %q", ref)
		assert.Equal(t, "reference", ve.Field)
	}

	order, err := SubmitPayment(m, "  ab  ")
	require.NoError(t, err, "length counts the input as entered")
	assert.Equal(t, "  ab  ", order.PaymentRef)

	order, err = SubmitPayment(m, "TESTUTR1234")
	require.NoError(t, err)
	assert.Equal(t, ledger.Order{
		ID:         "#ORD-000001",
		CreatedAt:  fixedNow,
		Items:      "Electric Vegetable Cutter",
		Total:      949,
		Status:     ledger.StatusVerificationPending,
		PaymentRef: "TESTUTR1234",
		CouponCode: "WELCOME50",
	}, order)
}

func TestAbandon(t *testing.T) {
	for _, m := range []Machine{New(), {State: StateCartOpen}, checkingOut(t, cart.Line{Product: cutter, Quantity: 1}), awaitingPayment(t)} {
		next, err := Abandon(m)
		require.NoError(t, err)
		assert.Equal(t, New(), next)
	}
}
