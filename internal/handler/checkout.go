package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/session"
)

func (h *Handler) machineReply(status int, m checkout.Machine) reply {
	return reply{status: status, encode: func(e *jx.Encoder) { h.encodeMachine(e, m) }}
}

// BeginCheckout handles POST /checkout. A body with a productId starts a
// buy-now checkout of that product; otherwise the cart is checked out.
func (h *Handler) BeginCheckout(r *http.Request, s *session.Session) (reply, error) {
	req := itemRequest{Quantity: 1}
	if err := decodeBody(r, true, req.decode); err != nil {
		return reply{}, err
	}

	lines := s.Cart.Lines()
	fromCart := req.ProductID == ""
	if !fromCart {
		p, err := h.products.GetByID(r.Context(), req.ProductID)
		if err != nil {
			return reply{}, err
		}
		if err := cart.CheckQuantity(req.Quantity); err != nil {
			return reply{}, err
		}
		lines = []cart.Line{{Product: *p, Quantity: req.Quantity}}
	}

	m, err := h.checkout.Begin(r.Context(), s.Checkout, lines)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	s.FromCart = fromCart
	return h.machineReply(http.StatusCreated, m), nil
}

// ViewCheckout handles GET /checkout.
func (h *Handler) ViewCheckout(_ *http.Request, s *session.Session) (reply, error) {
	return h.machineReply(http.StatusOK, s.Checkout), nil
}

// AbandonCheckout handles DELETE /checkout.
func (h *Handler) AbandonCheckout(_ *http.Request, s *session.Session) (reply, error) {
	m, err := checkout.Abandon(s.Checkout)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	return h.machineReply(http.StatusOK, m), nil
}

// ApplyCoupon handles POST /checkout/coupon.
func (h *Handler) ApplyCoupon(r *http.Request, s *session.Session) (reply, error) {
	var code string
	if err := decodeBody(r, false, stringFields(map[string]*string{"code": &code})); err != nil {
		return reply{}, err
	}
	m, err := h.checkout.ApplyCoupon(r.Context(), s.User, s.Checkout, code)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	return h.machineReply(http.StatusOK, m), nil
}

// ClearCoupon handles DELETE /checkout/coupon.
func (h *Handler) ClearCoupon(_ *http.Request, s *session.Session) (reply, error) {
	m, err := checkout.ClearCoupon(s.Checkout)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	return h.machineReply(http.StatusOK, m), nil
}

// ProceedToPayment handles POST /checkout/payment.
func (h *Handler) ProceedToPayment(r *http.Request, s *session.Session) (reply, error) {
	var address, phone string
	fields := stringFields(map[string]*string{"address": &address, "phone": &phone})
	if err := decodeBody(r, false, fields); err != nil {
		return reply{}, err
	}
	m, err := h.checkout.ProceedToPayment(r.Context(), s.User, s.Checkout, address, phone)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	return h.machineReply(http.StatusOK, m), nil
}

// CancelPayment handles DELETE /checkout/payment.
func (h *Handler) CancelPayment(_ *http.Request, s *session.Session) (reply, error) {
	m, err := checkout.CancelPayment(s.Checkout)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = m
	return h.machineReply(http.StatusOK, m), nil
}

// Confirm handles POST /checkout/confirm. On success the session user is
// refreshed from the ledger and a cart checkout empties the cart.
func (h *Handler) Confirm(r *http.Request, s *session.Session) (reply, error) {
	var reference string
	if err := decodeBody(r, false, stringFields(map[string]*string{"reference": &reference})); err != nil {
		return reply{}, err
	}
	rc, err := h.checkout.Confirm(r.Context(), s.User, s.Checkout, reference)
	if err != nil {
		return reply{}, err
	}
	s.Checkout = rc.Machine
	s.SetUser(rc.User)
	if s.FromCart {
		s.Cart.Clear()
		s.FromCart = false
	}
	return ok(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, rc.Order) })
			e.Field("user", func(e *jx.Encoder) { encodeUser(e, rc.User) })
			if rc.HandoffURL != "" {
				e.Field("handoffUrl", func(e *jx.Encoder) { e.Str(rc.HandoffURL) })
			}
			e.Field("checkout", func(e *jx.Encoder) { h.encodeMachine(e, rc.Machine) })
		})
	}), nil
}
