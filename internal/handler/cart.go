package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/pricing"
	"github.com/xenking/wello-store/internal/domain/session"
)

func (h *Handler) cartReply(status int, c *cart.Cart) reply {
	lines := c.Lines()
	return reply{status: status, encode: func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) { h.encodeLines(e, lines) })
			e.Field("units", func(e *jx.Encoder) { e.Int(cart.Units(lines)) })
			e.Field("totals", func(e *jx.Encoder) { encodeTotals(e, pricing.Compute(cart.Priced(lines), nil)) })
		})
	}}
}

// ViewCart handles GET /cart. Viewing the cart opens it when browsing.
func (h *Handler) ViewCart(_ *http.Request, s *session.Session) (reply, error) {
	if m, err := checkout.OpenCart(s.Checkout); err == nil {
		s.Checkout = m
	}
	return h.cartReply(http.StatusOK, &s.Cart), nil
}

// AddToCart handles POST /cart/items. Quantity defaults to one.
func (h *Handler) AddToCart(r *http.Request, s *session.Session) (reply, error) {
	req := itemRequest{Quantity: 1}
	if err := decodeBody(r, false, req.decode); err != nil {
		return reply{}, err
	}
	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		return reply{}, err
	}
	if err := s.Cart.Add(*p, req.Quantity); err != nil {
		return reply{}, err
	}
	return h.cartReply(http.StatusCreated, &s.Cart), nil
}

// RemoveFromCart handles DELETE /cart/items/{index}.
func (h *Handler) RemoveFromCart(r *http.Request, s *session.Session) (reply, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return reply{}, &requestError{err: errors.Wrap(err, "index")}
	}
	if err := s.Cart.Remove(index); err != nil {
		return reply{}, err
	}
	return h.cartReply(http.StatusOK, &s.Cart), nil
}
