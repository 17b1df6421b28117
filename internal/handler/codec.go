package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/pricing"
	"github.com/xenking/wello-store/internal/domain/product"
)

const maxBodySize = 64 << 10

// reply is a successful response. A nil encode writes no body.
type reply struct {
	status int
	encode func(e *jx.Encoder)
}

func ok(encode func(e *jx.Encoder)) reply { return reply{status: http.StatusOK, encode: encode} }
func created(encode func(e *jx.Encoder)) reply {
	return reply{status: http.StatusCreated, encode: encode}
}
func noContent() reply { return reply{status: http.StatusNoContent} }

func (rp reply) write(w http.ResponseWriter) {
	if rp.encode == nil {
		w.WriteHeader(rp.status)
		return
	}
	var e jx.Encoder
	rp.encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rp.status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	reply{status: status, encode: func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	}}.write(w)
}

// requestError is a malformed request body.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// decodeBody decodes a JSON object body, calling field for each key. An
// empty body is an error unless optional is set.
func decodeBody(r *http.Request, optional bool, field func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return &requestError{err: err}
	}
	if len(raw) > maxBodySize {
		return &requestError{err: errors.New("too large")}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if optional {
			return nil
		}
		return &requestError{err: errors.New("empty")}
	}
	if err := jx.DecodeBytes(raw).Obj(field); err != nil {
		return &requestError{err: err}
	}
	return nil
}

// credentials is the signup and login body.
type credentials struct {
	Name     string
	Email    string
	Password string
}

func (c *credentials) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "name":
		c.Name, err = d.Str()
	case "email":
		c.Email, err = d.Str()
	case "password":
		c.Password, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

// itemRequest is an add-to-cart or buy-now body.
type itemRequest struct {
	ProductID string
	Quantity  int
}

func (it *itemRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "productId":
		it.ProductID, err = d.Str()
	case "quantity":
		it.Quantity, err = d.Int()
	default:
		err = d.Skip()
	}
	return err
}

// stringFields decodes the named string fields into dst and skips the rest.
func stringFields(dst map[string]*string) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) error {
		p, ok := dst[key]
		if !ok {
			return d.Skip()
		}
		v, err := d.Str()
		*p = v
		return err
	}
}

func (h *Handler) imageURL(image string) string {
	if h.imageBaseURL == "" || image == "" || strings.Contains(image, "://") {
		return image
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(image, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Int64(p.Price) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image)) })
	})
}

func (h *Handler) encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.Arr(func(e *jx.Encoder) {
		for i, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("index", func(e *jx.Encoder) { e.Int(i) })
				e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, l.Product) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
				e.Field("lineTotal", func(e *jx.Encoder) { e.Int64(l.Product.Price * int64(l.Quantity)) })
			})
		}
	})
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(t.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { e.Int64(t.Discount) })
		e.Field("finalTotal", func(e *jx.Encoder) { e.Int64(t.FinalTotal) })
	})
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeOrder(e *jx.Encoder, o ledger.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("date", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("items", func(e *jx.Encoder) { e.Str(o.Items) })
		e.Field("total", func(e *jx.Encoder) { e.Int64(o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("utr", func(e *jx.Encoder) { e.Str(o.PaymentRef) })
		if o.CouponCode != "" {
			e.Field("coupon", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
	})
}

// encodeUser writes the public view of u. The password hash never leaves.
func encodeUser(e *jx.Encoder, u ledger.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(u.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range u.Orders {
					encodeOrder(e, o)
				}
			})
		})
		e.Field("usedCoupons", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range u.UsedCoupons {
					e.Str(c)
				}
			})
		})
	})
}

func encodeRule(e *jx.Encoder, r coupon.Rule) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(r.Code) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(r.Kind)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(r.Value.String()) })
		if r.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(r.Description) })
		}
	})
}

func (h *Handler) encodeMachine(e *jx.Encoder, m checkout.Machine) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(string(m.State)) })
		if s := m.Session; s != nil {
			e.Field("session", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("items", func(e *jx.Encoder) { h.encodeLines(e, s.Lines) })
					e.Field("couponInput", func(e *jx.Encoder) { e.Str(s.CouponInput) })
					if s.Applied != nil {
						e.Field("coupon", func(e *jx.Encoder) { encodeRule(e, *s.Applied) })
					}
					e.Field("address", func(e *jx.Encoder) { e.Str(s.Address) })
					e.Field("phone", func(e *jx.Encoder) { e.Str(s.Phone) })
				})
			})
		}
		if p := m.Payment; p != nil {
			e.Field("payment", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("orderId", func(e *jx.Encoder) { e.Str(p.OrderID) })
					e.Field("items", func(e *jx.Encoder) { e.Str(p.Items) })
					e.Field("coupon", func(e *jx.Encoder) { e.Str(p.CouponCode) })
					e.Field("frozenAt", func(e *jx.Encoder) { encodeTime(e, p.FrozenAt) })
				})
			})
		}
		if m.Order != nil {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, *m.Order) })
		}
		e.Field("totals", func(e *jx.Encoder) { encodeTotals(e, m.Totals()) })
	})
}
