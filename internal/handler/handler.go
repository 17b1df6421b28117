// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/product"
	"github.com/xenking/wello-store/internal/domain/session"
)

// Accounts manages registered users. *ledger.Ledger implements it.
type Accounts interface {
	Register(ctx context.Context, name, email, password string) (ledger.User, error)
	Authenticate(ctx context.Context, email, password string) (ledger.User, error)
	Get(ctx context.Context, email string) (ledger.User, error)
	Delete(ctx context.Context, email string) error
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative product image paths.
	ImageBaseURL string
}

// Handler serves the /api routes.
type Handler struct {
	products     product.Repository
	accounts     Accounts
	sessions     *session.Registry
	checkout     *checkout.Service
	imageBaseURL string
}

// New creates a Handler.
func New(
	cfg Config,
	products product.Repository,
	accounts Accounts,
	sessions *session.Registry,
	checkoutSvc *checkout.Service,
) *Handler {
	return &Handler{
		products:     products,
		accounts:     accounts,
		sessions:     sessions,
		checkout:     checkoutSvc,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Post("/logout", h.Logout)
	r.Get("/profile", h.authed(h.Profile))
	r.Delete("/profile", h.DeleteProfile)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.authed(h.ViewCart))
		r.Post("/items", h.authed(h.AddToCart))
		r.Delete("/items/{index}", h.authed(h.RemoveFromCart))
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.authed(h.BeginCheckout))
		r.Get("/", h.authed(h.ViewCheckout))
		r.Delete("/", h.authed(h.AbandonCheckout))
		r.Post("/coupon", h.authed(h.ApplyCoupon))
		r.Delete("/coupon", h.authed(h.ClearCoupon))
		r.Post("/payment", h.authed(h.ProceedToPayment))
		r.Delete("/payment", h.authed(h.CancelPayment))
		r.Post("/confirm", h.authed(h.Confirm))
	})
	return r
}

// sessionHandler handles a request with exclusive access to its session.
// The reply is written after the session is released and persisted.
type sessionHandler func(r *http.Request, s *session.Session) (reply, error)

func (h *Handler) authed(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out reply
		err := h.sessions.With(r.Context(), bearerToken(r), func(s *session.Session) error {
			var err error
			out, err = fn(r, s)
			return err
		})
		if err != nil {
			h.mapError(w, r, err)
			return
		}
		out.write(w)
	}
}

func bearerToken(r *http.Request) string {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}
