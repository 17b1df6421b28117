package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/session"
)

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, false, req.decode); err != nil {
		h.mapError(w, r, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	created(func(e *jx.Encoder) { encodeUser(e, u) }).write(w)
}

// Login handles POST /login and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, false, req.decode); err != nil {
		h.mapError(w, r, err)
		return
	}
	u, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	token, err := h.sessions.Open(r.Context(), u)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	ok(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Str(token) })
			e.Field("user", func(e *jx.Encoder) { encodeUser(e, u) })
		})
	}).write(w)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	err := h.sessions.With(r.Context(), token, func(*session.Session) error { return nil })
	if err == nil {
		err = h.sessions.Close(r.Context(), token)
	}
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	noContent().write(w)
}

// Profile handles GET /profile. The snapshot is refreshed from the ledger
// so orders placed from other sessions show up.
func (h *Handler) Profile(r *http.Request, s *session.Session) (reply, error) {
	u, err := h.accounts.Get(r.Context(), s.User.Email)
	if err != nil {
		return reply{}, err
	}
	s.SetUser(u)
	return ok(func(e *jx.Encoder) { encodeUser(e, u) }), nil
}

// DeleteProfile handles DELETE /profile: the account and all its orders are
// removed and every session of the user ends.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	var email string
	err := h.sessions.With(r.Context(), bearerToken(r), func(s *session.Session) error {
		email = s.User.Email
		return h.accounts.Delete(r.Context(), email)
	})
	if err == nil {
		err = h.sessions.CloseUser(r.Context(), email)
	}
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	noContent().write(w)
}

var _ Accounts = (*ledger.Ledger)(nil)
