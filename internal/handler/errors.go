package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/product"
	"github.com/xenking/wello-store/internal/domain/session"
)

// mapError converts domain errors to {code, message} responses. Anything
// unrecognized is logged and reported as 500.
func (h *Handler) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr   *requestError
		valErr   *checkout.ValidationError
		stateErr *checkout.StateError
		lineErr  *cart.LineNotFoundError
	)
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, ledger.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ledger.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, coupon.ErrUnknownCode):
		writeError(w, http.StatusUnprocessableEntity, coupon.ErrUnknownCode.Error())
	case errors.Is(err, coupon.ErrAlreadyRedeemed):
		writeError(w, http.StatusUnprocessableEntity, coupon.ErrAlreadyRedeemed.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusUnprocessableEntity, valErr.Error())
	case errors.Is(err, checkout.ErrEmptyItems),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrIncompleteProfile):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &lineErr):
		writeError(w, http.StatusNotFound, lineErr.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		// ErrUserNotFound lands here: a live session without its ledger
		// record is an invariant violation.
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
