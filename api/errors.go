package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
)

// statusFor maps an error onto its HTTP status.
// Store corruption is a server fault even when the decode error it wraps
// looks like a client error, so the client check runs before the categories.
func statusFor(err error) int {
	var bind *BindError
	switch {
	case errors.As(err, &bind), errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	case !finance.IsClientError(err):
		return http.StatusInternalServerError
	case finance.IsConflict(err):
		return http.StatusConflict
	case finance.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, finance.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// writeDomainError replies with the status for err and every piece of
// context the error carries.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}

	var (
		bind    *BindError
		nsf     *finance.InsufficientFundsError
		missing *finance.AccountNotFoundError
	)
	switch {
	case status == http.StatusInternalServerError:
		resp.Error = "Internal server error"
		resp.Details = err.Error()
		h.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", resp.RequestID, "err", err)
	case errors.As(err, &bind):
		resp.Error = bind.Message
		resp.Details = bind.Error()
	case errors.As(err, &nsf):
		resp.Account = nsf.Account
		resp.Balance = &nsf.Balance
		resp.Requested = &nsf.Requested
	case errors.As(err, &missing):
		resp.Account = missing.Account
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
