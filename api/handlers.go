/*
handlers.go - HTTP handlers for the finance tracker

PURPOSE:
  Thin adapter between HTTP and the tracker. Handlers resolve the session
  user, decode and validate the body, call one tracker operation and
  serialize the result. No balance arithmetic happens here.

ENDPOINTS:
  Auth:
    POST   /auth/register        Create user, start session
    POST   /auth/login           Start session for an existing user
    POST   /auth/logout          End session
    GET    /auth/me              Income, expenses and total of the session user

  Accounts:
    GET    /accounts             Number of accounts
    POST   /accounts             Create account with an opening balance
    GET    /accounts/{index}     Account at index

  Movements:
    GET    /movements            Positional indexes of all movements
    POST   /movements            Create movement (updates balances)
    GET    /movements/{index}    Movement at index
    DELETE /movements/{index}    Delete movement (reverts balances)

SESSIONS:
  The session cookie holds an opaque token issued at register/login.
  Every /accounts and /movements route runs behind requireSession, which
  puts the user name on the request context.

ERROR HANDLING:
  Errors are returned as JSON with the status from statusFor (errors.go):
  - 400: bad body, failed validation, invalid movement
  - 401: no session
  - 404: user, account or movement not found
  - 409: name already taken
  - 422: insufficient funds (body names account, balance and requested)
  - 500: corrupt or unreachable store

SEE ALSO:
  - dto.go: request/response bodies
  - validate.go: payload validation
  - server.go: router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/tracker"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "session"

type ctxKey int

const userKey ctxKey = iota

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tracker    *tracker.Tracker
	Sessions   *Sessions
	CookieName string
	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool

	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(t *tracker.Tracker, sessions *Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Tracker:    t,
		Sessions:   sessions,
		CookieName: DefaultCookieName,
		validate:   newValidator(),
		logger:     logger,
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

// requireSession rejects requests without a live session cookie.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(h.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "No session cookie found", nil)
			return
		}
		user, ok := h.Sessions.Lookup(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Session expired or unknown", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionUser(r *http.Request) string {
	user, _ := r.Context().Value(userKey).(string)
	return user
}

func (h *Handler) startSession(w http.ResponseWriter, user string) {
	token, expires := h.Sessions.Create(user)
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a user with zeroed totals and logs them in.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[CredentialsRequest](w, r, h.validate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	user := finance.NewUser(req.Username)
	if err := h.Tracker.RegisterUser(r.Context(), user); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.startSession(w, user.Name)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login starts a session for an existing user.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[CredentialsRequest](w, r, h.validate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	user, err := h.Tracker.ReadUser(r.Context(), req.Username)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.startSession(w, user.Name)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout ends the current session, if any, and expires the cookie.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.CookieName); err == nil {
		h.Sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me returns the financial summary of the session user.
// GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Tracker.ReadUser(r.Context(), sessionUser(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		LocalIncome:   user.LocalIncome,
		LocalExpenses: user.LocalExpenses,
		Total:         user.Total,
	})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns how many accounts the user has.
// GET /accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Tracker.ReadAccounts(r.Context(), sessionUser(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountCountResponse{NumberOfAccounts: len(accounts)})
}

// GetAccount returns the account at the given index.
// GET /accounts/{index}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	accounts, err := h.Tracker.ReadAccounts(r.Context(), sessionUser(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if index >= len(accounts) {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, accounts[index])
}

// CreateAccount adds an account with its opening balance.
// POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[CreateAccountRequest](w, r, h.validate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	account := finance.Account{Name: req.Account.Name, Amount: *req.Account.Amount}
	if err := h.Tracker.RegisterAccount(r.Context(), sessionUser(r), account); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Account created successfully"})
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ListMovements returns the positional index of every movement.
// GET /movements
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Tracker.ReadMovements(r.Context(), sessionUser(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	indexes := make([]int, len(movements))
	for i := range indexes {
		indexes[i] = i
	}
	writeJSON(w, http.StatusOK, MovementIndexesResponse{Movements: indexes})
}

// GetMovement returns the movement at the given index.
// GET /movements/{index}
func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	m, err := h.Tracker.ReadMovement(r.Context(), sessionUser(r), index)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MovementResponse{Movement: m})
}

// CreateMovement records a movement and applies it to the balances.
// POST /movements
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[CreateMovementRequest](w, r, h.validate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	index, err := h.Tracker.CreateMovement(r.Context(), sessionUser(r), req.Movement.toMovement())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedMovementResponse{
		Message: "Movement created successfully",
		Index:   index,
	})
}

// DeleteMovement reverts and removes the movement at the given index.
// Later movements shift down by one.
// DELETE /movements/{index}
func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if _, err := h.Tracker.DeleteMovement(r.Context(), sessionUser(r), index); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Movement deleted successfully"})
}

// =============================================================================
// HELPERS
// =============================================================================

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// indexParam reads the {index} URL parameter. The route pattern only
// admits digits, so a failure here means the value overflowed.
func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusNotFound, "Index out of range", err)
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
