/*
dto.go - Request and response bodies

NAMING CONVENTION:
  - *Request: request body types from clients
  - *Response: response wrappers
  - *Input: nested payload objects ({"account": {...}}, {"movement": {...}})

VALIDATION:
  Request types carry go-playground/validator tags; see validate.go for the
  custom tags (username, movementtype, notag) and the per-type origin and
  destination rules.

SEE ALSO:
  - handlers.go: uses these types
  - validate.go: validator setup
*/
package api

import (
	"github.com/warp/pocket-ledger/finance"
)

// =============================================================================
// AUTH
// =============================================================================

// CredentialsRequest is the body of /auth/register and /auth/login.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,username"`
}

// UserResponse is what register and login return.
type UserResponse struct {
	Name          string         `json:"name"`
	LocalIncome   finance.Amount `json:"localIncome"`
	LocalExpenses finance.Amount `json:"localExpenses"`
	Total         finance.Amount `json:"total"`
}

// MeResponse is the body of GET /auth/me.
type MeResponse struct {
	LocalIncome   finance.Amount `json:"localIncome"`
	LocalExpenses finance.Amount `json:"localExpenses"`
	Total         finance.Amount `json:"total"`
}

func toUserResponse(u finance.User) UserResponse {
	return UserResponse{
		Name:          u.Name,
		LocalIncome:   u.LocalIncome,
		LocalExpenses: u.LocalExpenses,
		Total:         u.Total,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccountRequest is the body of POST /accounts.
type CreateAccountRequest struct {
	Account *AccountInput `json:"account" validate:"required"`
}

// AccountInput is a new account. Amount is the opening balance.
type AccountInput struct {
	Name   string          `json:"name" validate:"required,max=100"`
	Amount *finance.Amount `json:"amount" validate:"required,gte=0"`
}

// AccountCountResponse is the body of GET /accounts.
type AccountCountResponse struct {
	NumberOfAccounts int `json:"numberOfAccounts"`
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// CreateMovementRequest is the body of POST /movements.
type CreateMovementRequest struct {
	Movement *MovementInput `json:"movement" validate:"required"`
}

// MovementInput is a movement as submitted by the client.
type MovementInput struct {
	Amount      *finance.Amount `json:"amount" validate:"required,gt=0"`
	Type        string          `json:"type" validate:"omitempty,movementtype"`
	Description string          `json:"description" validate:"max=500"`
	Origin      string          `json:"origin" validate:"required_without=Destination"`
	Destination string          `json:"destination" validate:"required_without=Origin"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Tags        []string        `json:"tags" validate:"omitempty,dive,required,notag"`
}

// toMovement converts validated input; the type was checked by the validator.
func (in MovementInput) toMovement() finance.Movement {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return finance.Movement{
		Amount:      *in.Amount,
		Type:        finance.MovementType(in.Type),
		Description: in.Description,
		Origin:      in.Origin,
		Destination: in.Destination,
		Date:        in.Date,
		Tags:        tags,
	}
}

// MovementIndexesResponse is the body of GET /movements.
type MovementIndexesResponse struct {
	Movements []int `json:"movements"`
}

// MovementResponse wraps a single movement.
type MovementResponse struct {
	Movement finance.Movement `json:"movement"`
}

// CreatedMovementResponse is returned by POST /movements.
type CreatedMovementResponse struct {
	Message string `json:"message"`
	Index   int    `json:"index"`
}

// =============================================================================
// COMMON
// =============================================================================

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string          `json:"error"`
	Details   string          `json:"details,omitempty"`
	Account   string          `json:"account,omitempty"`
	Balance   *finance.Amount `json:"balance,omitempty"`
	Requested *finance.Amount `json:"requested,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}
