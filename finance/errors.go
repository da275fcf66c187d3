/*
errors.go - Error taxonomy for the ledger and its stores

ERROR CATEGORIES:
  1. Conflict          - a user or account name is already taken
  2. NotFound          - user, account or movement does not exist
  3. InsufficientFunds - a balance would go below zero
  4. InvalidMovement   - the movement has a bad type or shape
  5. CorruptStore      - a backing file or table cannot be decoded

USAGE:
  Match categories with errors.Is, read context with errors.As:

    var nsf *finance.InsufficientFundsError
    if errors.As(err, &nsf) {
        fmt.Println(nsf.Account, nsf.Balance, nsf.Requested)
    }

SEE ALSO:
  - ledger.go: returns AccountNotFoundError / InsufficientFundsError
  - api/errors.go: maps every category onto an HTTP status
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrConflict          = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidMovement   = errors.New("invalid movement")
	ErrCorruptStore      = errors.New("corrupt store")

	// Narrower NotFound sentinels; each one matches ErrNotFound too.
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrAccountNotFound  = fmt.Errorf("account %w", ErrNotFound)
	ErrMovementNotFound = fmt.Errorf("movement %w", ErrNotFound)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports a duplicate name on create.
type ConflictError struct {
	Kind string // "user" or "account"
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// UserNotFoundError names the user that could not be resolved.
type UserNotFoundError struct {
	User string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.User)
}

func (e *UserNotFoundError) Unwrap() error { return ErrUserNotFound }

// AccountNotFoundError names the account a movement or lookup referenced.
type AccountNotFoundError struct {
	User    string // empty when raised by the engine, which has no user context
	Account string
}

func (e *AccountNotFoundError) Error() string {
	if e.User == "" {
		return fmt.Sprintf("account %q not found", e.Account)
	}
	return fmt.Sprintf("account %q not found for user %q", e.Account, e.User)
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

// MovementNotFoundError reports a positional index outside the movement list.
type MovementNotFoundError struct {
	User  string
	Index int
	Count int
}

func (e *MovementNotFoundError) Error() string {
	return fmt.Sprintf("movement %d not found for user %q (%d movements)", e.Index, e.User, e.Count)
}

func (e *MovementNotFoundError) Unwrap() error { return ErrMovementNotFound }

// InsufficientFundsError carries the balance and the amount that did not fit.
type InsufficientFundsError struct {
	Account   string
	Balance   Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %q: balance %s, requested %s",
		e.Account, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InvalidMovementError describes why a movement was rejected.
type InvalidMovementError struct {
	Reason string
}

func (e *InvalidMovementError) Error() string {
	return "invalid movement: " + e.Reason
}

func (e *InvalidMovementError) Unwrap() error { return ErrInvalidMovement }

// CorruptStoreError wraps a decode failure of a backing store.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() []error { return []error{ErrCorruptStore, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError returns true if the error is due to the request, not the store.
// A CorruptStoreError is never a client error, even when the decode failure it
// wraps is one of the client categories.
func IsClientError(err error) bool {
	if errors.Is(err, ErrCorruptStore) {
		return false
	}
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidMovement)
}
