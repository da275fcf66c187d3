/*
Package finance holds the personal-finance domain model and the ledger engine.

PURPOSE:
  Users own accounts; movements (income, expense, transfer, investment) move
  money into, out of, or between those accounts. The ledger engine in
  ledger.go turns a movement into balance changes and can undo them exactly.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: a decimal quantity of money (no unit, no currency)
  - User: a registered person, unique by name
  - Account: a named balance owned by one user
  - Movement: a single financial event, identified by its position in the
    owner's movement list
  - MovementType: the closed set of movement kinds

DESIGN PRINCIPLES:
  1. Precision: Amount uses decimal.Decimal, so reversing a movement restores
     the exact previous balance.
  2. Closed set: MovementType has a fixed list of values. The ledger derives
     both directions (apply and revert) from one switch, see ledger.go.
  3. No hidden state: everything here is a plain value; persistence lives in
     the store packages.

SEE ALSO:
  - ledger.go: Apply / Revert
  - errors.go: error taxonomy
  - store/store.go: repository interfaces
*/
package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Decimal money quantity
// =============================================================================

// Amount is a quantity of money. It marshals to a bare JSON number.
type Amount struct {
	Value decimal.Decimal
}

// ParseAmount parses a decimal string such as "12.50".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{Value: d}, nil
}

// MustParseAmount is ParseAmount for literals; it panics on bad input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }
func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool { return a.Value.Equal(b.Value) }
func (a Amount) String() string { return a.Value.String() }

// Float64 returns the nearest float64 and whether it is exact.
func (a Amount) Float64() (float64, bool) { return a.Value.Float64() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

// UnmarshalJSON accepts both 12.5 and "12.5"; null decodes to zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		a.Value = decimal.Zero
		return nil
	}
	return a.Value.UnmarshalJSON(data)
}

// =============================================================================
// USER / ACCOUNT
// =============================================================================

// User is created at registration with zero-valued numeric fields.
type User struct {
	Name          string `json:"name"`
	LocalIncome   Amount `json:"localIncome"`
	LocalExpenses Amount `json:"localExpenses"`
	Total         Amount `json:"total"`
}

// NewUser returns a freshly registered user.
func NewUser(name string) User {
	return User{Name: name}
}

// Account is a named balance, unique by name within its owner.
// Amount changes only through the ledger after creation.
type Account struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
}

// FindAccount returns the index of the named account, or -1.
func FindAccount(accounts []Account, name string) int {
	for i, a := range accounts {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// MOVEMENT
// =============================================================================

type MovementType string

const (
	// MovementUntyped is a movement stored without a type. It never touches balances.
	MovementUntyped MovementType = ""

	MovementIncome     MovementType = "Ingreso"
	MovementExpense    MovementType = "Gasto"
	MovementTransfer   MovementType = "Transferencia"
	MovementInvestment MovementType = "Inversión"
)

// MovementTypes lists every typed movement kind.
var MovementTypes = []MovementType{
	MovementIncome,
	MovementExpense,
	MovementTransfer,
	MovementInvestment,
}

// ParseMovementType maps a stored or submitted string onto the closed set.
func ParseMovementType(s string) (MovementType, error) {
	if s == "" {
		return MovementUntyped, nil
	}
	for _, t := range MovementTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return MovementUntyped, &InvalidMovementError{Reason: fmt.Sprintf("unknown movement type %q", s)}
}

// Movement is one financial event. It has no stable ID: callers address it
// by its position in the owner's movement list.
type Movement struct {
	Amount      Amount       `json:"amount"`
	Type        MovementType `json:"type,omitempty"`
	Description string       `json:"description,omitempty"`
	Origin      string       `json:"origin,omitempty"`
	Destination string       `json:"destination,omitempty"`
	Date        string       `json:"date,omitempty"`
	Tags        []string     `json:"tags"`
}
