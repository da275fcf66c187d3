/*
ledger.go - Balance effects of movements

PURPOSE:
  Apply turns a movement into balance changes on the owner's accounts.
  Revert is its exact inverse and is used when a movement is deleted.
  Neither function holds state or touches storage: they take the full
  account list and return a new one, or an error with the input untouched.

EFFECTS:
  Every typed movement debits at most one account and credits at most one:

    type           debit         credit
    Ingreso        -             destination
    Gasto          origin        -
    Transferencia  origin        destination
    Inversión      origin        destination

  Revert swaps debit and credit. Because both directions come from the
  same table (effectOf), a new MovementType cannot be applied without
  also being revertible.

INVARIANTS:
  - A debit that would leave a balance below zero fails with
    InsufficientFundsError. Exactly zero is allowed.
  - All accounts are resolved and all debits checked before anything is
    written, so a failed call changes nothing.
  - Untyped movements have no effect (they are still recorded by the caller).

EXAMPLE:
  accounts := []Account{{Name: "Checking", Amount: MustParseAmount("100")}}
  m := Movement{Type: MovementExpense, Amount: MustParseAmount("40"), Origin: "Checking"}
  accounts, _ = Apply(accounts, m)   // Checking: 60
  accounts, _ = Revert(accounts, m)  // Checking: 100
*/
package finance

import "fmt"

// effect is the pair of accounts a movement touches. Empty means no leg.
type effect struct {
	debit  string
	credit string
}

func (e effect) inverse() effect {
	return effect{debit: e.credit, credit: e.debit}
}

func (e effect) none() bool {
	return e.debit == "" && e.credit == ""
}

// effectOf validates the movement's shape and returns the accounts it touches.
func effectOf(m Movement) (effect, error) {
	if m.Amount.IsNegative() {
		return effect{}, &InvalidMovementError{Reason: fmt.Sprintf("amount %s is negative", m.Amount)}
	}

	switch m.Type {
	case MovementUntyped:
		return effect{}, nil
	case MovementIncome:
		if m.Destination == "" {
			return effect{}, &InvalidMovementError{Reason: "Ingreso requires a destination account"}
		}
		return effect{credit: m.Destination}, nil
	case MovementExpense:
		if m.Origin == "" {
			return effect{}, &InvalidMovementError{Reason: "Gasto requires an origin account"}
		}
		return effect{debit: m.Origin}, nil
	case MovementTransfer, MovementInvestment:
		if m.Origin == "" || m.Destination == "" {
			return effect{}, &InvalidMovementError{Reason: fmt.Sprintf("%s requires origin and destination accounts", m.Type)}
		}
		return effect{debit: m.Origin, credit: m.Destination}, nil
	default:
		return effect{}, &InvalidMovementError{Reason: fmt.Sprintf("unknown movement type %q", m.Type)}
	}
}

// Apply returns accounts with the movement's effect applied.
func Apply(accounts []Account, m Movement) ([]Account, error) {
	e, err := effectOf(m)
	if err != nil {
		return nil, err
	}
	return post(accounts, e, m.Amount)
}

// Revert returns accounts with the movement's effect undone.
func Revert(accounts []Account, m Movement) ([]Account, error) {
	e, err := effectOf(m)
	if err != nil {
		return nil, err
	}
	return post(accounts, e.inverse(), m.Amount)
}

// HasEffect reports whether applying m would change any balance.
func HasEffect(m Movement) bool {
	e, err := effectOf(m)
	return err == nil && !e.none()
}

// post resolves both legs, checks the debit, then writes a copy.
func post(accounts []Account, e effect, amount Amount) ([]Account, error) {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	if e.none() {
		return out, nil
	}

	debit, credit := -1, -1
	if e.debit != "" {
		if debit = FindAccount(out, e.debit); debit < 0 {
			return nil, &AccountNotFoundError{Account: e.debit}
		}
	}
	if e.credit != "" {
		if credit = FindAccount(out, e.credit); credit < 0 {
			return nil, &AccountNotFoundError{Account: e.credit}
		}
	}

	if debit >= 0 {
		next := out[debit].Amount.Sub(amount)
		if next.IsNegative() {
			return nil, &InsufficientFundsError{
				Account:   e.debit,
				Balance:   out[debit].Amount,
				Requested: amount,
			}
		}
		out[debit].Amount = next
	}
	if credit >= 0 {
		out[credit].Amount = out[credit].Amount.Add(amount)
	}
	return out, nil
}
