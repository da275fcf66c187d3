/*
Package tracker is the entry point the HTTP layer calls into.

PURPOSE:
  Ties the repositories to the ledger engine. Each operation loads what it
  needs, runs finance.Apply or finance.Revert on the loaded accounts and
  persists the result. Callers never touch balances directly.

SERIALIZATION:
  Every read-modify-write for a user runs under that user's lock, held
  across both the accounts save and the movements save. Two concurrent
  CreateMovement calls for the same user never both read the same account
  snapshot. The users collection has its own lock. Locks live in
  this process only; one server owns a storage directory.

PARTIAL FAILURE:
  CreateMovement and DeleteMovement write two collections. If the second
  write fails, the account snapshot read at the start is written back so
  balances match the movement log again. If that write fails too, the error
  is logged at Error and both errors are returned.

POSITIONAL INDEX:
  Movements are addressed by their offset in the stored list. Deleting
  index i shifts every later movement down by one, so an index read before
  a delete may point at a different movement afterwards. The per-user lock
  makes lookup-and-delete atomic, which is as far as indexes can be made
  safe.

EXAMPLE:
  t := tracker.New(backend, logger)
  _ = t.RegisterUser(ctx, finance.NewUser("alice"))
  _ = t.RegisterAccount(ctx, "alice", finance.Account{Name: "Checking", Amount: finance.MustParseAmount("100")})
  idx, err := t.CreateMovement(ctx, "alice", finance.Movement{
      Type: finance.MovementExpense, Amount: finance.MustParseAmount("40"), Origin: "Checking",
  })
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
)

// usersKey locks the global users collection. No valid user name
// contains a slash, so it never collides with a per-user key.
const usersKey = "/users"

// Tracker serializes access to one storage backend.
type Tracker struct {
	users     store.UserRepository
	accounts  store.AccountRepository
	movements store.MovementRepository
	locks     *userLocks
	logger    *slog.Logger
}

// New creates a Tracker over backend. A nil logger discards output.
func New(backend store.Backend, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{
		users:     backend.Users,
		accounts:  backend.Accounts,
		movements: backend.Movements,
		locks:     newUserLocks(),
		logger:    logger,
	}
}

func (t *Tracker) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := t.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// =============================================================================
// USERS
// =============================================================================

// RegisterUser adds user to the users collection and scaffolds its stores.
// Fails with a ConflictError if the name is taken.
func (t *Tracker) RegisterUser(ctx context.Context, user finance.User) error {
	if err := store.ValidateUserName(user.Name); err != nil {
		return err
	}
	return t.withLock(ctx, usersKey, func() error {
		users, err := t.users.List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, u := range users {
			if u.Name == user.Name {
				return &finance.ConflictError{Kind: "user", Name: user.Name}
			}
		}

		// Scaffold first: a user row must never point at missing stores.
		if err := t.users.EnsureScaffold(ctx, user.Name); err != nil {
			return fmt.Errorf("scaffold user %q: %w", user.Name, err)
		}
		if err := t.users.Save(ctx, append(users, user)); err != nil {
			return fmt.Errorf("save users: %w", err)
		}
		t.logger.Info("user registered", "user", user.Name)
		return nil
	})
}

// ReadUser returns the user called name.
func (t *Tracker) ReadUser(ctx context.Context, name string) (finance.User, error) {
	users, err := t.users.List(ctx)
	if err != nil {
		return finance.User{}, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.Name == name {
			return u, nil
		}
	}
	return finance.User{}, &finance.UserNotFoundError{User: name}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// RegisterAccount appends account to user's accounts.
// Fails with a ConflictError if user already has an account with that name.
func (t *Tracker) RegisterAccount(ctx context.Context, user string, account finance.Account) error {
	return t.withLock(ctx, user, func() error {
		accounts, err := t.accounts.List(ctx, user)
		if err != nil {
			return err
		}
		if finance.FindAccount(accounts, account.Name) >= 0 {
			return &finance.ConflictError{Kind: "account", Name: account.Name}
		}
		if err := t.accounts.Save(ctx, user, append(accounts, account)); err != nil {
			return err
		}
		t.logger.Info("account registered", "user", user, "account", account.Name, "amount", account.Amount.String())
		return nil
	})
}

// ReadAccounts returns user's accounts in creation order.
func (t *Tracker) ReadAccounts(ctx context.Context, user string) ([]finance.Account, error) {
	return t.accounts.List(ctx, user)
}

// ReadAccount returns user's account called name.
func (t *Tracker) ReadAccount(ctx context.Context, user, name string) (finance.Account, error) {
	accounts, err := t.accounts.List(ctx, user)
	if err != nil {
		return finance.Account{}, err
	}
	i := finance.FindAccount(accounts, name)
	if i < 0 {
		return finance.Account{}, &finance.AccountNotFoundError{User: user, Account: name}
	}
	return accounts[i], nil
}

// UpdateAccountBalances applies m to user's accounts and saves them.
// The movement itself is not recorded; see CreateMovement.
func (t *Tracker) UpdateAccountBalances(ctx context.Context, user string, m finance.Movement) error {
	return t.withLock(ctx, user, func() error {
		return t.post(ctx, user, m, finance.Apply)
	})
}

// RevertAccountBalances undoes m on user's accounts and saves them.
func (t *Tracker) RevertAccountBalances(ctx context.Context, user string, m finance.Movement) error {
	return t.withLock(ctx, user, func() error {
		return t.post(ctx, user, m, finance.Revert)
	})
}

func (t *Tracker) post(ctx context.Context, user string, m finance.Movement,
	fn func([]finance.Account, finance.Movement) ([]finance.Account, error)) error {
	accounts, err := t.accounts.List(ctx, user)
	if err != nil {
		return err
	}
	next, err := fn(accounts, m)
	if err != nil {
		return attribute(user, err)
	}
	return t.accounts.Save(ctx, user, next)
}

// attribute names user on engine errors, which carry no user context.
func attribute(user string, err error) error {
	var missing *finance.AccountNotFoundError
	if errors.As(err, &missing) && missing.User == "" {
		missing.User = user
	}
	return err
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// RegisterMovement appends m to user's movement log without touching balances.
func (t *Tracker) RegisterMovement(ctx context.Context, user string, m finance.Movement) error {
	return t.withLock(ctx, user, func() error {
		movements, err := t.movements.List(ctx, user)
		if err != nil {
			return err
		}
		return t.movements.Save(ctx, user, append(movements, m))
	})
}

// ReadMovements returns user's movement log in append order.
func (t *Tracker) ReadMovements(ctx context.Context, user string) ([]finance.Movement, error) {
	return t.movements.List(ctx, user)
}

// ReadMovement returns the movement at index.
func (t *Tracker) ReadMovement(ctx context.Context, user string, index int) (finance.Movement, error) {
	movements, err := t.movements.List(ctx, user)
	if err != nil {
		return finance.Movement{}, err
	}
	if index < 0 || index >= len(movements) {
		return finance.Movement{}, &finance.MovementNotFoundError{User: user, Index: index, Count: len(movements)}
	}
	return movements[index], nil
}

// CreateMovement applies m to user's balances and appends it to the log.
// It returns the new movement's index. On failure nothing is persisted.
func (t *Tracker) CreateMovement(ctx context.Context, user string, m finance.Movement) (int, error) {
	index := -1
	err := t.withLock(ctx, user, func() error {
		accounts, err := t.accounts.List(ctx, user)
		if err != nil {
			return err
		}
		movements, err := t.movements.List(ctx, user)
		if err != nil {
			return err
		}
		next, err := finance.Apply(accounts, m)
		if err != nil {
			return attribute(user, err)
		}
		if !finance.HasEffect(m) {
			t.logger.Warn("movement has no type, balances untouched", "user", user, "amount", m.Amount.String())
		}

		if err := t.commit(ctx, user, accounts, next, append(movements, m)); err != nil {
			return err
		}
		index = len(movements)
		return nil
	})
	if err != nil {
		return -1, err
	}
	t.logger.Info("movement created", "user", user, "index", index, "type", string(m.Type), "amount", m.Amount.String())
	return index, nil
}

// DeleteMovement reverts the movement at index and removes it from the log.
// Later movements shift down by one. It returns the removed movement.
func (t *Tracker) DeleteMovement(ctx context.Context, user string, index int) (finance.Movement, error) {
	var removed finance.Movement
	err := t.withLock(ctx, user, func() error {
		movements, err := t.movements.List(ctx, user)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(movements) {
			return &finance.MovementNotFoundError{User: user, Index: index, Count: len(movements)}
		}
		removed = movements[index]

		accounts, err := t.accounts.List(ctx, user)
		if err != nil {
			return err
		}
		next, err := finance.Revert(accounts, removed)
		if err != nil {
			return attribute(user, err)
		}

		remaining := make([]finance.Movement, 0, len(movements)-1)
		remaining = append(remaining, movements[:index]...)
		remaining = append(remaining, movements[index+1:]...)
		return t.commit(ctx, user, accounts, next, remaining)
	})
	if err != nil {
		return finance.Movement{}, err
	}
	t.logger.Info("movement deleted", "user", user, "index", index, "type", string(removed.Type), "amount", removed.Amount.String())
	return removed, nil
}

// commit saves next accounts then movements. If the movements save fails
// the prev accounts are written back.
func (t *Tracker) commit(ctx context.Context, user string, prev, next []finance.Account, movements []finance.Movement) error {
	if err := t.accounts.Save(ctx, user, next); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	err := t.movements.Save(ctx, user, movements)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("save movements: %w", err)

	// The request ctx may be what failed; restore regardless.
	if rerr := t.accounts.Save(context.WithoutCancel(ctx), user, prev); rerr != nil {
		t.logger.Error("restore accounts after failed movement save",
			"user", user, "save_err", err, "restore_err", rerr)
		return errors.Join(err, fmt.Errorf("restore accounts: %w", rerr))
	}
	return err
}
