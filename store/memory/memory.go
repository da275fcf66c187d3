// Package memory provides an in-process store.Backend.
package memory

import (
	"context"
	"sync"

	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every collection in maps. All reads return copies, so callers
// can mutate results without touching stored state.
type Memory struct {
	mu        sync.RWMutex
	users     []finance.User
	scaffold  map[string]bool
	accounts  map[string][]finance.Account
	movements map[string][]finance.Movement

	// FailSave, when set, is consulted before every Save; a non-nil result
	// aborts the save. Tests use it to simulate a crash between two writes.
	FailSave func(collection, user string) error
}

func NewMemory() *Memory {
	return &Memory{
		scaffold:  make(map[string]bool),
		accounts:  make(map[string][]finance.Account),
		movements: make(map[string][]finance.Movement),
	}
}

// Backend exposes m through the three repository interfaces.
func (m *Memory) Backend() store.Backend {
	return store.Backend{
		Users:     users{m},
		Accounts:  accounts{m},
		Movements: movements{m},
	}
}

// New returns a fresh in-memory backend.
func New() store.Backend {
	return NewMemory().Backend()
}

func (m *Memory) failSave(collection, user string) error {
	if m.FailSave == nil {
		return nil
	}
	return m.FailSave(collection, user)
}

func (m *Memory) requireUser(user string) error {
	if err := store.ValidateUserName(user); err != nil {
		return err
	}
	if !m.scaffold[user] {
		return &finance.UserNotFoundError{User: user}
	}
	return nil
}

func cloneMovements(in []finance.Movement) []finance.Movement {
	out := make([]finance.Movement, len(in))
	for i, mv := range in {
		mv.Tags = append([]string{}, mv.Tags...)
		out[i] = mv
	}
	return out
}

// =============================================================================
// REPOSITORY VIEWS
// =============================================================================

type users struct{ m *Memory }

func (u users) List(ctx context.Context) ([]finance.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.m.mu.RLock()
	defer u.m.mu.RUnlock()
	return append([]finance.User{}, u.m.users...), nil
}

func (u users) Save(ctx context.Context, list []finance.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if err := u.m.failSave("users", ""); err != nil {
		return err
	}
	u.m.users = append([]finance.User{}, list...)
	return nil
}

func (u users) EnsureScaffold(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateUserName(name); err != nil {
		return err
	}
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.scaffold[name] {
		return nil
	}
	u.m.scaffold[name] = true
	u.m.accounts[name] = []finance.Account{}
	u.m.movements[name] = []finance.Movement{}
	return nil
}

type accounts struct{ m *Memory }

func (a accounts) List(ctx context.Context, user string) ([]finance.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	if err := a.m.requireUser(user); err != nil {
		return nil, err
	}
	return append([]finance.Account{}, a.m.accounts[user]...), nil
}

func (a accounts) Save(ctx context.Context, user string, list []finance.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if err := a.m.requireUser(user); err != nil {
		return err
	}
	if err := a.m.failSave("accounts", user); err != nil {
		return err
	}
	a.m.accounts[user] = append([]finance.Account{}, list...)
	return nil
}

type movements struct{ m *Memory }

func (mv movements) List(ctx context.Context, user string) ([]finance.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mv.m.mu.RLock()
	defer mv.m.mu.RUnlock()
	if err := mv.m.requireUser(user); err != nil {
		return nil, err
	}
	return cloneMovements(mv.m.movements[user]), nil
}

func (mv movements) Save(ctx context.Context, user string, list []finance.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mv.m.mu.Lock()
	defer mv.m.mu.Unlock()
	if err := mv.m.requireUser(user); err != nil {
		return err
	}
	if err := mv.m.failSave("movements", user); err != nil {
		return err
	}
	mv.m.movements[user] = cloneMovements(list)
	return nil
}
