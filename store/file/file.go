/*
Package file implements the store repositories on plain files.

LAYOUT:
  <base>/users.json                    JSON array of users
  <base>/user-<name>/accounts.json     JSON array of that user's accounts
  <base>/user-<name>/movements.csv     type,date,amount,description,origin,destination,tags

  Tags are joined with "#" in the tags column and split back on load.

LAZY INITIALIZATION:
  users.json is created empty the first time the repository sees it
  missing. Per-user files are only created by EnsureScaffold; reading a
  user that was never scaffolded is a NotFound error, not an empty list.

ERRORS:
  - undecodable file  -> *finance.CorruptStoreError
  - missing user dir  -> *finance.UserNotFoundError

USAGE:
  backend, err := file.New("./data")
  users, err := backend.Users.List(ctx)
*/
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
	"github.com/warp/pocket-ledger/store/codec"
)

const (
	UsersFile     = "users.json"
	AccountsFile  = "accounts.json"
	MovementsFile = "movements.csv"
)

// New opens (and if needed creates) a file store rooted at base.
func New(base string) (store.Backend, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return store.Backend{}, fmt.Errorf("create store directory: %w", err)
	}
	users, err := NewUsers(base)
	if err != nil {
		return store.Backend{}, err
	}
	return store.Backend{
		Users:     users,
		Accounts:  NewAccounts(base),
		Movements: NewMovements(base),
	}, nil
}

// userPath returns <base>/user-<name>/<file> after validating name.
func userPath(base, user, file string) (string, error) {
	if err := store.ValidateUserName(user); err != nil {
		return "", err
	}
	return filepath.Join(base, store.UserDir(user), file), nil
}

// loadErr turns codec failures into domain errors.
func loadErr(err error, path, user string) error {
	switch {
	case errors.Is(err, codec.ErrMalformed):
		return &finance.CorruptStoreError{Path: path, Err: err}
	case errors.Is(err, fs.ErrNotExist) && user != "":
		return fmt.Errorf("load %s: %w", path, &finance.UserNotFoundError{User: user})
	default:
		return fmt.Errorf("load %s: %w", path, err)
	}
}

func saveErr(err error, path, user string) error {
	if errors.Is(err, fs.ErrNotExist) && user != "" {
		return fmt.Errorf("save %s: %w", path, &finance.UserNotFoundError{User: user})
	}
	return fmt.Errorf("save %s: %w", path, err)
}

// =============================================================================
// USERS
// =============================================================================

// Users persists the global user collection in users.json.
type Users struct {
	base      string
	path      string
	users     codec.Codec[finance.User]
	accounts  codec.Codec[finance.Account]
	movements codec.Codec[finance.Movement]
}

// NewUsers creates users.json as an empty array when it does not exist.
func NewUsers(base string) (*Users, error) {
	u := &Users{
		base:      base,
		path:      filepath.Join(base, UsersFile),
		users:     codec.JSON[finance.User]{},
		accounts:  codec.JSON[finance.Account]{},
		movements: MovementCodec(),
	}
	if err := u.initIfMissing(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Users) initIfMissing() error {
	if _, err := os.Stat(u.path); errors.Is(err, fs.ErrNotExist) {
		return u.users.Dump(nil, u.path)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", u.path, err)
	}
	return nil
}

func (u *Users) List(ctx context.Context) ([]finance.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, err := u.users.Load(u.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := u.initIfMissing(); err != nil {
			return nil, err
		}
		return []finance.User{}, nil
	}
	if err != nil {
		return nil, loadErr(err, u.path, "")
	}
	return users, nil
}

func (u *Users) Save(ctx context.Context, users []finance.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.users.Dump(users, u.path); err != nil {
		return saveErr(err, u.path, "")
	}
	return nil
}

// EnsureScaffold creates user-<name>/ with empty accounts and movements.
// Existing files are left untouched.
func (u *Users) EnsureScaffold(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateUserName(name); err != nil {
		return err
	}
	dir := filepath.Join(u.base, store.UserDir(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	accounts := filepath.Join(dir, AccountsFile)
	if missing(accounts) {
		if err := u.accounts.Dump(nil, accounts); err != nil {
			return err
		}
	}
	movements := filepath.Join(dir, MovementsFile)
	if missing(movements) {
		if err := u.movements.Dump(nil, movements); err != nil {
			return err
		}
	}
	return nil
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// Accounts persists each user's accounts in user-<name>/accounts.json.
type Accounts struct {
	base  string
	codec codec.Codec[finance.Account]
}

func NewAccounts(base string) *Accounts {
	return &Accounts{base: base, codec: codec.JSON[finance.Account]{}}
}

func (a *Accounts) List(ctx context.Context, user string) ([]finance.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := userPath(a.base, user, AccountsFile)
	if err != nil {
		return nil, err
	}
	accounts, err := a.codec.Load(path)
	if err != nil {
		return nil, loadErr(err, path, user)
	}
	return accounts, nil
}

func (a *Accounts) Save(ctx context.Context, user string, accounts []finance.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := userPath(a.base, user, AccountsFile)
	if err != nil {
		return err
	}
	if err := a.codec.Dump(accounts, path); err != nil {
		return saveErr(err, path, user)
	}
	return nil
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// Movements persists each user's movements in user-<name>/movements.csv.
type Movements struct {
	base  string
	codec codec.Codec[finance.Movement]
}

func NewMovements(base string) *Movements {
	return &Movements{base: base, codec: MovementCodec()}
}

func (m *Movements) List(ctx context.Context, user string) ([]finance.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := userPath(m.base, user, MovementsFile)
	if err != nil {
		return nil, err
	}
	movements, err := m.codec.Load(path)
	if err != nil {
		return nil, loadErr(err, path, user)
	}
	return movements, nil
}

func (m *Movements) Save(ctx context.Context, user string, movements []finance.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := userPath(m.base, user, MovementsFile)
	if err != nil {
		return err
	}
	if err := m.codec.Dump(movements, path); err != nil {
		return saveErr(err, path, user)
	}
	return nil
}
