/*
Package sqlite provides a SQLite-backed store.Backend.

PURPOSE:
  Same contract as store/file, one database file instead of a directory
  tree. Useful when the data directory lives on storage where many small
  renames are slow, and as a second implementation that keeps the
  repository interfaces honest.

KEY TABLES:
  users:       global user collection, ordered by position
  user_stores: one row per scaffolded user (the "directory" of store/file)
  accounts:    per-user accounts, ordered by position
  movements:   per-user movements, ordered by position (the positional index)

WHOLE-COLLECTION SAVES:
  Save deletes a user's rows and inserts the new collection inside one SQL
  transaction, so a reader never sees half a collection.

AMOUNTS:
  Stored as decimal TEXT, never REAL, so balances survive a round trip
  exactly. Tags use the same "#" separator as movements.csv.

CONCURRENCY:
  Uses sync.RWMutex around the *sql.DB. ":memory:" databases are pinned to
  one connection, since every new connection would see an empty database.

USAGE:
  s, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  backend := s.Backend()
  defer backend.Shutdown()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
)

// Store implements the repositories using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backend exposes the store through the repository interfaces.
func (s *Store) Backend() store.Backend {
	return store.Backend{
		Users:     users{s},
		Accounts:  accounts{s},
		Movements: movements{s},
		Close:     s.Close,
	}
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		name TEXT PRIMARY KEY,
		local_income TEXT NOT NULL DEFAULT '0',
		local_expenses TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_stores (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS accounts (
		user_name TEXT NOT NULL REFERENCES user_stores(name),
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (user_name, name)
	);

	CREATE TABLE IF NOT EXISTS movements (
		user_name TEXT NOT NULL REFERENCES user_stores(name),
		position INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_name, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scaffolded reports whether EnsureScaffold ran for user.
func scaffolded(ctx context.Context, q queryer, user string) error {
	if err := store.ValidateUserName(user); err != nil {
		return err
	}
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_stores WHERE name = ?", user).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up user store: %w", err)
	}
	if n == 0 {
		return &finance.UserNotFoundError{User: user}
	}
	return nil
}

// replace runs del then one insert per row inside a single transaction.
func (s *Store) replace(ctx context.Context, user string, del string, delArgs []any, inserts func(execer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if user != "" {
		if err := scaffolded(ctx, tx, user); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	if err := inserts(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// USERS
// =============================================================================

type users struct{ s *Store }

func (u users) List(ctx context.Context) ([]finance.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	rows, err := u.s.db.QueryContext(ctx,
		"SELECT name, local_income, local_expenses, total FROM users ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	list := []finance.User{}
	for rows.Next() {
		var name, income, expenses, total string
		if err := rows.Scan(&name, &income, &expenses, &total); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user := finance.User{Name: name}
		for _, f := range []struct {
			dst *finance.Amount
			raw string
		}{{&user.LocalIncome, income}, {&user.LocalExpenses, expenses}, {&user.Total, total}} {
			if *f.dst, err = finance.ParseAmount(f.raw); err != nil {
				return nil, &finance.CorruptStoreError{Path: "sqlite:users", Err: err}
			}
		}
		list = append(list, user)
	}
	return list, rows.Err()
}

func (u users) Save(ctx context.Context, list []finance.User) error {
	return u.s.replace(ctx, "", "DELETE FROM users", nil, func(tx execer) error {
		for i, user := range list {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO users (name, local_income, local_expenses, total, position) VALUES (?, ?, ?, ?, ?)",
				user.Name, user.LocalIncome.String(), user.LocalExpenses.String(), user.Total.String(), i)
			if isUniqueConstraintError(err) {
				return &finance.ConflictError{Kind: "user", Name: user.Name}
			}
			if err != nil {
				return fmt.Errorf("failed to insert user: %w", err)
			}
		}
		return nil
	})
}

func (u users) EnsureScaffold(ctx context.Context, name string) error {
	if err := store.ValidateUserName(name); err != nil {
		return err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	_, err := u.s.db.ExecContext(ctx, "INSERT OR IGNORE INTO user_stores (name) VALUES (?)", name)
	if err != nil {
		return fmt.Errorf("failed to scaffold user %q: %w", name, err)
	}
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type accounts struct{ s *Store }

func (a accounts) List(ctx context.Context, user string) ([]finance.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	if err := scaffolded(ctx, a.s.db, user); err != nil {
		return nil, err
	}
	rows, err := a.s.db.QueryContext(ctx,
		"SELECT name, amount FROM accounts WHERE user_name = ? ORDER BY position ASC", user)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	list := []finance.Account{}
	for rows.Next() {
		var name, amount string
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		value, err := finance.ParseAmount(amount)
		if err != nil {
			return nil, &finance.CorruptStoreError{Path: "sqlite:accounts", Err: err}
		}
		list = append(list, finance.Account{Name: name, Amount: value})
	}
	return list, rows.Err()
}

func (a accounts) Save(ctx context.Context, user string, list []finance.Account) error {
	return a.s.replace(ctx, user, "DELETE FROM accounts WHERE user_name = ?", []any{user}, func(tx execer) error {
		for i, acct := range list {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO accounts (user_name, name, amount, position) VALUES (?, ?, ?, ?)",
				user, acct.Name, acct.Amount.String(), i)
			if isUniqueConstraintError(err) {
				return &finance.ConflictError{Kind: "account", Name: acct.Name}
			}
			if err != nil {
				return fmt.Errorf("failed to insert account: %w", err)
			}
		}
		return nil
	})
}

// =============================================================================
// MOVEMENTS
// =============================================================================

type movements struct{ s *Store }

func (m movements) List(ctx context.Context, user string) ([]finance.Movement, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	if err := scaffolded(ctx, m.s.db, user); err != nil {
		return nil, err
	}
	rows, err := m.s.db.QueryContext(ctx, `
		SELECT type, date, amount, description, origin, destination, tags
		FROM movements
		WHERE user_name = ?
		ORDER BY position ASC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	list := []finance.Movement{}
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, mv)
	}
	return list, rows.Err()
}

func scanMovement(rows *sql.Rows) (finance.Movement, error) {
	var (
		mv     finance.Movement
		mtype  string
		amount string
		tags   string
	)
	err := rows.Scan(&mtype, &mv.Date, &amount, &mv.Description, &mv.Origin, &mv.Destination, &tags)
	if err != nil {
		return mv, fmt.Errorf("failed to scan movement: %w", err)
	}
	if mv.Type, err = finance.ParseMovementType(mtype); err != nil {
		return mv, &finance.CorruptStoreError{Path: "sqlite:movements", Err: err}
	}
	if mv.Amount, err = finance.ParseAmount(amount); err != nil {
		return mv, &finance.CorruptStoreError{Path: "sqlite:movements", Err: err}
	}
	mv.Tags = store.SplitTags(tags)
	return mv, nil
}

func (m movements) Save(ctx context.Context, user string, list []finance.Movement) error {
	return m.s.replace(ctx, user, "DELETE FROM movements WHERE user_name = ?", []any{user}, func(tx execer) error {
		for i, mv := range list {
			tags, err := store.JoinTags(mv.Tags)
			if err != nil {
				return fmt.Errorf("movement %d: %w", i, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO movements
				(user_name, position, type, date, amount, description, origin, destination, tags)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, user, i, string(mv.Type), mv.Date, mv.Amount.String(), mv.Description, mv.Origin, mv.Destination, tags)
			if err != nil {
				return fmt.Errorf("failed to insert movement: %w", err)
			}
		}
		return nil
	})
}

// =============================================================================
// UTILITIES
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
