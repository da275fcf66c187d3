/*
Package store defines the persistence interfaces behind the tracker.

PURPOSE:
  Three typed collections, each loaded and saved as a whole:
  - Users:     one global collection
  - Accounts:  one collection per user
  - Movements: one ordered collection per user

  Save always replaces the full collection. There is no partial update,
  which keeps the backends simple and makes the tracker the only place
  that decides what a collection should contain.

SCAFFOLD:
  A newly registered user needs empty account and movement collections
  before any per-user call can succeed. UserRepository.EnsureScaffold
  creates them and is safe to call any number of times.

IMPLEMENTATIONS:
  - store/file:   JSON/CSV files under a base directory (default)
  - store/sqlite: one SQLite database
  - store/memory: in-process maps, for tests

CONCURRENCY:
  Backends make single calls safe. They do NOT make a List + Save pair
  atomic; the tracker serializes those per user.

SEE ALSO:
  - tracker/tracker.go: the only caller
  - store/codec: the file formats used by store/file
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/pocket-ledger/finance"
)

// UserRepository persists the global user collection.
type UserRepository interface {
	List(ctx context.Context) ([]finance.User, error)
	Save(ctx context.Context, users []finance.User) error

	// EnsureScaffold creates the user's empty collections if absent.
	EnsureScaffold(ctx context.Context, name string) error
}

// AccountRepository persists one account collection per user.
type AccountRepository interface {
	List(ctx context.Context, user string) ([]finance.Account, error)
	Save(ctx context.Context, user string, accounts []finance.Account) error
}

// MovementRepository persists one ordered movement collection per user.
type MovementRepository interface {
	List(ctx context.Context, user string) ([]finance.Movement, error)
	Save(ctx context.Context, user string, movements []finance.Movement) error
}

// Backend bundles the three repositories of one storage driver.
type Backend struct {
	Users     UserRepository
	Accounts  AccountRepository
	Movements MovementRepository

	// Close releases driver resources. Nil for drivers that hold none.
	Close func() error
}

// Shutdown calls Close when the driver has one.
func (b Backend) Shutdown() error {
	if b.Close == nil {
		return nil
	}
	return b.Close()
}

// =============================================================================
// NAMING
// =============================================================================

// UserDirPrefix prefixes every per-user directory: <base>/user-<name>/.
const UserDirPrefix = "user-"

// TagSeparator joins movement tags in column-oriented stores.
const TagSeparator = "#"

// ErrInvalidName is returned for user names that cannot name a directory.
var ErrInvalidName = errors.New("invalid user name")

// ValidateUserName rejects names that cannot safely become a directory.
func ValidateUserName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// UserDir returns the per-user directory name for name.
func UserDir(name string) string {
	return UserDirPrefix + name
}

// JoinTags encodes tags for a single text column.
// Tags must be non-empty and must not contain TagSeparator.
func JoinTags(tags []string) (string, error) {
	for _, t := range tags {
		if t == "" {
			return "", fmt.Errorf("empty tag")
		}
		if strings.Contains(t, TagSeparator) {
			return "", fmt.Errorf("tag %q contains %q", t, TagSeparator)
		}
	}
	return strings.Join(tags, TagSeparator), nil
}

// SplitTags decodes a JoinTags column. Empty input yields an empty, non-nil slice.
func SplitTags(column string) []string {
	tags := []string{}
	for _, t := range strings.Split(column, TagSeparator) {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
