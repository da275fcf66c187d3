package file_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
	"github.com/warp/pocket-ledger/store/file"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestBackend(t *testing.T) (store.Backend, string) {
	t.Helper()
	base := t.TempDir()
	backend, err := file.New(base)
	require.NoError(t, err)
	return backend, base
}

// snapshotTree maps every file under root to its contents.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		tree[rel] = string(data)
		return err
	})
	require.NoError(t, err)
	return tree
}

func amt(s string) finance.Amount { return finance.MustParseAmount(s) }

// =============================================================================
// USERS
// =============================================================================

func TestNew_InitializesUsersFile(t *testing.T) {
	backend, base := newTestBackend(t)

	raw, err := os.ReadFile(filepath.Join(base, file.UsersFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	users, err := backend.Users.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUsers_ListRecreatesMissingFile(t *testing.T) {
	backend, base := newTestBackend(t)
	require.NoError(t, os.Remove(filepath.Join(base, file.UsersFile)))

	users, err := backend.Users.List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, users)
	assert.FileExists(t, filepath.Join(base, file.UsersFile))
}

func TestUsers_SaveAndList(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	in := []finance.User{finance.NewUser("alice"), {Name: "bob", Total: amt("12.5")}}

	require.NoError(t, backend.Users.Save(ctx, in))
	out, err := backend.Users.List(ctx)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].Name)
	assert.Equal(t, "bob", out[1].Name)
	assert.True(t, out[1].Total.Equal(amt("12.5")))
}

func TestUsers_CorruptFile(t *testing.T) {
	backend, base := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, file.UsersFile), []byte(`{"name":"alice"}`), 0o644))

	_, err := backend.Users.List(context.Background())

	assert.ErrorIs(t, err, finance.ErrCorruptStore)
	var ce *finance.CorruptStoreError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, filepath.Join(base, file.UsersFile), ce.Path)
}

// =============================================================================
// SCAFFOLD
// =============================================================================

func TestEnsureScaffold_CreatesEmptyStores(t *testing.T) {
	backend, base := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))

	dir := filepath.Join(base, "user-alice")
	accounts, err := os.ReadFile(filepath.Join(dir, file.AccountsFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(accounts))
	movements, err := os.ReadFile(filepath.Join(dir, file.MovementsFile))
	require.NoError(t, err)
	assert.Equal(t, "type,date,amount,description,origin,destination,tags\n", string(movements))
}

func TestEnsureScaffold_Idempotent(t *testing.T) {
	backend, base := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
	once := snapshotTree(t, base)
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
	twice := snapshotTree(t, base)

	assert.Equal(t, once, twice)
}

func TestEnsureScaffold_KeepsExistingData(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
	require.NoError(t, backend.Accounts.Save(ctx, "alice", []finance.Account{{Name: "Checking", Amount: amt("100")}}))
	require.NoError(t, backend.Movements.Save(ctx, "alice", []finance.Movement{{Amount: amt("1")}}))

	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))

	accounts, err := backend.Accounts.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	movements, err := backend.Movements.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestEnsureScaffold_RejectsPathNames(t *testing.T) {
	backend, _ := newTestBackend(t)

	err := backend.Users.EnsureScaffold(context.Background(), "../escape")

	assert.ErrorIs(t, err, store.ErrInvalidName)
}

// =============================================================================
// ACCOUNTS / MOVEMENTS
// =============================================================================

func TestAccounts_UnscaffoldedUserIsNotFound(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	_, err := backend.Accounts.List(ctx, "ghost")
	assert.ErrorIs(t, err, finance.ErrUserNotFound)

	err = backend.Accounts.Save(ctx, "ghost", []finance.Account{{Name: "x"}})
	assert.ErrorIs(t, err, finance.ErrUserNotFound)

	_, err = backend.Movements.List(ctx, "ghost")
	assert.True(t, finance.IsNotFound(err))
}

func TestMovements_CSVLayout(t *testing.T) {
	backend, base := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))

	in := []finance.Movement{
		{
			Amount:      amt("40"),
			Type:        finance.MovementExpense,
			Description: "groceries, weekly",
			Origin:      "Checking",
			Date:        "2024-12-25",
			Tags:        []string{"food", "home"},
		},
		{Amount: amt("12.5"), Destination: "Savings", Tags: []string{}},
	}
	require.NoError(t, backend.Movements.Save(ctx, "alice", in))

	raw, err := os.ReadFile(filepath.Join(base, "user-alice", file.MovementsFile))
	require.NoError(t, err)
	assert.Equal(t,
		"type,date,amount,description,origin,destination,tags\n"+
			"Gasto,2024-12-25,40,\"groceries, weekly\",Checking,,food#home\n"+
			",,12.5,,,Savings,\n",
		string(raw))

	out, err := backend.Movements.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, finance.MovementExpense, out[0].Type)
	assert.Equal(t, []string{"food", "home"}, out[0].Tags)
	assert.Equal(t, "groceries, weekly", out[0].Description)
	assert.True(t, out[0].Amount.Equal(amt("40")))
	assert.Equal(t, finance.MovementUntyped, out[1].Type)
	assert.Equal(t, []string{}, out[1].Tags)
}

func TestMovements_RejectsSeparatorInTags(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))

	err := backend.Movements.Save(ctx, "alice", []finance.Movement{{Amount: amt("1"), Tags: []string{"a#b"}}})

	assert.Error(t, err)
}

func TestMovements_CorruptRows(t *testing.T) {
	tests := map[string]string{
		"unknown type": "type,date,amount,description,origin,destination,tags\nRegalo,,1,,,,\n",
		"bad amount":   "type,date,amount,description,origin,destination,tags\nGasto,,abc,,Cash,,\n",
		"no amount":    "type,date,amount,description,origin,destination,tags\nGasto,,,,Cash,,\n",
		"no columns":   "type,date\nGasto,\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			backend, base := newTestBackend(t)
			ctx := context.Background()
			require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
			path := filepath.Join(base, "user-alice", file.MovementsFile)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := backend.Movements.List(ctx, "alice")

			assert.ErrorIs(t, err, finance.ErrCorruptStore)
		})
	}
}

func TestMovements_ReadsFloatAmountsAndCRLF(t *testing.T) {
	backend, base := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
	path := filepath.Join(base, "user-alice", file.MovementsFile)
	content := "type,date,amount,description,origin,destination,tags\r\nGasto,2024-01-02,40.0,,Checking,,\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := backend.Movements.List(ctx, "alice")

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(amt("40")))
	assert.Equal(t, "Checking", out[0].Origin)
}

func TestMovements_ReadsFilesWithColumnSubset(t *testing.T) {
	// GIVEN: a movements file that only carries the columns its first row used
	backend, base := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, backend.Users.EnsureScaffold(ctx, "alice"))
	path := filepath.Join(base, "user-alice", file.MovementsFile)
	require.NoError(t, os.WriteFile(path, []byte("amount,type,origin\n5,Gasto,Cash\n"), 0o644))

	// WHEN
	out, err := backend.Movements.List(ctx, "alice")

	// THEN: absent columns read as empty
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(amt("5")))
	assert.Equal(t, finance.MovementExpense, out[0].Type)
	assert.Equal(t, "Cash", out[0].Origin)
	assert.Empty(t, out[0].Destination)
	assert.Empty(t, out[0].Date)

	// AND: the next save writes the full header
	require.NoError(t, backend.Movements.Save(ctx, "alice", out))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type,date,amount,description,origin,destination,tags\n")
}

func TestRepositories_HonorCanceledContext(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Users.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, backend.Accounts.Save(ctx, "alice", nil), context.Canceled)
}
