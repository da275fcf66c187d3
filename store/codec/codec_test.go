package codec_test

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/store/codec"
)

type pair struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Notes []string `json:"notes,omitempty"`
}

func pairCSV() codec.CSV[pair] {
	return codec.CSV[pair]{
		Header:   []string{"key", "count", "notes"},
		Required: []string{"key", "count"},
		Encode: func(p pair) ([]string, error) {
			return []string{p.Key, strconv.Itoa(p.Count), strings.Join(p.Notes, "#")}, nil
		},
		Decode: func(r codec.Row) (pair, error) {
			n, err := strconv.Atoi(r["count"])
			if err != nil {
				return pair{}, fmt.Errorf("count: %w", err)
			}
			p := pair{Key: r["key"], Count: n}
			if r["notes"] != "" {
				p.Notes = strings.Split(r["notes"], "#")
			}
			return p, nil
		},
	}
}

// =============================================================================
// JSON
// =============================================================================

func TestJSON_DumpThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	c := codec.JSON[pair]{}
	in := []pair{{Key: "a", Count: 1}, {Key: "b", Count: 2, Notes: []string{"x", "y"}}}

	require.NoError(t, c.Dump(in, path))
	out, err := c.Load(path)

	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJSON_DumpOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	c := codec.JSON[pair]{}

	require.NoError(t, c.Dump([]pair{{Key: "a"}, {Key: "b"}, {Key: "c"}}, path))
	require.NoError(t, c.Dump([]pair{{Key: "z"}}, path))

	out, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []pair{{Key: "z"}}, out)
}

func TestJSON_EmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	c := codec.JSON[pair]{}

	require.NoError(t, c.Dump(nil, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	out, err := c.Load(path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestJSON_MissingFile(t *testing.T) {
	_, err := codec.JSON[pair]{}.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestJSON_Malformed(t *testing.T) {
	tests := map[string]string{
		"object":    `{"key": "a"}`,
		"null":      `null`,
		"empty":     ``,
		"truncated": `[{"key": "a"`,
		"wrong row": `[1, 2]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := codec.JSON[pair]{}.Load(path)

			assert.ErrorIs(t, err, codec.ErrMalformed)
			var me *codec.MalformedError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, path, me.Path)
		})
	}
}

func TestJSON_DumpLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, codec.JSON[pair]{}.Dump([]pair{{Key: "a"}}, filepath.Join(dir, "p.json")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p.json", entries[0].Name())
}

// =============================================================================
// CSV
// =============================================================================

func TestCSV_DumpThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	c := pairCSV()
	in := []pair{
		{Key: "plain", Count: 1},
		{Key: "with, comma and \"quotes\"", Count: 2, Notes: []string{"x", "y z"}},
	}

	require.NoError(t, c.Dump(in, path))
	out, err := c.Load(path)

	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSV_EmptyCollectionKeepsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	c := pairCSV()

	require.NoError(t, c.Dump([]pair{{Key: "a"}}, path))
	require.NoError(t, c.Dump(nil, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "key,count,notes\n", string(raw))

	out, err := c.Load(path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCSV_ReadsColumnsByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte("extra,notes,count,key\n?,n1#n2,7,k\n"), 0o644))

	out, err := pairCSV().Load(path)

	require.NoError(t, err)
	assert.Equal(t, []pair{{Key: "k", Count: 7, Notes: []string{"n1", "n2"}}}, out)
}

func TestCSV_AbsentOptionalColumnReadsEmpty(t *testing.T) {
	// GIVEN: a file written without the optional notes column
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte("count,key\n3,a\n"), 0o644))

	// WHEN
	out, err := pairCSV().Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, []pair{{Key: "a", Count: 3}}, out)
}

func TestCSV_ZeroByteFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out, err := pairCSV().Load(path)

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCSV_Malformed(t *testing.T) {
	tests := map[string]struct {
		content string
		line    int
	}{
		"missing column": {"key,notes\na,\n", 1},
		"bad value":      {"key,count,notes\na,1,\nb,two,\n", 3},
		"ragged row":     {"key,count,notes\na,1\n", 2},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := pairCSV().Load(path)

			var me *codec.MalformedError
			require.ErrorAs(t, err, &me)
			assert.ErrorIs(t, err, codec.ErrMalformed)
			assert.Equal(t, tt.line, me.Line)
		})
	}
}

func TestCSV_MissingFile(t *testing.T) {
	_, err := pairCSV().Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
