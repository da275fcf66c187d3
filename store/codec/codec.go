/*
Package codec loads and dumps whole record collections as files.

PURPOSE:
  The storage adapter under store/file. A Codec knows one file format and
  nothing about the records' meaning:

    Load(path)          -> every record in the file
    Dump(records, path) -> replaces the file with exactly these records

FORMATS:
  JSON[T]: a single JSON array, indented two spaces.
  CSV[T]:  a header row plus one row per record. Columns are written in a
           fixed order and read back by name.

FAILURE MODES:
  - Missing file: Load returns an error matching fs.ErrNotExist. Callers
    that own lazy initialization check for it with errors.Is.
  - Bad content: Load returns *MalformedError (errors.Is ErrMalformed).

CRASH SAFETY:
  Dump writes a temporary file in the target directory, syncs it and
  renames it over the target. A crash leaves either the old or the new
  collection on disk, never a truncated one.
*/
package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMalformed matches every decode failure.
var ErrMalformed = errors.New("malformed collection")

// Codec loads and dumps a whole collection of T.
type Codec[T any] interface {
	Load(path string) ([]T, error)
	Dump(records []T, path string) error
}

// MalformedError reports where a file failed to decode.
type MalformedError struct {
	Path string
	Line int // 0 when not line-oriented
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed %s (line %d): %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// writeFileAtomic replaces path with data via a synced temp file and rename.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
