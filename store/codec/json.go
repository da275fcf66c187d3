package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// JSON stores a collection as one indented JSON array.
type JSON[T any] struct{}

func (JSON[T]) Load(path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &MalformedError{Path: path, Err: errors.New("expected a JSON array")}
	}

	records := []T{}
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	return records, nil
}

func (JSON[T]) Dump(records []T, path string) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}
