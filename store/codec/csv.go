package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Row is one CSV record keyed by column name.
type Row map[string]string

// CSV stores a collection as a header plus one row per record.
// Encode must return values in Header order; Decode reads by column name,
// so extra or reordered columns in an existing file are tolerated.
// Only the Required columns must be present on Load; any other Header
// column missing from the file reads as an empty string.
type CSV[T any] struct {
	Header   []string
	Required []string
	Encode   func(T) ([]string, error)
	Decode   func(Row) (T, error)
}

func (c CSV[T]) Load(path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &MalformedError{Path: path, Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range c.Required {
		if _, ok := index[name]; !ok {
			return nil, &MalformedError{Path: path, Line: 1, Err: fmt.Errorf("missing column %q", name)}
		}
	}

	records := []T{}
	for line := 2; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedError{Path: path, Line: line, Err: err}
		}

		row := make(Row, len(header))
		for name, i := range index {
			row[name] = fields[i]
		}
		rec, err := c.Decode(row)
		if err != nil {
			return nil, &MalformedError{Path: path, Line: line, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Dump always writes the header, so an empty collection is still a valid file.
func (c CSV[T]) Dump(records []T, path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(c.Header); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	for i, rec := range records {
		fields, err := c.Encode(rec)
		if err != nil {
			return fmt.Errorf("encode %s record %d: %w", path, i, err)
		}
		if len(fields) != len(c.Header) {
			return fmt.Errorf("encode %s record %d: %d fields for %d columns", path, i, len(fields), len(c.Header))
		}
		if err := w.Write(fields); err != nil {
			return fmt.Errorf("encode %s record %d: %w", path, i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFileAtomic(path, buf.Bytes())
}
