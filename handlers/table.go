package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Table is the in-memory dataset payload the file handlers produce and
// consume: a header plus string-valued rows. Transform tasks operate on it
// directly; anything richer belongs in the job's own types.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Shape returns rows x columns, rendered the way asset log messages expect,
// e.g. "(120, 4)".
func (t *Table) Shape() string {
	return fmt.Sprintf("(%d, %d)", len(t.Rows), len(t.Columns))
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Concat appends the rows of every table after the first, requiring
// identical headers.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}

	out := &Table{Columns: tables[0].Columns}
	for _, t := range tables {
		if len(t.Columns) != len(out.Columns) {
			return nil, fmt.Errorf("concat: column count mismatch: %d vs %d", len(t.Columns), len(out.Columns))
		}
		for i, c := range t.Columns {
			if c != out.Columns[i] {
				return nil, fmt.Errorf("concat: column %d is %q vs %q", i, c, out.Columns[i])
			}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

// ReadTable parses delimited text into a Table. The first record is the
// header.
func ReadTable(r io.Reader, sep rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading delimited data: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

// ReadTableFile loads a delimited file into a Table.
func ReadTableFile(path string, sep rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f, sep)
}

// WriteTable renders the table as delimited text.
func (t *Table) WriteTable(w io.Writer, sep rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = sep

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTableFile writes the table to path as delimited text.
func (t *Table) WriteTableFile(path string, sep rune) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.WriteTable(f, sep)
}
