// Package table streams header-keyed CSV rows and writes them back in the
// same column order.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMissingColumn is returned when a row is asked for a column its table
// does not have.
var ErrMissingColumn = errors.New("missing column")

// Schema is the ordered column list of a table.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema indexes columns by name. Later duplicates shadow earlier ones.
func NewSchema(columns []string) *Schema {
	s := &Schema{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		s.index[c] = i
	}
	return s
}

// Columns returns the column names in table order.
func (s *Schema) Columns() []string { return append([]string(nil), s.columns...) }

// Has reports whether the table has column.
func (s *Schema) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Row is one data record. Line is the 1-based line it was read from.
type Row struct {
	schema *Schema
	values []string
	Line   int
}

// NewRow builds a row for schema. values must match the column count.
func NewRow(schema *Schema, values []string) (Row, error) {
	if len(values) != len(schema.columns) {
		return Row{}, fmt.Errorf("row has %d values, table has %d columns", len(values), len(schema.columns))
	}
	return Row{schema: schema, values: append([]string(nil), values...)}, nil
}

// Get returns the text of column.
func (r Row) Get(column string) (string, error) {
	i, ok := r.schema.index[column]
	if !ok {
		return "", fmt.Errorf("line %d: %q: %w", r.Line, column, ErrMissingColumn)
	}
	return r.values[i], nil
}

// Set overwrites column in place. Column order never changes.
func (r Row) Set(column, value string) error {
	i, ok := r.schema.index[column]
	if !ok {
		return fmt.Errorf("line %d: %q: %w", r.Line, column, ErrMissingColumn)
	}
	r.values[i] = value
	return nil
}

// Values returns a copy of the row's fields in column order.
func (r Row) Values() []string { return append([]string(nil), r.values...) }

// Reader streams rows from a CSV table whose first record is its header.
type Reader struct {
	name   string
	closer io.Closer
	csv    *csv.Reader
	schema *Schema
	line   int
}

// Open opens the CSV file at path and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	r, err := NewReader(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from rd. An empty input is a table with no
// columns and no rows.
func NewReader(name string, rd io.Reader) (*Reader, error) {
	c := csv.NewReader(rd)
	r := &Reader{name: name, csv: c}

	header, err := c.Read()
	switch {
	case errors.Is(err, io.EOF):
		r.schema = NewSchema(nil)
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	r.line = 1
	r.schema = NewSchema(header)
	return r, nil
}

// Name is the path or label the table was opened with.
func (r *Reader) Name() string { return r.name }

// Schema returns the table's columns.
func (r *Reader) Schema() *Schema { return r.schema }

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() (Row, error) {
	values, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, fmt.Errorf("read %s: %w", r.name, err)
	}
	r.line, _ = r.csv.FieldPos(0)
	return Row{schema: r.schema, values: values, Line: r.line}, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer writes a table to a temporary sibling of its destination and moves
// it into place on Commit, so an aborted run leaves no output behind.
type Writer struct {
	path      string
	tmp       *os.File
	csv       *csv.Writer
	flushed   bool
	done      bool
	committed bool
}

// Create starts a table at path with the given header.
func Create(path string, columns []string) (*Writer, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	w := &Writer{path: path, tmp: tmp, csv: csv.NewWriter(tmp)}
	w.csv.UseCRLF = true
	if err := w.csv.Write(columns); err != nil {
		w.Abort()
		return nil, fmt.Errorf("write header of %s: %w", path, err)
	}
	return w, nil
}

// Path is the final destination of the table.
func (w *Writer) Path() string { return w.path }

// Write appends a row.
func (w *Writer) Write(row Row) error {
	if w.flushed {
		return fmt.Errorf("write %s: table already flushed", w.path)
	}
	if err := w.csv.Write(row.values); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

// Flush writes all buffered rows to the temporary file and closes it. The
// destination is untouched until Commit.
func (w *Writer) Flush() error {
	if w.flushed || w.done {
		return nil
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.Abort()
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		w.done = true
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	w.flushed = true
	return nil
}

// Commit flushes the table and renames it to its destination.
func (w *Writer) Commit() error {
	if w.done {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.done = true
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("commit %s: %w", w.path, err)
	}
	w.committed = true
	return nil
}

// Revert removes a committed table from its destination. It is a no-op
// before Commit.
func (w *Writer) Revert() error {
	if !w.committed {
		return nil
	}
	w.committed = false
	if err := os.Remove(w.path); err != nil {
		return fmt.Errorf("revert %s: %w", w.path, err)
	}
	return nil
}

// Abort discards the table. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	if !w.flushed {
		w.tmp.Close()
	}
	return os.Remove(w.tmp.Name())
}
