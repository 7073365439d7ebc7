// Package annotation serves rows to the highlighting UI and records the submitted highlights.
//
// The rows file is read once at startup; highlights are merged into a JSON file mapping row ids
// to word indices, the input of dataset.Prepare.
package annotation

import (
	"github.com/autohighlight/autohighlight/dataset"
	"github.com/pkg/errors"
)

// IDColumn is the column every rows file must have.
const IDColumn = "id"

// Store is the read-only set of rows offered for annotation.
type Store struct {
	table *dataset.Table
	ids   map[string]int
	idCol int
}

// NewStore wraps a table, which must have an IDColumn.
func NewStore(table *dataset.Table) (*Store, error) {
	idCol, err := table.ColumnIndex(IDColumn)
	if err != nil {
		return nil, errors.WithMessage(err, "rows file must contain an id column")
	}
	ids, err := table.Index(IDColumn)
	if err != nil {
		return nil, err
	}
	return &Store{table: table, ids: ids, idCol: idCol}, nil
}

// LoadStore reads a rows file (.csv, .tsv or .xlsx).
func LoadStore(path string) (*Store, error) {
	table, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return NewStore(table)
}

// EmptyStore has no rows and no columns.
func EmptyStore() *Store {
	return &Store{table: dataset.NewTable(nil, nil), ids: map[string]int{}, idCol: -1}
}

// Columns returns the header of the rows file.
func (s *Store) Columns() []string {
	return s.table.Columns
}

// HasColumn reports whether column is in the header.
func (s *Store) HasColumn(column string) bool {
	return s.table.HasColumn(column)
}

// Len returns the number of rows.
func (s *Store) Len() int {
	return s.table.Len()
}

// InRange reports whether index is a valid row index.
func (s *Store) InRange(index int) bool {
	return index >= 0 && index < s.Len()
}

// Row returns the row at index as a column to value map.
func (s *Store) Row(index int) (map[string]string, error) {
	if !s.InRange(index) {
		return nil, errors.Errorf("row index %d out of range [0, %d)", index, s.Len())
	}
	return s.table.Record(index), nil
}

// ID returns the id of the row at index.
func (s *Store) ID(index int) (string, error) {
	if !s.InRange(index) {
		return "", errors.Errorf("row index %d out of range [0, %d)", index, s.Len())
	}
	return s.table.Cell(index, s.idCol), nil
}

// Lookup returns the index of the row with the given id.
func (s *Store) Lookup(id string) (int, bool) {
	idx, ok := s.ids[id]
	return idx, ok
}
