// Package dataset reads annotation inputs (rows and highlight files), prepares aligned training
// examples and writes them in the format consumed by the external trainer.
package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"k8s.io/klog/v2"
)

var (
	// ErrMissingColumn is returned when a required column is not in a table's header.
	ErrMissingColumn = errors.New("missing column")

	// ErrMalformedHighlights is returned for highlight files that are not a mapping from id to
	// a list of integer word indices.
	ErrMalformedHighlights = errors.New("malformed highlights")
)

// Table is a rectangular view of a rows file: a header and string cells.
// Rows shorter than the header read as empty cells.
type Table struct {
	Columns []string
	Rows    [][]string

	columnIndex map[string]int
}

// NewTable builds a table from a header and rows.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, columnIndex: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.columnIndex[c]; dup {
			klog.Warningf("Duplicate column %q, using the first one", c)
			continue
		}
		t.columnIndex[c] = i
	}
	return t
}

// ReadTable reads a .csv, .tsv or .xlsx file. The first row is the header.
func ReadTable(path string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = readDelimited(path, ',')
	case ".tsv":
		records, err = readDelimited(path, '\t')
	case ".xlsx":
		records, err = readExcel(path)
	default:
		return nil, errors.Errorf("unsupported rows file extension %q (want .csv, .tsv or .xlsx)", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("rows file %s is empty", path)
	}
	header := make([]string, len(records[0]))
	for i, cell := range records[0] {
		header[i] = cleanCell(cell)
	}
	return NewTable(header, records[1:]), nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	if comma == '\t' {
		reader.LazyQuotes = true
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return records, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", path)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Errorf("no sheets in Excel file %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q of %s", sheets[0], path)
	}
	return rows, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or an error wrapping ErrMissingColumn.
func (t *Table) ColumnIndex(name string) (int, error) {
	idx, ok := t.columnIndex[name]
	if !ok {
		return -1, errors.Wrapf(ErrMissingColumn, "column %q not in %v", name, t.Columns)
	}
	return idx, nil
}

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// Cell returns the value at row and column index col, or "" for short rows.
func (t *Table) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Record returns row as a column name to value map.
func (t *Table) Record(row int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		if _, seen := rec[c]; seen {
			continue
		}
		rec[c] = t.Cell(row, i)
	}
	return rec
}

// Index maps the values of column to row offsets. For duplicated values the first row wins.
func (t *Table) Index(column string) (map[string]int, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(t.Rows))
	for row := range t.Rows {
		id := t.Cell(row, col)
		if _, dup := index[id]; dup {
			klog.Warningf("Duplicate %s %q at row %d, keeping the first occurrence", column, id, row)
			continue
		}
		index[id] = row
	}
	return index, nil
}
