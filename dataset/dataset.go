package dataset

import (
	"bytes"
	"encoding/json"
	"os"
	"runtime"
	"sort"

	"github.com/autohighlight/autohighlight/labels"
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"
	"k8s.io/klog/v2"
)

// Row is one annotated unit of text.
type Row struct {
	ID   string
	Text string
}

// Words returns the whitespace tokenization of the row's text.
func (r Row) Words() []string {
	return labels.SplitWords(r.Text)
}

// Highlights maps row ids to highlighted word indices, the format of the annotation tool's
// highlights file.
type Highlights map[string][]int

// RowsOf reads the id and text columns of every row of the table.
func (t *Table) RowsOf(idColumn, textColumn string) ([]Row, error) {
	idCol, err := t.ColumnIndex(idColumn)
	if err != nil {
		return nil, err
	}
	textCol, err := t.ColumnIndex(textColumn)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = Row{ID: t.Cell(i, idCol), Text: t.Cell(i, textCol)}
	}
	return rows, nil
}

// LoadRows reads the rows file at path, failing fast if either column is missing.
func LoadRows(path, idColumn, textColumn string) ([]Row, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	return t.RowsOf(idColumn, textColumn)
}

// ParseHighlights decodes a highlights JSON document. Anything other than an object of integer
// lists is an error wrapping ErrMalformedHighlights.
func ParseHighlights(data []byte) (Highlights, error) {
	var raw map[string][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(ErrMalformedHighlights, "%v", err)
	}
	h := make(Highlights, len(raw))
	for id, values := range raw {
		if values == nil {
			h[id] = nil
			continue
		}
		indices := make([]int, len(values))
		for i, v := range values {
			num, ok := v.(json.Number)
			if !ok {
				return nil, errors.Wrapf(ErrMalformedHighlights, "id %q: value %v is not an integer", id, v)
			}
			n, err := num.Int64()
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedHighlights, "id %q: value %s is not an integer", id, num)
			}
			indices[i] = int(n)
		}
		h[id] = indices
	}
	return h, nil
}

// LoadHighlights reads and parses a highlights file.
func LoadHighlights(path string) (Highlights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read highlights file %s", path)
	}
	h, err := ParseHighlights(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "highlights file %s", path)
	}
	return h, nil
}

// SortedIDs returns the ids of h in increasing order.
func (h Highlights) SortedIDs() []string {
	ids := make([]string, 0, len(h))
	for id := range h {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prepare aligns every highlighted row, in sorted id order. Ids not present in rows are logged
// and skipped; for duplicate ids the first row is used and the others are logged. Rows are
// aligned in parallel, with at most workers goroutines (GOMAXPROCS if workers <= 0); tokenizer
// errors abort the preparation.
func Prepare(rows []Row, highlights Highlights, tok api.WordTokenizer, workers int) ([]*labels.Example, error) {
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		if first, dup := index[r.ID]; dup {
			klog.Warningf("Duplicate id %q at row %d (first at row %d), keeping the first occurrence", r.ID, i, first)
			continue
		}
		index[r.ID] = i
	}
	var ids []string
	for _, id := range highlights.SortedIDs() {
		if _, ok := index[id]; !ok {
			klog.Warningf("Highlighted id %q not found in the rows, skipping it", id)
			continue
		}
		ids = append(ids, id)
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	mapper := iter.Mapper[string, *labels.Example]{MaxGoroutines: workers}
	examples, err := mapper.MapErr(ids, func(id *string) (*labels.Example, error) {
		row := rows[index[*id]]
		return labels.Align(row.ID, row.Words(), labels.NewHighlightSet(highlights[*id]...), tok)
	})
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Prepared %d examples (%d highlighted ids, %d rows)", len(examples), len(highlights), len(rows))
	return examples, nil
}
