package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autohighlight/autohighlight/internal/logtest"
	"github.com/autohighlight/autohighlight/labels"
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTable_CSV(t *testing.T) {
	path := writeFile(t, "rows.csv", "\ufeffid, text ,extra\nr1,\"the cat sat\",x\nr2,a dog\n")
	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text", "extra"}, table.Columns)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, map[string]string{"id": "r2", "text": "a dog", "extra": ""}, table.Record(1))

	idx, err := table.ColumnIndex("text")
	require.NoError(t, err)
	assert.Equal(t, "the cat sat", table.Cell(0, idx))

	_, err = table.ColumnIndex("body")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadTable_TSVAndXLSX(t *testing.T) {
	path := writeFile(t, "rows.tsv", "id\ttext\nr1\tsay \"hi\" there\n")
	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, `say "hi" there`, table.Cell(0, 1))

	xlsx := filepath.Join(t.TempDir(), "rows.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"id", "text"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"r1", "red fox"}))
	require.NoError(t, f.SaveAs(xlsx))
	require.NoError(t, f.Close())

	rows, err := LoadRows(xlsx, "id", "text")
	require.NoError(t, err)
	assert.Equal(t, []Row{{ID: "r1", Text: "red fox"}}, rows)
}

func TestReadTable_Errors(t *testing.T) {
	_, err := ReadTable(writeFile(t, "rows.json", "{}"))
	assert.Error(t, err)
	_, err = ReadTable(writeFile(t, "empty.csv", ""))
	assert.Error(t, err)
	_, err = ReadTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	table := NewTable([]string{"id", "text"}, [][]string{{"a", "x"}, {"b", "y"}, {"a", "z"}})
	index, err := table.Index("id")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, index)

	_, err = table.Index("missing")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadRows_MissingColumn(t *testing.T) {
	path := writeFile(t, "rows.csv", "id,body\nr1,hello\n")
	_, err := LoadRows(path, "id", "text")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseHighlights(t *testing.T) {
	h, err := ParseHighlights([]byte(`{"r2": [3, 1], "r1": [], "r3": null}`))
	require.NoError(t, err)
	assert.Equal(t, Highlights{"r2": {3, 1}, "r1": {}, "r3": nil}, h)
	assert.Equal(t, []string{"r1", "r2", "r3"}, h.SortedIDs())

	for _, bad := range []string{`[1, 2]`, `{"r1": [1.5]}`, `{"r1": ["2"]}`, `{"r1": 3}`, `not json`} {
		_, err := ParseHighlights([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedHighlights, bad)
	}
}

func TestLoadHighlights(t *testing.T) {
	h, err := LoadHighlights(writeFile(t, "h.json", `{"r1": [0]}`))
	require.NoError(t, err)
	assert.Equal(t, Highlights{"r1": {0}}, h)

	_, err = LoadHighlights(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

// spaceTokenizer maps every word to one subword and wraps the sequence in [CLS]/[SEP].
type spaceTokenizer struct {
	err error
}

func (s *spaceTokenizer) Encode(string) []int { return nil }
func (s *spaceTokenizer) Decode([]int) string { return "" }
func (s *spaceTokenizer) SpecialTokenID(api.SpecialToken) (int, error) {
	return 0, nil
}

func (s *spaceTokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	if s.err != nil {
		return nil, s.err
	}
	enc := &api.Encoding{}
	enc.Append(101, "[CLS]", api.NoWord, true)
	for i, w := range words {
		enc.Append(1000+i, w, i, false)
	}
	enc.Append(102, "[SEP]", api.NoWord, true)
	return enc, nil
}

func TestPrepare(t *testing.T) {
	rows := []Row{
		{ID: "b", Text: "dogs bark loudly"},
		{ID: "a", Text: "the cat sat"},
		{ID: "c", Text: "never highlighted"},
	}
	h := Highlights{"b": {2}, "a": {1, 9}, "zzz": {0}}
	examples, err := Prepare(rows, h, &spaceTokenizer{}, 2)
	require.NoError(t, err)
	require.Len(t, examples, 2)

	assert.Equal(t, "a", examples[0].RowID)
	assert.Equal(t, []labels.Label{labels.Ignored, labels.Negative, labels.Positive, labels.Negative, labels.Ignored}, examples[0].Labels)
	assert.Equal(t, []int{9}, examples[0].Dropped)

	assert.Equal(t, "b", examples[1].RowID)
	assert.Equal(t, []labels.Label{labels.Ignored, labels.Negative, labels.Negative, labels.Positive, labels.Ignored}, examples[1].Labels)
}

func TestPrepare_DuplicateIDs(t *testing.T) {
	rows := []Row{
		{ID: "a", Text: "first copy"},
		{ID: "b", Text: "other row"},
		{ID: "a", Text: "second copy here"},
	}
	var examples []*labels.Example
	var err error
	logs := logtest.Capture(t, func() {
		examples, err = Prepare(rows, Highlights{"a": {1}}, &spaceTokenizer{}, 1)
	})
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, []labels.Label{labels.Ignored, labels.Negative, labels.Positive, labels.Ignored}, examples[0].Labels)
	assert.Contains(t, logs, `Duplicate id "a" at row 2 (first at row 0)`)
}

func TestPrepare_TokenizerError(t *testing.T) {
	tokErr := errors.New("tokenizer exploded")
	_, err := Prepare([]Row{{ID: "a", Text: "x"}}, Highlights{"a": {0}}, &spaceTokenizer{err: tokErr}, 1)
	assert.ErrorIs(t, err, tokErr)
}

func TestParquetRoundTrip(t *testing.T) {
	examples, err := Prepare([]Row{{ID: "a", Text: "the cat sat"}}, Highlights{"a": {1}}, &spaceTokenizer{}, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "train.parquet")
	require.NoError(t, WriteParquet(path, examples))

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, []int64{101, 1000, 1001, 1002, 102}, rows[0].InputIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, rows[0].AttentionMask)
	assert.Equal(t, []int64{labels.IgnoreIndex, 0, 1, 0, labels.IgnoreIndex}, rows[0].Labels)
	assert.Equal(t, []int64{-1, 0, 1, 2, -1}, rows[0].WordIDs)

	gold, err := GoldLabels(rows)
	require.NoError(t, err)
	assert.Equal(t, [][]labels.Label{examples[0].Labels}, gold)

	_, err = TrainingRow{ID: "x", Labels: []int64{5}}.GoldLabels()
	assert.Error(t, err)
}
