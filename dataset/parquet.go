package dataset

import (
	"github.com/autohighlight/autohighlight/labels"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// TrainingRow is the on-disk form of a labels.Example. Labels use labels.IgnoreIndex for ignored
// positions; WordIDs use -1 for positions owned by no word.
type TrainingRow struct {
	ID            string  `parquet:"id"`
	InputIDs      []int64 `parquet:"input_ids"`
	AttentionMask []int64 `parquet:"attention_mask"`
	Labels        []int64 `parquet:"labels"`
	WordIDs       []int64 `parquet:"word_ids"`
}

// NewTrainingRow converts an example.
func NewTrainingRow(e *labels.Example) TrainingRow {
	enc := e.Encoding
	row := TrainingRow{
		ID:            e.RowID,
		InputIDs:      make([]int64, enc.Len()),
		AttentionMask: make([]int64, enc.Len()),
		Labels:        e.TrainingLabels(),
		WordIDs:       make([]int64, enc.Len()),
	}
	for i := range enc.Len() {
		row.InputIDs[i] = int64(enc.IDs[i])
		row.AttentionMask[i] = int64(enc.AttentionMask[i])
		row.WordIDs[i] = int64(enc.WordIDs[i])
	}
	return row
}

// GoldLabels converts the stored labels back into labels.Label.
func (r TrainingRow) GoldLabels() ([]labels.Label, error) {
	out := make([]labels.Label, len(r.Labels))
	for i, id := range r.Labels {
		l, err := labels.FromTrainingID(id)
		if err != nil {
			return nil, errors.WithMessagef(err, "row %q position %d", r.ID, i)
		}
		out[i] = l
	}
	return out, nil
}

// WriteParquet writes the examples, in order, to a parquet file.
func WriteParquet(path string, examples []*labels.Example) error {
	rows := make([]TrainingRow, len(examples))
	for i, e := range examples {
		rows[i] = NewTrainingRow(e)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.Wrapf(err, "failed to write training data to %s", path)
	}
	return nil
}

// ReadParquet reads a file written by WriteParquet.
func ReadParquet(path string) ([]TrainingRow, error) {
	rows, err := parquet.ReadFile[TrainingRow](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read training data from %s", path)
	}
	return rows, nil
}

// GoldLabels returns the labels of every row, in order.
func GoldLabels(rows []TrainingRow) ([][]labels.Label, error) {
	out := make([][]labels.Label, len(rows))
	for i, r := range rows {
		var err error
		if out[i], err = r.GoldLabels(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
