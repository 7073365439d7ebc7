package predictions

import (
	"encoding/json"

	"github.com/autohighlight/autohighlight/labels"
	"github.com/pkg/errors"
)

// Metadata keys of files written by WriteRowLogits. Both hold JSON lists, in batch order.
const (
	RowIDsKey     = "row_ids"
	RowLengthsKey = "row_lengths"
)

// ErrNoRowIDs is returned by RowPredictions for files that don't record their row ids.
var ErrNoRowIDs = errors.New("no row ids in predictions file")

// RowLogits are the logits of one row, without padding positions.
type RowLogits struct {
	ID     string
	Logits [][]float32
}

// WriteRowLogits writes the logits of rows as one tensor, padding every row with zero logits to
// the longest one, and records the row ids and lengths in the metadata.
func WriteRowLogits(path, name string, rows []RowLogits, metadata map[string]string) error {
	ids := make([]string, len(rows))
	lengths := make([]int, len(rows))
	seen := make(map[string]bool, len(rows))
	maxLen, classes := 0, 0
	for i, r := range rows {
		if seen[r.ID] {
			return errors.Errorf("duplicate row id %q", r.ID)
		}
		seen[r.ID] = true
		ids[i], lengths[i] = r.ID, len(r.Logits)
		maxLen = max(maxLen, len(r.Logits))
		if len(r.Logits) > 0 {
			classes = len(r.Logits[0])
		}
	}

	logits := make([][][]float32, len(rows))
	for i, r := range rows {
		padded := make([][]float32, maxLen)
		copy(padded, r.Logits)
		for pos := len(r.Logits); pos < maxLen; pos++ {
			padded[pos] = make([]float32, classes)
		}
		logits[i] = padded
	}

	md := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "failed to encode row ids")
	}
	lengthsJSON, err := json.Marshal(lengths)
	if err != nil {
		return errors.Wrap(err, "failed to encode row lengths")
	}
	md[RowIDsKey], md[RowLengthsKey] = string(idsJSON), string(lengthsJSON)
	return WriteLogits(path, name, logits, md)
}

// RowPredictions returns the argmax classes of each row of the named logits tensor, keyed by
// row id and without padding. Files without row ids return ErrNoRowIDs.
func (f *File) RowPredictions(name string) (map[string][]int, error) {
	rawIDs, ok := f.header.Metadata[RowIDsKey]
	if !ok {
		return nil, errors.Wrapf(ErrNoRowIDs, "%s", f.path)
	}
	var ids []string
	if err := json.Unmarshal([]byte(rawIDs), &ids); err != nil {
		return nil, errors.Wrapf(err, "invalid %s in %s", RowIDsKey, f.path)
	}
	var lengths []int
	if raw, ok := f.header.Metadata[RowLengthsKey]; ok {
		if err := json.Unmarshal([]byte(raw), &lengths); err != nil {
			return nil, errors.Wrapf(err, "invalid %s in %s", RowLengthsKey, f.path)
		}
		if len(lengths) != len(ids) {
			return nil, errors.Errorf("%s has %d row ids but %d row lengths", f.path, len(ids), len(lengths))
		}
	}

	preds, err := f.Predictions(name)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(ids) {
		return nil, errors.Errorf("%s has %d row ids but tensor %s has %d rows", f.path, len(ids), name, len(preds))
	}
	byID := make(map[string][]int, len(ids))
	for i, id := range ids {
		if _, dup := byID[id]; dup {
			return nil, errors.Errorf("%s: duplicate row id %q", f.path, id)
		}
		row := preds[i]
		if lengths != nil {
			if lengths[i] < 0 || lengths[i] > len(row) {
				return nil, errors.Errorf("%s: row %q has length %d, tensor rows have %d positions", f.path, id, lengths[i], len(row))
			}
			row = row[:lengths[i]]
		}
		byID[id] = row
	}
	return byID, nil
}

// MatchRows returns the predictions of byID in the order of ids, one row per gold label
// sequence. A missing id is an error, and so is a prediction longer than its labels. A shorter
// prediction is accepted only if the labels past its end are all ignored (padding); it is
// extended with class 0 there.
func MatchRows(ids []string, gold [][]labels.Label, byID map[string][]int) ([][]int, error) {
	if len(ids) != len(gold) {
		return nil, errors.Errorf("%d row ids for %d label rows", len(ids), len(gold))
	}
	preds := make([][]int, len(ids))
	for i, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, errors.Errorf("no predictions for row id %q", id)
		}
		if len(row) > len(gold[i]) {
			return nil, errors.Errorf("row %q: %d predictions for %d labels", id, len(row), len(gold[i]))
		}
		for pos := len(row); pos < len(gold[i]); pos++ {
			if !gold[i][pos].IsIgnored() {
				return nil, errors.Errorf("row %q: %d predictions for %d labels, and label %d is not padding", id, len(row), len(gold[i]), pos)
			}
		}
		matched := make([]int, len(gold[i]))
		copy(matched, row)
		preds[i] = matched
	}
	return preds, nil
}
