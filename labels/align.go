package labels

import (
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WordLabels returns one label per word: Positive for the indices in set, Negative otherwise.
// Indices outside [0, len(words)) are data errors: they are dropped, returned sorted, and
// logged as a warning.
func WordLabels(words []string, set HighlightSet) (wordLabels []Label, dropped []int) {
	wordLabels = make([]Label, len(words))
	for i := range wordLabels {
		wordLabels[i] = Negative
	}
	for _, idx := range set.Sorted() {
		if idx < 0 || idx >= len(words) {
			dropped = append(dropped, idx)
			continue
		}
		wordLabels[idx] = Positive
	}
	if len(dropped) > 0 {
		klog.Warningf("Dropping highlight indices %v outside of the %d words of the row", dropped, len(words))
	}
	return wordLabels, dropped
}

// AlignSubwords returns one label per subword position: the label of the owning word given by
// wordIDs, or Ignored for api.NoWord positions. Every subword of a word gets the word's label.
//
// An owning index outside wordLabels means the tokenizer and the word tokenization disagree,
// and is reported as an error.
func AlignSubwords(wordIDs []int, wordLabels []Label) ([]Label, error) {
	aligned := make([]Label, len(wordIDs))
	for pos, wordID := range wordIDs {
		switch {
		case wordID == api.NoWord:
			aligned[pos] = Ignored
		case wordID < 0 || wordID >= len(wordLabels):
			return nil, errors.Errorf("subword %d is owned by word %d, but there are only %d words", pos, wordID, len(wordLabels))
		default:
			aligned[pos] = wordLabels[wordID]
		}
	}
	return aligned, nil
}

// Example is one row ready for token classification training or evaluation.
type Example struct {
	RowID    string
	Words    []string
	Encoding *api.Encoding
	Labels   []Label

	// Dropped lists highlight indices that were out of range for the row.
	Dropped []int
}

// TrainingLabels returns Labels as training ids (see Label.TrainingID).
func (e *Example) TrainingLabels() []int64 {
	out := make([]int64, len(e.Labels))
	for i, l := range e.Labels {
		out[i] = l.TrainingID()
	}
	return out
}

// Align builds the Example of a row: word labels from set, encoding of the words with tok
// (truncation and padding follow the tokenizer's configuration) and the aligned subword labels.
// Tokenizer failures are returned unchanged.
func Align(rowID string, words []string, set HighlightSet, tok api.WordTokenizer) (*Example, error) {
	wordLabels, dropped := WordLabels(words, set)
	enc, err := tok.EncodeWords(words)
	if err != nil {
		return nil, err
	}
	aligned, err := AlignSubwords(enc.WordIDs, wordLabels)
	if err != nil {
		return nil, errors.WithMessagef(err, "row %q", rowID)
	}
	return &Example{
		RowID:    rowID,
		Words:    words,
		Encoding: enc,
		Labels:   aligned,
		Dropped:  dropped,
	}, nil
}
