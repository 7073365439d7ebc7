// Package labels turns word-level highlights into per-subword training labels.
//
// A row's text is split on whitespace into words; a HighlightSet names the highlighted word
// indices. WordLabels gives one Label per word, and AlignSubwords copies each word's label onto
// every subword the tokenizer produced for it, marking special and padding positions Ignored.
package labels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Label is the tagged class of one position. Ignored positions carry no class and must never be
// counted in losses or metrics, so Label has no arithmetic meaning: use Class or TrainingID.
type Label uint8

const (
	// Ignored marks positions owned by no word: special tokens and padding.
	Ignored Label = iota
	Negative
	Positive
)

// IgnoreIndex is the value Ignored takes in exported training data, the index that
// cross-entropy losses skip by default.
const IgnoreIndex = -100

// String implements fmt.Stringer.
func (l Label) String() string {
	switch l {
	case Ignored:
		return "ignored"
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	default:
		return fmt.Sprintf("Label(%d)", uint8(l))
	}
}

// IsIgnored reports whether l must be excluded from losses and metrics.
func (l Label) IsIgnored() bool {
	return l == Ignored
}

// Class returns 1 for Positive and 0 for Negative. ok is false for Ignored.
func (l Label) Class() (class int, ok bool) {
	switch l {
	case Positive:
		return 1, true
	case Negative:
		return 0, true
	default:
		return 0, false
	}
}

// TrainingID returns the integer used in exported training data: the class, or IgnoreIndex.
func (l Label) TrainingID() int64 {
	if class, ok := l.Class(); ok {
		return int64(class)
	}
	return IgnoreIndex
}

// FromClass converts a model class (0 or 1) into a Label.
func FromClass(class int) (Label, error) {
	switch class {
	case 0:
		return Negative, nil
	case 1:
		return Positive, nil
	default:
		return Ignored, errors.Errorf("class %d is not binary", class)
	}
}

// FromTrainingID is the inverse of Label.TrainingID.
func FromTrainingID(id int64) (Label, error) {
	if id == IgnoreIndex {
		return Ignored, nil
	}
	return FromClass(int(id))
}

// SplitWords is the word tokenization shared by the annotation tool and the model side:
// whitespace splitting. A word's index in the result is its word index.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// HighlightSet is the set of highlighted word indices of one row.
type HighlightSet map[int]struct{}

// NewHighlightSet builds a set from a list of indices; duplicates collapse.
func NewHighlightSet(indices ...int) HighlightSet {
	set := make(HighlightSet, len(indices))
	for _, idx := range indices {
		set[idx] = struct{}{}
	}
	return set
}

// Contains reports whether idx is highlighted.
func (s HighlightSet) Contains(idx int) bool {
	_, ok := s[idx]
	return ok
}

// Sorted returns the indices in increasing order.
func (s HighlightSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
