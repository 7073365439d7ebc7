// Package metrics computes precision, recall and F1 of the positive class over token
// classification outputs, skipping positions labeled Ignored.
//
// All non-ignored positions of a batch are flattened into one sequence before counting, so the
// result does not depend on how rows are ordered or batched.
package metrics

import (
	"fmt"

	"github.com/autohighlight/autohighlight/labels"
	"github.com/pkg/errors"
)

// Scores of the positive class.
type Scores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	TruePositives      int `json:"true_positives"`
	PredictedPositives int `json:"predicted_positives"`
	ActualPositives    int `json:"actual_positives"`

	// Support is the number of non-ignored positions counted.
	Support int `json:"support"`
}

// String implements fmt.Stringer.
func (s Scores) String() string {
	return fmt.Sprintf("precision=%.4f recall=%.4f f1=%.4f (tp=%d predicted=%d actual=%d support=%d)",
		s.Precision, s.Recall, s.F1, s.TruePositives, s.PredictedPositives, s.ActualPositives, s.Support)
}

// Flatten returns the (gold class, predicted class) pairs of all non-ignored positions, in row
// order. gold and preds must have identical shapes.
func Flatten(gold [][]labels.Label, preds [][]int) (goldClasses, predClasses []int, err error) {
	if len(gold) != len(preds) {
		return nil, nil, errors.Errorf("got %d label rows but %d prediction rows", len(gold), len(preds))
	}
	for row := range gold {
		if len(gold[row]) != len(preds[row]) {
			return nil, nil, errors.Errorf("row %d has %d labels but %d predictions", row, len(gold[row]), len(preds[row]))
		}
		for pos, label := range gold[row] {
			class, ok := label.Class()
			if !ok {
				continue
			}
			pred := preds[row][pos]
			if pred != 0 && pred != 1 {
				return nil, nil, errors.Errorf("row %d position %d: predicted class %d is not binary", row, pos, pred)
			}
			goldClasses = append(goldClasses, class)
			predClasses = append(predClasses, pred)
		}
	}
	return goldClasses, predClasses, nil
}

// Evaluate flattens gold and preds and scores the positive class.
// Degenerate cases resolve to 0: precision with no predicted positives, recall with no actual
// positives, F1 when precision and recall are both 0.
func Evaluate(gold [][]labels.Label, preds [][]int) (Scores, error) {
	var acc Accumulator
	if err := acc.Add(gold, preds); err != nil {
		return Scores{}, err
	}
	return acc.Scores(), nil
}

// Accumulator counts batch after batch; Scores gives the same result as a single Evaluate over
// the concatenated batches. The zero value is ready to use.
type Accumulator struct {
	tp, predicted, actual, support int
}

// Add counts one batch. On error nothing is counted.
func (a *Accumulator) Add(gold [][]labels.Label, preds [][]int) error {
	goldClasses, predClasses, err := Flatten(gold, preds)
	if err != nil {
		return err
	}
	for i, g := range goldClasses {
		p := predClasses[i]
		if p == 1 {
			a.predicted++
		}
		if g == 1 {
			a.actual++
			if p == 1 {
				a.tp++
			}
		}
	}
	a.support += len(goldClasses)
	return nil
}

// Scores returns the scores of everything added so far.
func (a *Accumulator) Scores() Scores {
	s := Scores{
		TruePositives:      a.tp,
		PredictedPositives: a.predicted,
		ActualPositives:    a.actual,
		Support:            a.support,
	}
	if a.predicted > 0 {
		s.Precision = float64(a.tp) / float64(a.predicted)
	}
	if a.actual > 0 {
		s.Recall = float64(a.tp) / float64(a.actual)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}
