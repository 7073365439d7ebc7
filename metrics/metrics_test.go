package metrics

import (
	"testing"

	"github.com/autohighlight/autohighlight/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ign = labels.Ignored
	neg = labels.Negative
	pos = labels.Positive
)

func TestEvaluate(t *testing.T) {
	s, err := Evaluate([][]labels.Label{{pos, pos, neg, pos}}, [][]int{{1, 0, 0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.TruePositives)
	assert.Equal(t, 2, s.PredictedPositives)
	assert.Equal(t, 3, s.ActualPositives)
	assert.Equal(t, 4, s.Support)
	assert.InDelta(t, 1.0, s.Precision, 1e-9)
	assert.InDelta(t, 0.667, s.Recall, 1e-3)
	assert.InDelta(t, 0.8, s.F1, 1e-9)
}

func TestEvaluate_IgnoredPositionsDoNotCount(t *testing.T) {
	plain, err := Evaluate([][]labels.Label{{pos, pos, neg, pos}}, [][]int{{1, 0, 0, 1}})
	require.NoError(t, err)

	// Same pairs with ignored positions around them, predicted positive on purpose.
	padded, err := Evaluate(
		[][]labels.Label{{ign, pos, pos, ign}, {neg, pos, ign, ign}},
		[][]int{{1, 1, 0, 1}, {0, 1, 1, 1}},
	)
	require.NoError(t, err)
	assert.Equal(t, plain, padded)
}

func TestEvaluate_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		gold  [][]labels.Label
		preds [][]int
		want  Scores
	}{
		{"empty batch", nil, nil, Scores{}},
		{"only ignored", [][]labels.Label{{ign, ign}}, [][]int{{1, 1}}, Scores{}},
		{"no positives at all", [][]labels.Label{{neg, neg}}, [][]int{{0, 0}}, Scores{Support: 2}},
		{"no predicted positives", [][]labels.Label{{pos, neg}}, [][]int{{0, 0}}, Scores{ActualPositives: 1, Support: 2}},
		{"no actual positives", [][]labels.Label{{neg, neg}}, [][]int{{1, 0}}, Scores{PredictedPositives: 1, Support: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.gold, tt.preds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_OrderInsensitive(t *testing.T) {
	gold := [][]labels.Label{{ign, pos, neg}, {pos, pos, ign}, {neg, neg, pos}}
	preds := [][]int{{0, 1, 1}, {0, 1, 0}, {0, 0, 1}}
	a, err := Evaluate(gold, preds)
	require.NoError(t, err)

	reversedGold := [][]labels.Label{gold[2], gold[1], gold[0]}
	reversedPreds := [][]int{preds[2], preds[1], preds[0]}
	b, err := Evaluate(reversedGold, reversedPreds)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_ShapeErrors(t *testing.T) {
	_, err := Evaluate([][]labels.Label{{pos}}, nil)
	assert.Error(t, err)
	_, err = Evaluate([][]labels.Label{{pos, neg}}, [][]int{{1}})
	assert.Error(t, err)
	_, err = Evaluate([][]labels.Label{{pos}}, [][]int{{2}})
	assert.Error(t, err)
}

func TestAccumulator(t *testing.T) {
	gold := [][]labels.Label{{ign, pos, neg}, {pos, pos, ign}, {neg, neg, pos}}
	preds := [][]int{{0, 1, 1}, {0, 1, 0}, {0, 0, 1}}
	whole, err := Evaluate(gold, preds)
	require.NoError(t, err)

	var acc Accumulator
	require.NoError(t, acc.Add(gold[:1], preds[:1]))
	require.NoError(t, acc.Add(gold[1:], preds[1:]))
	assert.Error(t, acc.Add([][]labels.Label{{pos}}, [][]int{{7}}))
	assert.Equal(t, whole, acc.Scores())
}
