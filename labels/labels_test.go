package labels

import (
	"testing"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const none = api.NoWord

// fakeTokenizer splits every word into a fixed number of pieces and wraps the result in
// [CLS]/[SEP].
type fakeTokenizer struct {
	pieces map[string]int
	err    error
	config *api.Config
}

func (f *fakeTokenizer) Encode(text string) []int { return nil }
func (f *fakeTokenizer) Decode([]int) string      { return "" }
func (f *fakeTokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	if token == api.TokPad {
		return 0, nil
	}
	return 0, errors.New("no such token")
}

func (f *fakeTokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	if f.err != nil {
		return nil, f.err
	}
	enc := &api.Encoding{}
	enc.Append(101, "[CLS]", none, true)
	for i, w := range words {
		n := f.pieces[w]
		if n == 0 {
			n = 1
		}
		for p := 0; p < n; p++ {
			token := w
			if p > 0 {
				token = "##" + w
			}
			enc.Append(1000+i, token, i, false)
		}
	}
	enc.Append(102, "[SEP]", none, true)
	api.Finish(enc, f.config, f)
	return enc, nil
}

func TestWordLabels(t *testing.T) {
	got, dropped := WordLabels([]string{"a", "b", "c"}, NewHighlightSet(1))
	assert.Equal(t, []Label{Negative, Positive, Negative}, got)
	assert.Empty(t, dropped)
}

func TestWordLabels_LengthAndMembership(t *testing.T) {
	words := SplitWords("the quick  brown\tfox jumps")
	set := NewHighlightSet(0, 3, 3, 7, -1)
	got, dropped := WordLabels(words, set)
	require.Len(t, got, len(words))
	for i, l := range got {
		if set.Contains(i) {
			assert.Equal(t, Positive, l, "word %d", i)
		} else {
			assert.Equal(t, Negative, l, "word %d", i)
		}
	}
	assert.Equal(t, []int{-1, 7}, dropped)
}

func TestAlignSubwords(t *testing.T) {
	got, err := AlignSubwords([]int{none, 0, 0, 1, none}, []Label{Positive, Negative})
	require.NoError(t, err)
	assert.Equal(t, []Label{Ignored, Positive, Positive, Negative, Ignored}, got)
}

func TestAlignSubwords_UnknownWord(t *testing.T) {
	_, err := AlignSubwords([]int{none, 0, 2}, []Label{Positive, Negative})
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	tok := &fakeTokenizer{pieces: map[string]int{"janitorial": 3}}
	ex, err := Align("r1", []string{"the", "janitorial", "staff"}, NewHighlightSet(1, 9), tok)
	require.NoError(t, err)

	assert.Equal(t, "r1", ex.RowID)
	assert.Equal(t, []int{9}, ex.Dropped)
	assert.Equal(t, []Label{Ignored, Negative, Positive, Positive, Positive, Negative, Ignored}, ex.Labels)
	assert.Equal(t, []int64{IgnoreIndex, 0, 1, 1, 1, 0, IgnoreIndex}, ex.TrainingLabels())
	assert.Len(t, ex.Labels, ex.Encoding.Len())
}

func TestAlign_TruncationAndPadding(t *testing.T) {
	tok := &fakeTokenizer{
		pieces: map[string]int{"janitorial": 3},
		config: &api.Config{MaxLength: 4},
	}
	// Seven positions cut to four: the closing [SEP] is kept and "staff" is fully truncated.
	ex, err := Align("r1", []string{"the", "janitorial", "staff"}, NewHighlightSet(1, 2), tok)
	require.NoError(t, err)
	assert.Equal(t, []Label{Ignored, Negative, Positive, Ignored}, ex.Labels)

	tok.config = &api.Config{MaxLength: 8, PadToMaxLength: true}
	ex, err = Align("r1", []string{"cat"}, NewHighlightSet(0), tok)
	require.NoError(t, err)
	assert.Equal(t, []Label{Ignored, Positive, Ignored, Ignored, Ignored, Ignored, Ignored, Ignored}, ex.Labels)
}

func TestAlign_TokenizerErrorPropagates(t *testing.T) {
	boom := errors.New("tokenizer exploded")
	_, err := Align("r1", []string{"a"}, nil, &fakeTokenizer{err: boom})
	assert.Equal(t, boom, err)
}

func TestLabelClass(t *testing.T) {
	c, ok := Positive.Class()
	assert.True(t, ok)
	assert.Equal(t, 1, c)
	_, ok = Ignored.Class()
	assert.False(t, ok)
	assert.True(t, Ignored.IsIgnored())
	assert.Equal(t, "positive", Positive.String())

	l, err := FromClass(0)
	require.NoError(t, err)
	assert.Equal(t, Negative, l)
	_, err = FromClass(2)
	assert.Error(t, err)
}
