package inference

import (
	"context"
	"testing"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encoding of "playing cat": [CLS] play ##ing cat [SEP] [PAD]
func testEncoding() *api.Encoding {
	enc := &api.Encoding{}
	enc.Append(101, "[CLS]", api.NoWord, true)
	enc.Append(7, "play", 0, false)
	enc.Append(8, "##ing", 0, false)
	enc.Append(9, "cat", 1, false)
	enc.Append(102, "[SEP]", api.NoWord, true)
	api.Pad(enc, 6, 0, "[PAD]")
	return enc
}

func TestArgmax(t *testing.T) {
	got := Argmax([][]float32{
		{0.1, 0.9},
		{2, -1},
		{0.5, 0.5},
		{},
		{1, 3, 2},
	})
	assert.Equal(t, []int{1, 0, 0, 0, 1}, got)
}

func TestStripMarkers(t *testing.T) {
	for token, want := range map[string]string{
		"##ing": "ing",
		"▁cat":  "cat",
		"Ġdog":  "dog",
		"plain": "plain",
		"##":    "",
	} {
		assert.Equal(t, want, StripMarkers(token, DefaultMarkers), token)
	}
	assert.Equal(t, "##ing", StripMarkers("##ing", []string{"▁"}))
}

func TestMarkersOf(t *testing.T) {
	assert.Equal(t, DefaultMarkers, MarkersOf(&stubTokenizer{}))
	assert.Equal(t, []string{"@@"}, MarkersOf(&markedTokenizer{markers: []string{"@@"}}))
}

func TestHighlightedTokensOf(t *testing.T) {
	enc := &api.Encoding{}
	enc.Append(1, "play", 0, false)
	enc.Append(2, "@@ing", 0, false)
	enc.Append(3, "##tag", 1, false)
	tok := &markedTokenizer{markers: []string{"@@"}}

	got, err := HighlightedTokensOf(tok, enc, []int{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"play", "ing", "##tag"}, got)

	got, err = HighlightedTokens(enc, []int{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"play", "@@ing", "tag"}, got)
}

func TestHighlightedTokens(t *testing.T) {
	enc := testEncoding()
	got, err := HighlightedTokens(enc, []int{1, 1, 1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"play", "ing"}, got)

	got, err = HighlightedTokens(enc, []int{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = HighlightedTokens(enc, []int{0, 1})
	assert.Error(t, err)
	_, err = HighlightedTokens(enc, []int{0, 3, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestHighlightedTokens_Duplicates(t *testing.T) {
	enc := &api.Encoding{}
	enc.Append(1, "▁the", 0, false)
	enc.Append(2, "▁cat", 1, false)
	enc.Append(1, "▁the", 2, false)
	got, err := HighlightedTokens(enc, []int{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "the"}, got)
}

func TestHighlightedWords(t *testing.T) {
	enc := testEncoding()
	got, err := HighlightedWords(enc, []int{1, 0, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got)

	got, err = HighlightedWords(enc, []int{0, 0, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
}

func TestHighlighter(t *testing.T) {
	tok := &stubTokenizer{enc: testEncoding()}
	runner := RunnerFunc(func(_ context.Context, enc *api.Encoding) ([][]float32, error) {
		logits := make([][]float32, enc.Len())
		for pos := range logits {
			logits[pos] = []float32{1, 0}
		}
		logits[2] = []float32{0, 1}
		return logits, nil
	})
	h := &Highlighter{Tokenizer: tok, Runner: runner}
	res, err := h.Highlight(context.Background(), "playing cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"playing", "cat"}, tok.words)
	assert.Equal(t, []int{0, 0, 1, 0, 0, 0}, res.Predictions)
	assert.Equal(t, []string{"ing"}, res.Tokens)
	assert.Equal(t, []int{0}, res.WordIndices)
	assert.Equal(t, []string{"playing"}, res.HighlightedWordTexts())
}

func TestHighlighter_TokenizerMarkers(t *testing.T) {
	enc := &api.Encoding{}
	enc.Append(1, "▁play", 0, false)
	enc.Append(2, "ing", 0, false)
	enc.Append(3, "▁##cat", 1, false)
	tok := &markedTokenizer{stubTokenizer: stubTokenizer{enc: enc}, markers: []string{"▁"}}
	runner := RunnerFunc(func(_ context.Context, enc *api.Encoding) ([][]float32, error) {
		return [][]float32{{0, 1}, {1, 0}, {0, 1}}, nil
	})
	res, err := (&Highlighter{Tokenizer: tok, Runner: runner}).Highlight(context.Background(), "playing ##cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"play", "##cat"}, res.Tokens)
}

func TestHighlighter_Errors(t *testing.T) {
	modelErr := errors.New("model crashed")
	h := &Highlighter{
		Tokenizer: &stubTokenizer{enc: testEncoding()},
		Runner: RunnerFunc(func(context.Context, *api.Encoding) ([][]float32, error) {
			return nil, modelErr
		}),
	}
	_, err := h.Highlight(context.Background(), "playing cat")
	assert.Equal(t, modelErr, err)

	tokErr := errors.New("tokenizer failed")
	h.Tokenizer = &stubTokenizer{err: tokErr}
	_, err = h.Highlight(context.Background(), "playing cat")
	assert.Equal(t, tokErr, err)

	h.Tokenizer = &stubTokenizer{enc: testEncoding()}
	h.Runner = RunnerFunc(func(context.Context, *api.Encoding) ([][]float32, error) {
		return [][]float32{{0, 1}}, nil
	})
	_, err = h.Highlight(context.Background(), "playing cat")
	assert.Error(t, err)
}

type stubTokenizer struct {
	enc   *api.Encoding
	err   error
	words []string
}

func (s *stubTokenizer) Encode(string) []int { return nil }
func (s *stubTokenizer) Decode([]int) string { return "" }
func (s *stubTokenizer) SpecialTokenID(api.SpecialToken) (int, error) {
	return 0, errors.New("none")
}

func (s *stubTokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	s.words = words
	if s.err != nil {
		return nil, s.err
	}
	return s.enc, nil
}

type markedTokenizer struct {
	stubTokenizer
	markers []string
}

func (m *markedTokenizer) SubwordMarkers() []string { return m.markers }
