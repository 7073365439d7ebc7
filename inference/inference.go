// Package inference turns token classification outputs back into highlighted text.
//
// There are two reconstruction paths, and they are kept separate:
//
//   - HighlightedTokens works on subwords: every positive non-special position contributes its
//     token text with the continuation marker stripped. A word split in several positive
//     subwords shows up as several entries, and the same text may appear more than once.
//   - HighlightedWords works on words: a word is highlighted if any of its subwords is positive,
//     and each highlighted word appears once.
package inference

import (
	"context"
	"sort"
	"strings"

	"github.com/autohighlight/autohighlight/labels"
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
)

// Continuation and word-start markers removed by HighlightedTokens.
const (
	WordPieceContinuation = "##"
	MetaspaceMarker       = "▁"
	ByteLevelSpaceMarker  = "Ġ"
)

// DefaultMarkers are stripped from tokens of tokenizers that don't report their own markers.
var DefaultMarkers = []string{WordPieceContinuation, MetaspaceMarker, ByteLevelSpaceMarker}

// MarkersOf returns the subword markers of tok, or DefaultMarkers if it doesn't implement
// api.MarkedTokenizer.
func MarkersOf(tok api.Tokenizer) []string {
	if m, ok := tok.(api.MarkedTokenizer); ok {
		return m.SubwordMarkers()
	}
	return DefaultMarkers
}

// Argmax returns, for each position, the index of the largest logit. Ties resolve to the lowest
// index. A position with no logits gets class 0.
func Argmax(logits [][]float32) []int {
	preds := make([]int, len(logits))
	for pos, row := range logits {
		best := 0
		for class := 1; class < len(row); class++ {
			if row[class] > row[best] {
				best = class
			}
		}
		preds[pos] = best
	}
	return preds
}

// StripMarkers removes the given subword markers from the start of a token's text.
func StripMarkers(token string, markers []string) string {
	for _, m := range markers {
		token = strings.TrimPrefix(token, m)
	}
	return token
}

func checkLen(enc *api.Encoding, preds []int) error {
	if enc.Len() != len(preds) {
		return errors.Errorf("encoding has %d positions but there are %d predictions", enc.Len(), len(preds))
	}
	return nil
}

// HighlightedTokens returns, in position order, the text of every non-special position predicted
// Positive, stripped of DefaultMarkers.
func HighlightedTokens(enc *api.Encoding, preds []int) ([]string, error) {
	return highlightedTokens(enc, preds, DefaultMarkers)
}

// HighlightedTokensOf is HighlightedTokens stripping the markers of the tokenizer that produced
// enc.
func HighlightedTokensOf(tok api.Tokenizer, enc *api.Encoding, preds []int) ([]string, error) {
	return highlightedTokens(enc, preds, MarkersOf(tok))
}

func highlightedTokens(enc *api.Encoding, preds []int, markers []string) ([]string, error) {
	if err := checkLen(enc, preds); err != nil {
		return nil, err
	}
	var out []string
	for pos, pred := range preds {
		if enc.Special[pos] {
			continue
		}
		label, err := labels.FromClass(pred)
		if err != nil {
			return nil, errors.WithMessagef(err, "position %d", pos)
		}
		if label != labels.Positive {
			continue
		}
		if text := StripMarkers(enc.Tokens[pos], markers); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// HighlightedWords returns the indices of the words with at least one position predicted
// Positive, in increasing order and without repetition.
func HighlightedWords(enc *api.Encoding, preds []int) ([]int, error) {
	if err := checkLen(enc, preds); err != nil {
		return nil, err
	}
	var out []int
	seen := make(map[int]bool)
	for pos, pred := range preds {
		wordID := enc.WordIDs[pos]
		if wordID == api.NoWord || seen[wordID] {
			continue
		}
		label, err := labels.FromClass(pred)
		if err != nil {
			return nil, errors.WithMessagef(err, "position %d", pos)
		}
		if label == labels.Positive {
			seen[wordID] = true
			out = append(out, wordID)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Runner executes a token classification model over one encoding, returning the logits of each
// position, shaped [positions][classes].
type Runner interface {
	Run(ctx context.Context, enc *api.Encoding) ([][]float32, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, enc *api.Encoding) ([][]float32, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, enc *api.Encoding) ([][]float32, error) {
	return f(ctx, enc)
}

// Result of highlighting one text.
type Result struct {
	Words       []string
	Encoding    *api.Encoding
	Logits      [][]float32
	Predictions []int

	// Tokens is the subword path (HighlightedTokens).
	Tokens []string

	// WordIndices is the word path (HighlightedWords).
	WordIndices []int
}

// HighlightedWordTexts returns the words selected by WordIndices.
func (r *Result) HighlightedWordTexts() []string {
	out := make([]string, 0, len(r.WordIndices))
	for _, idx := range r.WordIndices {
		out = append(out, r.Words[idx])
	}
	return out
}

// Highlighter runs a model over free text and reconstructs the highlights.
type Highlighter struct {
	Tokenizer api.WordTokenizer
	Runner    Runner
}

// Highlight splits text into words, encodes them, runs the model and reconstructs both
// highlight paths. Tokenizer and Runner errors are returned unchanged.
func (h *Highlighter) Highlight(ctx context.Context, text string) (*Result, error) {
	words := labels.SplitWords(text)
	enc, err := h.Tokenizer.EncodeWords(words)
	if err != nil {
		return nil, err
	}
	logits, err := h.Runner.Run(ctx, enc)
	if err != nil {
		return nil, err
	}
	if len(logits) != enc.Len() {
		return nil, errors.Errorf("model returned logits for %d positions, encoding has %d", len(logits), enc.Len())
	}
	res := &Result{Words: words, Encoding: enc, Logits: logits, Predictions: Argmax(logits)}
	if res.Tokens, err = HighlightedTokensOf(h.Tokenizer, enc, res.Predictions); err != nil {
		return nil, err
	}
	if res.WordIndices, err = HighlightedWords(enc, res.Predictions); err != nil {
		return nil, err
	}
	return res, nil
}
