// Package sentencepiece implements a tokenizers.Tokenizer based on SentencePiece tokenizer.
package sentencepiece

import (
	"os"
	"path/filepath"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/pkg/errors"
)

// FileName is the conventional name of the SentencePiece model in a model directory.
const FileName = "tokenizer.model"

// Metaspace is the marker SentencePiece puts at the start of every word-initial piece.
const Metaspace = "▁"

// New creates a SentencePiece tokenizer from a model directory holding a "tokenizer.model" file,
// which must be a SentencePiece Model proto.
func New(config *api.Config, dir string) (*Tokenizer, error) {
	tokenizerFile := filepath.Join(dir, FileName)
	if _, err := os.Stat(tokenizerFile); err != nil {
		return nil, errors.Wrapf(err, "%q file not found in %q", FileName, dir)
	}
	proc, err := esentencepiece.NewProcessorFromPath(tokenizerFile)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", tokenizerFile)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
		config:    config,
	}, nil
}

// Tokenizer implements tokenizers.Tokenizer interface based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info   *esentencepiece.ModelInfo
	config *api.Config
}

// Compile time assert that sentencepiece.Tokenizer implements api.WordTokenizer interface.
var (
	_ api.WordTokenizer   = &Tokenizer{}
	_ api.MarkedTokenizer = &Tokenizer{}
)

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// EncodeWords implements api.WordTokenizer.
//
// Every word is encoded on its own, which gives the same pieces as in running text since
// SentencePiece marks each word start with Metaspace. The end-of-sentence token is appended
// (T5 style); the beginning-of-sentence token is only prepended when Config.BosToken is set
// (Llama style).
func (p *Tokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	enc := &api.Encoding{}
	addSpecial := p.config == nil || !p.config.SkipSpecialTokens
	if addSpecial && p.config != nil && p.config.BosToken != "" && p.Info.BeginningOfSentenceID >= 0 {
		enc.Append(p.Info.BeginningOfSentenceID, p.config.BosToken, api.NoWord, true)
	}
	for wordIdx, word := range words {
		for _, tok := range p.Processor.Encode(word) {
			enc.Append(tok.ID, tok.Text, wordIdx, false)
		}
	}
	if addSpecial && p.Info.EndOfSentenceID >= 0 {
		eos := "</s>"
		if p.config != nil && p.config.EosToken != "" {
			eos = p.config.EosToken
		}
		enc.Append(p.Info.EndOfSentenceID, eos, api.NoWord, true)
	}
	api.Finish(enc, p.config, p)
	return enc, nil
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SubwordMarkers implements api.MarkedTokenizer. SentencePiece marks word starts rather than
// continuations.
func (p *Tokenizer) SubwordMarkers() []string {
	return []string{Metaspace}
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	id := -1
	switch token {
	case api.TokUnknown:
		id = p.Info.UnknownID
	case api.TokPad:
		id = p.Info.PadID
	case api.TokBeginningOfSentence:
		id = p.Info.BeginningOfSentenceID
	case api.TokEndOfSentence:
		id = p.Info.EndOfSentenceID
	}
	if id < 0 {
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	return id, nil
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
