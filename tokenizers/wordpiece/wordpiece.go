// Package wordpiece implements a BERT (uncased) WordPiece tokenizer from a plain vocab.txt,
// backed by github.com/sugarme/tokenizer.
//
// It is the fallback for model directories exported without a tokenizer.json.
package wordpiece

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// FileName is the conventional name of the vocabulary file in a model directory.
const FileName = "vocab.txt"

const continuationPrefix = "##"

// Tokenizer wraps a sugarme WordPiece tokenizer.
type Tokenizer struct {
	t         *tk.Tokenizer
	config    *api.Config
	vocab     map[string]int
	idToToken map[int]string
}

// Compile time assert that Tokenizer implements api.WordTokenizer interface.
var (
	_ api.WordTokenizer   = &Tokenizer{}
	_ api.MarkedTokenizer = &Tokenizer{}
)

// New loads dir/vocab.txt (or the file itself if dir points to one) and builds a BERT WordPiece
// tokenizer.
func New(config *api.Config, dir string) (*Tokenizer, error) {
	vocabPath := dir
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		vocabPath = filepath.Join(dir, FileName)
	}
	vocab, err := readVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	unk := "[UNK]"
	if config != nil && config.UnkToken != "" {
		unk = config.UnkToken
	}
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, unk)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build WordPiece model from %q", vocabPath)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	idToToken := make(map[int]string, len(vocab))
	for token, id := range vocab {
		idToToken[id] = token
	}
	return &Tokenizer{t: t, config: config, vocab: vocab, idToToken: idToToken}, nil
}

// readVocab maps each token of a vocab.txt file to its line number.
func readVocab(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary %q", path)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for idx := 0; scanner.Scan(); idx++ {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary %q", path)
	}
	if len(vocab) == 0 {
		return nil, errors.Errorf("vocabulary %q is empty", path)
	}
	return vocab, nil
}

// Encode returns the ids of text without special tokens.
func (s *Tokenizer) Encode(text string) []int {
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil
	}
	return enc.GetIds()
}

// EncodeWords implements api.WordTokenizer: [CLS] word pieces... [SEP], truncated and padded
// as configured.
func (s *Tokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	enc := &api.Encoding{}
	addSpecial := s.config == nil || !s.config.SkipSpecialTokens
	if addSpecial {
		if err := s.appendSpecial(enc, s.token("[CLS]", s.clsToken())); err != nil {
			return nil, err
		}
	}
	for wordIdx, word := range words {
		wordEnc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(word)), false)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode word %d (%q)", wordIdx, word)
		}
		ids, tokens := wordEnc.GetIds(), wordEnc.GetTokens()
		for i, id := range ids {
			token := ""
			if i < len(tokens) {
				token = tokens[i]
			}
			enc.Append(id, token, wordIdx, false)
		}
	}
	if addSpecial {
		if err := s.appendSpecial(enc, s.token("[SEP]", s.sepToken())); err != nil {
			return nil, err
		}
	}
	api.Finish(enc, s.config, s)
	return enc, nil
}

func (s *Tokenizer) appendSpecial(enc *api.Encoding, token string) error {
	id, ok := s.vocab[token]
	if !ok {
		return errors.Errorf("special token %q is not in the vocabulary", token)
	}
	enc.Append(id, token, api.NoWord, true)
	return nil
}

func (s *Tokenizer) token(fallback, configured string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func (s *Tokenizer) clsToken() string {
	if s.config == nil {
		return ""
	}
	return s.config.ClsToken
}

func (s *Tokenizer) sepToken() string {
	if s.config == nil {
		return ""
	}
	return s.config.SepToken
}

// Decode joins the tokens of ids, gluing "##" continuations to the previous piece.
func (s *Tokenizer) Decode(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		token, ok := s.idToToken[id]
		if !ok {
			continue
		}
		if strings.HasPrefix(token, continuationPrefix) {
			b.WriteString(strings.TrimPrefix(token, continuationPrefix))
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}
	return b.String()
}

// SubwordMarkers implements api.MarkedTokenizer.
func (s *Tokenizer) SubwordMarkers() []string {
	return []string{continuationPrefix}
}

// SpecialTokenID returns the BERT special token ids found in the vocabulary.
func (s *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var name string
	switch token {
	case api.TokUnknown:
		name = "[UNK]"
	case api.TokPad:
		name = "[PAD]"
	case api.TokBeginningOfSentence, api.TokClassification:
		name = s.token("[CLS]", s.clsToken())
	case api.TokEndOfSentence:
		name = s.token("[SEP]", s.sepToken())
	case api.TokMask:
		name = "[MASK]"
	}
	if id, ok := s.vocab[name]; ok && name != "" {
		return id, nil
	}
	return 0, errors.Errorf("special token %s not found", token)
}
