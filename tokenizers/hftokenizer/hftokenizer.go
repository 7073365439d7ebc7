// Package hftokenizer implements a tokenizer for HuggingFace's tokenizer.json format.
// This format is used by the HuggingFace Tokenizers library (the "fast" tokenizers)
// and supports WordPiece (BERT), BPE (GPT-2, RoBERTa), and Unigram models.
//
// Besides plain text encoding it implements api.WordTokenizer: encoding of words that were
// already split on whitespace, keeping track of which word each subword comes from.
package hftokenizer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FileName is the conventional name of the tokenizer file in a model directory.
const FileName = "tokenizer.json"

// TokenizerJSON represents the structure of HuggingFace's tokenizer.json file.
type TokenizerJSON struct {
	Version       string          `json:"version"`
	Truncation    json.RawMessage `json:"truncation"`
	Padding       json.RawMessage `json:"padding"`
	AddedTokens   []AddedToken    `json:"added_tokens"`
	Normalizer    *Normalizer     `json:"normalizer"`
	PreTokenizer  *PreTokenizer   `json:"pre_tokenizer"`
	PostProcessor *PostProcessor  `json:"post_processor"`
	Decoder       *Decoder        `json:"decoder"`
	Model         Model           `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type        string       `json:"type"`
	Lowercase   bool         `json:"lowercase"`
	Normalizers []Normalizer `json:"normalizers"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type           string         `json:"type"`
	AddPrefixSpace bool           `json:"add_prefix_space"`
	PreTokenizers  []PreTokenizer `json:"pretokenizers"`
}

// PostProcessor represents the post-processor configuration. Only its presence and type are
// used: any post-processor means "wrap the sequence in the begin/end special tokens".
type PostProcessor struct {
	Type string `json:"type"`
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type   string `json:"type"`
	Prefix string `json:"prefix"`
}

// Model represents the tokenizer model (WordPiece, BPE, or Unigram).
type Model struct {
	Type                    string   `json:"type"`
	Vocab                   Vocab    `json:"vocab"`
	Merges                  []string `json:"merges"`
	UnkToken                string   `json:"unk_token"`
	UnkID                   *int     `json:"unk_id"`
	ContinuingSubwordPrefix string   `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int      `json:"max_input_chars_per_word"`
	EndOfWordSuffix         string   `json:"end_of_word_suffix"`
}

// Vocab maps tokens to ids. WordPiece and BPE models store it as an object; Unigram models as a
// list of [token, score] pairs, where the id of a token is its position.
type Vocab map[string]int

// UnmarshalJSON accepts both vocabulary layouts.
func (v *Vocab) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err == nil {
		*v = m
		return nil
	}
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return errors.Wrap(err, "vocab is neither an object nor a list of [token, score] pairs")
	}
	m = make(map[string]int, len(pairs))
	for i, pair := range pairs {
		if len(pair) == 0 {
			return errors.Errorf("vocab entry %d is empty", i)
		}
		var token string
		if err := json.Unmarshal(pair[0], &token); err != nil {
			return errors.Wrapf(err, "vocab entry %d", i)
		}
		m[token] = i
	}
	*v = m
	return nil
}

// Tokenizer implements the api.WordTokenizer interface for HuggingFace tokenizer.json files.
type Tokenizer struct {
	config     *api.Config
	tokenizer  *TokenizerJSON
	idToToken  map[int]string
	mergeRanks map[string]int // For BPE: maps "token1 token2" to merge priority

	// Special token IDs, -1 if not present.
	unkID  int
	padID  int
	bosID  int
	eosID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id)
	addedTokens map[string]int
}

// Compile time assert that Tokenizer implements the api.WordTokenizer and api.MarkedTokenizer
// interfaces.
var (
	_ api.WordTokenizer   = &Tokenizer{}
	_ api.MarkedTokenizer = &Tokenizer{}
)

// New creates a HuggingFace tokenizer from a model directory containing tokenizer.json.
// If the directory also has a tokenizer_config.json, it fills the special tokens of config that
// are not set.
func New(config *api.Config, dir string) (*Tokenizer, error) {
	tokenizerFile := filepath.Join(dir, FileName)
	if _, err := os.Stat(tokenizerFile); err != nil {
		return nil, errors.Wrapf(err, "%q file not found in %q", FileName, dir)
	}
	if config == nil {
		config = &api.Config{}
	}
	if content, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json")); err == nil {
		var fileConfig api.Config
		if err := json.Unmarshal(content, &fileConfig); err != nil {
			return nil, errors.Wrapf(err, "failed to parse tokenizer_config.json in %q", dir)
		}
		config = mergeConfig(config, &fileConfig)
	}
	return NewFromFile(config, tokenizerFile)
}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}

	t := &Tokenizer{
		config:      config,
		tokenizer:   &tj,
		idToToken:   make(map[int]string),
		addedTokens: make(map[string]int),
		unkID:       -1,
		padID:       -1,
		bosID:       -1,
		eosID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}

	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
		t.idToToken[at.ID] = at.Content
	}
	if tj.Model.Type == "BPE" {
		t.mergeRanks = make(map[string]int, len(tj.Model.Merges))
		for i, merge := range tj.Model.Merges {
			t.mergeRanks[merge] = i
		}
	}

	t.resolveSpecialTokens()
	return t, nil
}

// mergeConfig returns a copy of base with empty special tokens taken from file.
func mergeConfig(base, file *api.Config) *api.Config {
	merged := *base
	pick := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	pick(&merged.BosToken, file.BosToken)
	pick(&merged.EosToken, file.EosToken)
	pick(&merged.UnkToken, file.UnkToken)
	pick(&merged.PadToken, file.PadToken)
	pick(&merged.ClsToken, file.ClsToken)
	pick(&merged.SepToken, file.SepToken)
	pick(&merged.MaskToken, file.MaskToken)
	return &merged
}

// resolveSpecialTokens maps special tokens from the model, the added tokens and the config to
// their IDs, in that order of precedence.
func (t *Tokenizer) resolveSpecialTokens() {
	if t.tokenizer.Model.UnkToken != "" {
		if id, ok := t.tokenizer.Model.Vocab[t.tokenizer.Model.UnkToken]; ok {
			t.unkID = id
		}
	}
	if id := t.tokenizer.Model.UnkID; id != nil {
		if _, ok := t.idToToken[*id]; ok {
			t.unkID = *id
		}
	}

	for _, at := range t.tokenizer.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]", "<unk>":
			t.unkID = at.ID
		case "[PAD]", "<pad>":
			t.padID = at.ID
		case "[CLS]", "<s>":
			t.clsID = at.ID
		case "[SEP]", "</s>":
			t.sepID = at.ID
		case "[MASK]", "<mask>":
			t.maskID = at.ID
		}
		if t.config != nil {
			if at.Content == t.config.BosToken {
				t.bosID = at.ID
			}
			if at.Content == t.config.EosToken {
				t.eosID = at.ID
			}
		}
	}

	if t.config == nil {
		return
	}
	fallback := func(id *int, token string) {
		if *id != -1 || token == "" {
			return
		}
		if v, ok := t.TokenToID(token); ok {
			*id = v
		}
	}
	fallback(&t.unkID, t.config.UnkToken)
	fallback(&t.padID, t.config.PadToken)
	fallback(&t.clsID, t.config.ClsToken)
	fallback(&t.sepID, t.config.SepToken)
	fallback(&t.maskID, t.config.MaskToken)
	fallback(&t.bosID, t.config.BosToken)
	fallback(&t.eosID, t.config.EosToken)
}

// Encode converts text to a sequence of token IDs. No special tokens are added.
func (t *Tokenizer) Encode(text string) []int {
	var ids []int
	for _, word := range t.preTokenize(t.normalize(text)) {
		ids = append(ids, t.tokenizeWord(word)...)
	}
	return ids
}

// EncodeWords implements api.WordTokenizer.
//
// Each word is normalized and pre-tokenized on its own, so the pre-tokenizer may split it
// further (e.g. on punctuation), but every resulting subword is attributed to the word.
// A word that yields no token at all (no vocabulary entry and no unknown token) is logged: it
// owns no position, so it can't carry a label.
func (t *Tokenizer) EncodeWords(words []string) (*api.Encoding, error) {
	enc := &api.Encoding{}
	beginID, endID := t.boundaryTokens()
	if beginID >= 0 {
		enc.Append(beginID, t.idToToken[beginID], api.NoWord, true)
	}

	prefixSpace := t.wantsPrefixSpace()
	for wordIdx, word := range words {
		text := word
		if wordIdx > 0 && prefixSpace {
			text = " " + word
		}
		pieces := t.preTokenize(t.normalize(text))
		start := enc.Len()
		for _, piece := range pieces {
			for _, id := range t.tokenizeWord(piece) {
				token, ok := t.idToToken[id]
				if !ok {
					return nil, errors.Errorf("token id %d produced for word %d (%q) is not in the vocabulary", id, wordIdx, word)
				}
				enc.Append(id, token, wordIdx, false)
			}
		}
		if enc.Len() == start && len(pieces) > 0 {
			klog.Warningf("Word %d (%q) has no token in the vocabulary and there is no unknown token: it gets no subword", wordIdx, word)
		}
	}

	if endID >= 0 {
		enc.Append(endID, t.idToToken[endID], api.NoWord, true)
	}
	api.Finish(enc, t.config, t)
	return enc, nil
}

// boundaryTokens returns the ids of the tokens wrapping a sequence, -1 when none applies.
// BERT-style models (WordPiece) always get [CLS] ... [SEP]; other models only if the
// tokenizer.json declares a post-processor.
func (t *Tokenizer) boundaryTokens() (begin, end int) {
	if t.config != nil && t.config.SkipSpecialTokens {
		return -1, -1
	}
	if t.tokenizer.PostProcessor == nil && t.tokenizer.Model.Type != "WordPiece" {
		return -1, -1
	}
	begin, end = t.clsID, t.sepID
	if begin < 0 {
		begin = t.bosID
	}
	if end < 0 {
		end = t.eosID
	}
	return begin, end
}

// wantsPrefixSpace reports whether words after the first need a leading space to be encoded
// as they would be inside running text (byte-level BPE marks word starts with "Ġ"). The first
// word gets one only from the pre-tokenizer's add_prefix_space, as in running text.
func (t *Tokenizer) wantsPrefixSpace() bool {
	return findPreTokenizer(t.tokenizer.PreTokenizer, "ByteLevel") != nil
}

// findPreTokenizer returns the pre-tokenizer of the given type, looking into sequences.
func findPreTokenizer(pt *PreTokenizer, typ string) *PreTokenizer {
	if pt == nil {
		return nil
	}
	if pt.Type == typ {
		return pt
	}
	for i := range pt.PreTokenizers {
		if found := findPreTokenizer(&pt.PreTokenizers[i], typ); found != nil {
			return found
		}
	}
	return nil
}

// ContinuationPrefix returns the marker the model puts in front of word-internal subwords.
func (t *Tokenizer) ContinuationPrefix() string {
	if p := t.tokenizer.Model.ContinuingSubwordPrefix; p != "" {
		return p
	}
	if t.tokenizer.Model.Type == "WordPiece" {
		return "##"
	}
	return ""
}

// SubwordMarkers implements api.MarkedTokenizer: the continuation prefix of the model plus the
// word start marker of a byte-level or metaspace pre-tokenizer.
func (t *Tokenizer) SubwordMarkers() []string {
	var markers []string
	if p := t.ContinuationPrefix(); p != "" {
		markers = append(markers, p)
	}
	if findPreTokenizer(t.tokenizer.PreTokenizer, "ByteLevel") != nil {
		markers = append(markers, string(byteToUnicode[' ']))
	}
	if findPreTokenizer(t.tokenizer.PreTokenizer, "Metaspace") != nil {
		markers = append(markers, metaspace)
	}
	return markers
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	id := -1
	switch token {
	case api.TokUnknown:
		id = t.unkID
	case api.TokPad:
		id = t.padID
	case api.TokBeginningOfSentence:
		// Fall back to CLS for BERT-style models
		id = t.bosID
		if id < 0 {
			id = t.clsID
		}
	case api.TokEndOfSentence:
		// Fall back to SEP for BERT-style models
		id = t.eosID
		if id < 0 {
			id = t.sepID
		}
	case api.TokMask:
		id = t.maskID
	case api.TokClassification:
		id = t.clsID
	}
	if id < 0 {
		return 0, errors.Errorf("special token %s not found", token)
	}
	return id, nil
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.tokenizer.Model.Vocab[token]
	return id, ok
}
