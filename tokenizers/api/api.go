// Package api defines the Tokenizer API.
//
// It's kept separate from the implementations to break the cyclic dependency, and to allow the
// users to import `tokenizers` and get the default implementations.
package api

import "fmt"

// NoWord marks a subword position that is not owned by any input word: special tokens
// ([CLS], [SEP], <s>, ...) and padding.
const NoWord = -1

// Tokenizer interface allows one convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// WordTokenizer extends Tokenizer with encoding of pre-split words, keeping track of which word
// owns each subword. This is what token classification needs to move word-level labels onto
// subword positions.
type WordTokenizer interface {
	Tokenizer

	// EncodeWords segments each word into subwords, adds the special tokens, then truncates and
	// pads according to the tokenizer's Config.
	EncodeWords(words []string) (*Encoding, error)
}

// MarkedTokenizer is implemented by tokenizers whose token strings carry subword markers, like
// the "##" of WordPiece continuations or the "▁" and "Ġ" word starts of SentencePiece and
// byte-level BPE.
type MarkedTokenizer interface {
	// SubwordMarkers returns the prefixes to remove from a token string to get its text.
	SubwordMarkers() []string
}

// Encoding is the result of WordTokenizer.EncodeWords. All slices have the same length.
type Encoding struct {
	IDs    []int
	Tokens []string

	// WordIDs holds, for each position, the index of the word in the input that produced it,
	// or NoWord.
	WordIDs []int

	// Special is true for special and padding positions.
	Special []bool

	// AttentionMask is 1 for real tokens (including special ones) and 0 for padding.
	AttentionMask []int
}

// Len returns the number of positions in the encoding.
func (e *Encoding) Len() int {
	return len(e.IDs)
}

// Unpadded returns the number of positions before the padding added by Pad.
func (e *Encoding) Unpadded() int {
	n := len(e.AttentionMask)
	for n > 0 && e.AttentionMask[n-1] == 0 {
		n--
	}
	return n
}

// Append adds one position.
func (e *Encoding) Append(id int, token string, wordID int, special bool) {
	e.IDs = append(e.IDs, id)
	e.Tokens = append(e.Tokens, token)
	e.WordIDs = append(e.WordIDs, wordID)
	e.Special = append(e.Special, special)
	e.AttentionMask = append(e.AttentionMask, 1)
}

// Config holds the tokenizer settings usually found in `tokenizer_config.json`, plus the
// sequence length policy used by EncodeWords.
type Config struct {
	BosToken  string `json:"bos_token"`
	EosToken  string `json:"eos_token"`
	UnkToken  string `json:"unk_token"`
	PadToken  string `json:"pad_token"`
	ClsToken  string `json:"cls_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`

	// MaxLength is the maximum number of positions, special tokens included. 0 means unlimited.
	MaxLength int `json:"model_max_length"`

	// PadToMaxLength pads every encoding to exactly MaxLength.
	PadToMaxLength bool `json:"-"`

	// SkipSpecialTokens disables adding the begin/end special tokens.
	SkipSpecialTokens bool `json:"-"`
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
}

// String implements fmt.Stringer.
func (s SpecialToken) String() string {
	if s < 0 || int(s) >= len(specialTokenNames) {
		return fmt.Sprintf("SpecialToken(%d)", int(s))
	}
	return specialTokenNames[s]
}
