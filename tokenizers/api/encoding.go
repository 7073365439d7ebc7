package api

import (
	"sync"

	"k8s.io/klog/v2"
)

// missingPadWarning logs once that padding falls back to id 0.
var missingPadWarning sync.Once

// Truncate drops trailing content positions until the encoding fits in maxLength. Trailing
// special tokens (e.g. [SEP], </s>) are kept at the end. A maxLength <= 0 disables truncation.
//
// Words whose subwords are all dropped simply no longer appear in WordIDs.
func Truncate(e *Encoding, maxLength int) {
	if maxLength <= 0 || e.Len() <= maxLength {
		return
	}

	// Count closing special tokens to preserve.
	tail := 0
	for i := e.Len() - 1; i >= 0 && e.Special[i]; i-- {
		tail++
	}
	if tail >= maxLength {
		tail = 0
	}
	keep := maxLength - tail
	cut := e.Len() - tail

	e.IDs = append(e.IDs[:keep], e.IDs[cut:]...)
	e.Tokens = append(e.Tokens[:keep], e.Tokens[cut:]...)
	e.WordIDs = append(e.WordIDs[:keep], e.WordIDs[cut:]...)
	e.Special = append(e.Special[:keep], e.Special[cut:]...)
	e.AttentionMask = append(e.AttentionMask[:keep], e.AttentionMask[cut:]...)
}

// Pad appends padding positions until the encoding has length maxLength.
// Padding positions are special, owned by no word and masked out.
func Pad(e *Encoding, maxLength, padID int, padToken string) {
	for e.Len() < maxLength {
		e.IDs = append(e.IDs, padID)
		e.Tokens = append(e.Tokens, padToken)
		e.WordIDs = append(e.WordIDs, NoWord)
		e.Special = append(e.Special, true)
		e.AttentionMask = append(e.AttentionMask, 0)
	}
}

// Finish applies the length policy in cfg: truncation to MaxLength and, if requested,
// padding with the tokenizer's padding token.
func Finish(e *Encoding, cfg *Config, tok Tokenizer) {
	if cfg == nil || cfg.MaxLength <= 0 {
		return
	}
	Truncate(e, cfg.MaxLength)
	if !cfg.PadToMaxLength {
		return
	}
	padID, err := tok.SpecialTokenID(TokPad)
	if err != nil {
		padID = 0
		missingPadWarning.Do(func() {
			klog.Warningf("Tokenizer has no padding token (%v): padding with id 0", err)
		})
	}
	padToken := cfg.PadToken
	if padToken == "" {
		padToken = "[PAD]"
	}
	Pad(e, cfg.MaxLength, padID, padToken)
}
