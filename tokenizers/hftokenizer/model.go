package hftokenizer

import (
	"strings"
)

// tokenizeWord tokenizes a single pre-token according to the model type.
func (t *Tokenizer) tokenizeWord(word string) []int {
	if id, ok := t.addedTokens[word]; ok {
		return []int{id}
	}

	switch t.tokenizer.Model.Type {
	case "WordPiece":
		return t.wordPieceTokenize(word)
	case "BPE":
		return t.bpeTokenize(word)
	case "Unigram":
		return t.unigramTokenize(word)
	default:
		if id, ok := t.tokenizer.Model.Vocab[word]; ok {
			return []int{id}
		}
		if t.unkID >= 0 {
			return []int{t.unkID}
		}
		return nil
	}
}

// wordPieceTokenize implements greedy longest-match-first WordPiece (BERT).
// A word that can't be fully covered by the vocabulary becomes a single unknown token.
func (t *Tokenizer) wordPieceTokenize(word string) []int {
	if word == "" {
		return nil
	}

	maxChars := t.tokenizer.Model.MaxInputCharsPerWord
	if maxChars == 0 {
		maxChars = 100
	}
	if len(word) > maxChars {
		return t.unknown()
	}

	prefix := t.ContinuationPrefix()
	var tokens []int
	for start := 0; start < len(word); {
		end := len(word)
		found := false
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = prefix + substr
			}
			if id, ok := t.tokenizer.Model.Vocab[substr]; ok {
				tokens = append(tokens, id)
				found = true
				break
			}
			end--
		}
		if !found {
			return t.unknown()
		}
		start = end
	}
	return tokens
}

func (t *Tokenizer) unknown() []int {
	if t.unkID >= 0 {
		return []int{t.unkID}
	}
	return nil
}

// bpeTokenize implements BPE tokenization (used by GPT-2, RoBERTa): start from characters and
// repeatedly apply the lowest ranked merge.
func (t *Tokenizer) bpeTokenize(word string) []int {
	if word == "" {
		return nil
	}

	var symbols []string
	for _, r := range word {
		symbols = append(symbols, string(r))
	}
	if suffix := t.tokenizer.Model.EndOfWordSuffix; suffix != "" {
		symbols[len(symbols)-1] += suffix
	}

	for len(symbols) > 1 {
		bestRank, bestIdx := -1, -1
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := t.mergeRanks[symbols[i]+" "+symbols[i+1]]; ok {
				if bestRank == -1 || rank < bestRank {
					bestRank, bestIdx = rank, i
				}
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx+1], symbols[bestIdx+2:]...)
		symbols[bestIdx] = merged
	}

	var ids []int
	for _, sym := range symbols {
		if id, ok := t.tokenizer.Model.Vocab[sym]; ok {
			ids = append(ids, id)
		} else if t.unkID >= 0 {
			ids = append(ids, t.unkID)
		}
	}
	return ids
}

// unigramTokenize is a greedy longest-match approximation of Unigram (no Viterbi scoring).
func (t *Tokenizer) unigramTokenize(word string) []int {
	var ids []int
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		for ; end > start; end-- {
			if id, ok := t.tokenizer.Model.Vocab[string(runes[start:end])]; ok {
				ids = append(ids, id)
				break
			}
		}
		if end > start {
			start = end
			continue
		}
		// Single character fallback
		if id, ok := t.tokenizer.Model.Vocab[string(runes[start])]; ok {
			ids = append(ids, id)
		} else if t.unkID >= 0 {
			ids = append(ids, t.unkID)
		}
		start++
	}
	return ids
}

// Decode converts a sequence of token IDs back to text.
func (t *Tokenizer) Decode(ids []int) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if token, ok := t.idToToken[id]; ok {
			tokens = append(tokens, token)
		}
	}

	decoderType := ""
	if t.tokenizer.Decoder != nil {
		decoderType = t.tokenizer.Decoder.Type
	}
	switch decoderType {
	case "ByteLevel":
		return byteLevelDecode(strings.Join(tokens, ""))
	case "Metaspace":
		return strings.TrimLeft(strings.ReplaceAll(strings.Join(tokens, ""), metaspace, " "), " ")
	case "BPEDecoder":
		return t.bpeDecode(tokens)
	default:
		prefix := t.ContinuationPrefix()
		if t.tokenizer.Decoder != nil && t.tokenizer.Decoder.Prefix != "" {
			prefix = t.tokenizer.Decoder.Prefix
		}
		return joinWordPieces(tokens, prefix)
	}
}

// joinWordPieces glues continuation pieces to the previous token and separates the others
// with a space.
func joinWordPieces(tokens []string, prefix string) string {
	var result strings.Builder
	for i, token := range tokens {
		if prefix != "" && strings.HasPrefix(token, prefix) {
			result.WriteString(strings.TrimPrefix(token, prefix))
			continue
		}
		if i > 0 {
			result.WriteString(" ")
		}
		result.WriteString(token)
	}
	return result.String()
}

func (t *Tokenizer) bpeDecode(tokens []string) string {
	suffix := t.tokenizer.Model.EndOfWordSuffix
	var result strings.Builder
	for i, token := range tokens {
		if suffix != "" && strings.HasSuffix(token, suffix) {
			result.WriteString(strings.TrimSuffix(token, suffix))
			if i < len(tokens)-1 {
				result.WriteString(" ")
			}
		} else {
			result.WriteString(token)
		}
	}
	return result.String()
}
