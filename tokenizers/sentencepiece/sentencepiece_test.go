package sentencepiece

import (
	"os"
	"strings"
	"testing"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelDir returns a directory with a SentencePiece tokenizer.model (e.g. a local copy of
// google/flan-t5-small), or skips the test.
func modelDir(t *testing.T) string {
	dir := os.Getenv("SENTENCEPIECE_MODEL_DIR")
	if dir == "" {
		t.Skip("SENTENCEPIECE_MODEL_DIR not set")
	}
	return dir
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(nil, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), FileName)

	var tok *Tokenizer
	assert.Equal(t, []string{Metaspace}, tok.SubwordMarkers())
}

// TestEncodeWords_MatchesEncode verifies that encoding pre-split words gives the same pieces as
// encoding the joined text.
func TestEncodeWords_MatchesEncode(t *testing.T) {
	tok, err := New(&api.Config{SkipSpecialTokens: true}, modelDir(t))
	require.NoError(t, err)

	inputs := [][]string{
		{"hello"},
		{"hello", "world"},
		{"The", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog."},
	}
	for _, words := range inputs {
		t.Run(strings.Join(words, " "), func(t *testing.T) {
			enc, err := tok.EncodeWords(words)
			require.NoError(t, err)
			assert.Equal(t, tok.Encode(strings.Join(words, " ")), enc.IDs)
			for i, wordID := range enc.WordIDs {
				assert.GreaterOrEqual(t, wordID, 0, "position %d", i)
				assert.Less(t, wordID, len(words), "position %d", i)
			}
		})
	}
}

func TestEncodeWords_EndOfSentence(t *testing.T) {
	tok, err := New(&api.Config{MaxLength: 4}, modelDir(t))
	require.NoError(t, err)

	enc, err := tok.EncodeWords([]string{"The", "quick", "brown", "fox", "jumps"})
	require.NoError(t, err)
	require.Equal(t, 4, enc.Len())
	eos, err := tok.SpecialTokenID(api.TokEndOfSentence)
	require.NoError(t, err)
	assert.Equal(t, eos, enc.IDs[3])
	assert.Equal(t, api.NoWord, enc.WordIDs[3])
	assert.True(t, strings.HasPrefix(enc.Tokens[0], Metaspace))
}
