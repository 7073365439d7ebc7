package tokenizers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autohighlight/autohighlight/tokenizers/wordpiece"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	_, err := Detect(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\nhi\n"), 0o644))
	kind, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, KindWordPiece, kind)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte(`{"model": {"type": "WordPiece", "vocab": {}}}`), 0o644))
	kind, err = Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, KindHuggingFace, kind)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\nhi\n"), 0o644))

	tok, err := New(KindAuto, dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &wordpiece.Tokenizer{}, tok)

	_, err = New(Kind("bogus"), dir, nil)
	assert.Error(t, err)
}
