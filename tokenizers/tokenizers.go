// Package tokenizers creates the api.WordTokenizer for a model directory, picking the
// implementation from the files present in it.
package tokenizers

import (
	"os"
	"path/filepath"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/autohighlight/autohighlight/tokenizers/hftokenizer"
	"github.com/autohighlight/autohighlight/tokenizers/sentencepiece"
	"github.com/autohighlight/autohighlight/tokenizers/wordpiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kind selects a tokenizer implementation.
type Kind string

const (
	// KindAuto detects the implementation from the files in the model directory.
	KindAuto          Kind = ""
	KindHuggingFace   Kind = "hf"
	KindSentencePiece Kind = "sentencepiece"
	KindWordPiece     Kind = "wordpiece"
)

// New returns the tokenizer of the given kind for the model directory dir.
func New(kind Kind, dir string, config *api.Config) (api.WordTokenizer, error) {
	if kind == KindAuto {
		var err error
		if kind, err = Detect(dir); err != nil {
			return nil, err
		}
		klog.V(1).Infof("Detected %s tokenizer in %q", kind, dir)
	}
	var (
		tok api.WordTokenizer
		err error
	)
	switch kind {
	case KindHuggingFace:
		tok, err = hftokenizer.New(config, dir)
	case KindSentencePiece:
		tok, err = sentencepiece.New(config, dir)
	case KindWordPiece:
		tok, err = wordpiece.New(config, dir)
	default:
		return nil, errors.Errorf("unknown tokenizer kind %q", kind)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "while loading %s tokenizer", kind)
	}
	return tok, nil
}

// Detect returns the tokenizer kind for the files in dir, preferring tokenizer.json.
func Detect(dir string) (Kind, error) {
	candidates := []struct {
		file string
		kind Kind
	}{
		{hftokenizer.FileName, KindHuggingFace},
		{sentencepiece.FileName, KindSentencePiece},
		{wordpiece.FileName, KindWordPiece},
	}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(dir, c.file)); err == nil {
			return c.kind, nil
		}
	}
	return KindAuto, errors.Errorf("no tokenizer file (tokenizer.json, tokenizer.model or vocab.txt) in %q", dir)
}
