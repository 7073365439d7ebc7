package api

import (
	"strings"
	"sync"
	"testing"

	"github.com/autohighlight/autohighlight/internal/logtest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestEncoding() *Encoding {
	e := &Encoding{}
	e.Append(101, "[CLS]", NoWord, true)
	e.Append(1, "jan", 0, false)
	e.Append(2, "##itor", 0, false)
	e.Append(3, "cat", 1, false)
	e.Append(4, "dog", 2, false)
	e.Append(102, "[SEP]", NoWord, true)
	return e
}

func TestTruncate(t *testing.T) {
	e := newTestEncoding()
	Truncate(e, 4)
	assert.Equal(t, []int{101, 1, 2, 102}, e.IDs)
	assert.Equal(t, []int{NoWord, 0, 0, NoWord}, e.WordIDs)
	assert.Equal(t, []bool{true, false, false, true}, e.Special)
	assert.Equal(t, 4, e.Len())
}

func TestTruncate_NoOp(t *testing.T) {
	e := newTestEncoding()
	Truncate(e, 0)
	assert.Equal(t, 6, e.Len())
	Truncate(e, 10)
	assert.Equal(t, 6, e.Len())
}

func TestPad(t *testing.T) {
	e := newTestEncoding()
	Pad(e, 8, 0, "[PAD]")
	assert.Equal(t, 8, e.Len())
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 0, 0}, e.AttentionMask)
	assert.Equal(t, NoWord, e.WordIDs[7])
	assert.True(t, e.Special[6])
	assert.Equal(t, 6, e.Unpadded())
	assert.Equal(t, 6, newTestEncoding().Unpadded())
}

func TestSpecialTokenString(t *testing.T) {
	assert.Equal(t, "pad", TokPad.String())
	assert.Equal(t, "SpecialToken(42)", SpecialToken(42).String())
}

type noPadTokenizer struct{}

func (noPadTokenizer) Encode(string) []int { return nil }
func (noPadTokenizer) Decode([]int) string { return "" }
func (noPadTokenizer) SpecialTokenID(token SpecialToken) (int, error) {
	return 0, errors.Errorf("special token %s not found", token)
}

func TestFinish_PadWithoutPadToken(t *testing.T) {
	missingPadWarning = sync.Once{}
	cfg := &Config{MaxLength: 8, PadToMaxLength: true}

	var first, second *Encoding
	logs := logtest.Capture(t, func() {
		first = newTestEncoding()
		Finish(first, cfg, noPadTokenizer{})
		second = newTestEncoding()
		Finish(second, cfg, noPadTokenizer{})
	})
	assert.Equal(t, []int{101, 1, 2, 3, 4, 102, 0, 0}, first.IDs)
	assert.Equal(t, first.IDs, second.IDs)
	assert.Equal(t, 1, strings.Count(logs, "no padding token"))
}
