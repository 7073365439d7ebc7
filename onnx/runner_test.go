package onnx

import (
	"context"
	"testing"

	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestSelectInputs(t *testing.T) {
	names, kinds, err := selectInputs([]ort.InputOutputInfo{
		{Name: "input_ids", DataType: ort.TensorElementDataTypeInt64},
		{Name: "token_type_ids", DataType: ort.TensorElementDataTypeInt64},
		{Name: "attention_mask", DataType: ort.TensorElementDataTypeInt64},
		{Name: "position_bias", DataType: ort.TensorElementDataTypeFloat},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"input_ids", "token_type_ids", "attention_mask"}, names)
	assert.Equal(t, []inputKind{inputIDs, inputTokenTypes, inputMask}, kinds)

	_, _, err = selectInputs([]ort.InputOutputInfo{{Name: "attention_mask"}})
	assert.Error(t, err)
}

func TestSelectOutput(t *testing.T) {
	name, err := selectOutput([]ort.InputOutputInfo{
		{Name: "ids", DataType: ort.TensorElementDataTypeInt64},
		{Name: "logits", DataType: ort.TensorElementDataTypeFloat},
	})
	require.NoError(t, err)
	assert.Equal(t, "logits", name)

	_, err = selectOutput(nil)
	assert.Error(t, err)
}

func TestSplitLogits(t *testing.T) {
	rows, err := splitLogits([]float32{1, 2, 3, 4, 5, 6}, ort.NewShape(1, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, rows)

	_, err = splitLogits([]float32{1, 2}, ort.NewShape(2, 1, 1))
	assert.Error(t, err)
	_, err = splitLogits([]float32{1, 2, 3}, ort.NewShape(1, 2, 2))
	assert.Error(t, err)
}

func TestRun_Errors(t *testing.T) {
	enc := &api.Encoding{}
	enc.Append(101, "[CLS]", api.NoWord, true)

	_, err := New("", "").Run(context.Background(), enc)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New("model.onnx", "").Run(ctx, enc)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, New("model.onnx", "").Close())
}
