// Package onnx runs a token classification model exported to ONNX with ONNX Runtime.
package onnx

import (
	"context"
	"strings"
	"sync"

	"github.com/autohighlight/autohighlight/inference"
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"
)

// Runner implements inference.Runner with an ONNX Runtime session, created on first use.
//
// The model must take int64 [batch, sequence] inputs (input_ids, attention_mask and optionally
// token_type_ids) and return float32 logits shaped [batch, sequence, classes] as its first float
// output.
type Runner struct {
	// ModelPath is the .onnx file.
	ModelPath string

	// SharedLibraryPath optionally points to the onnxruntime shared library.
	SharedLibraryPath string

	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	inputKinds  []inputKind
	outputNames []string
}

var _ inference.Runner = (*Runner)(nil)

// New returns a Runner for the model at modelPath.
func New(modelPath, sharedLibraryPath string) *Runner {
	return &Runner{ModelPath: modelPath, SharedLibraryPath: sharedLibraryPath}
}

type inputKind int

const (
	inputIDs inputKind = iota
	inputMask
	inputTokenTypes
)

// selectInputs picks the model inputs to feed, in model order.
func selectInputs(ins []ort.InputOutputInfo) (names []string, kinds []inputKind, err error) {
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		switch {
		case strings.Contains(n, "input_ids") || n == "ids":
			names, kinds = append(names, ii.Name), append(kinds, inputIDs)
		case strings.Contains(n, "attention_mask") || n == "mask":
			names, kinds = append(names, ii.Name), append(kinds, inputMask)
		case strings.Contains(n, "token_type"):
			names, kinds = append(names, ii.Name), append(kinds, inputTokenTypes)
		}
	}
	for _, k := range kinds {
		if k == inputIDs {
			return names, kinds, nil
		}
	}
	return nil, nil, errors.New("could not find the input_ids input of the ONNX model")
}

func selectOutput(outs []ort.InputOutputInfo) (string, error) {
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat {
			return oi.Name, nil
		}
	}
	return "", errors.New("ONNX model has no float output")
}

func (r *Runner) ensureSession() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return nil
	}
	if r.ModelPath == "" {
		return errors.New("onnx model path is required")
	}
	if !ort.IsInitialized() {
		if r.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(r.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "failed to initialize onnx runtime")
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(r.ModelPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read inputs and outputs of %s", r.ModelPath)
	}
	inputNames, inputKinds, err := selectInputs(ins)
	if err != nil {
		return err
	}
	outputName, err := selectOutput(outs)
	if err != nil {
		return err
	}
	s, err := ort.NewDynamicAdvancedSession(r.ModelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create onnx session")
	}
	klog.V(1).Infof("Loaded ONNX model %s: inputs %v, output %q", r.ModelPath, inputNames, outputName)
	r.session, r.inputNames, r.inputKinds, r.outputNames = s, inputNames, inputKinds, []string{outputName}
	return nil
}

// Run implements inference.Runner for a single encoding.
func (r *Runner) Run(ctx context.Context, enc *api.Encoding) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureSession(); err != nil {
		return nil, err
	}
	seq := enc.Len()
	ids := make([]int64, seq)
	mask := make([]int64, seq)
	for i := range seq {
		ids[i] = int64(enc.IDs[i])
		mask[i] = int64(enc.AttentionMask[i])
	}
	shape := ort.NewShape(1, int64(seq))
	inVals := make([]ort.Value, len(r.inputNames))
	for i, kind := range r.inputKinds {
		data := make([]int64, seq)
		switch kind {
		case inputIDs:
			data = ids
		case inputMask:
			data = mask
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to allocate input %s", r.inputNames[i])
		}
		defer t.Destroy()
		inVals[i] = t
	}

	outs := make([]ort.Value, len(r.outputNames))
	if err := r.session.Run(inVals, outs); err != nil {
		return nil, errors.Wrap(err, "onnx run")
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", outs[0])
	}
	return splitLogits(t.GetData(), t.GetShape())
}

// splitLogits turns a flat [1, sequence, classes] buffer into per-position rows.
func splitLogits(data []float32, shape ort.Shape) ([][]float32, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, errors.Errorf("expected logits shaped [1, sequence, classes], got %v", shape)
	}
	seq, classes := int(shape[1]), int(shape[2])
	if len(data) != seq*classes {
		return nil, errors.Errorf("logits shape %v needs %d values, got %d", shape, seq*classes, len(data))
	}
	rows := make([][]float32, seq)
	for pos := range rows {
		row := make([]float32, classes)
		copy(row, data[pos*classes:(pos+1)*classes])
		rows[pos] = row
	}
	return rows, nil
}

// Close releases the session.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	return err
}
