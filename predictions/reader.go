// Package predictions reads and writes token classification logits stored as safetensors files.
//
// The external trainer's evaluation loop dumps the logits of a dataset as a single F32 tensor
// shaped [batch, sequence, classes] (default name "logits"); File memory-maps it, loads it as a
// GoMLX tensor and reduces it to per-position argmax classes.
package predictions

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/autohighlight/autohighlight/inference"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// DefaultTensorName is the name of the logits tensor when none is given.
const DefaultTensorName = "logits"

// File is an open, memory-mapped safetensors file.
type File struct {
	path       string
	reader     *mmap.ReaderAt
	header     *Header
	dataOffset int64
}

// Open parses the header of path and memory-maps it.
func Open(path string) (*File, error) {
	header, dataOffset, err := parseHeader(path)
	if err != nil {
		return nil, err
	}
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to memory-map %s", path)
	}
	return &File{path: path, reader: reader, header: header, dataOffset: dataOffset}, nil
}

// Close unmaps the file.
func (f *File) Close() error {
	return f.reader.Close()
}

// Header returns the parsed header.
func (f *File) Header() *Header {
	return f.header
}

// ReadTensor reads a tensor by name straight from the mapped file into a GoMLX tensor.
func (f *File) ReadTensor(name string) (*tensors.Tensor, error) {
	meta, ok := f.header.Tensors[name]
	if !ok {
		return nil, errors.Errorf("tensor %s not found in %s", name, f.path)
	}
	dtype, err := dtypeToGoMLX(meta.Dtype)
	if err != nil {
		return nil, err
	}
	t := tensors.FromShape(shapes.Make(dtype, meta.Shape...))
	offset := f.dataOffset + meta.DataOffsets[0]
	var readErr error
	t.MutableBytes(func(data []byte) {
		if int64(len(data)) != meta.SizeBytes() {
			readErr = errors.Errorf("tensor %s of shape %s needs %d bytes, but the file holds %d",
				name, t.Shape(), len(data), meta.SizeBytes())
			return
		}
		_, readErr = f.reader.ReadAt(data, offset)
		if readErr == io.EOF {
			readErr = nil
		} else if readErr != nil {
			readErr = errors.Wrapf(readErr, "failed to read tensor %s", name)
		}
	})
	if readErr != nil {
		return nil, readErr
	}
	return t, nil
}

// Logits reads the named logits tensor, checking it is a rank-3 float32 tensor.
func (f *File) Logits(name string) (*tensors.Tensor, error) {
	if name == "" {
		name = DefaultTensorName
	}
	t, err := f.ReadTensor(name)
	if err != nil {
		return nil, err
	}
	if t.Shape().DType != dtypes.Float32 {
		return nil, errors.Errorf("logits tensor %s must be float32, got %s", name, t.Shape().DType)
	}
	if t.Shape().Rank() != 3 {
		return nil, errors.Errorf("logits tensor %s must be shaped [batch, sequence, classes], got %s", name, t.Shape())
	}
	return t, nil
}

// Predictions returns the argmax class of every position of the named logits tensor, one
// sequence per batch row.
func (f *File) Predictions(name string) ([][]int, error) {
	t, err := f.Logits(name)
	if err != nil {
		return nil, err
	}
	return ArgmaxTensor(t), nil
}

// ArgmaxTensor reduces a float32 [batch, sequence, classes] tensor to [batch][sequence] classes
// with inference.Argmax.
func ArgmaxTensor(t *tensors.Tensor) [][]int {
	dims := t.Shape().Dimensions
	batch, seqLen, classes := dims[0], dims[1], dims[2]
	preds := make([][]int, batch)
	t.MutableBytes(func(data []byte) {
		row := make([][]float32, seqLen)
		for b := range batch {
			for pos := range seqLen {
				logits := make([]float32, classes)
				for c := range classes {
					i := ((b*seqLen+pos)*classes + c) * 4
					logits[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[i : i+4]))
				}
				row[pos] = logits
			}
			preds[b] = inference.Argmax(row)
		}
	})
	return preds
}
