package predictions

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
)

// WriteLogits writes logits shaped [batch][sequence][classes] as a single F32 tensor named name
// (DefaultTensorName if empty). All rows must share the same sequence length and class count.
func WriteLogits(path, name string, logits [][][]float32, metadata map[string]string) error {
	if name == "" {
		name = DefaultTensorName
	}
	batch, seqLen, classes := len(logits), 0, 0
	if batch > 0 {
		seqLen = len(logits[0])
		if seqLen > 0 {
			classes = len(logits[0][0])
		}
	}
	data := make([]byte, 0, batch*seqLen*classes*4)
	for b, row := range logits {
		if len(row) != seqLen {
			return errors.Errorf("row %d has %d positions, expected %d", b, len(row), seqLen)
		}
		for pos, values := range row {
			if len(values) != classes {
				return errors.Errorf("row %d position %d has %d classes, expected %d", b, pos, len(values), classes)
			}
			for _, v := range values {
				data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
			}
		}
	}

	header := map[string]any{
		name: TensorMetadata{
			Dtype:       "F32",
			Shape:       []int{batch, seqLen, classes},
			DataOffsets: [2]int64{0, int64(len(data))},
		},
	}
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	// Data section stays 8-byte aligned.
	if pad := len(headerBytes) % 8; pad != 0 {
		headerBytes = append(headerBytes, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return errors.Wrap(err, "failed to encode header size")
	}
	buf.Write(headerBytes)
	buf.Write(data)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
