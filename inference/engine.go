// Package inference - Model sessions and the tensor-level engine contract.
package inference

import "github.com/pkg/errors"

// Model handle errors, all raised before any tensor work is performed.
var (
	// ErrModelLoad flags a missing or corrupt model file.
	ErrModelLoad = errors.New("inference: model could not be loaded")
	// ErrUnsupportedModel flags a model whose shape contract deviates from
	// the expected single (1, 3, H, W) input and two outputs.
	ErrUnsupportedModel = errors.New("inference: unsupported model shape contract")
	// ErrUnsupportedBatch flags a model with a batch dimension other than 1.
	ErrUnsupportedBatch = errors.New("inference: only batch size 1 is supported")
)

// Tensor is a dense float32 tensor together with its shape. Engines always
// hand data back in float32 regardless of the model's internal precision.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Dim returns the size of dimension i, or 0 when out of range.
func (t Tensor) Dim(i int) int64 {
	if i < 0 || i >= len(t.Shape) {
		return 0
	}
	return t.Shape[i]
}

// Engine runs one forward pass of a segmentation network. The call is
// synchronous and side-effect-free; failures propagate unchanged to the
// caller. Implementations must be safe for concurrent Infer calls so a
// loaded model can be shared across goroutines.
type Engine interface {
	// InputSize returns the fixed network input height and width.
	InputSize() (h, w int)
	// Precision returns the numeric precision the engine feeds the network.
	Precision() Precision
	// Infer executes the network on a 1/255-normalized CHW float blob of
	// logical shape (1, 3, h, w) and returns the detection tensor
	// (1, C, A) and the prototype-mask tensor (1, 32, MH, MW).
	Infer(blob []float32) (det Tensor, protos Tensor, err error)
}
