package seg

import "github.com/pkg/errors"

var (
	// ErrUnsupportedClassCount flags a detection tensor whose channel count
	// does not match the single-class layout (4 box + 1 class + 32 mask
	// coefficients). Decoding more than one class is not supported.
	ErrUnsupportedClassCount = errors.New("seg: detection tensor must carry exactly one class")

	// ErrInference wraps failures propagated from the inference engine.
	ErrInference = errors.New("seg: inference failed")
)
