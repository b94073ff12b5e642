package inference

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderOption configures execution providers on the session options
// before the model is loaded. The default is plain CPU execution.
type ProviderOption func(*ort.SessionOptions) error

// WithCUDA appends the CUDA execution provider with default settings.
func WithCUDA() ProviderOption {
	return func(o *ort.SessionOptions) error {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "inference: creating CUDA provider options")
		}
		defer cudaOpts.Destroy()
		return o.AppendExecutionProviderCUDA(cudaOpts)
	}
}

// WithCoreML appends the CoreML execution provider (macOS).
func WithCoreML() ProviderOption {
	return func(o *ort.SessionOptions) error {
		return o.AppendExecutionProviderCoreML(0)
	}
}

// SessionInfo describes the shape contract of a model bound to a session:
// one (1, 3, Height, Width) input and two outputs, detection tensor first,
// prototype tensor second.
type SessionInfo struct {
	InputName   string
	OutputNames []string
	Height      int
	Width       int
	Precision   Precision
}

// Session wraps a loaded ONNX segmentation model. The handle is read-only
// after construction and may be shared across concurrent callers; runs are
// serialized internally because output allocation in the underlying binding
// is not reentrant.
type Session struct {
	session *ort.DynamicAdvancedSession
	info    SessionInfo
	mu      sync.Mutex
}

// Session implements Engine.
var _ Engine = (*Session)(nil)

// FromPath loads an ONNX model from disk, validates its shape contract, and
// prepares a session. The declared input type selects FP16 or FP32 blob
// precision.
//
// Arguments:
//   - path: Path to the .onnx model file.
//   - providers: Optional execution providers; none means CPU.
//
// Returns:
//   - *Session: The loaded model handle.
//   - error: ErrModelLoad, ErrUnsupportedModel, or ErrUnsupportedBatch.
func FromPath(path string, providers ...ProviderOption) (*Session, error) {
	if err := ensureRuntime(); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "initializing onnxruntime: %v", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "reading model metadata: %v", err)
	}
	info, err := validateModelIO(inputs, outputs)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "creating session options: %v", err)
	}
	defer opts.Destroy()
	for _, provider := range providers {
		if err := provider(opts); err != nil {
			return nil, errors.Wrapf(ErrModelLoad, "configuring execution provider: %v", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{info.InputName},
		info.OutputNames,
		opts,
	)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "creating session: %v", err)
	}

	return &Session{session: session, info: info}, nil
}

// FromSession wraps a session the caller constructed and configured
// directly. The caller vouches for info matching the bound model; only
// internal consistency is checked here.
func FromSession(session *ort.DynamicAdvancedSession, info SessionInfo) (*Session, error) {
	if session == nil {
		return nil, errors.Wrap(ErrModelLoad, "nil session")
	}
	if info.Height <= 0 || info.Width <= 0 {
		return nil, errors.Wrapf(ErrUnsupportedModel, "input size %dx%d", info.Width, info.Height)
	}
	if len(info.OutputNames) != 2 {
		return nil, errors.Wrapf(ErrUnsupportedModel, "%d outputs, want 2", len(info.OutputNames))
	}
	if info.Precision == "" {
		info.Precision = PrecisionFP32
	}
	return &Session{session: session, info: info}, nil
}

// validateModelIO converts the model's declared tensor shapes into a fixed
// internal representation, rejecting any deviation from the contract.
func validateModelIO(inputs, outputs []ort.InputOutputInfo) (SessionInfo, error) {
	if len(inputs) != 1 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedModel, "%d inputs, want 1", len(inputs))
	}
	if len(outputs) != 2 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedModel, "%d outputs, want 2", len(outputs))
	}

	in := inputs[0]
	dims := in.Dimensions
	if len(dims) != 4 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedModel, "input rank %d, want 4", len(dims))
	}
	if dims[0] != 1 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedBatch, "batch dimension %d", dims[0])
	}
	if dims[1] != 3 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedModel, "%d input channels, want 3", dims[1])
	}
	if dims[2] <= 0 || dims[3] <= 0 {
		return SessionInfo{}, errors.Wrapf(ErrUnsupportedModel, "dynamic input size %v", dims)
	}

	precision := PrecisionFP32
	if in.DataType == ort.TensorElementDataTypeFloat16 {
		precision = PrecisionFP16
	}

	names := make([]string, len(outputs))
	for i, out := range outputs {
		names[i] = out.Name
	}

	return SessionInfo{
		InputName:   in.Name,
		OutputNames: names,
		Height:      int(dims[2]),
		Width:       int(dims[3]),
		Precision:   precision,
	}, nil
}

// InputSize returns the fixed network input height and width.
func (s *Session) InputSize() (h, w int) {
	return s.info.Height, s.info.Width
}

// Precision returns the input precision declared by the model.
func (s *Session) Precision() Precision {
	return s.info.Precision
}

// Infer runs the model on a CHW blob and returns the detection and
// prototype tensors as float32 regardless of the model precision.
func (s *Session) Infer(blob []float32) (Tensor, Tensor, error) {
	expected := 3 * s.info.Height * s.info.Width
	if len(blob) != expected {
		return Tensor{}, Tensor{}, errors.Errorf(
			"inference: blob holds %d floats, want %d", len(blob), expected)
	}

	shape := ort.NewShape(1, 3, int64(s.info.Height), int64(s.info.Width))
	input, err := s.newInputValue(shape, blob)
	if err != nil {
		return Tensor{}, Tensor{}, err
	}
	defer input.Destroy()

	// nil entries let the runtime allocate outputs of the model's own type.
	outputs := make([]ort.Value, len(s.info.OutputNames))
	s.mu.Lock()
	err = s.session.Run([]ort.Value{input}, outputs)
	s.mu.Unlock()
	if err != nil {
		return Tensor{}, Tensor{}, errors.Wrap(err, "inference: session run failed")
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	det, err := tensorFromValue(outputs[0])
	if err != nil {
		return Tensor{}, Tensor{}, err
	}
	protos, err := tensorFromValue(outputs[1])
	if err != nil {
		return Tensor{}, Tensor{}, err
	}
	return det, protos, nil
}

// newInputValue builds the input tensor in the precision the model expects.
func (s *Session) newInputValue(shape ort.Shape, blob []float32) (ort.Value, error) {
	if s.info.Precision == PrecisionFP16 {
		raw := make([]byte, 2*len(blob))
		for i, f := range blob {
			binary.LittleEndian.PutUint16(raw[2*i:], Float32ToFloat16Bits(f))
		}
		value, err := ort.NewCustomDataTensor(shape, raw, ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, errors.Wrap(err, "inference: creating fp16 input tensor")
		}
		return value, nil
	}

	value, err := ort.NewTensor(shape, blob)
	if err != nil {
		return nil, errors.Wrap(err, "inference: creating input tensor")
	}
	return value, nil
}

// tensorFromValue copies a runtime output into a float32 Tensor. Half
// precision outputs come back as raw bytes and are widened here.
func tensorFromValue(value ort.Value) (Tensor, error) {
	switch t := value.(type) {
	case *ort.Tensor[float32]:
		src := t.GetData()
		data := make([]float32, len(src))
		copy(data, src)
		return Tensor{Data: data, Shape: append([]int64(nil), t.GetShape()...)}, nil
	case *ort.CustomDataTensor:
		raw := t.GetData()
		data := make([]float32, len(raw)/2)
		for i := range data {
			data[i] = Float16BitsToFloat32(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		return Tensor{Data: data, Shape: append([]int64(nil), t.GetShape()...)}, nil
	default:
		return Tensor{}, errors.Wrapf(ErrUnsupportedModel, "unexpected output value type %T", value)
	}
}

// Close releases the native session. The handle must not be used afterwards.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	if err := s.session.Destroy(); err != nil {
		return errors.Wrap(err, "inference: destroying session")
	}
	s.session = nil
	return nil
}
