// Package seg - Single-class instance segmentation over a YOLO-style
// box + mask-coefficient head with a shared prototype-mask tensor.
//
// The pipeline bridges network tensor space and user image space: letterbox
// preprocessing, confidence filtering, non-maximum suppression, box
// rescaling, and mask reconstruction, with the exact rounding and clipping
// rules the models were exported with.
package seg

import (
	"image"

	"github.com/pkg/errors"

	"github.com/microwink/microwink-go/common"
	"github.com/microwink/microwink-go/images"
	"github.com/microwink/microwink-go/inference"
)

const (
	classCount = 1
	coefCount  = 32
	// Channels per candidate: cx, cy, w, h, one class score, and the mask
	// coefficient vector.
	candChannels = 4 + classCount + coefCount
)

// Threshold filters detections. Confidence is applied strictly (score must
// exceed it); IoU bounds the allowed overlap during suppression. Both live
// in (0, 1]. Passed by value into every call.
type Threshold struct {
	Confidence float32
	IoU        float32
}

// DefaultThreshold returns the reference operating point.
func DefaultThreshold() Threshold {
	return Threshold{Confidence: 0.6, IoU: 0.5}
}

// Mask is a single-channel confidence heat map sized to the original image.
// Values are in [0, 1] and exactly 0 outside the detection's box.
type Mask struct {
	Width  int
	Height int
	// Data is row major with Width*Height entries.
	Data []float32
}

// At returns the confidence at pixel (x, y).
func (m Mask) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// Result is one detected object. The box is in original-image pixel space
// and always within image bounds. The caller owns the result after return.
type Result struct {
	Box   common.Box
	Score float32
	Mask  Mask
}

// Model binds an inference engine to the postprocessing pipeline. A Model is
// read-only after construction and safe for concurrent Apply calls; each
// call allocates its own buffers.
type Model struct {
	engine   inference.Engine
	resizer  images.Resizer
	suppress Suppressor
}

// Option customizes the capabilities a Model uses.
type Option func(*Model)

// WithResizer substitutes the resize capability (for example the OpenCV
// adapter). Nil keeps the default.
func WithResizer(r images.Resizer) Option {
	return func(m *Model) {
		if r != nil {
			m.resizer = r
		}
	}
}

// WithSuppressor substitutes the non-maximum suppression capability. Nil
// keeps the default greedy implementation.
func WithSuppressor(s Suppressor) Option {
	return func(m *Model) {
		if s != nil {
			m.suppress = s
		}
	}
}

// FromPath loads an ONNX model from disk and wraps it into a Model.
func FromPath(path string, providers ...inference.ProviderOption) (*Model, error) {
	session, err := inference.FromPath(path, providers...)
	if err != nil {
		return nil, err
	}
	return FromEngine(session), nil
}

// FromEngine wraps an already constructed engine, for example a session the
// caller configured directly via inference.FromSession.
func FromEngine(engine inference.Engine, opts ...Option) *Model {
	m := &Model{
		engine:   engine,
		resizer:  images.LanczosResizer{},
		suppress: GreedySuppressor{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply runs the full pipeline on one image and returns every retained
// detection with its box, score, and original-resolution mask. An image
// with no qualifying candidates yields an empty list, not an error.
//
// The call is deterministic for identical image bytes, model weights, and
// threshold, subject only to floating-point behavior of the engine itself.
func (m *Model) Apply(img image.Image, threshold Threshold) ([]Result, error) {
	if img == nil {
		return nil, images.ErrInvalidImage
	}
	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()
	if iw <= 0 || ih <= 0 {
		return nil, errors.Wrapf(images.ErrInvalidImage, "%dx%d image", iw, ih)
	}

	oh, ow := m.engine.InputSize()
	blob, params, err := images.Letterbox(img, oh, ow, m.resizer)
	if err != nil {
		return nil, err
	}

	det, protos, err := m.engine.Infer(blob)
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "%v", err)
	}

	candidates, err := decodeCandidates(det, threshold.Confidence)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	// Suppression runs in network-input space, on corner-form boxes.
	netBoxes := make([]common.Box, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		netBoxes[i] = common.FromCenterSize(c.cx, c.cy, c.w, c.h)
		scores[i] = c.score
	}
	keep := m.suppress.Suppress(netBoxes, scores, threshold.Confidence, threshold.IoU)
	if len(keep) == 0 {
		return []Result{}, nil
	}

	keptBoxes := make([]common.Box, len(keep))
	keptCoefs := make([][]float32, len(keep))
	for i, idx := range keep {
		keptBoxes[i] = netBoxes[idx]
		keptCoefs[i] = candidates[idx].coefs
	}

	imageBoxes := rescaleBoxes(keptBoxes, params, iw, ih)
	masks, err := reconstructMasks(protos, keptCoefs, imageBoxes, iw, ih, m.resizer)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(keep))
	for i, idx := range keep {
		results[i] = Result{
			Box:   imageBoxes[i],
			Score: candidates[idx].score,
			Mask:  masks[i],
		}
	}
	return results, nil
}
