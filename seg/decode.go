package seg

import (
	"github.com/pkg/errors"

	"github.com/microwink/microwink-go/inference"
)

// candidate is one anchor's decoded output: a center-size box in
// network-input pixel space, its class confidence, and the mask coefficient
// vector. Candidates are transient; they do not outlive the Apply call.
type candidate struct {
	cx, cy, w, h float32
	score        float32
	coefs        []float32
}

// decodeCandidates reads the (1, C, A) detection tensor anchor by anchor and
// keeps those whose class confidence strictly exceeds confThreshold.
//
// With a single class the score slice has one entry, so its max is the entry
// itself and the class id is structurally 0; a tensor with any other channel
// count is rejected rather than decoded.
func decodeCandidates(det inference.Tensor, confThreshold float32) ([]candidate, error) {
	if len(det.Shape) != 3 {
		return nil, errors.Wrapf(inference.ErrUnsupportedModel,
			"detection tensor rank %d, want 3", len(det.Shape))
	}
	if det.Dim(0) != 1 {
		return nil, errors.Wrapf(inference.ErrUnsupportedBatch, "batch %d", det.Dim(0))
	}
	channels := int(det.Dim(1))
	anchors := int(det.Dim(2))
	if channels != candChannels {
		return nil, errors.Wrapf(ErrUnsupportedClassCount,
			"%d channels, want %d", channels, candChannels)
	}
	if len(det.Data) < channels*anchors {
		return nil, errors.Wrapf(inference.ErrUnsupportedModel,
			"detection tensor holds %d values, want %d", len(det.Data), channels*anchors)
	}

	// The tensor is channel major: channel c of anchor a lives at c*A+a.
	at := func(c, a int) float32 { return det.Data[c*anchors+a] }

	var kept []candidate
	for a := 0; a < anchors; a++ {
		score := at(4, a)
		if score <= confThreshold {
			continue
		}
		coefs := make([]float32, coefCount)
		for k := range coefs {
			coefs[k] = at(4+classCount+k, a)
		}
		kept = append(kept, candidate{
			cx:    at(0, a),
			cy:    at(1, a),
			w:     at(2, a),
			h:     at(3, a),
			score: score,
			coefs: coefs,
		})
	}
	return kept, nil
}
