package seg

import (
	"github.com/microwink/microwink-go/common"
	"github.com/microwink/microwink-go/images"
)

// rescaleBoxes maps corner-form boxes from network-input space back to
// original-image pixel space by undoing the letterbox transform: subtract
// the pads, divide by the scale ratio, clip to the image bounds. The pads
// and ratio are shared per call, so clipping never inverts corner order.
func rescaleBoxes(boxes []common.Box, params images.LetterboxParams, iw, ih int) []common.Box {
	out := make([]common.Box, len(boxes))
	for i, b := range boxes {
		out[i] = common.Box{
			X1: (b.X1 - params.PadW) / params.Ratio,
			Y1: (b.Y1 - params.PadH) / params.Ratio,
			X2: (b.X2 - params.PadW) / params.Ratio,
			Y2: (b.Y2 - params.PadH) / params.Ratio,
		}.Clip(float32(iw), float32(ih))
	}
	return out
}
