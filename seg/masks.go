package seg

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/microwink/microwink-go/common"
	"github.com/microwink/microwink-go/images"
	"github.com/microwink/microwink-go/inference"
)

// cropEps matches the letterbox pad rounding so the mask grid's border is
// cropped on exactly the rows and columns the preprocessing padded in.
const cropEps = 0.1

// reconstructMasks combines per-candidate coefficients with the shared
// prototype tensor and produces one original-resolution mask per candidate.
//
// Steps, per candidate: matrix-multiply the coefficient vector against the
// flattened prototypes, invert the letterbox geometry of the prototype grid,
// resize to the original image, apply the sigmoid, and zero everything
// outside the candidate's box. Boxes must already be in original-image
// space.
func reconstructMasks(
	protos inference.Tensor,
	coefs [][]float32,
	boxes []common.Box,
	iw, ih int,
	resizer images.Resizer,
) ([]Mask, error) {
	if len(protos.Shape) != 4 {
		return nil, errors.Wrapf(inference.ErrUnsupportedModel,
			"prototype tensor rank %d, want 4", len(protos.Shape))
	}
	if protos.Dim(0) != 1 {
		return nil, errors.Wrapf(inference.ErrUnsupportedBatch, "prototype batch %d", protos.Dim(0))
	}
	channels := int(protos.Dim(1))
	mh := int(protos.Dim(2))
	mw := int(protos.Dim(3))
	if channels != coefCount {
		return nil, errors.Wrapf(inference.ErrUnsupportedModel,
			"%d prototype channels, want %d", channels, coefCount)
	}
	if len(protos.Data) < channels*mh*mw {
		return nil, errors.Wrapf(inference.ErrUnsupportedModel,
			"prototype tensor holds %d values, want %d", len(protos.Data), channels*mh*mw)
	}

	n := len(coefs)
	flat := make([]float32, n*channels)
	for i, c := range coefs {
		copy(flat[i*channels:], c)
	}

	// (N, 32) x (32, MH*MW) -> N raw MHxMW masks in one multiply.
	a := tensor.New(tensor.WithShape(n, channels), tensor.WithBacking(flat))
	b := tensor.New(tensor.WithShape(channels, mh*mw), tensor.WithBacking(protos.Data[:channels*mh*mw]))
	product, err := tensor.MatMul(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "seg: prototype matmul")
	}
	raw := product.Data().([]float32)

	masks := make([]Mask, n)
	for i := 0; i < n; i++ {
		plane := scaleMask(raw[i*mh*mw:(i+1)*mh*mw], mh, mw, iw, ih, resizer)
		for j, v := range plane {
			plane[j] = common.Sigmoid(v)
		}
		cropMask(plane, iw, ih, boxes[i])
		masks[i] = Mask{Width: iw, Height: ih, Data: plane}
	}
	return masks, nil
}

// scaleMask inverts the letterbox geometry of the prototype grid. The grid
// letterboxes the original image the same way the network input does, just
// at its own resolution, so the padded border is cropped with the same
// epsilon rounding before resizing the remainder to the original size.
func scaleMask(plane []float32, mh, mw, iw, ih int, resizer images.Resizer) []float32 {
	gain := math32.Min(float32(mh)/float32(ih), float32(mw)/float32(iw))
	padW := (float32(mw) - float32(iw)*gain) / 2
	padH := (float32(mh) - float32(ih)*gain) / 2

	top := int(math32.Round(padH - cropEps))
	bottom := int(math32.Round(float32(mh) - padH + cropEps))
	left := int(math32.Round(padW - cropEps))
	right := int(math32.Round(float32(mw) - padW + cropEps))

	cw := right - left
	ch := bottom - top
	if cw <= 0 || ch <= 0 {
		// Extreme aspect ratios can shrink the content below one grid cell.
		return make([]float32, iw*ih)
	}

	crop := make([]float32, cw*ch)
	for y := 0; y < ch; y++ {
		src := (top+y)*mw + left
		copy(crop[y*cw:(y+1)*cw], plane[src:src+cw])
	}
	return resizer.ResizePlane(crop, cw, ch, iw, ih)
}

// cropMask zeroes every pixel outside the box. Membership is strict on the
// far edge: x in [x1, x2), y in [y1, y2), compared in float coordinates.
func cropMask(plane []float32, w, h int, box common.Box) {
	for y := 0; y < h; y++ {
		row := plane[y*w : (y+1)*w]
		fy := float32(y)
		if fy < box.Y1 || fy >= box.Y2 {
			for x := range row {
				row[x] = 0
			}
			continue
		}
		for x := 0; x < w; x++ {
			fx := float32(x)
			if fx < box.X1 || fx >= box.X2 {
				row[x] = 0
			}
		}
	}
}
