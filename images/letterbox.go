package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Letterbox errors. Both are reported before any tensor work happens.
var (
	// ErrInvalidImage flags a nil or empty input image.
	ErrInvalidImage = errors.New("images: input must be a non-empty RGB image")
	// ErrInvalidShape flags non-positive target dimensions.
	ErrInvalidShape = errors.New("images: target dimensions must be positive")
)

// letterboxEps biases the pad rounding so a half-pixel pad never loses a row
// or column to float truncation. top+bottom (and left+right) always sum to
// the full pad amount.
const letterboxEps = 0.1

// borderFill is the gray the reference models were trained with.
var borderFill = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// LetterboxParams records the geometry of a letterbox transform so later
// stages can map network-input coordinates back to original-image pixels.
// Params are computed once per image and must be threaded through unchanged;
// they are never reused across images.
type LetterboxParams struct {
	// Ratio is the uniform scale applied to the original image.
	Ratio float32
	// PadW is the (possibly fractional) horizontal pad on each side.
	PadW float32
	// PadH is the (possibly fractional) vertical pad on each side.
	PadH float32
}

// Letterbox scales img to fit an oh x ow target while preserving aspect
// ratio, pads the remainder with (114,114,114) gray, and converts the result
// to a 1/255-normalized CHW float blob of logical shape (1, 3, oh, ow).
//
// Arguments:
//   - img: The source image.
//   - oh: The network input height.
//   - ow: The network input width.
//   - r: The resize capability; nil selects LanczosResizer.
//
// Returns:
//   - []float32: The CHW blob, 3*oh*ow values in [0, 1].
//   - LetterboxParams: The scale and pads needed to invert the transform.
//   - error: ErrInvalidImage or ErrInvalidShape on bad input.
func Letterbox(img image.Image, oh, ow int, r Resizer) ([]float32, LetterboxParams, error) {
	if img == nil {
		return nil, LetterboxParams{}, ErrInvalidImage
	}
	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()
	if iw <= 0 || ih <= 0 {
		return nil, LetterboxParams{}, errors.Wrapf(ErrInvalidImage, "%dx%d input", iw, ih)
	}
	if oh <= 0 || ow <= 0 {
		return nil, LetterboxParams{}, errors.Wrapf(ErrInvalidShape, "%dx%d target", ow, oh)
	}
	if r == nil {
		r = LanczosResizer{}
	}

	ratio := math32.Min(float32(oh)/float32(ih), float32(ow)/float32(iw))
	rw := int(math32.Round(float32(iw) * ratio))
	rh := int(math32.Round(float32(ih) * ratio))
	padW := float32(ow-rw) / 2
	padH := float32(oh-rh) / 2

	scaled := img
	if rw != iw || rh != ih {
		scaled = r.ResizeImage(img, rw, rh)
	}

	padded := PadBorder(scaled,
		int(math32.Round(padH-letterboxEps)),
		int(math32.Round(padH+letterboxEps)),
		int(math32.Round(padW-letterboxEps)),
		int(math32.Round(padW+letterboxEps)),
		borderFill)

	return blobCHW(padded), LetterboxParams{Ratio: ratio, PadW: padW, PadH: padH}, nil
}

// PadBorder surrounds img with a constant-color border of the given widths.
func PadBorder(img image.Image, top, bottom, left, right int, fill color.RGBA) *image.RGBA {
	bounds := img.Bounds()
	w := bounds.Dx() + left + right
	h := bounds.Dy() + top + bottom
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(left, top, left+bounds.Dx(), top+bounds.Dy()), img, bounds.Min, draw.Src)
	return dst
}

// blobCHW converts an RGBA buffer to a channel-first float tensor normalized
// by 1/255. Alpha is dropped.
func blobCHW(img *image.RGBA) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h

	data := make([]float32, 3*plane)
	red := data[:plane]
	green := data[plane : 2*plane]
	blue := data[2*plane:]

	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			red[i] = float32(row[x*4]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}
	return data
}
