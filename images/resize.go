// Package images - Letterbox preprocessing and resize capabilities.
package images

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// Resizer scales image buffers and float planes. Implementations must use a
// high-quality (non-nearest) filter; the pipeline relies on it both for the
// letterbox resize and for scaling reconstructed masks back to the original
// image resolution.
type Resizer interface {
	// ResizeImage scales img to w x h pixels.
	ResizeImage(img image.Image, w, h int) image.Image
	// ResizePlane scales a sw x sh row-major float plane to dw x dh.
	ResizePlane(plane []float32, sw, sh, dw, dh int) []float32
}

// LanczosResizer is the default Resizer. Images are resampled with Lanczos3,
// matching the reference preprocessing; float planes use bilinear sampling.
type LanczosResizer struct{}

// ResizeImage scales img to w x h using Lanczos3 resampling.
func (LanczosResizer) ResizeImage(img image.Image, w, h int) image.Image {
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// ResizePlane scales a float plane with bilinear interpolation. Degenerate
// sources (zero rows or columns) produce an all-zero plane.
func (LanczosResizer) ResizePlane(plane []float32, sw, sh, dw, dh int) []float32 {
	out := make([]float32, dw*dh)
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return out
	}
	if sw == dw && sh == dh {
		copy(out, plane)
		return out
	}

	xr := float32(sw) / float32(dw)
	yr := float32(sh) / float32(dh)
	for y := 0; y < dh; y++ {
		sy := (float32(y)+0.5)*yr - 0.5
		if sy < 0 {
			sy = 0
		}
		if sy > float32(sh-1) {
			sy = float32(sh - 1)
		}
		y0 := int(math32.Floor(sy))
		y1 := y0 + 1
		if y1 > sh-1 {
			y1 = sh - 1
		}
		fy := sy - float32(y0)

		for x := 0; x < dw; x++ {
			sx := (float32(x)+0.5)*xr - 0.5
			if sx < 0 {
				sx = 0
			}
			if sx > float32(sw-1) {
				sx = float32(sw - 1)
			}
			x0 := int(math32.Floor(sx))
			x1 := x0 + 1
			if x1 > sw-1 {
				x1 = sw - 1
			}
			fx := sx - float32(x0)

			top := (1-fx)*plane[y0*sw+x0] + fx*plane[y0*sw+x1]
			bottom := (1-fx)*plane[y1*sw+x0] + fx*plane[y1*sw+x1]
			out[y*dw+x] = (1-fy)*top + fy*bottom
		}
	}
	return out
}
