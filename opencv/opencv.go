// Package opencv - OpenCV-backed implementations of the pipeline's
// pluggable capabilities, for deployments that already link gocv and want
// its resize and suppression kernels instead of the pure-Go defaults.
//
// Wire them in with seg.WithResizer and seg.WithSuppressor:
//
//	model := seg.FromEngine(engine,
//		seg.WithResizer(opencv.Resizer{}),
//		seg.WithSuppressor(opencv.Suppressor{}))
package opencv

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/microwink/microwink-go/common"
	"github.com/microwink/microwink-go/images"
	"github.com/microwink/microwink-go/seg"
)

// The adapters satisfy the pipeline's capability interfaces.
var (
	_ seg.Suppressor = Suppressor{}
	_ images.Resizer = Resizer{}
)

// Suppressor runs non-maximum suppression through gocv.NMSBoxes. Corner
// coordinates are rounded to integer pixels before the call, so overlap
// ratios can differ from the float computation by a sub-pixel margin.
type Suppressor struct{}

// Suppress returns the indices of the retained boxes, ordered by descending
// score.
func (Suppressor) Suppress(boxes []common.Box, scores []float32, confThreshold, iouThreshold float32) []int {
	if len(boxes) == 0 {
		return nil
	}
	rects := make([]image.Rectangle, len(boxes))
	for i, b := range boxes {
		rects[i] = image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
	}
	return gocv.NMSBoxes(rects, scores, confThreshold, iouThreshold)
}

// Resizer resamples through OpenCV: Lanczos4 for image buffers, bilinear
// for float planes. Any Mat conversion failure falls back to the pure-Go
// resizer so the pipeline keeps producing output.
type Resizer struct{}

// ResizeImage scales img to w x h with OpenCV Lanczos4 resampling.
func (Resizer) ResizeImage(img image.Image, w, h int) image.Image {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return images.LanczosResizer{}.ResizeImage(img, w, h)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationLanczos4)

	out, err := dst.ToImage()
	if err != nil {
		return images.LanczosResizer{}.ResizeImage(img, w, h)
	}
	return out
}

// ResizePlane scales a row-major float plane to dw x dh with OpenCV bilinear
// interpolation.
func (Resizer) ResizePlane(plane []float32, sw, sh, dw, dh int) []float32 {
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return make([]float32, dw*dh)
	}

	src := gocv.NewMatWithSize(sh, sw, gocv.MatTypeCV32F)
	defer src.Close()
	srcData, err := src.DataPtrFloat32()
	if err != nil {
		return images.LanczosResizer{}.ResizePlane(plane, sw, sh, dw, dh)
	}
	copy(srcData, plane)

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(dw, dh), 0, 0, gocv.InterpolationLinear)

	dstData, err := dst.DataPtrFloat32()
	if err != nil {
		return images.LanczosResizer{}.ResizePlane(plane, sw, sh, dw, dh)
	}
	out := make([]float32, dw*dh)
	copy(out, dstData)
	return out
}
