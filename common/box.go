// Package common - Shared geometry primitives for the segmentation pipeline.
package common

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in corner form with X1 <= X2 and
// Y1 <= Y2. Coordinates are pixels of one specific image space (network-input
// or original-image); callers must not mix boxes from different spaces.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// FromCenterSize builds a Box from a center point and dimensions, the form
// the detection head emits.
func FromCenterSize(cx, cy, w, h float32) Box {
	x1 := cx - w/2
	y1 := cy - h/2
	return Box{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float32 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box.
func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns the box area in square pixels.
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Clip limits the box to [0, width] on x and [0, height] on y. Clipping never
// inverts the corner order.
func (b Box) Clip(width, height float32) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

// IoU calculates the Intersection over Union between two boxes.
//
// This metric is used for Non-Maximum Suppression (NMS) to remove duplicate
// detections. The result is between 0 (disjoint) and 1 (identical).
func (b Box) IoU(other Box) float32 {
	ix1 := math32.Max(b.X1, other.X1)
	iy1 := math32.Max(b.Y1, other.Y1)
	ix2 := math32.Min(b.X2, other.X2)
	iy2 := math32.Min(b.Y2, other.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	intersection := iw * ih
	union := b.Area() + other.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// String formats the box corners for display.
func (b Box) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", b.X1, b.Y1, b.X2, b.Y2)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
