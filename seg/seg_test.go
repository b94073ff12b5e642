package seg

import (
	"image"
	"image/color"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microwink/microwink-go/common"
	"github.com/microwink/microwink-go/inference"
)

// detRow is one synthetic anchor for building detection tensors in tests.
// Only the first mask coefficient is set; the rest stay zero.
type detRow struct {
	cx, cy, w, h float32
	score        float32
	coef0        float32
}

// detTensor lays rows out channel major, the way the network emits them.
func detTensor(rows []detRow) inference.Tensor {
	anchors := len(rows)
	data := make([]float32, candChannels*anchors)
	for a, r := range rows {
		data[0*anchors+a] = r.cx
		data[1*anchors+a] = r.cy
		data[2*anchors+a] = r.w
		data[3*anchors+a] = r.h
		data[4*anchors+a] = r.score
		data[5*anchors+a] = r.coef0
	}
	return inference.Tensor{Data: data, Shape: []int64{1, candChannels, int64(anchors)}}
}

// protoTensor fills every cell of prototype channel 0 with value and leaves
// the remaining channels zero, so a candidate with coef0=c produces a raw
// mask that is constant c*value.
func protoTensor(mh, mw int, value float32) inference.Tensor {
	data := make([]float32, coefCount*mh*mw)
	for i := 0; i < mh*mw; i++ {
		data[i] = value
	}
	return inference.Tensor{Data: data, Shape: []int64{1, coefCount, int64(mh), int64(mw)}}
}

// fakeEngine returns canned tensors, standing in for an ONNX session.
type fakeEngine struct {
	h, w   int
	det    inference.Tensor
	protos inference.Tensor
	err    error
	calls  int
}

func (f *fakeEngine) InputSize() (int, int)            { return f.h, f.w }
func (f *fakeEngine) Precision() inference.Precision   { return inference.PrecisionFP32 }
func (f *fakeEngine) Infer(blob []float32) (inference.Tensor, inference.Tensor, error) {
	f.calls++
	if f.err != nil {
		return inference.Tensor{}, inference.Tensor{}, f.err
	}
	return f.det, f.protos, nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func TestApplySingleStrongDetection(t *testing.T) {
	// A 640x640 image into a 640x640 model: the letterbox is the identity,
	// so network-space boxes are image-space boxes.
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 320, cy: 320, w: 200, h: 100, score: 0.95, coef0: 1},
			{cx: 100, cy: 100, w: 50, h: 50, score: 0.2},
			{cx: 500, cy: 500, w: 80, h: 80, score: 0.4},
		}),
		protos: protoTensor(160, 160, 2),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), Threshold{Confidence: 0.6, IoU: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.InDelta(t, 0.95, r.Score, 1e-6)
	assert.InDelta(t, 220, r.Box.X1, 1e-3)
	assert.InDelta(t, 270, r.Box.Y1, 1e-3)
	assert.InDelta(t, 420, r.Box.X2, 1e-3)
	assert.InDelta(t, 370, r.Box.Y2, 1e-3)

	require.Equal(t, 640, r.Mask.Width)
	require.Equal(t, 640, r.Mask.Height)

	// Inside the box the mask is sigmoid(1*2); outside it is exactly 0.
	want := common.Sigmoid(2)
	assert.InDelta(t, want, r.Mask.At(320, 320), 1e-4)
	assert.Equal(t, float32(0), r.Mask.At(100, 100))
	assert.Equal(t, float32(0), r.Mask.At(420, 320), "far edge is exclusive")
}

func TestApplyNoQualifyingCandidates(t *testing.T) {
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 100, cy: 100, w: 50, h: 50, score: 0.3},
			{cx: 300, cy: 300, w: 50, h: 50, score: 0.59},
		}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), DefaultThreshold())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestApplyConfidenceIsStrict(t *testing.T) {
	// A score exactly at the threshold does not qualify.
	engine := &fakeEngine{
		h: 640, w: 640,
		det:    detTensor([]detRow{{cx: 320, cy: 320, w: 100, h: 100, score: 0.6}}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), Threshold{Confidence: 0.6, IoU: 0.5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestApplyOverlappingPairCollapses(t *testing.T) {
	// Boxes at IoU 0.9 with scores 0.8 and 0.7 collapse to the 0.8 box.
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 50, cy: 50, w: 100, h: 100, score: 0.8, coef0: 1},
			{cx: 50, cy: 45, w: 100, h: 90, score: 0.7, coef0: 1},
		}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), Threshold{Confidence: 0.6, IoU: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, results[0].Score, 1e-6)
	assert.InDelta(t, 100, results[0].Box.X2, 1e-3)
	assert.InDelta(t, 100, results[0].Box.Y2, 1e-3)
}

func TestApplyScoresRespectThreshold(t *testing.T) {
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 100, cy: 100, w: 60, h: 60, score: 0.65, coef0: 1},
			{cx: 300, cy: 300, w: 60, h: 60, score: 0.92, coef0: 1},
			{cx: 500, cy: 500, w: 60, h: 60, score: 0.55, coef0: 1},
		}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	thr := Threshold{Confidence: 0.6, IoU: 0.5}
	results, err := model.Apply(testImage(640, 640), thr)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Greater(t, r.Score, thr.Confidence)
	}
}

func TestApplyMaskProperties(t *testing.T) {
	engine := &fakeEngine{
		h: 640, w: 640,
		det:    detTensor([]detRow{{cx: 320, cy: 320, w: 300, h: 200, score: 0.9, coef0: -1}}),
		protos: protoTensor(160, 160, 3),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), DefaultThreshold())
	require.NoError(t, err)
	require.Len(t, results, 1)

	mask := results[0].Mask
	box := results[0].Box
	for y := 0; y < mask.Height; y += 7 {
		for x := 0; x < mask.Width; x += 7 {
			v := mask.At(x, y)
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
			fx, fy := float32(x), float32(y)
			if fx < box.X1 || fx >= box.X2 || fy < box.Y1 || fy >= box.Y2 {
				assert.Equal(t, float32(0), v, "outside box at (%d, %d)", x, y)
			}
		}
	}
}

func TestApplyBoxesWithinBounds(t *testing.T) {
	// A detection hanging over the letterboxed edge clips to the image.
	engine := &fakeEngine{
		h: 640, w: 640,
		det:    detTensor([]detRow{{cx: 10, cy: 10, w: 200, h: 200, score: 0.9, coef0: 1}}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(640, 640), DefaultThreshold())
	require.NoError(t, err)
	require.Len(t, results, 1)

	b := results[0].Box
	assert.GreaterOrEqual(t, b.X1, float32(0))
	assert.GreaterOrEqual(t, b.Y1, float32(0))
	assert.LessOrEqual(t, b.X2, float32(640))
	assert.LessOrEqual(t, b.Y2, float32(640))
	assert.LessOrEqual(t, b.X1, b.X2)
	assert.LessOrEqual(t, b.Y1, b.Y2)
}

func TestApplyIdempotent(t *testing.T) {
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 320, cy: 320, w: 200, h: 100, score: 0.95, coef0: 1},
			{cx: 100, cy: 500, w: 80, h: 80, score: 0.7, coef0: -2},
		}),
		protos: protoTensor(160, 160, 2),
	}
	model := FromEngine(engine)
	img := testImage(640, 640)

	first, err := model.Apply(img, DefaultThreshold())
	require.NoError(t, err)
	second, err := model.Apply(img, DefaultThreshold())
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(first, second), "apply must be deterministic")
	assert.Equal(t, 2, engine.calls)
}

func TestApplyRescalesToOriginalImage(t *testing.T) {
	// A 1280x960 image into a 640x640 model: ratio 0.5, 80px vertical pad.
	// A network-space box centered at (320, 320) maps back to (640, 480).
	engine := &fakeEngine{
		h: 640, w: 640,
		det:    detTensor([]detRow{{cx: 320, cy: 320, w: 100, h: 100, score: 0.9, coef0: 1}}),
		protos: protoTensor(160, 160, 1),
	}
	model := FromEngine(engine)

	results, err := model.Apply(testImage(1280, 960), DefaultThreshold())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.InDelta(t, 540, r.Box.X1, 1e-2)
	assert.InDelta(t, 380, r.Box.Y1, 1e-2)
	assert.InDelta(t, 740, r.Box.X2, 1e-2)
	assert.InDelta(t, 580, r.Box.Y2, 1e-2)
	assert.Equal(t, 1280, r.Mask.Width)
	assert.Equal(t, 960, r.Mask.Height)
}

func TestApplyPropagatesEngineFailure(t *testing.T) {
	engine := &fakeEngine{h: 640, w: 640, err: errors.New("backend exploded")}
	model := FromEngine(engine)

	_, err := model.Apply(testImage(640, 640), DefaultThreshold())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInference)
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestApplyRejectsNilImage(t *testing.T) {
	engine := &fakeEngine{h: 640, w: 640}
	model := FromEngine(engine)

	_, err := model.Apply(nil, DefaultThreshold())
	require.Error(t, err)
	assert.Zero(t, engine.calls, "no inference on invalid input")
}

func TestApplyAcrossImageSizes(t *testing.T) {
	sizes := []struct {
		w, h int
	}{
		{640, 640},
		{1280, 960},
		{320, 640},
		{512, 384},
		{731, 487},
	}
	for _, size := range sizes {
		engine := &fakeEngine{
			h: 640, w: 640,
			det:    detTensor([]detRow{{cx: 320, cy: 320, w: 160, h: 120, score: 0.9, coef0: 1}}),
			protos: protoTensor(160, 160, 1),
		}
		model := FromEngine(engine)

		results, err := model.Apply(testImage(size.w, size.h), DefaultThreshold())
		require.NoError(t, err, "%dx%d", size.w, size.h)
		require.Len(t, results, 1, "%dx%d", size.w, size.h)

		r := results[0]
		assert.GreaterOrEqual(t, r.Box.X1, float32(0))
		assert.GreaterOrEqual(t, r.Box.Y1, float32(0))
		assert.LessOrEqual(t, r.Box.X2, float32(size.w))
		assert.LessOrEqual(t, r.Box.Y2, float32(size.h))
		assert.LessOrEqual(t, r.Box.X1, r.Box.X2)
		assert.LessOrEqual(t, r.Box.Y1, r.Box.Y2)
		assert.Equal(t, size.w, r.Mask.Width)
		assert.Equal(t, size.h, r.Mask.Height)
		assert.Len(t, r.Mask.Data, size.w*size.h)
	}
}

func BenchmarkApply(b *testing.B) {
	engine := &fakeEngine{
		h: 640, w: 640,
		det: detTensor([]detRow{
			{cx: 320, cy: 320, w: 200, h: 100, score: 0.95, coef0: 1},
			{cx: 100, cy: 500, w: 80, h: 80, score: 0.7, coef0: -2},
		}),
		protos: protoTensor(160, 160, 2),
	}
	model := FromEngine(engine)
	img := testImage(1280, 960)
	thr := DefaultThreshold()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := model.Apply(img, thr); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDefaultThreshold(t *testing.T) {
	thr := DefaultThreshold()
	assert.Equal(t, float32(0.6), thr.Confidence)
	assert.Equal(t, float32(0.5), thr.IoU)
}
