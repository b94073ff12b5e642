package inference

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat16RoundTrip(t *testing.T) {
	// Values exactly representable in binary16 survive a round trip.
	values := []float32{0, 1, -1, 0.5, -0.5, 2, 1024, 0.25, -3.5, 65504}
	for _, v := range values {
		bits := Float32ToFloat16Bits(v)
		assert.Equal(t, v, Float16BitsToFloat32(bits), "value %v", v)
	}
}

func TestFloat16KnownBits(t *testing.T) {
	assert.Equal(t, uint16(0x3c00), Float32ToFloat16Bits(1))
	assert.Equal(t, uint16(0xbc00), Float32ToFloat16Bits(-1))
	assert.Equal(t, uint16(0x3800), Float32ToFloat16Bits(0.5))
	assert.Equal(t, uint16(0x0000), Float32ToFloat16Bits(0))
	assert.Equal(t, uint16(0x7c00), Float32ToFloat16Bits(float32(math.Inf(1))))
	assert.Equal(t, uint16(0xfc00), Float32ToFloat16Bits(float32(math.Inf(-1))))
}

func TestFloat16Overflow(t *testing.T) {
	// Values beyond the binary16 range saturate to infinity.
	bits := Float32ToFloat16Bits(1e6)
	assert.Equal(t, uint16(0x7c00), bits)
	assert.True(t, math.IsInf(float64(Float16BitsToFloat32(bits)), 1))
}

func TestFloat16Subnormal(t *testing.T) {
	// Smallest positive subnormal half is 2^-24.
	tiny := Float16BitsToFloat32(0x0001)
	assert.InDelta(t, math.Pow(2, -24), float64(tiny), 1e-12)

	// Values below half the smallest subnormal flush to zero.
	assert.Equal(t, uint16(0), Float32ToFloat16Bits(1e-12))
}

func TestFloat16NaN(t *testing.T) {
	bits := Float32ToFloat16Bits(float32(math.NaN()))
	assert.True(t, math.IsNaN(float64(Float16BitsToFloat32(bits))))
}

func TestFloat16Rounding(t *testing.T) {
	// 1/255 is not representable exactly; the round trip stays within one
	// half-precision ulp.
	v := float32(1.0 / 255.0)
	round := Float16BitsToFloat32(Float32ToFloat16Bits(v))
	assert.InDelta(t, float64(v), float64(round), 1e-5)
}

func TestTensorDim(t *testing.T) {
	tensor := Tensor{Shape: []int64{1, 37, 8400}}
	assert.Equal(t, int64(1), tensor.Dim(0))
	assert.Equal(t, int64(37), tensor.Dim(1))
	assert.Equal(t, int64(8400), tensor.Dim(2))
	assert.Equal(t, int64(0), tensor.Dim(3))
	assert.Equal(t, int64(0), tensor.Dim(-1))
}
