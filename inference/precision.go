package inference

import "math"

// Precision represents the numeric precision of a model's input tensor.
type Precision string

// Precision constants are the supported input precisions.
const (
	PrecisionFP16 Precision = "FP16"
	PrecisionFP32 Precision = "FP32"
)

// Float32ToFloat16Bits converts a float32 to IEEE 754 binary16 bits with
// round-to-nearest. Overflow saturates to infinity.
func Float32ToFloat16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	if exp >= 0x1f {
		if (bits>>23)&0xff == 0xff && mant != 0 {
			return sign | 0x7e00 // NaN
		}
		return sign | 0x7c00 // Inf or overflow
	}
	if exp <= 0 {
		if exp < -10 {
			return sign // underflows to zero
		}
		// Subnormal half: shift in the implicit bit.
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if (mant>>(shift-1))&1 != 0 {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		half++ // carry into the exponent is the correct rounding here
	}
	return half
}

// Float16BitsToFloat32 converts IEEE 754 binary16 bits to a float32.
func Float16BitsToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half: normalize into float32 range.
		shift := uint32(0)
		for mant&0x400 == 0 {
			mant <<= 1
			shift++
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | (127-15-shift+1)<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
}
