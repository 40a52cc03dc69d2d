package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxFloat is the sentinel "infinite distance" written into cleared distance targets.
const MaxFloat = math.MaxFloat32

// ShadowBias maps clip space [-1, 1] onto texture space [0, 1] on every axis.
// Column-major, so the translation lives in the last column.
var ShadowBias = mgl32.Mat4{
	0.5, 0, 0, 0,
	0, 0.5, 0, 0,
	0, 0, 0.5, 0,
	0.5, 0.5, 0.5, 1,
}

// Number is the set of scalar types accepted by the generic helpers below.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float32 | ~float64
}

// Clamp restricts v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - T: v limited to [lo, hi]
func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fract returns the fractional part of v in [0, 1).
func Fract(v float64) float64 {
	return v - math.Floor(v)
}

// AppendFloat32 appends the little-endian encoding of v to buf.
func AppendFloat32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

// AppendMat4 appends the 16 column-major elements of m to buf.
//
// Parameters:
//   - buf: the destination buffer
//   - m: the matrix to encode
//
// Returns:
//   - []byte: buf extended by 64 bytes
func AppendMat4(buf []byte, m mgl32.Mat4) []byte {
	for _, v := range m {
		buf = AppendFloat32(buf, v)
	}
	return buf
}

// AppendInt32 appends the little-endian encoding of v to buf.
func AppendInt32(buf []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}
