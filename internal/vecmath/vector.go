// Package vecmath holds the small fixed-size linear algebra used by the tracker:
// 3-vectors for sensor readings, 4x4 column-major matrices for transforms and
// unit quaternions for orientation state.
package vecmath

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBufferTooSmall is returned when a caller-provided output buffer cannot hold
// the requested result at the requested offset.
var ErrBufferTooSmall = errors.New("not enough space to write the result")

// CheckSpace reports ErrBufferTooSmall when n values do not fit in buf at offset.
func CheckSpace(buf []float32, offset, n int) error {
	if offset < 0 || offset+n > len(buf) {
		return ErrBufferTooSmall
	}
	return nil
}

// Vector3 is a 3-component double precision vector.
type Vector3 struct {
	X, Y, Z float64
}

func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// FromFloat32 builds a vector from the first three entries of v.
func FromFloat32(v []float32) Vector3 {
	return Vector3{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func (v *Vector3) Set(x, y, z float64) {
	v.X, v.Y, v.Z = x, y, z
}

func (v *Vector3) SetZero() {
	*v = Vector3{}
}

func (v Vector3) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromVec(p r3.Vec) Vector3 {
	return Vector3{X: p.X, Y: p.Y, Z: p.Z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return fromVec(r3.Add(v.Vec(), o.Vec()))
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return fromVec(r3.Sub(v.Vec(), o.Vec()))
}

func (v Vector3) Scale(f float64) Vector3 {
	return fromVec(r3.Scale(f, v.Vec()))
}

func (v Vector3) Dot(o Vector3) float64 {
	return r3.Dot(v.Vec(), o.Vec())
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return fromVec(r3.Cross(v.Vec(), o.Vec()))
}

func (v Vector3) Length() float64 {
	return r3.Norm(v.Vec())
}

// Normalized returns the unit vector along v, or the zero vector when v has no
// usable length.
func (v Vector3) Normalized() Vector3 {
	n := v.Length()
	if n < 1e-12 || math.IsNaN(n) {
		return Vector3{}
	}
	return v.Scale(1 / n)
}
