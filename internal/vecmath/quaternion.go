package vecmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// IdentityQuat is the no-rotation quaternion.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// AxisAngle returns the unit quaternion rotating by angle radians about axis.
// A zero axis yields the identity.
func AxisAngle(axis Vector3, angle float64) quat.Number {
	u := axis.Normalized()
	if u == (Vector3{}) {
		return IdentityQuat()
	}
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: s * u.X, Jmag: s * u.Y, Kmag: s * u.Z}
}

// NormalizeQuat rescales q to unit length, falling back to the identity.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 || math.IsNaN(n) {
		return IdentityQuat()
	}
	return quat.Scale(1/n, q)
}

// RotateVector applies the rotation q to v (q v q*).
func RotateVector(q quat.Number, v Vector3) Vector3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Vector3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// QuatToMatrix returns the row-major 3x3 rotation matrix of the unit quaternion q.
func QuatToMatrix(q quat.Number) [9]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// GLMatrix embeds a row-major 3x3 rotation into a column-major 4x4 matrix.
func GLMatrix(r [9]float64) [16]float64 {
	var m [16]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m[col*4+row] = r[row*3+col]
		}
	}
	m[15] = 1
	return m
}
