package vecmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MatrixSize is the number of floats in a 4x4 matrix.
const MatrixSize = 16

// Mat4 is a 4x4 column-major matrix: element (row, col) lives at index col*4+row.
type Mat4 = mgl32.Mat4

func Identity() Mat4 {
	return mgl32.Ident4()
}

// Multiply returns lhs × rhs.
func Multiply(lhs, rhs Mat4) Mat4 {
	return lhs.Mul4(rhs)
}

// Translation returns a pure translation matrix.
func Translation(x, y, z float32) Mat4 {
	return mgl32.Translate3D(x, y, z)
}

// Translate returns m × T(x, y, z), i.e. m with a translation applied in its
// own (local) frame.
func Translate(m Mat4, x, y, z float32) Mat4 {
	return m.Mul4(mgl32.Translate3D(x, y, z))
}

// Rotate returns a rotation of angleDeg degrees about the axis (x, y, z).
func Rotate(angleDeg float32, x, y, z float32) Mat4 {
	axis := mgl32.Vec3{x, y, z}
	if axis.Len() == 0 {
		return Identity()
	}
	return mgl32.HomogRotate3D(mgl32.DegToRad(angleDeg), axis.Normalize())
}

// RotateEuler builds a rotation from Euler angles in degrees using the OpenGL ES
// setRotateEulerM layout, which the sensor-to-display and filter-to-tracker
// corrections are expressed in. For a single non-zero angle a about one axis
// the result is the standard rotation by -a about that axis.
func RotateEuler(xDeg, yDeg, zDeg float32) Mat4 {
	x := float64(xDeg) * math.Pi / 180
	y := float64(yDeg) * math.Pi / 180
	z := float64(zDeg) * math.Pi / 180
	cx, sx := math.Cos(x), math.Sin(x)
	cy, sy := math.Cos(y), math.Sin(y)
	cz, sz := math.Cos(z), math.Sin(z)
	cxsy := cx * sy
	sxsy := sx * sy

	var m Mat4
	m[0] = float32(cy * cz)
	m[1] = float32(-cy * sz)
	m[2] = float32(sy)
	m[4] = float32(sxsy*cz + cx*sz)
	m[5] = float32(-sxsy*sz + cx*cz)
	m[6] = float32(-sx * cy)
	m[8] = float32(-cxsy*cz + sx*sz)
	m[9] = float32(cxsy*sz + sx*cz)
	m[10] = float32(cx * cy)
	m[15] = 1
	return m
}

// FromFloat64 narrows a column-major double matrix.
func FromFloat64(src [16]float64) Mat4 {
	var m Mat4
	for i, v := range src {
		m[i] = float32(v)
	}
	return m
}

// Load reads a matrix from buf at offset.
func Load(buf []float32, offset int) (Mat4, error) {
	var m Mat4
	if err := CheckSpace(buf, offset, MatrixSize); err != nil {
		return m, err
	}
	copy(m[:], buf[offset:offset+MatrixSize])
	return m, nil
}

// Store writes m into buf at offset.
func Store(buf []float32, offset int, m Mat4) error {
	if err := CheckSpace(buf, offset, MatrixSize); err != nil {
		return err
	}
	copy(buf[offset:offset+MatrixSize], m[:])
	return nil
}
