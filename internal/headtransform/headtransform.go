// Package headtransform derives directions, a quaternion, Euler angles and a
// translation from a camera-to-head transform.
//
// All getters bounds-check the caller's buffer before writing and never mutate
// the transform, so a HeadTransform may be read from any goroutine once it has
// been filled.
package headtransform

import (
	"fmt"
	"math"

	"headtrack/internal/vecmath"
)

// GimbalLockEpsilon is the pitch cosine below which Euler extraction treats the
// orientation as gimbal locked.
const GimbalLockEpsilon = 1e-2

// HeadTransform holds the 4x4 column-major transform from the camera to the
// head. The head origin is the midpoint between the eyes.
type HeadTransform struct {
	headView [vecmath.MatrixSize]float32
}

// New returns an identity transform.
func New() *HeadTransform {
	h := &HeadTransform{}
	h.SetHeadView(vecmath.Identity())
	return h
}

// HeadView exposes the backing storage so a tracker can write into it in place.
func (h *HeadTransform) HeadView() []float32 {
	return h.headView[:]
}

func (h *HeadTransform) SetHeadView(m vecmath.Mat4) {
	h.headView = m
}

// Matrix returns a copy of the transform.
func (h *HeadTransform) Matrix() vecmath.Mat4 {
	return h.headView
}

// CopyHeadView writes the 16 matrix values into out at offset.
func (h *HeadTransform) CopyHeadView(out []float32, offset int) error {
	if err := checkSpace(out, offset, vecmath.MatrixSize); err != nil {
		return err
	}
	copy(out[offset:], h.headView[:])
	return nil
}

// ForwardVector writes the direction the head is looking towards. In OpenGL the
// forward vector points into -Z, so this is the negated third column.
func (h *HeadTransform) ForwardVector(out []float32, offset int) error {
	if err := checkSpace(out, offset, 3); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		out[offset+i] = -h.headView[8+i]
	}
	return nil
}

// UpVector writes the second column.
func (h *HeadTransform) UpVector(out []float32, offset int) error {
	if err := checkSpace(out, offset, 3); err != nil {
		return err
	}
	copy(out[offset:offset+3], h.headView[4:7])
	return nil
}

// RightVector writes the first column.
func (h *HeadTransform) RightVector(out []float32, offset int) error {
	if err := checkSpace(out, offset, 3); err != nil {
		return err
	}
	copy(out[offset:offset+3], h.headView[0:3])
	return nil
}

// Quaternion writes the head rotation as (x, y, z, w). The head view is a
// view matrix, so this is the inverse of the rotation held in its upper 3x3.
func (h *HeadTransform) Quaternion(out []float32, offset int) error {
	if err := checkSpace(out, offset, 4); err != nil {
		return err
	}
	x, y, z, w := quaternionFromMatrix(&h.headView)
	out[offset+0] = float32(x)
	out[offset+1] = float32(y)
	out[offset+2] = float32(z)
	out[offset+3] = float32(w)
	return nil
}

// EulerAngles writes pitch, yaw and roll in radians, for the rotation
// R = Rz(roll) * Rx(pitch) * Ry(yaw) in a right-handed OpenGL-style frame.
//
// Pitch is in [-pi/2, pi/2], yaw and roll in [-pi, pi]. When gimbal locked,
// yaw is forced to 0 and roll carries the whole rotation about the view axis.
func (h *HeadTransform) EulerAngles(out []float32, offset int) error {
	if err := checkSpace(out, offset, 3); err != nil {
		return err
	}
	pitch, yaw, roll := eulerFromMatrix(&h.headView)
	out[offset+0] = float32(pitch)
	out[offset+1] = float32(yaw)
	out[offset+2] = float32(roll)
	return nil
}

// Translation writes the fourth column.
func (h *HeadTransform) Translation(out []float32, offset int) error {
	if err := checkSpace(out, offset, 3); err != nil {
		return err
	}
	copy(out[offset:offset+3], h.headView[12:15])
	return nil
}

func checkSpace(out []float32, offset, n int) error {
	if err := vecmath.CheckSpace(out, offset, n); err != nil {
		return fmt.Errorf("headtransform: need %d values at offset %d, have %d: %w", n, offset, len(out), err)
	}
	return nil
}

// quaternionFromMatrix uses the trace when it is non-negative and otherwise the
// largest diagonal element, which keeps the square root away from zero.
func quaternionFromMatrix(hv *[vecmath.MatrixSize]float32) (x, y, z, w float64) {
	var m [vecmath.MatrixSize]float64
	for i, v := range hv {
		m[i] = float64(v)
	}
	t := m[0] + m[5] + m[10]

	switch {
	case t >= 0:
		s := math.Sqrt(t + 1)
		w = 0.5 * s
		s = 0.5 / s
		x = (m[9] - m[6]) * s
		y = (m[2] - m[8]) * s
		z = (m[4] - m[1]) * s
	case m[0] > m[5] && m[0] > m[10]:
		s := math.Sqrt(1 + m[0] - m[5] - m[10])
		x = s * 0.5
		s = 0.5 / s
		y = (m[4] + m[1]) * s
		z = (m[2] + m[8]) * s
		w = (m[9] - m[6]) * s
	case m[5] > m[10]:
		s := math.Sqrt(1 + m[5] - m[0] - m[10])
		y = s * 0.5
		s = 0.5 / s
		x = (m[4] + m[1]) * s
		z = (m[9] + m[6]) * s
		w = (m[2] - m[8]) * s
	default:
		s := math.Sqrt(1 + m[10] - m[0] - m[5])
		z = s * 0.5
		s = 0.5 / s
		x = (m[2] + m[8]) * s
		y = (m[9] + m[6]) * s
		w = (m[4] - m[1]) * s
	}
	return x, y, z, w
}

func eulerFromMatrix(hv *[vecmath.MatrixSize]float32) (pitch, yaw, roll float64) {
	m6 := math.Max(-1, math.Min(1, float64(hv[6])))
	pitch = math.Asin(m6)

	if math.Sqrt(1-m6*m6) >= GimbalLockEpsilon {
		yaw = math.Atan2(-float64(hv[2]), float64(hv[10]))
		roll = math.Atan2(-float64(hv[4]), float64(hv[5]))
	} else {
		yaw = 0
		roll = math.Atan2(float64(hv[1]), float64(hv[0]))
	}
	return -pitch, -yaw, -roll
}
