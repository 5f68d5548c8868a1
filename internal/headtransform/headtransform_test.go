package headtransform

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"headtrack/internal/vecmath"
)

const deg = math.Pi / 180

func withMatrix(m vecmath.Mat4) *HeadTransform {
	h := New()
	h.SetHeadView(m)
	return h
}

func TestNew_IsIdentity(t *testing.T) {
	h := New()
	out := make([]float32, 4)

	require.NoError(t, h.ForwardVector(out, 0))
	require.Equal(t, []float32{0, 0, -1}, out[:3])
	require.NoError(t, h.UpVector(out, 0))
	require.Equal(t, []float32{0, 1, 0}, out[:3])
	require.NoError(t, h.RightVector(out, 0))
	require.Equal(t, []float32{1, 0, 0}, out[:3])
	require.NoError(t, h.Translation(out, 0))
	require.Equal(t, []float32{0, 0, 0}, out[:3])
	require.NoError(t, h.Quaternion(out, 0))
	require.Equal(t, []float32{0, 0, 0, 1}, out)
	require.NoError(t, h.EulerAngles(out, 1))
	require.Equal(t, []float32{0, 0, 0}, out[1:])
}

func TestGetters_RejectShortBuffers(t *testing.T) {
	h := withMatrix(vecmath.Rotate(30, 1, 2, 3))
	getters := map[string]struct {
		fn   func([]float32, int) error
		size int
	}{
		"forward":     {h.ForwardVector, 3},
		"up":          {h.UpVector, 3},
		"right":       {h.RightVector, 3},
		"translation": {h.Translation, 3},
		"euler":       {h.EulerAngles, 3},
		"quaternion":  {h.Quaternion, 4},
		"headview":    {h.CopyHeadView, 16},
	}
	for name, g := range getters {
		t.Run(name, func(t *testing.T) {
			buf := make([]float32, g.size+1)
			for i := range buf {
				buf[i] = 42
			}
			err := g.fn(buf, 2)
			if !errors.Is(err, vecmath.ErrBufferTooSmall) {
				t.Fatalf("err=%v want ErrBufferTooSmall", err)
			}
			for i, v := range buf {
				if v != 42 {
					t.Fatalf("buf[%d]=%v written on failure", i, v)
				}
			}
			if err := g.fn(buf, -1); !errors.Is(err, vecmath.ErrBufferTooSmall) {
				t.Fatalf("negative offset err=%v want ErrBufferTooSmall", err)
			}
			require.NoError(t, g.fn(buf, 1))
		})
	}
}

func TestDirections_FollowColumns(t *testing.T) {
	h := withMatrix(vecmath.Rotate(90, 0, 1, 0))
	out := make([]float32, 3)
	approx := cmpopts.EquateApprox(0, 1e-6)

	require.NoError(t, h.ForwardVector(out, 0))
	if diff := cmp.Diff([]float32{-1, 0, 0}, out, approx); diff != "" {
		t.Fatalf("forward (-want +got):\n%s", diff)
	}
	require.NoError(t, h.RightVector(out, 0))
	if diff := cmp.Diff([]float32{0, 0, -1}, out, approx); diff != "" {
		t.Fatalf("right (-want +got):\n%s", diff)
	}
	require.NoError(t, h.UpVector(out, 0))
	if diff := cmp.Diff([]float32{0, 1, 0}, out, approx); diff != "" {
		t.Fatalf("up (-want +got):\n%s", diff)
	}
}

func TestTranslation_FourthColumn(t *testing.T) {
	h := withMatrix(vecmath.Translation(1, 2, 3))
	out := make([]float32, 5)
	require.NoError(t, h.Translation(out, 2))
	require.Equal(t, []float32{0, 0, 1, 2, 3}, out)
}

func TestCopyHeadView_WritesAtOffset(t *testing.T) {
	m := vecmath.Rotate(45, 0, 0, 1)
	h := withMatrix(m)
	out := make([]float32, 18)
	require.NoError(t, h.CopyHeadView(out, 2))
	require.Equal(t, m[:], out[2:])

	// HeadView aliases the backing storage.
	h.HeadView()[12] = 7
	require.Equal(t, float32(7), h.Matrix()[12])
}

func TestQuaternion_RoundTrip(t *testing.T) {
	cases := map[string]vecmath.Mat4{
		"identity":   vecmath.Identity(),
		"x90":        vecmath.Rotate(90, 1, 0, 0),
		"y90":        vecmath.Rotate(90, 0, 1, 0),
		"z90":        vecmath.Rotate(90, 0, 0, 1),
		"x180":       vecmath.Rotate(180, 1, 0, 0),
		"y180":       vecmath.Rotate(180, 0, 1, 0),
		"z180":       vecmath.Rotate(180, 0, 0, 1),
		"composed":   vecmath.Multiply(vecmath.Rotate(30, 1, 2, 3), vecmath.Rotate(-70, 0, 1, 0)),
		"near flip":  vecmath.Rotate(170, 1, 1, 0),
		"negative z": vecmath.Rotate(-135, 0.2, -0.4, 1),
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			h := withMatrix(m)
			out := make([]float32, 4)
			require.NoError(t, h.Quaternion(out, 0))
			q := quat.Number{Real: float64(out[3]), Imag: float64(out[0]), Jmag: float64(out[1]), Kmag: float64(out[2])}
			require.InDelta(t, 1, quat.Abs(q), 1e-5)

			// The quaternion is the head rotation, i.e. the transpose of the
			// view's rotation block: rotating basis vector i yields row i.
			basis := []vecmath.Vector3{{X: 1}, {Y: 1}, {Z: 1}}
			for i, e := range basis {
				got := vecmath.RotateVector(q, e)
				want := vecmath.NewVector3(float64(m[0*4+i]), float64(m[1*4+i]), float64(m[2*4+i]))
				if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
					t.Fatalf("basis %d (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestEulerAngles_RecoversPitchAndYaw(t *testing.T) {
	m := vecmath.Multiply(vecmath.Rotate(40, 1, 0, 0), vecmath.Rotate(20, 0, 1, 0))
	out := make([]float32, 3)
	require.NoError(t, withMatrix(m).EulerAngles(out, 0))
	require.InDelta(t, -40*deg, out[0], 1e-5)
	require.InDelta(t, -20*deg, out[1], 1e-5)
	require.InDelta(t, 0, out[2], 1e-5)
}

func TestEulerAngles_RecoversRoll(t *testing.T) {
	m := vecmath.Multiply(vecmath.Rotate(-25, 0, 0, 1), vecmath.Rotate(10, 1, 0, 0))
	out := make([]float32, 3)
	require.NoError(t, withMatrix(m).EulerAngles(out, 0))
	require.InDelta(t, -10*deg, out[0], 1e-5)
	require.InDelta(t, 0, out[1], 1e-5)
	require.InDelta(t, 25*deg, out[2], 1e-5)
}

func TestEulerAngles_GimbalLockForcesYawZero(t *testing.T) {
	// cos(89.9deg) ~ 1.7e-3, well inside the lock threshold.
	m := vecmath.Multiply(vecmath.Rotate(89.9, 1, 0, 0), vecmath.Rotate(20, 0, 1, 0))
	out := make([]float32, 3)
	require.NoError(t, withMatrix(m).EulerAngles(out, 0))
	if out[1] != 0 {
		t.Fatalf("yaw=%v want exactly 0", out[1])
	}

	// Direct construction right at the boundary.
	var raw vecmath.Mat4
	raw[0], raw[5], raw[10], raw[15] = 1, 1, 1, 1
	raw[6] = float32(math.Sqrt(1 - 0.009*0.009))
	raw[2] = 0.3
	require.NoError(t, withMatrix(raw).EulerAngles(out, 0))
	if out[1] != 0 {
		t.Fatalf("yaw=%v want exactly 0", out[1])
	}
}

func TestEulerAngles_ContinuousAcrossGimbalThreshold(t *testing.T) {
	const rollDeg = 35
	// 89.35deg has a pitch cosine of ~0.0113 (unlocked), 89.5deg ~0.0087 (locked).
	for _, pitchDeg := range []float32{89.35, 89.5} {
		m := vecmath.Multiply(vecmath.Rotate(rollDeg, 0, 0, 1), vecmath.Rotate(pitchDeg, 1, 0, 0))
		out := make([]float32, 3)
		require.NoError(t, withMatrix(m).EulerAngles(out, 0))
		require.InDelta(t, -float64(pitchDeg)*deg, out[0], 1e-3, "pitch at %v", pitchDeg)
		require.InDelta(t, 0, out[1], 1e-3, "yaw at %v", pitchDeg)
		require.InDelta(t, -rollDeg*deg, out[2], 1e-3, "roll at %v", pitchDeg)
	}
}
