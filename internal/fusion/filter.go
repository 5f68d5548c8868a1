package fusion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"headtrack/internal/vecmath"
)

const (
	// StandardGravity in m/s^2.
	StandardGravity = 9.80665

	defaultAccelGain = 0.02
	defaultMagGain   = 0.01

	// Accelerometer samples further than this from 1 g are treated as
	// dominated by linear acceleration and skipped once aligned.
	accelTrustWindow = 3.0

	maxGyroStepSeconds   = 0.5
	maxPredictionSeconds = 0.5
)

var worldUp = vecmath.Vector3{Z: 1}

// Filter is a quaternion complementary filter. Gyroscope rates are
// integrated in the sensor frame; the accelerometer pulls the estimate
// towards gravity and the magnetometer towards magnetic north.
//
// The first accelerometer sample aligns tilt outright and makes the filter
// ready. The first magnetometer sample after that sets heading outright.
type Filter struct {
	AccelGain float64
	MagGain   float64

	q          quat.Number
	aligned    bool
	headingSet bool

	haveGyro   bool
	lastGyro   vecmath.Vector3
	lastGyroNs int64
}

func NewFilter() *Filter {
	f := &Filter{AccelGain: defaultAccelGain, MagGain: defaultMagGain}
	f.Reset()
	return f
}

func (f *Filter) Reset() {
	f.q = vecmath.IdentityQuat()
	f.aligned = false
	f.headingSet = false
	f.haveGyro = false
	f.lastGyro = vecmath.Vector3{}
	f.lastGyroNs = 0
}

func (f *Filter) IsReady() bool { return f.aligned }

func (f *Filter) Orientation() quat.Number { return f.q }

func (f *Filter) ProcessAcc(a vecmath.Vector3, timestampNs int64) {
	n := a.Length()
	if n < 1e-6 || math.IsNaN(n) {
		return
	}
	gain := f.AccelGain
	if !f.aligned {
		gain = 1
	} else if math.Abs(n-StandardGravity) > accelTrustWindow {
		return
	}

	// Rotate the measured "up" in world coordinates towards +z.
	up := vecmath.RotateVector(f.q, a.Scale(1/n))
	axis := up.Cross(worldUp)
	angle := math.Acos(clamp(up.Dot(worldUp), -1, 1))
	if axis.Length() < 1e-9 {
		if up.Z > 0 {
			f.aligned = true
			return
		}
		axis = vecmath.Vector3{X: 1}
	}
	f.q = vecmath.NormalizeQuat(quat.Mul(vecmath.AxisAngle(axis, gain*angle), f.q))
	f.aligned = true
}

func (f *Filter) ProcessGyro(w vecmath.Vector3, timestampNs int64) {
	if f.haveGyro {
		dt := float64(timestampNs-f.lastGyroNs) / 1e9
		if dt > 0 && dt <= maxGyroStepSeconds {
			f.q = integrate(f.q, w, dt)
		}
	}
	f.haveGyro = true
	f.lastGyro = w
	f.lastGyroNs = timestampNs
}

func (f *Filter) ProcessMag(m []float32, timestampNs int64) {
	if !f.aligned || len(m) < 3 {
		return
	}
	v := vecmath.FromFloat32(m)
	if v.Length() < 1e-6 {
		return
	}
	north := vecmath.RotateVector(f.q, v)
	if math.Hypot(north.X, north.Y) < 1e-6 {
		return
	}
	// Angle from world +y to the field's horizontal projection, clockwise
	// seen from above. Rotating by it about +z brings the field onto north.
	errRad := math.Atan2(north.X, north.Y)
	gain := f.MagGain
	if !f.headingSet {
		gain = 1
	}
	f.q = vecmath.NormalizeQuat(quat.Mul(vecmath.AxisAngle(worldUp, gain*errRad), f.q))
	f.headingSet = true
}

func (f *Filter) PredictedGLMatrix(secondsForward float64) [16]float64 {
	q := f.q
	if f.haveGyro {
		q = integrate(q, f.lastGyro, clamp(secondsForward, 0, maxPredictionSeconds))
	}
	return vecmath.GLMatrix(vecmath.QuatToMatrix(quat.Conj(q)))
}

// integrate advances q by the body rate w over dt seconds.
func integrate(q quat.Number, w vecmath.Vector3, dt float64) quat.Number {
	rate := w.Length()
	if rate == 0 || dt <= 0 {
		return q
	}
	return vecmath.NormalizeQuat(quat.Mul(q, vecmath.AxisAngle(w, rate*dt)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
