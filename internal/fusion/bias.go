package fusion

import (
	"headtrack/internal/vecmath"
)

const (
	accelLowPassSeconds = 1.0
	gyroLowPassSeconds  = 0.1
	biasLowPassSeconds  = 5.0

	// Static detection thresholds.
	accelStaticDelta = 0.35  // m/s^2 from the accelerometer's low-pass value
	gyroStaticDelta  = 0.035 // rad/s from the gyroscope's low-pass value
	gyroStaticRate   = 0.35  // rad/s; larger rates are motion, not bias
	staticHoldNs     = 500_000_000

	maxStepSeconds = 0.5
)

// lowPass is a first-order exponential filter driven by sample timestamps.
type lowPass struct {
	tau    float64
	value  vecmath.Vector3
	lastNs int64
	primed bool
}

func (lp *lowPass) add(v vecmath.Vector3, ts int64) {
	if !lp.primed {
		lp.value, lp.lastNs, lp.primed = v, ts, true
		return
	}
	dt := float64(ts-lp.lastNs) / 1e9
	lp.lastNs = ts
	if dt <= 0 || dt > maxStepSeconds {
		return
	}
	alpha := dt / (lp.tau + dt)
	lp.value = lp.value.Add(v.Sub(lp.value).Scale(alpha))
}

func (lp *lowPass) reset() {
	*lp = lowPass{tau: lp.tau}
}

// BiasEstimator estimates gyroscope bias while the device rests. The
// estimate converges towards the low-passed gyroscope output whenever both
// sensors have been steady for half a second.
type BiasEstimator struct {
	accel lowPass
	gyro  lowPass
	bias  lowPass

	accelSteady bool
	staticSince int64
	static      bool
}

func NewBiasEstimator() *BiasEstimator {
	e := &BiasEstimator{
		accel: lowPass{tau: accelLowPassSeconds},
		gyro:  lowPass{tau: gyroLowPassSeconds},
		bias:  lowPass{tau: biasLowPassSeconds},
	}
	return e
}

func (e *BiasEstimator) Reset() {
	e.accel.reset()
	e.gyro.reset()
	e.bias.reset()
	e.accelSteady = false
	e.static = false
	e.staticSince = 0
}

func (e *BiasEstimator) ProcessAccelerometer(a vecmath.Vector3, timestampNs int64) {
	e.accel.add(a, timestampNs)
	e.accelSteady = a.Sub(e.accel.value).Length() < accelStaticDelta
}

func (e *BiasEstimator) ProcessGyroscope(w vecmath.Vector3, timestampNs int64) {
	e.gyro.add(w, timestampNs)

	steady := e.accelSteady &&
		w.Sub(e.gyro.value).Length() < gyroStaticDelta &&
		w.Length() < gyroStaticRate
	if !steady {
		e.static = false
		return
	}
	if !e.static {
		e.static = true
		e.staticSince = timestampNs
	}
	if timestampNs-e.staticSince < staticHoldNs {
		return
	}
	if !e.bias.primed {
		// Start from zero so the first estimate is smoothed too.
		e.bias.add(vecmath.Vector3{}, timestampNs)
	}
	e.bias.add(e.gyro.value, timestampNs)
}

// GyroBias returns the current estimate in rad/s.
func (e *BiasEstimator) GyroBias() vecmath.Vector3 {
	return e.bias.value
}
