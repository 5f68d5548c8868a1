// Package tracker turns the sensor stream into a predicted head pose.
//
// Samples arrive on the capture thread through OnSensorChanged and are fed to
// the orientation filter and gyro bias estimator. A render or polling thread
// reads the pose with LastHeadView. Each piece of shared state has its own
// lock so neither side holds one for longer than a copy.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/num/quat"

	"headtrack/internal/fusion"
	"headtrack/internal/sensors"
	"headtrack/internal/vecmath"
)

const (
	DefaultNeckModelFactor = 1.0

	// Offsets from the base of the neck to the eyes, in meters.
	NeckModelHorizontalOffset = 0.080
	NeckModelVerticalOffset   = 0.075

	// PredictionTimeSeconds compensates for sensor-to-photon latency.
	PredictionTimeSeconds = 0.058
)

var ErrNeckModelFactorRange = errors.New("tracker: neck model factor must be in [0, 1]")

type Option func(*Tracker)

// WithFilter replaces the default orientation filter.
func WithFilter(f fusion.OrientationFilter) Option {
	return func(t *Tracker) {
		if f != nil {
			t.filter = f
		}
	}
}

// WithBiasEstimatorFactory sets how SetGyroBiasEstimationEnabled builds a
// fresh estimator. A nil factory disables bias estimation.
func WithBiasEstimatorFactory(fn func() fusion.GyroBiasEstimator) Option {
	return func(t *Tracker) {
		t.newEstimator = fn
	}
}

type Tracker struct {
	provider sensors.Provider
	clock    Clock
	display  Display

	trackingMu sync.Mutex
	tracking   bool
	sessionID  string

	filterMu          sync.Mutex
	filter            fusion.OrientationFilter
	latestGyroClockNs int64

	biasMu                sync.Mutex
	newEstimator          func() fusion.GyroBiasEstimator
	estimator             fusion.GyroBiasEstimator
	firstGyroValue        bool
	initialSystemGyroBias [3]float32

	neckMu          sync.RWMutex
	neckModelFactor float64

	displayMu         sync.Mutex
	haveCorrections   bool
	correctedRotation Rotation
	sensorToDisplay   vecmath.Mat4
	filterToTracker   vecmath.Mat4
	correctionUpdates int
}

// New builds a stopped tracker. Gyro bias estimation starts enabled.
func New(provider sensors.Provider, clock Clock, display Display, opts ...Option) *Tracker {
	if clock == nil {
		clock = NewSystemClock()
	}
	if display == nil {
		display = StaticDisplay{}
	}
	t := &Tracker{
		provider:        provider,
		clock:           clock,
		display:         display,
		filter:          fusion.NewFilter(),
		newEstimator:    func() fusion.GyroBiasEstimator { return fusion.NewBiasEstimator() },
		firstGyroValue:  true,
		neckModelFactor: DefaultNeckModelFactor,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.newEstimator != nil {
		t.estimator = t.newEstimator()
	}
	return t
}

// OnSensorChanged routes one sample. It runs on the capture thread.
func (t *Tracker) OnSensorChanged(s sensors.Sample) {
	if t == nil || len(s.Values) < 3 {
		return
	}
	switch s.Kind {
	case sensors.Accelerometer:
		acc := vecmath.FromFloat32(s.Values)
		t.filterMu.Lock()
		t.filter.ProcessAcc(acc, s.TimestampNs)
		t.filterMu.Unlock()

		t.biasMu.Lock()
		if t.estimator != nil {
			t.estimator.ProcessAccelerometer(acc, s.TimestampNs)
		}
		t.biasMu.Unlock()

	case sensors.Gyroscope, sensors.GyroscopeUncalibrated:
		now := t.clock.NanoTime()
		gyro := t.correctGyro(s)

		t.filterMu.Lock()
		t.latestGyroClockNs = now
		t.filter.ProcessGyro(gyro, s.TimestampNs)
		t.filterMu.Unlock()

	case sensors.Magnetometer:
		t.filterMu.Lock()
		t.filter.ProcessMag(s.Values[:3], s.TimestampNs)
		t.filterMu.Unlock()
	}
}

// correctGyro removes the platform's initial bias and the running estimate.
func (t *Tracker) correctGyro(s sensors.Sample) vecmath.Vector3 {
	var g [3]float32
	copy(g[:], s.Values[:3])

	t.biasMu.Lock()
	defer t.biasMu.Unlock()

	if s.Kind == sensors.GyroscopeUncalibrated {
		if t.firstGyroValue && len(s.Values) == 6 {
			copy(t.initialSystemGyroBias[:], s.Values[3:6])
		}
		for i := range g {
			g[i] -= t.initialSystemGyroBias[i]
		}
	}
	gyro := vecmath.FromFloat32(g[:])

	if t.estimator != nil {
		t.estimator.ProcessGyroscope(gyro, s.TimestampNs)
		gyro = gyro.Sub(t.estimator.GyroBias())
	}
	t.firstGyroValue = false
	return gyro
}

// StartTracking resets the filter and begins consuming samples. It does
// nothing if already tracking.
func (t *Tracker) StartTracking() {
	if t == nil {
		return
	}
	t.trackingMu.Lock()
	defer t.trackingMu.Unlock()
	if t.tracking {
		return
	}

	t.filterMu.Lock()
	t.filter.Reset()
	t.filterMu.Unlock()

	t.biasMu.Lock()
	if t.estimator != nil {
		t.estimator.Reset()
	}
	t.firstGyroValue = true
	t.initialSystemGyroBias = [3]float32{}
	t.biasMu.Unlock()

	t.sessionID = uuid.NewString()
	log.WithFields(log.Fields{
		"session":           t.sessionID,
		"neck_model_factor": t.NeckModelFactor(),
		"bias_estimation":   t.GyroBiasEstimationEnabled(),
	}).Info("tracker: tracking started")

	t.provider.RegisterListener(t)
	t.provider.Start()
	t.tracking = true
}

// StopTracking stops consuming samples. Filter state is kept, so a later
// ResetTracker is needed for a cold start.
func (t *Tracker) StopTracking() {
	if t == nil {
		return
	}
	t.trackingMu.Lock()
	defer t.trackingMu.Unlock()
	if !t.tracking {
		return
	}
	t.provider.UnregisterListener(t)
	t.provider.Stop()
	t.tracking = false
	log.WithField("session", t.sessionID).Info("tracker: tracking stopped")
}

func (t *Tracker) Tracking() bool {
	t.trackingMu.Lock()
	defer t.trackingMu.Unlock()
	return t.tracking
}

// SessionID identifies the most recent StartTracking call.
func (t *Tracker) SessionID() string {
	t.trackingMu.Lock()
	defer t.trackingMu.Unlock()
	return t.sessionID
}

// ResetTracker clears the filter and re-captures the initial gyro bias from
// the next gyroscope sample. Tracking state is untouched.
func (t *Tracker) ResetTracker() {
	if t == nil {
		return
	}
	t.filterMu.Lock()
	t.filter.Reset()
	t.filterMu.Unlock()

	t.biasMu.Lock()
	t.firstGyroValue = true
	t.biasMu.Unlock()
}

func (t *Tracker) SetNeckModelFactor(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("%w: got %v", ErrNeckModelFactorRange, f)
	}
	t.neckMu.Lock()
	t.neckModelFactor = f
	t.neckMu.Unlock()
	return nil
}

func (t *Tracker) SetNeckModelEnabled(enabled bool) {
	f := 0.0
	if enabled {
		f = 1.0
	}
	_ = t.SetNeckModelFactor(f)
}

func (t *Tracker) NeckModelFactor() float64 {
	t.neckMu.RLock()
	defer t.neckMu.RUnlock()
	return t.neckModelFactor
}

// SetGyroBiasEstimationEnabled adds a fresh estimator or drops the current
// one. Re-enabling starts again from zero bias.
func (t *Tracker) SetGyroBiasEstimationEnabled(enabled bool) {
	t.biasMu.Lock()
	defer t.biasMu.Unlock()
	switch {
	case enabled && t.estimator == nil && t.newEstimator != nil:
		t.estimator = t.newEstimator()
	case !enabled:
		t.estimator = nil
	}
}

func (t *Tracker) GyroBiasEstimationEnabled() bool {
	t.biasMu.Lock()
	defer t.biasMu.Unlock()
	return t.estimator != nil
}

// SetGyroBiasEstimator installs e, or disables estimation when e is nil.
func (t *Tracker) SetGyroBiasEstimator(e fusion.GyroBiasEstimator) {
	t.biasMu.Lock()
	t.estimator = e
	t.biasMu.Unlock()
}

// Ready reports whether the filter can produce a head view.
func (t *Tracker) Ready() bool {
	t.filterMu.Lock()
	defer t.filterMu.Unlock()
	return t.filter.IsReady()
}

// CurrentPose returns the filter's world-from-sensor rotation without
// prediction. ok is false if the filter is not ready or does not expose it.
func (t *Tracker) CurrentPose() (q quat.Number, ok bool) {
	t.filterMu.Lock()
	defer t.filterMu.Unlock()
	pr, isReporter := t.filter.(fusion.PoseReporter)
	if !isReporter || !t.filter.IsReady() {
		return quat.Number{}, false
	}
	return pr.Orientation(), true
}

// LastHeadView writes the predicted camera-to-head transform into
// out[offset:offset+16]. Nothing is written while the filter is not ready.
func (t *Tracker) LastHeadView(out []float32, offset int) error {
	_, err := t.ReadHeadView(out, offset)
	return err
}

// ReadHeadView is LastHeadView that also reports whether it wrote. The
// readiness check and the prediction happen under one lock, so wrote is
// false exactly when out was left untouched.
func (t *Tracker) ReadHeadView(out []float32, offset int) (wrote bool, err error) {
	if err := vecmath.CheckSpace(out, offset, vecmath.MatrixSize); err != nil {
		return false, fmt.Errorf("tracker: head view needs %d values at offset %d, have %d: %w", vecmath.MatrixSize, offset, len(out), err)
	}
	sensorToDisplay, filterToTracker := t.displayCorrections()

	t.filterMu.Lock()
	if !t.filter.IsReady() {
		t.filterMu.Unlock()
		return false, nil
	}
	secondsForward := float64(t.clock.NanoTime()-t.latestGyroClockNs)/1e9 + PredictionTimeSeconds
	predicted := t.filter.PredictedGLMatrix(secondsForward)
	t.filterMu.Unlock()

	head := vecmath.Multiply(vecmath.Multiply(sensorToDisplay, vecmath.FromFloat64(predicted)), filterToTracker)
	head = applyNeckModel(head, float32(t.NeckModelFactor()))
	if err := vecmath.Store(out, offset, head); err != nil {
		return false, err
	}
	return true, nil
}

// applyNeckModel moves the eyes up and forward of the neck pivot. There is
// no yaw reference, so the horizontal offset is along the view's own z axis.
func applyNeckModel(head vecmath.Mat4, f float32) vecmath.Mat4 {
	neck := vecmath.Translation(0, -f*NeckModelVerticalOffset, f*NeckModelHorizontalOffset)
	return vecmath.Translate(vecmath.Multiply(neck, head), 0, f*NeckModelVerticalOffset, 0)
}

// displayCorrections returns the matrices for the current display rotation,
// rebuilding them only when it changed.
func (t *Tracker) displayCorrections() (sensorToDisplay, filterToTracker vecmath.Mat4) {
	rot := t.display.Rotation()

	t.displayMu.Lock()
	defer t.displayMu.Unlock()
	if !t.haveCorrections || rot != t.correctedRotation {
		deg := float32(rot)
		t.sensorToDisplay = vecmath.RotateEuler(0, 0, -deg)
		t.filterToTracker = vecmath.RotateEuler(-90, 0, deg)
		t.correctedRotation = rot
		t.haveCorrections = true
		t.correctionUpdates++
	}
	return t.sensorToDisplay, t.filterToTracker
}
