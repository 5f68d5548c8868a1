// Package fusion turns accelerometer, gyroscope and magnetometer samples into
// an orientation estimate.
//
// Vectors are in the device's sensor frame: x to the right of the screen, y
// up along it and z out of it. The world frame is east-north-up.
package fusion

import (
	"gonum.org/v1/gonum/num/quat"

	"headtrack/internal/vecmath"
)

// OrientationFilter fuses samples into an orientation. Implementations are
// not safe for concurrent use.
type OrientationFilter interface {
	Reset()
	// IsReady reports whether enough samples have been seen to produce a
	// meaningful orientation.
	IsReady() bool
	ProcessAcc(a vecmath.Vector3, timestampNs int64)
	ProcessGyro(w vecmath.Vector3, timestampNs int64)
	ProcessMag(m []float32, timestampNs int64)
	// PredictedGLMatrix returns the sensor-from-world rotation expected
	// secondsForward after the latest gyroscope sample, as 16 column-major
	// values.
	PredictedGLMatrix(secondsForward float64) [16]float64
}

// GyroBiasEstimator tracks the slowly varying offset of a gyroscope.
// Implementations are not safe for concurrent use.
type GyroBiasEstimator interface {
	Reset()
	ProcessAccelerometer(a vecmath.Vector3, timestampNs int64)
	ProcessGyroscope(w vecmath.Vector3, timestampNs int64)
	GyroBias() vecmath.Vector3
}

// PoseReporter is implemented by filters that expose their current,
// unpredicted orientation.
type PoseReporter interface {
	// Orientation returns the world-from-sensor rotation.
	Orientation() quat.Number
}
