package simulated

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"headtrack/internal/headtransform"
	"headtrack/internal/sensors"
	"headtrack/internal/tracker"
)

func requireValues(t *testing.T, want, got []float32, tol float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestSampleAt_FacingNorth(t *testing.T) {
	p := New(Config{Motion: Hold(0)})
	requireValues(t, []float32{0, standardGravity, 0}, p.SampleAt(sensors.Accelerometer, time.Second).Values, 1e-5)
	requireValues(t, []float32{0, -40, -20}, p.SampleAt(sensors.Magnetometer, time.Second).Values, 1e-4)
	requireValues(t, []float32{0, 0, 0}, p.SampleAt(sensors.Gyroscope, time.Second).Values, 1e-9)
}

func TestSampleAt_FacingEast(t *testing.T) {
	p := New(Config{Motion: Hold(90)})
	requireValues(t, []float32{0, standardGravity, 0}, p.SampleAt(sensors.Accelerometer, 0).Values, 1e-5)
	// North is to the device's left.
	requireValues(t, []float32{-20, -40, 0}, p.SampleAt(sensors.Magnetometer, 0).Values, 1e-4)
}

func TestSampleAt_TurningRightSpinsAboutSensorY(t *testing.T) {
	p := New(Config{Motion: ConstantRate(90), GyroBias: [3]float64{0.01, 0.02, 0.03}, ReportUncalibrated: true})

	cal := p.SampleAt(sensors.Gyroscope, 2*time.Second)
	requireValues(t, []float32{0, -math.Pi / 2, 0}, cal.Values, 1e-5)

	raw := p.SampleAt(sensors.GyroscopeUncalibrated, 2*time.Second)
	require.Len(t, raw.Values, 6)
	requireValues(t, []float32{0.01, -math.Pi/2 + 0.02, 0.03, 0.01, 0.02, 0.03}, raw.Values, 1e-5)
	require.Equal(t, int64(2*time.Second), raw.TimestampNs)
}

func TestSampleAt_NoiseIsSeeded(t *testing.T) {
	a := New(Config{NoiseStd: 0.1, Seed: 7})
	b := New(Config{NoiseStd: 0.1, Seed: 7})
	require.Equal(t, a.SampleAt(sensors.Accelerometer, 0).Values, b.SampleAt(sensors.Accelerometer, 0).Values)
	require.NotEqual(t, a.SampleAt(sensors.Accelerometer, 0).Values, New(Config{}).SampleAt(sensors.Accelerometer, 0).Values)
}

func TestDefaultSensor(t *testing.T) {
	p := New(Config{})
	_, ok := p.DefaultSensor(sensors.GyroscopeUncalibrated)
	require.False(t, ok)
	s, ok := p.DefaultSensor(sensors.Magnetometer)
	require.True(t, ok)
	require.Equal(t, sensors.Magnetometer, s.Kind)

	_, ok = New(Config{ReportUncalibrated: true}).DefaultSensor(sensors.GyroscopeUncalibrated)
	require.True(t, ok)
}

func TestRegister_DeliversUntilUnregistered(t *testing.T) {
	p := New(Config{})
	sink := make(chan sensors.Sample, 8)
	accel, _ := p.DefaultSensor(sensors.Accelerometer)
	require.NoError(t, p.Register(accel, 5*time.Millisecond, sink))

	select {
	case s := <-sink:
		require.Equal(t, sensors.Accelerometer, s.Kind)
	case <-time.After(2 * time.Second):
		t.Fatalf("no sample delivered")
	}

	p.Unregister(sink)
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sample goroutine did not exit")
	}
}

func TestEndToEnd_TrackerFollowsHeading(t *testing.T) {
	p := New(Config{Motion: Hold(90), GyroBias: [3]float64{0.002, -0.001, 0.003}, ReportUncalibrated: true})
	loop := sensors.NewLoop(p, nil)
	tr := tracker.New(loop, nil, tracker.StaticDisplay{})
	tr.StartTracking()
	defer func() {
		tr.StopTracking()
		p.Wait()
	}()

	h := headtransform.New()
	euler := make([]float32, 3)
	require.Eventually(t, func() bool {
		if !tr.Ready() {
			return false
		}
		if err := tr.LastHeadView(h.HeadView(), 0); err != nil {
			return false
		}
		if err := h.EulerAngles(euler, 0); err != nil {
			return false
		}
		return math.Abs(float64(euler[1])+math.Pi/2) < 2*math.Pi/180
	}, 3*time.Second, 20*time.Millisecond, "yaw never settled near -90deg: %v", euler)

	require.InDelta(t, 0, euler[0], 2*math.Pi/180)
	require.InDelta(t, 0, euler[2], 2*math.Pi/180)
}
