package icm20948

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"headtrack/internal/sensors"
)

func newTestPlatform(t *testing.T, ready chan struct{}) *Platform {
	t.Helper()
	noSleep(t)
	d, err := newWithIO(&fakeI2C{regs: scaledRegs()}, Options{})
	require.NoError(t, err)
	p := newPlatform(d, ready)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPlatform_OffersAccelAndCalibratedGyroOnly(t *testing.T) {
	p := newTestPlatform(t, nil)
	for _, k := range []sensors.Kind{sensors.Accelerometer, sensors.Gyroscope} {
		_, ok := p.DefaultSensor(k)
		require.True(t, ok, k.String())
	}
	for _, k := range []sensors.Kind{sensors.GyroscopeUncalibrated, sensors.Magnetometer} {
		_, ok := p.DefaultSensor(k)
		require.False(t, ok, k.String())
	}
	err := p.Register(sensors.Sensor{Kind: sensors.Magnetometer}, sensors.RateGame, make(chan sensors.Sample))
	require.Error(t, err)
}

func TestPlatform_DataReadyTriggersRead(t *testing.T) {
	ready := make(chan struct{}, 1)
	p := newTestPlatform(t, ready)
	sink := make(chan sensors.Sample, 4)
	accel, _ := p.DefaultSensor(sensors.Accelerometer)
	gyro, _ := p.DefaultSensor(sensors.Gyroscope)
	require.NoError(t, p.Register(accel, time.Hour, sink))
	require.NoError(t, p.Register(gyro, time.Hour, sink))

	ready <- struct{}{}
	got := map[sensors.Kind]sensors.Sample{}
	for len(got) < 2 {
		select {
		case s := <-sink:
			got[s.Kind] = s
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	require.InDelta(t, 2*standardGravity, got[sensors.Accelerometer].Values[0], 1e-4)
	require.InDelta(t, -2.1816616, got[sensors.Gyroscope].Values[2], 1e-5)
	require.Equal(t, got[sensors.Accelerometer].TimestampNs, got[sensors.Gyroscope].TimestampNs)
}

func TestPlatform_UnregisterStopsReader(t *testing.T) {
	p := newTestPlatform(t, nil)
	sink := make(chan sensors.Sample, 1)
	accel, _ := p.DefaultSensor(sensors.Accelerometer)
	require.NoError(t, p.Register(accel, 5*time.Millisecond, sink))

	select {
	case <-sink:
	case <-time.After(2 * time.Second):
		t.Fatalf("no sample")
	}
	// The reader may be blocked on the full sink; unregistering must free it.
	p.Unregister(sink)
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Nil(t, p.stop)
}

func TestPlatform_FasterRegistrationRestartsReader(t *testing.T) {
	p := newTestPlatform(t, nil)
	accel, _ := p.DefaultSensor(sensors.Accelerometer)
	require.NoError(t, p.Register(accel, time.Second, make(chan sensors.Sample, 1)))
	require.NoError(t, p.Register(accel, sensors.RateGame, make(chan sensors.Sample, 1)))
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Equal(t, sensors.RateGame, p.period)
}
