package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "tracker: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	require.Equal(t, Default(), cfg)
	if cfg.Poll.Interval != 100*time.Millisecond {
		t.Fatalf("interval=%s want 100ms", cfg.Poll.Interval)
	}
	if !cfg.Tracker.GyroBiasEstimation {
		t.Fatalf("expected gyro bias estimation on by default")
	}
	if cfg.Tracker.NeckModelFactor != 1 {
		t.Fatalf("neck_model_factor=%v want 1", cfg.Tracker.NeckModelFactor)
	}
}

func TestLoad_ExplicitZeroesKept(t *testing.T) {
	path := writeTempConfig(t, `
tracker:
  neck_model_factor: 0
  gyro_bias_estimation: false
  display_rotation: 270
poll:
  interval: 250ms
sensors:
  source: ICM20948
  manufacturer: HTC
  icm20948:
    data_ready_chip: gpiochip0
    data_ready_line: 17
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	require.Equal(t, 0.0, cfg.Tracker.NeckModelFactor)
	require.False(t, cfg.Tracker.GyroBiasEstimation)
	require.Equal(t, 270, cfg.Tracker.DisplayRotation)
	require.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	require.Equal(t, SourceICM20948, cfg.Sensors.Source)
	require.Equal(t, 17, cfg.Sensors.ICM20948.DataReadyLine)
	// Untouched siblings keep their defaults.
	require.Equal(t, 1, cfg.Sensors.ICM20948.I2CBus)
	require.Equal(t, uint16(0x68), cfg.Sensors.ICM20948.Addr)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"NeckFactorHigh", "tracker:\n  neck_model_factor: 1.5\n", "tracker.neck_model_factor must be in [0, 1]"},
		{"NeckFactorNegative", "tracker:\n  neck_model_factor: -0.1\n", "tracker.neck_model_factor must be in [0, 1]"},
		{"Rotation", "tracker:\n  display_rotation: 45\n", "tracker.display_rotation must be 0, 90, 180 or 270"},
		{"Source", "sensors:\n  source: bluetooth\n", "sensors.source must be one of sim, icm20948, serial"},
		{"SerialDevice", "sensors:\n  source: serial\n", "sensors.serial.device is required when sensors.source is 'serial'"},
		{"SerialKinds", "sensors:\n  source: serial\n  serial:\n    device: /dev/ttyACM0\n    kinds: [A, Q]\n", `sensors.serial.kinds: unknown kind "Q"`},
		{"Addr", "sensors:\n  source: icm20948\n  icm20948:\n    addr: 0x80\n", "sensors.icm20948.addr must be a 7-bit address"},
		{"Noise", "sensors:\n  sim:\n    noise_std: -1\n", "sensors.sim.noise_std must be >= 0"},
		{"Poll", "poll:\n  interval: 0s\n", "poll.interval must be > 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	_, err := Load(writeTempConfig(t, "log:\n  level: chatty\n"))
	require.ErrorContains(t, err, "log.level")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Sensors.Source = SourceSerial
	cfg.Sensors.Serial.Device = "/dev/ttyUSB0"
	cfg.Sensors.Serial.Kinds = []string{"A", "G"}
	b, err := cfg.Marshal()
	require.NoError(t, err)
	got, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestLoad_BlocklistAbsentVersusEmpty(t *testing.T) {
	cfg, err := Parse([]byte("sensors:\n  manufacturer: HTC\n"))
	require.NoError(t, err)
	require.Nil(t, cfg.Sensors.UncalibratedGyroBlocklist)

	cfg, err = Parse([]byte("sensors:\n  uncalibrated_gyro_blocklist: []\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Sensors.UncalibratedGyroBlocklist)
	require.Empty(t, cfg.Sensors.UncalibratedGyroBlocklist)
}
