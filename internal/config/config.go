package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Sensors SensorsConfig `yaml:"sensors"`
	Poll    PollConfig    `yaml:"poll"`
	Log     LogConfig     `yaml:"log"`
}

type TrackerConfig struct {
	NeckModelFactor    float64 `yaml:"neck_model_factor"`
	GyroBiasEstimation bool    `yaml:"gyro_bias_estimation"`
	DisplayRotation    int     `yaml:"display_rotation"`
}

const (
	SourceSim      = "sim"
	SourceICM20948 = "icm20948"
	SourceSerial   = "serial"
)

type SensorsConfig struct {
	Source       string `yaml:"source"`
	Manufacturer string `yaml:"manufacturer"`
	// UncalibratedGyroBlocklist overrides the built-in list of manufacturers
	// whose uncalibrated gyroscope is ignored.
	UncalibratedGyroBlocklist []string `yaml:"uncalibrated_gyro_blocklist,omitempty"`

	Sim      SimSensorConfig      `yaml:"sim"`
	ICM20948 ICM20948SensorConfig `yaml:"icm20948"`
	Serial   SerialSensorConfig   `yaml:"serial"`
}

type SimSensorConfig struct {
	YawRateDegPerSec float64 `yaml:"yaw_rate_deg_per_sec"`
	// Script is a motion script path; it takes precedence over the yaw rate.
	Script             string     `yaml:"script"`
	GyroBias           [3]float64 `yaml:"gyro_bias"`
	NoiseStd           float64    `yaml:"noise_std"`
	FieldHorizontalUT  float64    `yaml:"field_horizontal_ut"`
	FieldVerticalUT    float64    `yaml:"field_vertical_ut"`
	ReportUncalibrated bool       `yaml:"report_uncalibrated"`
	Seed               uint64     `yaml:"seed"`
}

type ICM20948SensorConfig struct {
	I2CBus        int    `yaml:"i2c_bus"`
	Addr          uint16 `yaml:"addr"`
	DataReadyChip string `yaml:"data_ready_chip"`
	DataReadyLine int    `yaml:"data_ready_line"`
	AccelRangeG   int    `yaml:"accel_range_g"`
	GyroRangeDPS  int    `yaml:"gyro_range_dps"`
	RateHz        int    `yaml:"rate_hz"`
}

type SerialSensorConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
	// Kinds lists the line codes the device sends (A, G, U, M).
	Kinds []string `yaml:"kinds,omitempty"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default is the configuration used for every key a file leaves out.
func Default() Config {
	return Config{
		Tracker: TrackerConfig{
			NeckModelFactor:    1.0,
			GyroBiasEstimation: true,
		},
		Sensors: SensorsConfig{
			Source: SourceSim,
			Sim: SimSensorConfig{
				FieldHorizontalUT:  20,
				FieldVerticalUT:    40,
				ReportUncalibrated: true,
			},
			ICM20948: ICM20948SensorConfig{
				I2CBus: 1,
				Addr:   0x68,
				RateHz: 50,
			},
			Serial: SerialSensorConfig{
				BaudRate: 115200,
			},
		},
		Poll: PollConfig{Interval: 100 * time.Millisecond},
		Log:  LogConfig{Level: "info"},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	f := c.Tracker.NeckModelFactor
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("tracker.neck_model_factor must be in [0, 1]")
	}
	switch c.Tracker.DisplayRotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("tracker.display_rotation must be 0, 90, 180 or 270")
	}

	c.Sensors.Source = strings.ToLower(strings.TrimSpace(c.Sensors.Source))
	switch c.Sensors.Source {
	case SourceSim:
		if c.Sensors.Sim.NoiseStd < 0 {
			return fmt.Errorf("sensors.sim.noise_std must be >= 0")
		}
	case SourceICM20948:
		if c.Sensors.ICM20948.I2CBus < 0 {
			return fmt.Errorf("sensors.icm20948.i2c_bus must be >= 0")
		}
		if a := c.Sensors.ICM20948.Addr; a != 0 && (a < 0x08 || a > 0x77) {
			return fmt.Errorf("sensors.icm20948.addr must be a 7-bit address")
		}
		if c.Sensors.ICM20948.DataReadyChip != "" && c.Sensors.ICM20948.DataReadyLine < 0 {
			return fmt.Errorf("sensors.icm20948.data_ready_line must be >= 0 when data_ready_chip is set")
		}
	case SourceSerial:
		if strings.TrimSpace(c.Sensors.Serial.Device) == "" {
			return fmt.Errorf("sensors.serial.device is required when sensors.source is 'serial'")
		}
		for _, k := range c.Sensors.Serial.Kinds {
			switch strings.ToUpper(k) {
			case "A", "G", "U", "M":
			default:
				return fmt.Errorf("sensors.serial.kinds: unknown kind %q", k)
			}
		}
	default:
		return fmt.Errorf("sensors.source must be one of %s, %s, %s", SourceSim, SourceICM20948, SourceSerial)
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be > 0")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
