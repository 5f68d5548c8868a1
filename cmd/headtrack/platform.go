package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"headtrack/internal/config"
	"headtrack/internal/sensors"
	"headtrack/internal/sensors/icm20948"
	"headtrack/internal/sensors/serialimu"
	"headtrack/internal/sensors/simulated"
)

// openPlatform builds the configured sensor source. The returned close
// function is never nil.
func openPlatform(cfg config.SensorsConfig) (sensors.Platform, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Source {
	case config.SourceSim:
		motion, err := simMotion(cfg.Sim)
		if err != nil {
			return nil, noop, err
		}
		p := simulated.New(simulated.Config{
			Motion:             motion,
			GyroBias:           cfg.Sim.GyroBias,
			NoiseStd:           cfg.Sim.NoiseStd,
			FieldHorizontalUT:  cfg.Sim.FieldHorizontalUT,
			FieldVerticalUT:    cfg.Sim.FieldVerticalUT,
			ReportUncalibrated: cfg.Sim.ReportUncalibrated,
			Seed:               cfg.Sim.Seed,
		})
		return p, noop, nil

	case config.SourceICM20948:
		c := cfg.ICM20948
		p, err := icm20948.Open(icm20948.PlatformConfig{
			I2CBus:        c.I2CBus,
			Addr:          c.Addr,
			DataReadyChip: c.DataReadyChip,
			DataReadyLine: c.DataReadyLine,
			Options: icm20948.Options{
				AccelRangeG:  c.AccelRangeG,
				GyroRangeDPS: c.GyroRangeDPS,
				RateHz:       c.RateHz,
			},
		})
		if err != nil {
			return nil, noop, err
		}
		log.Warn("icm20948: no magnetometer; heading will drift")
		return p, p.Close, nil

	case config.SourceSerial:
		c := cfg.Serial
		kinds, err := serialKinds(c.Kinds)
		if err != nil {
			return nil, noop, err
		}
		p, err := serialimu.Open(c.Device, serialimu.PortOptions{
			BaudRate: c.BaudRate,
			DataBits: c.DataBits,
			StopBits: c.StopBits,
			Parity:   c.Parity,
		}, kinds)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown sensors.source %q", cfg.Source)
}

// closeSource releases a sensor source, logging rather than returning the
// error so it can be deferred.
func closeSource(closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warnf("sensor source close: %v", err)
	}
}

func simMotion(cfg config.SimSensorConfig) (*simulated.Motion, error) {
	if cfg.Script == "" {
		return simulated.ConstantRate(cfg.YawRateDegPerSec), nil
	}
	script, err := simulated.LoadMotionScript(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("sim script: %w", err)
	}
	return simulated.NewMotion(script)
}

func serialKinds(codes []string) ([]sensors.Kind, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	kinds := make([]sensors.Kind, 0, len(codes))
	for _, c := range codes {
		k, ok := serialimu.ParseKindCode(c)
		if !ok {
			return nil, fmt.Errorf("unknown serial sensor kind %q", c)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func quirksFor(cfg config.SensorsConfig) sensors.Quirks {
	return sensors.ManufacturerQuirks{
		Manufacturer: cfg.Manufacturer,
		Blocklist:    cfg.UncalibratedGyroBlocklist,
	}
}
