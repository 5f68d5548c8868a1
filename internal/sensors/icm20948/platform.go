package icm20948

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"headtrack/internal/i2c"
	"headtrack/internal/sensors"
)

// PlatformConfig selects the bus, address and optional data-ready line.
type PlatformConfig struct {
	I2CBus int
	Addr   uint16
	// DataReadyChip and DataReadyLine name the GPIO wired to INT. With no
	// chip configured the device is polled.
	DataReadyChip string
	DataReadyLine int
	Options       Options
}

// Platform offers the accelerometer and calibrated gyroscope of one device.
// The chip has no magnetometer on the primary bus.
type Platform struct {
	dev     *Device
	closeFn func() error
	ready   <-chan struct{}

	sinks sensors.SinkSet

	mu      sync.Mutex
	period  time.Duration
	stop    chan struct{}
	stopped chan struct{}
}

// Open probes the device and returns a platform ready for registration.
func Open(cfg PlatformConfig) (*Platform, error) {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.Addr == 0 {
		cfg.Addr = DefaultAddress()
	}
	busPath := i2c.BusPath(cfg.I2CBus)
	bus, err := i2c.Open(busPath)
	if err != nil {
		return nil, fmt.Errorf("icm20948: open %s: %w", busPath, err)
	}

	opts := cfg.Options
	opts.DataReadyInterrupt = cfg.DataReadyChip != ""
	dev, err := New(bus.Dev(cfg.Addr), opts)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	p := &Platform{dev: dev, closeFn: bus.Close}
	if cfg.DataReadyChip != "" {
		dr, err := openDataReady(cfg.DataReadyChip, cfg.DataReadyLine)
		if err != nil {
			_ = bus.Close()
			return nil, err
		}
		p.ready = dr.events
		p.closeFn = func() error {
			err1 := dr.Close()
			err2 := bus.Close()
			if err1 != nil {
				return err1
			}
			return err2
		}
	}
	return p, nil
}

func newPlatform(dev *Device, ready <-chan struct{}) *Platform {
	return &Platform{dev: dev, ready: ready, closeFn: func() error { return nil }}
}

// Close stops sampling and releases the bus and GPIO line.
func (p *Platform) Close() error {
	if p == nil {
		return nil
	}
	p.stopReader()
	return p.closeFn()
}

func (p *Platform) DefaultSensor(kind sensors.Kind) (sensors.Sensor, bool) {
	switch kind {
	case sensors.Accelerometer, sensors.Gyroscope:
		return sensors.Sensor{Kind: kind, Name: "ICM-20948 " + kind.String()}, true
	}
	return sensors.Sensor{}, false
}

// Register starts the shared reader on first use. Accelerometer and
// gyroscope come from one bus read, so the fastest requested period wins.
func (p *Platform) Register(s sensors.Sensor, period time.Duration, sink chan<- sensors.Sample) error {
	if _, ok := p.DefaultSensor(s.Kind); !ok {
		return fmt.Errorf("icm20948: %s not available", s.Kind)
	}
	if _, err := p.sinks.Add(s, period, sink); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil && period >= p.period {
		return nil
	}
	p.stopReaderLocked()
	p.period = period
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.read(p.period, p.stop, p.stopped)
	return nil
}

func (p *Platform) Unregister(sink chan<- sensors.Sample) {
	p.sinks.Remove(sink)
	if p.sinks.Len() == 0 {
		p.stopReader()
	}
}

func (p *Platform) stopReader() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopReaderLocked()
}

func (p *Platform) stopReaderLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.stopped
	p.stop, p.stopped = nil, nil
}

func (p *Platform) read(period time.Duration, stop, stopped chan struct{}) {
	defer close(stopped)

	// With a data-ready line the ticker only guards against missed edges.
	if p.ready != nil {
		period *= 5
	}
	tick := time.NewTicker(period)
	defer tick.Stop()

	var failures int
	for {
		select {
		case <-stop:
			return
		case <-p.ready:
		case <-tick.C:
		}

		s, err := p.dev.Read()
		if err != nil {
			failures++
			if failures == 1 || failures%100 == 0 {
				log.WithField("failures", failures).Warnf("icm20948: %v", err)
			}
			continue
		}
		failures = 0
		p.publish(s, stop)
	}
}

func (p *Platform) publish(s Sample, stop <-chan struct{}) {
	deliver := func(kind sensors.Kind, v [3]float64) {
		for _, sub := range p.sinks.Active(kind) {
			sample := sensors.Sample{
				Kind:        kind,
				Values:      []float32{float32(v[0]), float32(v[1]), float32(v[2])},
				TimestampNs: s.TimestampNs,
			}
			select {
			case sub.Sink <- sample:
			case <-sub.Done:
			case <-stop:
			}
		}
	}
	deliver(sensors.Accelerometer, s.Accel)
	deliver(sensors.Gyroscope, s.Gyro)
}
