// Package simulated is a sensor platform for a device held upright, screen
// towards the user, turning about the vertical axis.
package simulated

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"headtrack/internal/sensors"
	"headtrack/internal/vecmath"
)

const standardGravity = 9.80665

type Config struct {
	Motion *Motion
	// GyroBias is added to every gyroscope reading, rad/s.
	GyroBias [3]float64
	// NoiseStd is the standard deviation of additive noise on every axis.
	NoiseStd float64
	// Earth field components in microtesla.
	FieldHorizontalUT float64
	FieldVerticalUT   float64
	// ReportUncalibrated offers the uncalibrated gyroscope, whose bias
	// payload is GyroBias.
	ReportUncalibrated bool
	Seed               uint64
}

type Platform struct {
	cfg   Config
	start time.Time
	sinks sensors.SinkSet

	rngMu sync.Mutex
	rng   *rand.Rand

	wg sync.WaitGroup
}

func New(cfg Config) *Platform {
	if cfg.Motion == nil {
		cfg.Motion = ConstantRate(0)
	}
	if cfg.FieldHorizontalUT == 0 && cfg.FieldVerticalUT == 0 {
		cfg.FieldHorizontalUT, cfg.FieldVerticalUT = 20, 40
	}
	return &Platform{
		cfg:   cfg,
		start: time.Now(),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

func (p *Platform) DefaultSensor(kind sensors.Kind) (sensors.Sensor, bool) {
	switch kind {
	case sensors.Accelerometer, sensors.Gyroscope, sensors.Magnetometer:
	case sensors.GyroscopeUncalibrated:
		if !p.cfg.ReportUncalibrated {
			return sensors.Sensor{}, false
		}
	default:
		return sensors.Sensor{}, false
	}
	return sensors.Sensor{Kind: kind, Name: "simulated " + kind.String()}, true
}

func (p *Platform) Register(s sensors.Sensor, period time.Duration, sink chan<- sensors.Sample) error {
	sub, err := p.sinks.Add(s, period, sink)
	if err != nil {
		return err
	}
	p.wg.Add(1)
	go p.run(sub)
	return nil
}

func (p *Platform) Unregister(sink chan<- sensors.Sample) {
	p.sinks.Remove(sink)
}

// Wait blocks until every sample goroutine of an unregistered sink has
// exited.
func (p *Platform) Wait() {
	p.wg.Wait()
}

func (p *Platform) run(sub sensors.Subscription) {
	defer p.wg.Done()
	tick := time.NewTicker(sub.Period)
	defer tick.Stop()
	for {
		select {
		case <-sub.Done:
			return
		case now := <-tick.C:
			if !sub.Deliver(p.SampleAt(sub.Sensor.Kind, now.Sub(p.start))) {
				return
			}
		}
	}
}

// Orientation returns the world-from-sensor rotation at elapsed: heading
// about the vertical, applied after standing the device upright.
func (p *Platform) Orientation(elapsed time.Duration) quat.Number {
	heading, _ := p.cfg.Motion.HeadingAt(elapsed)
	upright := vecmath.AxisAngle(vecmath.Vector3{X: 1}, math.Pi/2)
	turn := vecmath.AxisAngle(vecmath.Vector3{Z: 1}, -heading*math.Pi/180)
	return quat.Mul(turn, upright)
}

// SampleAt computes the reading of kind at elapsed, including noise.
func (p *Platform) SampleAt(kind sensors.Kind, elapsed time.Duration) sensors.Sample {
	toSensor := quat.Conj(p.Orientation(elapsed))
	var v vecmath.Vector3
	var extra []float32

	switch kind {
	case sensors.Accelerometer:
		v = vecmath.RotateVector(toSensor, vecmath.Vector3{Z: standardGravity})
	case sensors.Magnetometer:
		v = vecmath.RotateVector(toSensor, vecmath.Vector3{Y: p.cfg.FieldHorizontalUT, Z: -p.cfg.FieldVerticalUT})
	case sensors.Gyroscope, sensors.GyroscopeUncalibrated:
		_, rate := p.cfg.Motion.HeadingAt(elapsed)
		// Clockwise heading change is a negative turn about world up.
		v = vecmath.RotateVector(toSensor, vecmath.Vector3{Z: -rate * math.Pi / 180})
		if kind == sensors.GyroscopeUncalibrated {
			b := p.cfg.GyroBias
			v = v.Add(vecmath.NewVector3(b[0], b[1], b[2]))
			extra = []float32{float32(b[0]), float32(b[1]), float32(b[2])}
		}
	default:
		return sensors.Sample{Kind: kind, TimestampNs: int64(elapsed)}
	}
	v = v.Add(p.noise())

	values := append([]float32{float32(v.X), float32(v.Y), float32(v.Z)}, extra...)
	return sensors.Sample{Kind: kind, Values: values, TimestampNs: int64(elapsed)}
}

func (p *Platform) noise() vecmath.Vector3 {
	if p.cfg.NoiseStd <= 0 {
		return vecmath.Vector3{}
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	s := p.cfg.NoiseStd
	return vecmath.NewVector3(p.rng.NormFloat64()*s, p.rng.NormFloat64()*s, p.rng.NormFloat64()*s)
}
