// Package serialimu reads sensor samples streamed as text lines over a
// serial port, typically from a microcontroller sampling an IMU.
package serialimu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"headtrack/internal/sensors"
)

// DefaultKinds is what a device is assumed to stream when none are configured.
var DefaultKinds = []sensors.Kind{
	sensors.Accelerometer,
	sensors.Gyroscope,
	sensors.GyroscopeUncalibrated,
	sensors.Magnetometer,
}

// Platform streams whatever the device sends. The device picks its own
// rate, so registration periods are ignored.
type Platform struct {
	port    io.ReadCloser
	name    string
	offered map[sensors.Kind]bool
	sinks   sensors.SinkSet

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	closeErr  error
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions, kinds []sensors.Kind) (*Platform, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serialimu: %w", err)
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serialimu: open %s: %w", path, err)
	}
	return newPlatform(port, path, kinds), nil
}

func newPlatform(r io.ReadCloser, name string, kinds []sensors.Kind) *Platform {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	offered := make(map[sensors.Kind]bool, len(kinds))
	for _, k := range kinds {
		offered[k] = true
	}
	return &Platform{port: r, name: name, offered: offered, done: make(chan struct{})}
}

func (p *Platform) DefaultSensor(kind sensors.Kind) (sensors.Sensor, bool) {
	if !p.offered[kind] {
		return sensors.Sensor{}, false
	}
	return sensors.Sensor{Kind: kind, Name: p.name + " " + kind.String()}, true
}

func (p *Platform) Register(s sensors.Sensor, period time.Duration, sink chan<- sensors.Sample) error {
	if !p.offered[s.Kind] {
		return fmt.Errorf("serialimu: %s not available", s.Kind)
	}
	if _, err := p.sinks.Add(s, period, sink); err != nil {
		return err
	}
	p.startOnce.Do(func() { go p.read() })
	return nil
}

func (p *Platform) Unregister(sink chan<- sensors.Sample) {
	p.sinks.Remove(sink)
}

// Close closes the port, which ends the reader.
func (p *Platform) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.port.Close()
		p.startOnce.Do(func() { close(p.done) })
	})
	return p.closeErr
}

// Done is closed once the reader has exited.
func (p *Platform) Done() <-chan struct{} {
	return p.done
}

func (p *Platform) read() {
	defer close(p.done)

	sc := bufio.NewScanner(p.port)
	var bad int
	for sc.Scan() {
		s, err := ParseLine(sc.Text())
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			bad++
			if bad == 1 || bad%100 == 0 {
				log.WithFields(log.Fields{"port": p.name, "bad_lines": bad}).Warnf("%v", err)
			}
			continue
		}
		for _, sub := range p.sinks.Active(s.Kind) {
			sub.Deliver(s)
		}
	}
	if err := sc.Err(); err != nil {
		log.WithField("port", p.name).Warnf("serialimu: read: %v", err)
	}
}
