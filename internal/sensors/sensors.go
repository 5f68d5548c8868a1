// Package sensors owns the raw motion sensor stream: sample types, the
// platform abstraction that produces them, and the capture loop that fans
// them out to listeners.
package sensors

import (
	"fmt"
	"sync"
	"time"
)

type Kind int

const (
	Accelerometer Kind = iota + 1
	Gyroscope
	GyroscopeUncalibrated
	Magnetometer
)

func (k Kind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Gyroscope:
		return "gyroscope"
	case GyroscopeUncalibrated:
		return "gyroscope_uncalibrated"
	case Magnetometer:
		return "magnetometer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsGyroscope reports whether samples of this kind carry angular rate.
func (k Kind) IsGyroscope() bool {
	return k == Gyroscope || k == GyroscopeUncalibrated
}

// RateGame is the sampling period requested for every sensor.
const RateGame = 20 * time.Millisecond

// Sample is one reading. Accelerometer values are m/s^2, gyroscope rad/s and
// magnetometer microtesla. Uncalibrated gyroscope samples carry 6 values: the
// raw rate followed by the platform's bias estimate.
//
// Samples are not modified after delivery; consumers that need to adjust the
// values copy them first.
type Sample struct {
	Kind        Kind
	Values      []float32
	TimestampNs int64
}

type Listener interface {
	OnSensorChanged(s Sample)
}

// Sensor identifies one hardware sensor offered by a Platform.
type Sensor struct {
	Kind Kind
	Name string
}

// Platform is a source of sensor samples.
//
// Register starts delivering samples of s to sink roughly every period until
// Unregister(sink) is called. Implementations must not block forever on a
// full sink once it has been unregistered.
type Platform interface {
	DefaultSensor(kind Kind) (Sensor, bool)
	Register(s Sensor, period time.Duration, sink chan<- Sample) error
	Unregister(sink chan<- Sample)
}

// Subscription is one active Register call.
type Subscription struct {
	Sensor Sensor
	Period time.Duration
	Sink   chan<- Sample
	// Done is closed when the sink is unregistered.
	Done <-chan struct{}
}

// Deliver sends s to sub.Sink unless the subscription ends first.
func (sub Subscription) Deliver(s Sample) bool {
	select {
	case sub.Sink <- s:
		return true
	case <-sub.Done:
		return false
	}
}

// SinkSet tracks subscriptions for Platform implementations.
type SinkSet struct {
	mu   sync.Mutex
	subs map[chan<- Sample]*sinkEntry
}

type sinkEntry struct {
	done chan struct{}
	subs []Subscription
}

// Add records a subscription. The returned Subscription's Done channel is
// shared by every sensor registered on the same sink.
func (s *SinkSet) Add(sensor Sensor, period time.Duration, sink chan<- Sample) (Subscription, error) {
	if sink == nil {
		return Subscription{}, fmt.Errorf("sensors: nil sink")
	}
	if period <= 0 {
		return Subscription{}, fmt.Errorf("sensors: invalid period %v", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[chan<- Sample]*sinkEntry)
	}
	e := s.subs[sink]
	if e == nil {
		e = &sinkEntry{done: make(chan struct{})}
		s.subs[sink] = e
	}
	sub := Subscription{Sensor: sensor, Period: period, Sink: sink, Done: e.done}
	e.subs = append(e.subs, sub)
	return sub, nil
}

// Remove ends every subscription on sink and returns them.
func (s *SinkSet) Remove(sink chan<- Sample) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.subs[sink]
	if e == nil {
		return nil
	}
	delete(s.subs, sink)
	close(e.done)
	return e.subs
}

// Active returns the live subscriptions for kind.
func (s *SinkSet) Active(kind Kind) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Subscription
	for _, e := range s.subs {
		for _, sub := range e.subs {
			if sub.Sensor.Kind == kind {
				out = append(out, sub)
			}
		}
	}
	return out
}

func (s *SinkSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.subs {
		n += len(e.subs)
	}
	return n
}
