package sensors

import (
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

const (
	threadName = "sensor"
	sinkBuffer = 64
)

// Provider is a start/stop source of samples with dynamic listeners.
type Provider interface {
	Start()
	Stop()
	RegisterListener(l Listener)
	UnregisterListener(l Listener)
}

// Loop captures samples on a dedicated OS thread and hands each one to every
// registered listener. Listeners run on that thread and must not block.
//
// Listeners are compared with ==, so they must be comparable (typically a
// pointer).
type Loop struct {
	platform Platform
	quirks   Quirks

	mu      sync.Mutex
	running bool
	sink    chan Sample
	quit    chan struct{}
	done    chan struct{}

	// Writers serialize on listenersMu and swap in a fresh slice; delivery
	// reads whatever snapshot is current.
	listenersMu sync.Mutex
	listeners   atomic.Pointer[[]Listener]
}

func NewLoop(p Platform, q Quirks) *Loop {
	if q == nil {
		q = NoQuirks{}
	}
	l := &Loop{platform: p, quirks: q}
	l.listeners.Store(&[]Listener{})
	return l
}

// Start spawns the capture thread and returns once its sensors are
// registered. Calling Start on a running loop does nothing.
func (l *Loop) Start() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	sink := make(chan Sample, sinkBuffer)
	quit := make(chan struct{})
	ready := make(chan struct{})
	done := make(chan struct{})
	// The previous run's capture goroutine may still be inside a listener.
	// The new one waits for it to exit before dispatching.
	go l.capture(sink, quit, ready, done, l.done)
	<-ready

	l.sink, l.quit, l.done = sink, quit, done
	l.running = true
}

// Stop unregisters the sensors and ends the capture thread. No sample is
// dispatched after Stop returns, apart from one a listener is already
// handling. Stop does not wait for the thread to exit, so it may be called
// from a listener.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.platform.Unregister(l.sink)
	close(l.quit)
	l.running = false
}

func (l *Loop) Running() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// RegisterListener adds ln. Registering the same listener twice has no effect.
func (l *Loop) RegisterListener(ln Listener) {
	if l == nil || ln == nil {
		return
	}
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	cur := *l.listeners.Load()
	for _, x := range cur {
		if x == ln {
			return
		}
	}
	next := make([]Listener, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, ln)
	l.listeners.Store(&next)
}

func (l *Loop) UnregisterListener(ln Listener) {
	if l == nil || ln == nil {
		return
	}
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	cur := *l.listeners.Load()
	next := make([]Listener, 0, len(cur))
	for _, x := range cur {
		if x != ln {
			next = append(next, x)
		}
	}
	l.listeners.Store(&next)
}

func (l *Loop) capture(sink chan Sample, quit, ready, done chan struct{}, prev <-chan struct{}) {
	// The thread is never unlocked, so it is torn down with the goroutine.
	runtime.LockOSThread()
	defer close(done)

	if err := nameThread(threadName); err != nil {
		log.Debugf("sensors: name capture thread: %v", err)
	}
	l.registerSensors(sink)
	close(ready)

	if prev != nil {
		<-prev
	}

	for {
		select {
		case <-quit:
			return
		case s := <-sink:
			// select picks at random among ready cases; quit must win over
			// samples still buffered when Stop ran.
			select {
			case <-quit:
				return
			default:
			}
			l.dispatch(s)
		}
	}
}

func (l *Loop) registerSensors(sink chan Sample) {
	var want []Sensor
	if s, ok := l.platform.DefaultSensor(Accelerometer); ok {
		want = append(want, s)
	} else {
		log.Warn("sensors: no accelerometer available")
	}
	if s, ok := SelectGyroscope(l.platform, l.quirks); ok {
		want = append(want, s)
	} else {
		log.Warn("sensors: no gyroscope available")
	}
	if s, ok := l.platform.DefaultSensor(Magnetometer); ok {
		want = append(want, s)
	} else {
		log.Warn("sensors: no magnetometer available")
	}

	for _, s := range want {
		if err := l.platform.Register(s, RateGame, sink); err != nil {
			log.WithFields(log.Fields{"sensor": s.Name, "kind": s.Kind}).Warnf("sensors: register failed: %v", err)
			continue
		}
		log.WithFields(log.Fields{"sensor": s.Name, "kind": s.Kind}).Debug("sensors: registered")
	}
}

func (l *Loop) dispatch(s Sample) {
	for _, ln := range *l.listeners.Load() {
		ln.OnSensorChanged(s)
	}
}
