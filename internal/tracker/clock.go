package tracker

import "time"

// Clock is a monotonic nanosecond clock, independent of sensor timestamps.
type Clock interface {
	NanoTime() int64
}

// SystemClock reads the process monotonic clock.
type SystemClock struct {
	origin time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

func (c *SystemClock) NanoTime() int64 {
	return int64(time.Since(c.origin))
}
