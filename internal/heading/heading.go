// Package heading polls a head tracker on a fixed interval and turns each head
// view into angles in degrees.
package heading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"headtrack/internal/headtransform"
)

// DefaultInterval matches the rate a UI refreshes its heading readout.
const DefaultInterval = 100 * time.Millisecond

// Source is the part of the tracker the poller reads from. wrote is false
// when the tracker had no estimate and out is untouched.
type Source interface {
	ReadHeadView(out []float32, offset int) (wrote bool, err error)
}

type Reading struct {
	At time.Time

	PitchDeg float64
	YawDeg   float64
	RollDeg  float64
	// HeadingDeg is the compass heading in [0, 360), clockwise from the
	// reference direction. It is the negated yaw.
	HeadingDeg float64

	Forward [3]float32
}

type Poller struct {
	src      Source
	interval time.Duration
	fn       func(Reading)

	ht  *headtransform.HeadTransform
	now func() time.Time
}

func New(src Source, interval time.Duration, fn func(Reading)) (*Poller, error) {
	if src == nil {
		return nil, errors.New("heading: source is nil")
	}
	if fn == nil {
		return nil, errors.New("heading: callback is nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("heading: interval must be > 0, got %s", interval)
	}
	return &Poller{
		src:      src,
		interval: interval,
		fn:       fn,
		ht:       headtransform.New(),
		now:      time.Now,
	}, nil
}

// Poll reads one head view. ok is false while the tracker is not ready.
func (p *Poller) Poll() (r Reading, ok bool, err error) {
	wrote, err := p.src.ReadHeadView(p.ht.HeadView(), 0)
	if err != nil || !wrote {
		return Reading{}, false, err
	}
	var euler [3]float32
	if err := p.ht.EulerAngles(euler[:], 0); err != nil {
		return Reading{}, false, err
	}
	if err := p.ht.ForwardVector(r.Forward[:], 0); err != nil {
		return Reading{}, false, err
	}
	r.At = p.now()
	r.PitchDeg = degrees(euler[0])
	r.YawDeg = degrees(euler[1])
	r.RollDeg = degrees(euler[2])
	r.HeadingDeg = CompassHeading(r.YawDeg)
	return r, true, nil
}

// Run polls until ctx is done. Not-ready ticks are skipped.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r, ok, err := p.Poll()
			if err != nil {
				return err
			}
			if !ok {
				log.Debug("heading: tracker not ready")
				continue
			}
			p.fn(r)
		}
	}
}

// CompassHeading converts a yaw in degrees (counter-clockwise positive) to a
// heading in [0, 360).
func CompassHeading(yawDeg float64) float64 {
	h := math.Mod(-yawDeg+360, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}
	return h
}

func degrees(rad float32) float64 {
	return float64(rad) * 180 / math.Pi
}
