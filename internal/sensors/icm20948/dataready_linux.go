//go:build linux

package icm20948

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// dataReady turns rising edges on the IMU's INT line into events. Edges that
// arrive while one is pending are coalesced.
type dataReady struct {
	line   *gpiocdev.Line
	events chan struct{}
}

func openDataReady(chip string, offset int) (*dataReady, error) {
	if offset < 0 {
		return nil, fmt.Errorf("icm20948: invalid data-ready line %d", offset)
	}
	dr := &dataReady{events: make(chan struct{}, 1)}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(dr.handle),
		gpiocdev.WithConsumer("headtrack-imu"))
	if err != nil {
		return nil, fmt.Errorf("icm20948: request %s line %d: %w", chip, offset, err)
	}
	dr.line = line
	return dr, nil
}

func (d *dataReady) handle(gpiocdev.LineEvent) {
	select {
	case d.events <- struct{}{}:
	default:
	}
}

func (d *dataReady) Close() error {
	if d == nil || d.line == nil {
		return nil
	}
	err := d.line.Close()
	d.line = nil
	return err
}
