//go:build !linux

package icm20948

import "fmt"

type dataReady struct {
	events chan struct{}
}

func openDataReady(chip string, offset int) (*dataReady, error) {
	return nil, fmt.Errorf("icm20948: gpio data-ready unsupported on this platform")
}

func (d *dataReady) Close() error { return nil }
