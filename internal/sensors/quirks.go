package sensors

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Quirks describes device-specific sensor workarounds.
type Quirks interface {
	UncalibratedGyroDisabled() bool
}

// DefaultUncalibratedGyroBlocklist lists manufacturers whose uncalibrated
// gyroscope reports unusable bias values.
var DefaultUncalibratedGyroBlocklist = []string{"HTC"}

// ManufacturerQuirks disables the uncalibrated gyroscope for blocklisted
// manufacturers. A nil Blocklist means DefaultUncalibratedGyroBlocklist.
type ManufacturerQuirks struct {
	Manufacturer string
	Blocklist    []string
}

func (q ManufacturerQuirks) UncalibratedGyroDisabled() bool {
	m := strings.TrimSpace(q.Manufacturer)
	if m == "" {
		return false
	}
	list := q.Blocklist
	if list == nil {
		list = DefaultUncalibratedGyroBlocklist
	}
	for _, b := range list {
		if strings.EqualFold(strings.TrimSpace(b), m) {
			return true
		}
	}
	return false
}

// NoQuirks enables every sensor.
type NoQuirks struct{}

func (NoQuirks) UncalibratedGyroDisabled() bool { return false }

// SelectGyroscope picks the uncalibrated gyroscope when the platform offers
// it and the quirks allow it, otherwise the calibrated one.
func SelectGyroscope(p Platform, q Quirks) (Sensor, bool) {
	if q != nil && q.UncalibratedGyroDisabled() {
		log.Info("sensors: uncalibrated gyroscope disabled on this device; using calibrated gyroscope")
		return p.DefaultSensor(Gyroscope)
	}
	if s, ok := p.DefaultSensor(GyroscopeUncalibrated); ok {
		return s, true
	}
	log.Info("sensors: uncalibrated gyroscope not available; using calibrated gyroscope")
	return p.DefaultSensor(Gyroscope)
}
