package tracker

import "fmt"

// Rotation is the display's rotation from its natural orientation, in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

func ParseRotation(deg int) (Rotation, error) {
	switch Rotation(deg) {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return Rotation(deg), nil
	}
	return 0, fmt.Errorf("tracker: display rotation must be 0, 90, 180 or 270, got %d", deg)
}

type Display interface {
	Rotation() Rotation
}

// StaticDisplay never rotates.
type StaticDisplay struct {
	R Rotation
}

func (d StaticDisplay) Rotation() Rotation { return d.R }
