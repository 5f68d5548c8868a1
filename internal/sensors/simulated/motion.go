package simulated

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// MotionScript is a deterministic heading profile.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 20s
//	keyframes:
//	  - t: 0s
//	    heading_deg: 0
//	  - t: 10s
//	    heading_deg: 90
//
// Headings are degrees clockwise from magnetic north and interpolate along
// the shortest arc. If Duration is zero it is the latest keyframe time.
type MotionScript struct {
	Version   int               `yaml:"version"`
	Duration  time.Duration     `yaml:"duration"`
	Keyframes []HeadingKeyframe `yaml:"keyframes"`
}

type HeadingKeyframe struct {
	T          time.Duration `yaml:"t"`
	HeadingDeg float64       `yaml:"heading_deg"`
}

// Motion is the validated runtime form of a MotionScript.
type Motion struct {
	keyframes []HeadingKeyframe
	duration  time.Duration
	// sweep segments turn by their full heading difference instead of the
	// shortest arc.
	sweep bool
}

func LoadMotionScript(path string) (MotionScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return MotionScript{}, err
	}
	return ParseMotionScriptYAML(b)
}

func ParseMotionScriptYAML(b []byte) (MotionScript, error) {
	var s MotionScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return MotionScript{}, err
	}
	return s, nil
}

func NewMotion(script MotionScript) (*Motion, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported motion script version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}
	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Motion{keyframes: script.Keyframes, duration: dur}, nil
}

// ConstantRate turns at rateDegPerSec forever.
func ConstantRate(rateDegPerSec float64) *Motion {
	return &Motion{
		keyframes: []HeadingKeyframe{{T: 0}, {T: time.Hour, HeadingDeg: rateDegPerSec * 3600}},
		duration:  time.Hour,
		sweep:     true,
	}
}

// Hold keeps a fixed heading.
func Hold(headingDeg float64) *Motion {
	return &Motion{
		keyframes: []HeadingKeyframe{{T: 0, HeadingDeg: headingDeg}},
		duration:  time.Hour,
	}
}

func (m *Motion) Duration() time.Duration {
	if m == nil {
		return 0
	}
	return m.duration
}

// HeadingAt returns the heading and its rate of change at elapsed. The
// script loops.
func (m *Motion) HeadingAt(elapsed time.Duration) (headingDeg, rateDegPerSec float64) {
	if m == nil || len(m.keyframes) == 0 {
		return 0, 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if m.duration > 0 {
		elapsed %= m.duration
	}
	k0, k1, alpha := selectSegment(m.keyframes, elapsed)
	delta := k1.HeadingDeg - k0.HeadingDeg
	if !m.sweep {
		delta = shortestDeltaDeg(k0.HeadingDeg, k1.HeadingDeg)
	}
	if dt := (k1.T - k0.T).Seconds(); dt > 0 && k0 != k1 {
		rateDegPerSec = delta / dt
	}
	return normDeg(k0.HeadingDeg + delta*alpha), rateDegPerSec
}

func selectSegment(kfs []HeadingKeyframe, t time.Duration) (HeadingKeyframe, HeadingKeyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	return k0, k1, math.Max(0, math.Min(1, alpha))
}

func shortestDeltaDeg(a0, a1 float64) float64 {
	delta := normDeg(a1) - normDeg(a0)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return delta
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}
