package isodep

import (
	"fmt"
	"strings"
)

const (
	// Avogadro is Avogadro's number scaled by 1e-24, so that a density in #/b-cm
	// times an atomic weight divided by Avogadro gives g/cm^3.
	Avogadro = 0.602214199
	// JouleToMeV converts Joules to MeV.
	JouleToMeV = 6.241507649e12
	// BqToCurie converts Becquerels to Curies (divide by it).
	BqToCurie = 3.7e10
	// BarnToCm2 converts barns to cm^2.
	BarnToCm2 = 1e-24
	// ToPCM converts a reactivity fraction to pcm.
	ToPCM = 1e5
)

// TimeUnit is the unit in which a scenario expresses its steps and time points.
type TimeUnit uint8

// Supported time units.
const (
	Seconds TimeUnit = iota + 1
	Minutes
	Hours
	Days
)

// Seconds returns the number of seconds in one unit.
func (u TimeUnit) Seconds() float64 {
	switch u {
	case Seconds:
		return 1
	case Minutes:
		return 60
	case Hours:
		return 3600
	case Days:
		return 86400
	default:
		panic(fmt.Errorf("unknown time unit %d", u))
	}
}

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	default:
		return fmt.Sprintf("unit(%d)", u)
	}
}

// ParseTimeUnit returns the TimeUnit for the provided label.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Seconds, nil
	case "min", "minute", "minutes":
		return Minutes, nil
	case "h", "hr", "hour", "hours":
		return Hours, nil
	case "d", "day", "days":
		return Days, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrTimeUnit)
	}
}
