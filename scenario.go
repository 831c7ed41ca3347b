package isodep

import (
	"fmt"
	"math"
)

// Scenario describes a depletion or decay history. Exactly one of Steps or
// Points must be set, and for depletion exactly one of Power (W) or Flux
// (n/cm^2/s) with one value per step. Decay-only scenarios may leave both
// Power and Flux empty. Units defaults to seconds.
type Scenario struct {
	Power  []float64
	Flux   []float64
	Steps  []float64
	Points []float64
	Units  TimeUnit
}

// scenario is the validated form of a Scenario.
type scenario struct {
	points     []float64 // user units, len nsteps+1
	userSteps  []float64 // user units
	steps      []float64 // seconds
	units      TimeUnit
	power      []float64
	flux       []float64
	powerGiven bool
	fluxGiven  bool
}

func (s *scenario) nsteps() int { return len(s.steps) }

// validate checks the scenario without modifying it and returns its validated form.
func (s Scenario) validate() (*scenario, error) {
	units := s.Units
	if units == 0 {
		units = Seconds
	}
	if units < Seconds || units > Days {
		return nil, fmt.Errorf("time unit %d: %w", units, ErrTimeUnit)
	}
	var steps, points []float64
	switch {
	case s.Steps != nil && s.Points != nil:
		return nil, fmt.Errorf("both steps and time points are given: %w", ErrLength)
	case s.Steps != nil:
		steps = cloneVec(s.Steps)
		points = PointsFromSteps(steps)
	case s.Points != nil:
		if len(s.Points) < 2 {
			return nil, fmt.Errorf("need at least two time points: %w", ErrLength)
		}
		points = cloneVec(s.Points)
		steps = StepsFromPoints(points)
	default:
		return nil, fmt.Errorf("no time steps nor time points: %w", ErrEmpty)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no time steps: %w", ErrEmpty)
	}
	for i, dt := range steps {
		if dt < 0 || math.IsNaN(dt) {
			return nil, fmt.Errorf("time step %d = %g: %w", i, dt, ErrNegative)
		}
	}
	if s.Power != nil && s.Flux != nil {
		return nil, ErrPowerFlux
	}
	nsteps := len(steps)
	v := &scenario{
		points:    points,
		userSteps: steps,
		steps:     make([]float64, nsteps),
		units:     units,
		power:     make([]float64, nsteps),
		flux:      make([]float64, nsteps),
	}
	for i, dt := range steps {
		v.steps[i] = dt * units.Seconds()
	}
	for _, q := range []struct {
		name  string
		vals  []float64
		dst   []float64
		given *bool
	}{{"power", s.Power, v.power, &v.powerGiven}, {"flux", s.Flux, v.flux, &v.fluxGiven}} {
		if q.vals == nil {
			continue
		}
		if err := checkVec(q.vals, nsteps, q.name, true); err != nil {
			return nil, err
		}
		copy(q.dst, q.vals)
		*q.given = true
	}
	return v, nil
}

// PointsFromSteps returns the cumulative time points [0, s0, s0+s1, ...].
func PointsFromSteps(steps []float64) []float64 {
	points := make([]float64, len(steps)+1)
	for i, dt := range steps {
		points[i+1] = points[i] + dt
	}
	return points
}

// StepsFromPoints returns the differences between consecutive time points.
func StepsFromPoints(points []float64) []float64 {
	if len(points) < 2 {
		return nil
	}
	steps := make([]float64, len(points)-1)
	for i := range steps {
		steps[i] = points[i+1] - points[i]
	}
	return steps
}
