package isodep

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestScenarioValidate(t *testing.T) {
	sc, err := Scenario{Steps: []float64{1, 2, 3}, Power: []float64{10, 10, 0}, Units: Days}.validate()
	if err != nil {
		t.Fatal(err)
	}
	if sc.nsteps() != 3 {
		t.Fatalf("nsteps = %d", sc.nsteps())
	}
	if !floats.Equal(sc.points, []float64{0, 1, 3, 6}) {
		t.Fatalf("points = %v", sc.points)
	}
	if !floats.Equal(sc.steps, []float64{86400, 172800, 259200}) {
		t.Fatalf("steps in seconds = %v", sc.steps)
	}
	if !sc.powerGiven || sc.fluxGiven {
		t.Fatal("power should be the given quantity")
	}

	sc, err = Scenario{Points: []float64{0, 10, 25}, Flux: []float64{1e14, 2e14}}.validate()
	if err != nil {
		t.Fatal(err)
	}
	if sc.units != Seconds || !floats.Equal(sc.steps, []float64{10, 15}) {
		t.Fatalf("units %s steps %v", sc.units, sc.steps)
	}

	// Decay scenarios carry neither power nor flux.
	if _, err := (Scenario{Steps: []float64{3600}, Units: Hours}).validate(); err != nil {
		t.Fatal(err)
	}
}

func TestScenarioErrors(t *testing.T) {
	cases := map[string]struct {
		sc  Scenario
		err error
	}{
		"both power and flux":   {Scenario{Steps: []float64{1}, Power: []float64{1}, Flux: []float64{1}}, ErrPowerFlux},
		"both steps and points": {Scenario{Steps: []float64{1}, Points: []float64{0, 1}}, ErrLength},
		"no time":               {Scenario{Power: []float64{1}}, ErrEmpty},
		"empty steps":           {Scenario{Steps: []float64{}}, ErrEmpty},
		"single point":          {Scenario{Points: []float64{0}}, ErrLength},
		"negative step":         {Scenario{Steps: []float64{1, -1}}, ErrNegative},
		"decreasing points":     {Scenario{Points: []float64{0, 5, 4}}, ErrNegative},
		"negative power":        {Scenario{Steps: []float64{1}, Power: []float64{-1}}, ErrNegative},
		"power length":          {Scenario{Steps: []float64{1, 1}, Power: []float64{1}}, ErrLength},
		"flux length":           {Scenario{Steps: []float64{1}, Flux: []float64{1, 1}}, ErrLength},
		"unit":                  {Scenario{Steps: []float64{1}, Units: TimeUnit(9)}, ErrTimeUnit},
	}
	for name, c := range cases {
		if _, err := c.sc.validate(); !errors.Is(err, c.err) {
			t.Fatalf("%s: expected %v, got %v", name, c.err, err)
		}
	}
}

func TestTimePointsMonotonic(t *testing.T) {
	steps := []float64{0.5, 0, 3, 1e6, 2}
	points := PointsFromSteps(steps)
	if len(points) != len(steps)+1 || points[0] != 0 {
		t.Fatalf("points = %v", points)
	}
	for i := 1; i < len(points); i++ {
		if points[i] < points[i-1] {
			t.Fatalf("points decrease at %d: %v", i, points)
		}
	}
	if back := StepsFromPoints(points); !floats.EqualApprox(back, steps, 1e-9) {
		t.Fatalf("steps %v became %v", steps, back)
	}
	if StepsFromPoints([]float64{1}) != nil {
		t.Fatal("a single point has no step")
	}
}

func TestParseTimeUnit(t *testing.T) {
	for s, exp := range map[string]TimeUnit{"s": Seconds, "Minutes": Minutes, "hr": Hours, "d": Days, " days ": Days} {
		u, err := ParseTimeUnit(s)
		if err != nil || u != exp {
			t.Fatalf("%q: got %s %v", s, u, err)
		}
	}
	if _, err := ParseTimeUnit("fortnight"); !errors.Is(err, ErrTimeUnit) {
		t.Fatalf("expected ErrTimeUnit, got %v", err)
	}
	if Days.Seconds() != 86400 || Hours.Seconds() != 3600 || Minutes.Seconds() != 60 {
		t.Fatal("unit conversion")
	}
}
