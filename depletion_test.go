package isodep

import (
	"errors"
	"math"
	"testing"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func testOptions(name string) []Option {
	return []Option{WithName(name), WithLogger(kitlog.NewNopLogger()), WithMetrics(NewMetrics())}
}

func xenonDataSet(t *testing.T) *DataSet {
	t.Helper()
	xs := xenonXS()
	decay, err := DecayMatrix(xs.ID, xs.Lambda, []Branch{{Parent: i135, Daughter: xe135, Fraction: 1}})
	if err != nil {
		t.Fatal(err)
	}
	xs.Decay = decay
	d, err := NewDataSet(xs)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// xenonDriver returns a driver ready to be solved, with fresh fuel in 10 cm^3.
func xenonDriver(t *testing.T, sc Scenario) *Depletion {
	t.Helper()
	d, err := NewDepletion([]float64{0}, []*DataSet{xenonDataSet(t)}, testOptions("fuel")...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetScenario(sc); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{u235, i135}, []float64{7e-4, 4.477e-8}, 10); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewDepletionErrors(t *testing.T) {
	set := xenonDataSet(t)
	other, err := set.Condense([]ZAID{u235, xe135})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]struct {
		frames []float64
		sets   []*DataSet
		err    error
	}{
		"empty":    {nil, nil, ErrEmpty},
		"length":   {[]float64{0, 1}, []*DataSet{set}, ErrLength},
		"negative": {[]float64{-1}, []*DataSet{set}, ErrNegative},
		"order":    {[]float64{0, 1}, []*DataSet{set, other}, ErrIsotopeOrder},
	}
	for name, c := range cases {
		if _, err := NewDepletion(c.frames, c.sets); !errors.Is(err, c.err) {
			t.Fatalf("%s: expected %v, got %v", name, c.err, err)
		}
	}
}

func TestDepletionStateMachine(t *testing.T) {
	d, err := NewDepletion([]float64{0}, []*DataSet{xenonDataSet(t)}, testOptions("state")...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{u235}, []float64{1e-3}, 1); !errors.Is(err, ErrState) {
		t.Fatalf("composition before scenario: %v", err)
	}
	if err := d.SolveDecay(CRAM, SolverOptions{}); !errors.Is(err, ErrState) {
		t.Fatalf("solve before composition: %v", err)
	}
	if _, err := d.Nt(); !errors.Is(err, ErrState) {
		t.Fatalf("Nt before solve: %v", err)
	}
	if _, err := d.Activity(); !errors.Is(err, ErrState) {
		t.Fatalf("activity before solve: %v", err)
	}
	if err := d.SetScenario(Scenario{Steps: []float64{1, 1}, Units: Days}); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{u235}, []float64{1e-3}, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SolveDepletion(CRAM, SolveOptions{}); !errors.Is(err, ErrPowerFlux) {
		t.Fatalf("depletion without power nor flux: %v", err)
	}
	if err := d.SolveDecay(Method(99), SolverOptions{}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("unknown method: %v", err)
	}
	if err := d.SolveDecay(CRAM, SolverOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Nt(); err != nil {
		t.Fatal(err)
	}
	// A new scenario discards the composition and the results.
	if err := d.SetScenario(Scenario{Steps: []float64{1}, Power: []float64{1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Nt(); !errors.Is(err, ErrState) {
		t.Fatalf("Nt after a new scenario: %v", err)
	}
	if err := d.SolveDepletion(CRAM, SolveOptions{}); !errors.Is(err, ErrState) {
		t.Fatalf("solve after a new scenario: %v", err)
	}
}

func TestSetInitialCompositionErrors(t *testing.T) {
	d, err := NewDepletion([]float64{0}, []*DataSet{xenonDataSet(t)}, testOptions("comp")...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetScenario(Scenario{Steps: []float64{1}}); err != nil {
		t.Fatal(err)
	}
	cases := map[string]struct {
		ids    []ZAID
		n0     []float64
		volume float64
		err    error
	}{
		"length":    {[]ZAID{u235}, []float64{1, 2}, 1, ErrLength},
		"duplicate": {[]ZAID{u235, u235}, []float64{1, 2}, 1, ErrDuplicateID},
		"density":   {[]ZAID{u235}, []float64{-1}, 1, ErrNegative},
		"id":        {[]ZAID{-5}, []float64{1}, 1, ErrNegative},
		"volume":    {[]ZAID{u235}, []float64{1}, 0, ErrNegative},
	}
	for name, c := range cases {
		if err := d.SetInitialComposition(c.ids, c.n0, c.volume); !errors.Is(err, c.err) {
			t.Fatalf("%s: expected %v, got %v", name, c.err, err)
		}
	}
	// Isotopes unknown to the data set are dropped.
	if err := d.SetInitialComposition([]ZAID{10010, u235}, []float64{1, 2e-3}, 1); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(d.n0, []float64{2e-3, 0, 0, 0}) {
		t.Fatalf("n0 = %v", d.n0)
	}
}

func TestSolveDecay(t *testing.T) {
	lI, lXe := 2.93061e-05, 2.10657e-05
	steps := []float64{20, 20, 40}
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			d := xenonDriver(t, Scenario{Steps: steps, Units: Hours})
			if err := d.SolveDecay(m, SolverOptions{}); err != nil {
				t.Fatal(err)
			}
			nt, err := d.Nt()
			if err != nil {
				t.Fatal(err)
			}
			if r, c := nt.Dims(); r != 4 || c != 4 {
				t.Fatalf("Nt is %dx%d", r, c)
			}
			tol := 1e-7
			if m == RK4 {
				tol = 1e-5
			}
			i0 := 4.477e-8
			for k, tp := range d.TimePoints() {
				s := tp * 3600
				iodine := i0 * math.Exp(-lI*s)
				xenon := i0 * lI / (lXe - lI) * (math.Exp(-lI*s) - math.Exp(-lXe*s))
				if !scalar.EqualWithinRel(nt.At(3, k), iodine, tol) {
					t.Fatalf("I135 at %gh: %g, expected %g", tp, nt.At(3, k), iodine)
				}
				if k > 0 && !scalar.EqualWithinRel(nt.At(2, k), xenon, tol) {
					t.Fatalf("Xe135 at %gh: %g, expected %g", tp, nt.At(2, k), xenon)
				}
			}
			if !floats.Equal(d.Power(), []float64{0, 0, 0}) || !floats.Equal(d.Flux(), []float64{0, 0, 0}) {
				t.Fatalf("decay has power %v and flux %v", d.Power(), d.Flux())
			}
		})
	}
}

func TestSolveDepletionPower(t *testing.T) {
	power := []float64{1e3, 1e3, 0}
	d := xenonDriver(t, Scenario{Steps: []float64{1, 1, 1}, Power: power, Units: Days})
	if err := d.SolveDepletion(CRAM, SolveOptions{}); err != nil {
		t.Fatal(err)
	}
	nt, _ := d.Nt()
	efiss := d.sets[0].FissionEnergyJoule()[0]
	flux := d.Flux()
	for i := 0; i < 2; i++ {
		exp := power[i] / (580 * nt.At(0, i) * efiss * 10)
		if !scalar.EqualWithinRel(flux[i], exp, 1e-12) {
			t.Fatalf("step %d: flux %g, expected %g", i, flux[i], exp)
		}
	}
	if flux[2] != 0 {
		t.Fatalf("zero power gives flux %g", flux[2])
	}
	if !floats.Equal(d.Power(), power) {
		t.Fatalf("power changed to %v", d.Power())
	}
	// Fissions consume U235 and produce U236 by capture.
	if nt.At(0, 2) >= nt.At(0, 0) || nt.At(1, 2) <= 0 {
		t.Fatalf("U235 %g -> %g, U236 %g", nt.At(0, 0), nt.At(0, 2), nt.At(1, 2))
	}
	// U235 does not change without flux.
	if !scalar.EqualWithinRel(nt.At(0, 3), nt.At(0, 2), 1e-9) {
		t.Fatalf("U235 changed without flux: %g -> %g", nt.At(0, 2), nt.At(0, 3))
	}
	assertNonNegative(t, nt)
}

func TestSolveDepletionFlux(t *testing.T) {
	flux := []float64{3e14, 1e14}
	d := xenonDriver(t, Scenario{Steps: []float64{12, 12}, Flux: flux, Units: Hours})
	if err := d.SolveDepletion(Expm, SolveOptions{}); err != nil {
		t.Fatal(err)
	}
	nt, _ := d.Nt()
	efiss := d.sets[0].FissionEnergyJoule()[0]
	for i, f := range flux {
		exp := f * 580 * nt.At(0, i) * efiss * 10
		if !scalar.EqualWithinRel(d.Power()[i], exp, 1e-12) {
			t.Fatalf("step %d: power %g, expected %g", i, d.Power()[i], exp)
		}
	}
	if !floats.Equal(d.Flux(), flux) {
		t.Fatalf("flux changed to %v", d.Flux())
	}
}

func TestSolveDepletionMethodsAgree(t *testing.T) {
	sc := Scenario{Steps: []float64{2, 2}, Power: []float64{500, 500}, Units: Days}
	ref := xenonDriver(t, sc)
	if err := ref.SolveDepletion(Expm, SolveOptions{}); err != nil {
		t.Fatal(err)
	}
	refNt, _ := ref.Nt()
	for _, m := range []Method{CRAM, ODE, RK4, Adaptive} {
		d := xenonDriver(t, sc)
		if err := d.SolveDepletion(m, SolveOptions{}); err != nil {
			t.Fatalf("%s: %s", m, err)
		}
		nt, _ := d.Nt()
		tol := 1e-6
		if m == Adaptive {
			// The flux follows the composition within each step.
			tol = 1e-3
		}
		r, c := nt.Dims()
		for i := 0; i < r; i++ {
			for k := 0; k < c; k++ {
				if !scalar.EqualWithinRel(nt.At(i, k), refNt.At(i, k), tol) {
					t.Fatalf("%s: N[%d,%d] = %g, expm gives %g", m, i, k, nt.At(i, k), refNt.At(i, k))
				}
			}
		}
	}
}

func TestSolveDepletionNoFission(t *testing.T) {
	d, err := NewDepletion([]float64{0}, []*DataSet{xenonDataSet(t)}, testOptions("poison")...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetScenario(Scenario{Steps: []float64{1}, Power: []float64{100}}); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{xe135}, []float64{1e-8}, 1); err != nil {
		t.Fatal(err)
	}
	for _, m := range []Method{CRAM, Adaptive} {
		if err := d.SolveDepletion(m, SolveOptions{}); !errors.Is(err, ErrNoFission) {
			t.Fatalf("%s: expected ErrNoFission, got %v", m, err)
		}
		if _, err := d.Nt(); !errors.Is(err, ErrState) {
			t.Fatalf("%s: a failed solve leaves no result: %v", m, err)
		}
	}
}

// framesDriver returns a driver over two frames whose fission cross sections
// are 500 and 600 barns.
func framesDriver(t *testing.T) *Depletion {
	t.Helper()
	sets := make([]*DataSet, 2)
	for k, sigf := range []float64{500, 600} {
		xs := xenonXS()
		xs.Fission[0] = sigf
		set, err := NewDataSet(xs)
		if err != nil {
			t.Fatal(err)
		}
		sets[k] = set
	}
	// Frames are given out of order on purpose.
	d, err := NewDepletion([]float64{10, 0}, []*DataSet{sets[1], sets[0]}, testOptions("frames")...)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStepDataInterpolation(t *testing.T) {
	d := framesDriver(t)
	d.interpolate = true
	cases := []struct {
		t, sigf float64
	}{{-1, 500}, {0, 500}, {2.5, 525}, {5, 550}, {10, 600}, {20, 600}}
	for _, c := range cases {
		st := d.stepData(c.t)
		if !scalar.EqualWithinRel(st.sigf[0], c.sigf, 1e-12) {
			t.Fatalf("t=%g: sigf %g, expected %g", c.t, st.sigf[0], c.sigf)
		}
		if !scalar.EqualWithinRel(-st.trans.At(0, 0), (c.sigf+100)*BarnToCm2, 1e-12) {
			t.Fatalf("t=%g: absorption %g", c.t, -st.trans.At(0, 0))
		}
		if !scalar.EqualWithinRel(st.xs.At(0, int(Fission)), c.sigf*BarnToCm2, 1e-12) {
			t.Fatalf("t=%g: xs table fission %g", c.t, st.xs.At(0, int(Fission)))
		}
	}
	d.interpolate = false
	for _, c := range []struct{ t, sigf float64 }{{0, 500}, {5, 500}, {9.99, 500}, {10, 600}, {15, 600}} {
		if st := d.stepData(c.t); st.sigf[0] != c.sigf {
			t.Fatalf("t=%g without interpolation: sigf %g, expected %g", c.t, st.sigf[0], c.sigf)
		}
	}
}

func TestSolveDepletionFrames(t *testing.T) {
	sc := Scenario{Steps: []float64{5, 5, 5}, Flux: []float64{1e14, 1e14, 1e14}, Units: Days}
	d := framesDriver(t)
	if err := d.SetScenario(sc); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{u235}, []float64{7e-4}, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SolveDepletion(CRAM, SolveOptions{}); err != nil {
		t.Fatal(err)
	}
	// The second frame applies from day 10 onward.
	for k, sigf := range []float64{500, 500, 600, 600} {
		if got := d.xs[k].At(0, int(Fission)); !scalar.EqualWithinRel(got, sigf*BarnToCm2, 1e-12) {
			t.Fatalf("time point %d: fission %g, expected %g b", k, got/BarnToCm2, sigf)
		}
	}
	decay := func(absorption float64) float64 {
		return math.Exp(-(absorption*BarnToCm2*1e14 + 3.12e-17) * 5 * 86400)
	}
	nt, _ := d.Nt()
	exp := 7e-4 * decay(600) * decay(600) * decay(700)
	if !scalar.EqualWithinRel(nt.At(0, 3), exp, 1e-8) {
		t.Fatalf("U235 = %g, expected %g", nt.At(0, 3), exp)
	}
	power := d.Power()
	if power[2] == 0 || !scalar.EqualWithinRel(power[2]/power[1], 600./500*nt.At(0, 2)/nt.At(0, 1), 1e-10) {
		t.Fatalf("power %v does not follow the frame cross sections", power)
	}
}

func TestSolveDepletionInterpolate(t *testing.T) {
	sc := Scenario{Steps: []float64{5, 5}, Flux: []float64{1e14, 1e14}, Units: Days}
	d := framesDriver(t)
	if err := d.SetScenario(sc); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInitialComposition([]ZAID{u235}, []float64{7e-4}, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SolveDepletion(CRAM, SolveOptions{Interpolate: true}); err != nil {
		t.Fatal(err)
	}
	if len(d.xs) != 3 {
		t.Fatalf("%d cross section tables kept", len(d.xs))
	}
	for k, sigf := range []float64{500, 550, 600} {
		if got := d.xs[k].At(0, int(Fission)); !scalar.EqualWithinRel(got, sigf*BarnToCm2, 1e-12) {
			t.Fatalf("time point %d: fission %g", k, got)
		}
	}
	nt, _ := d.Nt()
	exp := 7e-4 * math.Exp(-(600*BarnToCm2*1e14+3.12e-17)*5*86400) * math.Exp(-(650*BarnToCm2*1e14+3.12e-17)*5*86400)
	if !scalar.EqualWithinRel(nt.At(0, 2), exp, 1e-8) {
		t.Fatalf("U235 = %g, expected %g", nt.At(0, 2), exp)
	}
}

func assertNonNegative(t *testing.T, m mat.Matrix) {
	t.Helper()
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) < 0 {
				t.Fatalf("negative value %g at [%d,%d]", m.At(i, j), i, j)
			}
		}
	}
}
