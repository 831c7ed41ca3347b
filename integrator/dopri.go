package integrator

import (
	"fmt"
	"math"
)

// Dormand-Prince 5(4) tableau.
const (
	c2, c3, c4, c5 = 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9

	a21 = 1.0 / 5
	a31 = 3.0 / 40
	a32 = 9.0 / 40
	a41 = 44.0 / 45
	a42 = -56.0 / 15
	a43 = 32.0 / 9
	a51 = 19372.0 / 6561
	a52 = -25360.0 / 2187
	a53 = 64448.0 / 6561
	a54 = -212.0 / 729
	a61 = 9017.0 / 3168
	a62 = -355.0 / 33
	a63 = 46732.0 / 5247
	a64 = 49.0 / 176
	a65 = -5103.0 / 18656
	a71 = 35.0 / 384
	a73 = 500.0 / 1113
	a74 = 125.0 / 192
	a75 = -2187.0 / 6784
	a76 = 11.0 / 84

	// Difference between the fifth and fourth order weights.
	e1 = 71.0 / 57600
	e3 = -71.0 / 16695
	e4 = 71.0 / 1920
	e5 = -17253.0 / 339200
	e6 = 22.0 / 525
	e7 = -1.0 / 40

	safety    = 0.9
	minFactor = 0.2
	maxFactor = 5.0
)

// DormandPrince integrates with the embedded Dormand-Prince 5(4) pair,
// adapting the step to meet the configured tolerances. The fifth order
// solution is propagated and the last stage is reused as the first stage of
// the next step.
type DormandPrince struct {
	Config
	stats Stats
}

// NewDormandPrince returns a new integrator.
func NewDormandPrince(cfg Config) *DormandPrince {
	return &DormandPrince{Config: cfg}
}

// Stats returns the statistics of the last call to Integrate.
func (dp *DormandPrince) Stats() Stats { return dp.stats }

// Integrate advances y0 from t0 to t1 and returns the state at t1. y0 is not modified.
func (dp *DormandPrince) Integrate(f Func, t0, t1 float64, y0 []float64) ([]float64, error) {
	dp.stats = Stats{}
	n := len(y0)
	if n == 0 {
		return nil, fmt.Errorf("empty state: %w", ErrConfig)
	}
	if err := dp.Config.check(); err != nil {
		return nil, err
	}
	y := make([]float64, n)
	copy(y, y0)
	span := t1 - t0
	if span == 0 {
		return y, nil
	}
	dir := 1.0
	if span < 0 {
		dir = -1
		span = -span
	}
	cfg := dp.Config.withDefaults(y0, span)

	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	k5 := make([]float64, n)
	k6 := make([]float64, n)
	k7 := make([]float64, n)
	tmp := make([]float64, n)
	yNew := make([]float64, n)

	f(t0, y, k1)
	dp.stats.Evaluations++

	h := cfg.InitialStep
	if h <= 0 {
		h = initialStep(y, k1, cfg, span)
	}
	h = math.Min(h, cfg.MaxStep)

	t := t0
	rejectedLast := false
	for {
		if dp.stats.Steps >= cfg.MaxSteps {
			return y, fmt.Errorf("after %d steps at t=%g: %w", dp.stats.Steps, t, ErrMaxSteps)
		}
		remaining := math.Abs(t1 - t)
		last := false
		if h >= remaining {
			h = remaining
			last = true
		}
		hs := dir * h

		for i := range y {
			tmp[i] = y[i] + hs*a21*k1[i]
		}
		f(t+c2*hs, tmp, k2)
		for i := range y {
			tmp[i] = y[i] + hs*(a31*k1[i]+a32*k2[i])
		}
		f(t+c3*hs, tmp, k3)
		for i := range y {
			tmp[i] = y[i] + hs*(a41*k1[i]+a42*k2[i]+a43*k3[i])
		}
		f(t+c4*hs, tmp, k4)
		for i := range y {
			tmp[i] = y[i] + hs*(a51*k1[i]+a52*k2[i]+a53*k3[i]+a54*k4[i])
		}
		f(t+c5*hs, tmp, k5)
		for i := range y {
			tmp[i] = y[i] + hs*(a61*k1[i]+a62*k2[i]+a63*k3[i]+a64*k4[i]+a65*k5[i])
		}
		f(t+hs, tmp, k6)
		for i := range y {
			yNew[i] = y[i] + hs*(a71*k1[i]+a73*k3[i]+a74*k4[i]+a75*k5[i]+a76*k6[i])
		}
		f(t+hs, yNew, k7)
		dp.stats.Evaluations += 6

		errNorm := 0.0
		for i := range y {
			sc := cfg.AbsTol + cfg.RelTol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
			e := hs * (e1*k1[i] + e3*k3[i] + e4*k4[i] + e5*k5[i] + e6*k6[i] + e7*k7[i]) / sc
			errNorm += e * e
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if errNorm <= 1 || (cfg.MinStep > 0 && h <= cfg.MinStep) {
			if errNorm > 1 {
				return y, fmt.Errorf("h=%g at t=%g: %w", h, t, ErrStepSize)
			}
			dp.stats.Steps++
			dp.stats.LastStep = h
			if last {
				t = t1
			} else {
				t += hs
			}
			copy(y, yNew)
			copy(k1, k7)
			if last {
				return y, nil
			}
			factor := maxFactor
			if errNorm > 0 {
				factor = math.Min(maxFactor, safety*math.Pow(errNorm, -0.2))
			}
			if rejectedLast {
				factor = math.Min(factor, 1)
			}
			h = math.Min(h*factor, cfg.MaxStep)
			rejectedLast = false
			continue
		}
		dp.stats.Rejected++
		rejectedLast = true
		h *= math.Max(minFactor, safety*math.Pow(errNorm, -0.2))
		if cfg.MinStep > 0 && h < cfg.MinStep {
			h = cfg.MinStep
		}
		if h == 0 || math.IsNaN(h) {
			return y, fmt.Errorf("at t=%g: %w", t, ErrStepSize)
		}
	}
}

// initialStep follows the usual estimate h = 0.01 * ||y0|| / ||f(t0, y0)||
// with both norms scaled by the tolerances.
func initialStep(y, dy []float64, cfg Config, span float64) float64 {
	var d0, d1 float64
	for i := range y {
		sc := cfg.AbsTol + cfg.RelTol*math.Abs(y[i])
		d0 += (y[i] / sc) * (y[i] / sc)
		d1 += (dy[i] / sc) * (dy[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(len(y)))
	d1 = math.Sqrt(d1 / float64(len(y)))
	if d0 < 1e-5 || d1 < 1e-5 {
		return math.Min(1e-6*span, span)
	}
	return math.Min(0.01*d0/d1, span)
}

// Integrate is a shortcut for NewDormandPrince(cfg).Integrate(f, t0, t1, y0).
func Integrate(f Func, t0, t1 float64, y0 []float64, cfg Config) ([]float64, Stats, error) {
	dp := NewDormandPrince(cfg)
	y, err := dp.Integrate(f, t0, t1, y0)
	return y, dp.Stats(), err
}
