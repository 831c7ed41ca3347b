package isodep

import (
	"fmt"
	"math"
	"sort"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
)

type driverState uint8

const (
	stateConstructed driverState = iota
	stateScenario
	stateComposition
	stateSolved
	statePostProcessed
)

func (s driverState) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateScenario:
		return "scenario-set"
	case stateComposition:
		return "composition-set"
	case stateSolved:
		return "solved"
	case statePostProcessed:
		return "post-processed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Mode tells whether a driver solved a depletion or a pure decay problem.
type Mode string

const (
	ModeDepletion Mode = "depletion"
	ModeDecay     Mode = "decay"
)

// Depletion drives the time marching of a single material: it couples the
// scenario power or flux to the per-step transmutation matrix and advances the
// composition with a Bateman solver. A Depletion must not be used from several
// goroutines at once.
type Depletion struct {
	name    string
	logger  kitlog.Logger
	metrics *Metrics

	frames []float64
	sets   []*DataSet
	ids    []ZAID

	state driverState
	sc    *scenario

	n0          []float64
	providedIDs []ZAID
	providedN0  []float64
	volume      float64

	mode        Mode
	method      Method
	interpolate bool
	solveTime   time.Duration

	nt    *mat.Dense
	power []float64
	flux  []float64
	xs    []*mat.Dense // cross section table at each time point, depletion only

	post postResults
}

// Option configures a Depletion.
type Option func(*Depletion)

// WithLogger sets the logger of the driver.
func WithLogger(l kitlog.Logger) Option {
	return func(d *Depletion) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithName sets the name used in log lines and exports.
func WithName(name string) Option {
	return func(d *Depletion) { d.name = name }
}

// WithMetrics sets the collectors updated while solving.
func WithMetrics(m *Metrics) Option {
	return func(d *Depletion) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDepletion returns a driver for the provided (time frame, data set) pairs.
// Time frames are expressed in the time unit of the scenario. With more than
// one pair, every data set must share the same isotope ordering.
func NewDepletion(frames []float64, sets []*DataSet, opts ...Option) (*Depletion, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("no data set: %w", ErrEmpty)
	}
	if len(frames) != len(sets) {
		return nil, fmt.Errorf("%d time frames for %d data sets: %w", len(frames), len(sets), ErrLength)
	}
	for i, f := range frames {
		if f < 0 || math.IsNaN(f) {
			return nil, fmt.Errorf("time frame %d = %g: %w", i, f, ErrNegative)
		}
		if sets[i] == nil {
			return nil, fmt.Errorf("data set %d is nil: %w", i, ErrMissingAttribute)
		}
		if !sets[i].SameIDs(sets[0]) {
			return nil, fmt.Errorf("frame %g differs from frame %g: %w", f, frames[0], ErrIsotopeOrder)
		}
	}
	d := &Depletion{
		name:    "material",
		logger:  Logger(),
		metrics: DefaultMetrics,
		frames:  cloneVec(frames),
		sets:    append([]*DataSet(nil), sets...),
		ids:     sets[0].IDs(),
	}
	sort.Stable(framesByTime{d.frames, d.sets})
	for _, opt := range opts {
		opt(d)
	}
	d.logger = kitlog.With(d.logger, "depletion", d.name)
	if err := d.sets[0].require(PurposeDecay); err != nil {
		return nil, err
	}
	return d, nil
}

type framesByTime struct {
	frames []float64
	sets   []*DataSet
}

func (f framesByTime) Len() int           { return len(f.frames) }
func (f framesByTime) Less(i, j int) bool { return f.frames[i] < f.frames[j] }
func (f framesByTime) Swap(i, j int) {
	f.frames[i], f.frames[j] = f.frames[j], f.frames[i]
	f.sets[i], f.sets[j] = f.sets[j], f.sets[i]
}

// Name returns the name of the driver.
func (d *Depletion) Name() string { return d.name }

// IDs returns the isotopes tracked by the driver.
func (d *Depletion) IDs() []ZAID { return append([]ZAID(nil), d.ids...) }

// SetScenario validates and stores the scenario. Any composition or result
// from a previous scenario is discarded.
func (d *Depletion) SetScenario(s Scenario) error {
	sc, err := s.validate()
	if err != nil {
		return err
	}
	d.sc = sc
	d.clearComposition()
	d.clearResults()
	d.state = stateScenario
	level.Debug(d.logger).Log("subsys", "driver", "status", d.state, "steps", sc.nsteps(), "units", sc.units, "power", sc.powerGiven, "flux", sc.fluxGiven)
	return nil
}

// SetInitialComposition sets the initial densities (#/b-cm) of the provided
// isotopes and the volume (cm^3) of the material. Isotopes absent from the
// data set are not tracked; isotopes not provided start at zero.
func (d *Depletion) SetInitialComposition(ids []ZAID, n0 []float64, volume float64) error {
	if d.state < stateScenario {
		return fmt.Errorf("set the scenario before the composition (state %s): %w", d.state, ErrState)
	}
	if len(ids) != len(n0) {
		return fmt.Errorf("%d isotopes for %d densities: %w", len(ids), len(n0), ErrLength)
	}
	seen := make(map[ZAID]bool, len(ids))
	for i, id := range ids {
		if id < 0 {
			return fmt.Errorf("isotope %d: %w", id, ErrNegative)
		}
		if seen[id] {
			return fmt.Errorf("isotope %d: %w", id, ErrDuplicateID)
		}
		seen[id] = true
		if n0[i] < 0 || math.IsNaN(n0[i]) {
			return fmt.Errorf("density of %s = %g: %w", id, n0[i], ErrNegative)
		}
	}
	if !(volume > 0) {
		return fmt.Errorf("volume %g must be positive: %w", volume, ErrNegative)
	}

	full := make([]float64, len(d.ids))
	var dropped []ZAID
	for i, id := range ids {
		if k, ok := d.sets[0].Index(id); ok {
			full[k] = n0[i]
		} else {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		level.Warn(d.logger).Log("subsys", "driver", "message", "isotopes not tracked by the data set", "count", len(dropped), "ids", fmt.Sprint(dropped))
	}
	d.n0 = full
	d.providedIDs = append([]ZAID(nil), ids...)
	d.providedN0 = cloneVec(n0)
	d.volume = volume
	d.clearResults()
	d.state = stateComposition
	return nil
}

// SolveOptions configures SolveDepletion and SolveDecay.
type SolveOptions struct {
	SolverOptions
	// Interpolate enables linear interpolation of the data between time frames.
	Interpolate bool
}

// SolveDepletion solves the Bateman equations with transmutation and decay
// over every step of the scenario.
func (d *Depletion) SolveDepletion(method Method, opts SolveOptions) error {
	return d.solve(ModeDepletion, method, opts)
}

// SolveDecay solves the Bateman equations with radioactive decay only.
func (d *Depletion) SolveDecay(method Method, opts SolverOptions) error {
	return d.solve(ModeDecay, method, SolveOptions{SolverOptions: opts})
}

func (d *Depletion) solve(mode Mode, method Method, opts SolveOptions) (err error) {
	solver, err := NewSolver(method, opts.SolverOptions)
	if err != nil {
		return err
	}
	if d.state < stateComposition {
		return fmt.Errorf("set the initial composition before solving (state %s): %w", d.state, ErrState)
	}
	purpose := PurposeDecay
	if mode == ModeDepletion {
		if !d.sc.powerGiven && !d.sc.fluxGiven {
			return ErrPowerFlux
		}
		purpose = PurposeTransmutation
	}
	for i, set := range d.sets {
		if err := set.require(purpose); err != nil {
			return fmt.Errorf("frame %g (%d): %w", d.frames[i], i, err)
		}
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			d.clearResults()
			level.Error(d.logger).Log("subsys", "driver", "mode", mode, "method", method, "err", err)
		}
		d.metrics.solves.WithLabelValues(string(mode), outcome).Inc()
	}()

	d.clearResults()
	ns := d.sc.nsteps()
	d.nt = mat.NewDense(len(d.ids), ns+1, nil)
	d.nt.SetCol(0, d.n0)
	d.power = make([]float64, ns)
	d.flux = make([]float64, ns)
	if mode == ModeDepletion {
		copy(d.power, d.sc.power)
		copy(d.flux, d.sc.flux)
		d.xs = make([]*mat.Dense, ns+1)
	}
	d.mode, d.method, d.interpolate = mode, method, opts.Interpolate && len(d.sets) > 1

	if c, ok := solver.(*CRAMSolver); ok {
		c.Clamped = func(n int) { d.metrics.cramClamp.Add(float64(n)) }
	}

	start := time.Now()
	for i := 0; i < ns; i++ {
		stepStart := time.Now()
		cur := mat.Col(nil, i, d.nt)
		var next []float64
		if mode == ModeDepletion {
			st := d.stepData(d.sc.points[i])
			d.xs[i] = st.xs
			if adaptive, ok := solver.(*AdaptiveSolver); ok {
				var rateErr error
				next, err = adaptive.Integrate(d.rate(i, false, &rateErr), cur, d.sc.steps[i])
				if err == nil && rateErr != nil {
					return fmt.Errorf("step %d: %w", i, rateErr)
				}
			} else {
				if err = d.balance(i, st, cur); err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
				next, err = solver.Solve(d.matrix(st.trans, d.flux[i]), cur, d.sc.steps[i])
			}
		} else if adaptive, ok := solver.(*AdaptiveSolver); ok {
			next, err = adaptive.Integrate(d.rate(i, true, nil), cur, d.sc.steps[i])
		} else {
			next, err = solver.Solve(d.sets[0].decay, cur, d.sc.steps[i])
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		d.nt.SetCol(i+1, next)
		elapsed := time.Since(stepStart)
		d.metrics.steps.WithLabelValues(method.String(), string(mode)).Inc()
		d.metrics.stepTime.WithLabelValues(method.String()).Observe(elapsed.Seconds())
		level.Debug(d.logger).Log("subsys", "solver", "mode", mode, "step", i, "dt(s)", d.sc.steps[i], "flux", d.flux[i], "power(W)", d.power[i], "elapsed", elapsed)
	}
	if mode == ModeDepletion {
		d.xs[ns] = d.stepData(d.sc.points[ns]).xs
	}
	d.solveTime = time.Since(start)
	d.state = stateSolved
	level.Info(d.logger).Log("subsys", "driver", "status", "solved", "mode", mode, "method", method, "steps", ns, "duration", d.solveTime)
	return nil
}

// stepData holds the data needed to assemble the Bateman matrix at one time.
type stepData struct {
	efiss []float64  // J
	sigf  []float64  // barns
	trans *mat.Dense // cm^2
	xs    *mat.Dense // cm^2
}

// bracket returns the indices of the time frames around t: the last frame at
// or below t and the first frame at or above it. Outside the frames both
// indices point to the nearest end.
func (d *Depletion) bracket(t float64) (int, int) {
	last := len(d.frames) - 1
	if t <= d.frames[0] {
		return 0, 0
	}
	if t >= d.frames[last] {
		return last, last
	}
	i0 := sort.Search(len(d.frames), func(i int) bool { return d.frames[i] > t }) - 1
	i1 := sort.SearchFloat64s(d.frames, t)
	return i0, i1
}

// stepData returns the data at time t (scenario units): that of the last
// frame at or below t, or a linear weighting between the bracketing frames
// when interpolation is enabled.
func (d *Depletion) stepData(t float64) stepData {
	i0, i1 := d.bracket(t)
	s0 := d.sets[i0]
	if !d.interpolate || i0 == i1 || d.frames[i1] == d.frames[i0] {
		return stepData{
			efiss: s0.efissJoule,
			sigf:  barns(mat.Col(nil, int(Fission), s0.xs)),
			trans: s0.trans,
			xs:    s0.xs,
		}
	}
	s1 := d.sets[i1]
	w := (t - d.frames[i0]) / (d.frames[i1] - d.frames[i0])
	st := stepData{
		efiss: lerpVec(s0.efissJoule, s1.efissJoule, w),
		trans: lerpDense(s0.trans, s1.trans, w),
		xs:    lerpDense(s0.xs, s1.xs, w),
	}
	st.sigf = barns(mat.Col(nil, int(Fission), st.xs))
	return st
}

func barns(cm2 []float64) []float64 {
	for i := range cm2 {
		cm2[i] /= BarnToCm2
	}
	return cm2
}

// balance derives the flux from the power (or the power from the flux) of
// step i for the composition n.
func (d *Depletion) balance(i int, st stepData, n []float64) error {
	rate := 0.0
	for k, nk := range n {
		rate += st.sigf[k] * nk * st.efiss[k] * d.volume
	}
	if d.sc.fluxGiven {
		d.power[i] = d.flux[i] * rate
		return nil
	}
	switch {
	case d.power[i] == 0:
		d.flux[i] = 0
	case rate == 0:
		return fmt.Errorf("%g W: %w", d.power[i], ErrNoFission)
	default:
		d.flux[i] = d.power[i] / rate
	}
	return nil
}

// matrix returns trans*flux + decay.
func (d *Depletion) matrix(trans *mat.Dense, flux float64) *mat.Dense {
	var a mat.Dense
	a.Scale(flux, trans)
	a.Add(&a, d.sets[0].decay)
	return &a
}

// rate returns the instantaneous rate function of step i for the adaptive
// solver. Each evaluation re-derives the data at the current internal time
// and balances the flux with the evaluated composition. The first balance
// error is stored in errp; the flux is 0 from then on.
func (d *Depletion) rate(i int, decayOnly bool, errp *error) RateFunc {
	base := d.sc.points[i]
	unit := d.sc.units.Seconds()
	return func(t float64, n, dn []float64) {
		out := mat.NewVecDense(len(dn), dn)
		if decayOnly {
			out.MulVec(d.sets[0].decay, mat.NewVecDense(len(n), n))
			return
		}
		st := d.stepData(base + t/unit)
		if err := d.balance(i, st, n); err != nil {
			if *errp == nil {
				*errp = fmt.Errorf("at %g s: %w", t, err)
			}
			d.flux[i] = 0
		}
		out.MulVec(d.matrix(st.trans, d.flux[i]), mat.NewVecDense(len(n), n))
	}
}

// require checks that every attribute needed for the purpose is present.
func (d *DataSet) require(p Purpose) error {
	for _, a := range p.Attributes() {
		if isDataSetAttribute(a) && !d.has(a) {
			return fmt.Errorf("%s needs %s: %w", p, a, ErrMissingAttribute)
		}
	}
	return nil
}

// require checks the driver state and attributes needed for a post-processing purpose.
func (d *Depletion) require(p Purpose) error {
	if d.state < stateSolved {
		return fmt.Errorf("%s needs a solved driver (state %s): %w", p, d.state, ErrState)
	}
	if err := d.sets[0].require(p); err != nil {
		return err
	}
	if p == PurposeReactivity && d.xs == nil {
		return fmt.Errorf("%s needs the cross sections of a depletion solve: %w", p, ErrMissingAttribute)
	}
	return nil
}

func (d *Depletion) clearComposition() {
	d.n0, d.providedIDs, d.providedN0, d.volume = nil, nil, nil, 0
}

func (d *Depletion) clearResults() {
	d.nt, d.power, d.flux, d.xs = nil, nil, nil, nil
	d.mode, d.method, d.interpolate, d.solveTime = "", 0, false, 0
	d.post = postResults{}
	if d.state > stateComposition {
		d.state = stateComposition
	}
}

// Nt returns a copy of the densities (#/b-cm), one column per time point.
func (d *Depletion) Nt() (*mat.Dense, error) {
	if d.state < stateSolved {
		return nil, fmt.Errorf("no densities before solving (state %s): %w", d.state, ErrState)
	}
	return mat.DenseCopyOf(d.nt), nil
}

// Power returns the power of each step in W.
func (d *Depletion) Power() []float64 { return cloneVec(d.power) }

// Flux returns the flux of each step in n/cm^2/s.
func (d *Depletion) Flux() []float64 { return cloneVec(d.flux) }

// TimePoints returns the time points in the scenario unit.
func (d *Depletion) TimePoints() []float64 {
	if d.sc == nil {
		return nil
	}
	return cloneVec(d.sc.points)
}

// SolveTime returns the wall time of the last solve.
func (d *Depletion) SolveTime() time.Duration { return d.solveTime }

func lerpVec(v0, v1 []float64, w float64) []float64 {
	out := make([]float64, len(v0))
	for i := range out {
		out[i] = (1-w)*v0[i] + w*v1[i]
	}
	return out
}

func lerpDense(m0, m1 *mat.Dense, w float64) *mat.Dense {
	var a, b mat.Dense
	a.Scale(1-w, m0)
	b.Scale(w, m1)
	a.Add(&a, &b)
	return &a
}
