package isodep

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ChristopherRabotin/ode"
	"gonum.org/v1/gonum/mat"

	"github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE/integrator"
)

// Solver advances the Bateman equations dN/dt = A*N over dt with A held constant.
type Solver interface {
	Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error)
}

// Method selects a Bateman solver.
type Method uint8

// Available methods.
const (
	CRAM Method = iota + 1
	Expm
	ODE
	Adaptive
	RK4
)

func (m Method) String() string {
	switch m {
	case CRAM:
		return "cram"
	case Expm:
		return "expm"
	case ODE:
		return "odeint"
	case Adaptive:
		return "adaptive"
	case RK4:
		return "rk4"
	default:
		return fmt.Sprintf("method(%d)", m)
	}
}

// ParseMethod returns the Method for a name such as "cram" or "odeint".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cram":
		return CRAM, nil
	case "expm":
		return Expm, nil
	case "odeint", "ode":
		return ODE, nil
	case "adaptive":
		return Adaptive, nil
	case "rk4":
		return RK4, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownMethod)
	}
}

// SolverOptions holds the tuning of the integrating solvers.
type SolverOptions struct {
	RelTol   float64 // ODE and Adaptive, defaults to 1e-10
	AbsTol   float64 // ODE and Adaptive, defaults to 1e-20 * max|n0|
	RK4Steps int     // RK4, defaults to 1000
	MaxSteps int     // ODE and Adaptive, defaults to 100000 steps per call
}

// NewSolver returns the solver implementing the method.
func NewSolver(m Method, opts SolverOptions) (Solver, error) {
	if opts.RelTol < 0 || opts.AbsTol < 0 || opts.RK4Steps < 0 || opts.MaxSteps < 0 {
		return nil, fmt.Errorf("solver options %+v: %w", opts, ErrNegative)
	}
	switch m {
	case CRAM:
		return &CRAMSolver{}, nil
	case Expm:
		return &ExpmSolver{}, nil
	case ODE:
		return &ODESolver{RelTol: opts.RelTol, AbsTol: opts.AbsTol, MaxSteps: opts.MaxSteps}, nil
	case Adaptive:
		return &AdaptiveSolver{RelTol: opts.RelTol, AbsTol: opts.AbsTol, MaxSteps: opts.MaxSteps}, nil
	case RK4:
		return &RK4Solver{Steps: opts.RK4Steps}, nil
	default:
		return nil, fmt.Errorf("%s: %w", m, ErrUnknownMethod)
	}
}

func checkSystem(a mat.Matrix, n0 []float64, dt float64) error {
	r, c := a.Dims()
	if r != c || r != len(n0) {
		return fmt.Errorf("matrix %dx%d with %d concentrations: %w", r, c, len(n0), ErrShape)
	}
	if dt < 0 || math.IsNaN(dt) {
		return fmt.Errorf("time step %g: %w", dt, ErrNegative)
	}
	return nil
}

// ExpmSolver computes exp(A*dt)*n0 with a Padé approximant of the matrix exponential.
type ExpmSolver struct{}

// Solve implements Solver.
func (ExpmSolver) Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error) {
	if err := checkSystem(a, n0, dt); err != nil {
		return nil, err
	}
	var h, e mat.Dense
	h.Scale(dt, a)
	e.Exp(&h)
	n := mat.NewVecDense(len(n0), nil)
	n.MulVec(&e, mat.NewVecDense(len(n0), cloneVec(n0)))
	return n.RawVector().Data, nil
}

// ODESolver integrates dN/dt = A*N over [0, dt] with an adaptive Dormand-Prince scheme.
//
// The scheme is explicit: its step is bounded by the shortest half-life in A,
// so a chain holding a daughter which lives seconds across a step of days
// exhausts MaxSteps. Such systems are stiff and should be solved with CRAM or
// Expm; the returned error wraps integrator.ErrMaxSteps and says so.
type ODESolver struct {
	RelTol   float64
	AbsTol   float64
	MaxSteps int
}

// Solve implements Solver.
func (s ODESolver) Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error) {
	if err := checkSystem(a, n0, dt); err != nil {
		return nil, err
	}
	return integrateLinear("odeint", a, n0, dt, s.config(n0))
}

func (s ODESolver) config(n0 []float64) integrator.Config {
	return integrator.Config{RelTol: s.RelTol, AbsTol: absTol(s.AbsTol, n0), MaxSteps: s.MaxSteps}
}

func integrateLinear(name string, a mat.Matrix, n0 []float64, dt float64, cfg integrator.Config) ([]float64, error) {
	am := mat.DenseCopyOf(a)
	rate := func(_ float64, y, dy []float64) {
		mat.NewVecDense(len(dy), dy).MulVec(am, mat.NewVecDense(len(y), y))
	}
	y, _, err := integrator.Integrate(rate, 0, dt, n0, cfg)
	if err != nil {
		return nil, integrationError(name, err)
	}
	return y, nil
}

func integrationError(name string, err error) error {
	switch {
	case errors.Is(err, integrator.ErrMaxSteps), errors.Is(err, integrator.ErrStepSize):
		return fmt.Errorf("%s: stiff system, solve it with cram or expm: %w", name, err)
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}

// absTol returns atol, or a default small enough for trace isotopes many
// orders of magnitude below the major ones.
func absTol(atol float64, n0 []float64) float64 {
	if atol > 0 {
		return atol
	}
	m := 0.0
	for _, v := range n0 {
		m = math.Max(m, math.Abs(v))
	}
	if m == 0 {
		return 1e-30
	}
	return 1e-20 * m
}

// RateFunc returns dN/dt at internal time t (seconds from the start of the
// step) for the composition n, writing into dn.
type RateFunc func(t float64, n, dn []float64)

// AdaptiveSolver integrates with the same scheme as ODESolver, but can also
// integrate a rate function which is re-evaluated at every internal time. The
// depletion driver uses the latter so that flux and cross sections follow the
// composition within a step. It shares the stiffness limit of ODESolver.
type AdaptiveSolver struct {
	RelTol   float64
	AbsTol   float64
	MaxSteps int
}

// Solve implements Solver for a constant matrix.
func (s AdaptiveSolver) Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error) {
	if err := checkSystem(a, n0, dt); err != nil {
		return nil, err
	}
	return integrateLinear("adaptive", a, n0, dt, ODESolver(s).config(n0))
}

// Integrate advances n0 over dt under the provided rate function.
func (s AdaptiveSolver) Integrate(rate RateFunc, n0 []float64, dt float64) ([]float64, error) {
	if dt < 0 {
		return nil, fmt.Errorf("time step %g: %w", dt, ErrNegative)
	}
	y, _, err := integrator.Integrate(integrator.Func(rate), 0, dt, n0, ODESolver(s).config(n0))
	if err != nil {
		return nil, integrationError("adaptive", err)
	}
	return y, nil
}

// RK4Solver integrates with Steps fixed fourth order Runge-Kutta steps.
type RK4Solver struct {
	Steps int
}

// Solve implements Solver.
func (s RK4Solver) Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error) {
	if err := checkSystem(a, n0, dt); err != nil {
		return nil, err
	}
	steps := s.Steps
	if steps == 0 {
		steps = 1000
	}
	if dt == 0 {
		return cloneVec(n0), nil
	}
	sys := &linearSystem{a: mat.DenseCopyOf(a), state: cloneVec(n0), steps: steps}
	ode.NewRK4(0, dt/float64(steps), sys).Solve() // Blocking.
	return sys.state, nil
}

// linearSystem is an ode.Integrable for dN/dt = A*N.
type linearSystem struct {
	a     *mat.Dense
	state []float64
	iter  int
	steps int
}

func (l *linearSystem) GetState() []float64 {
	return l.state
}

func (l *linearSystem) SetState(t float64, s []float64) {
	l.state = s
}

func (l *linearSystem) Stop(t float64) bool {
	if l.iter >= l.steps {
		return true
	}
	l.iter++
	return false
}

func (l *linearSystem) Func(t float64, f []float64) []float64 {
	dn := mat.NewVecDense(len(f), nil)
	dn.MulVec(l.a, mat.NewVecDense(len(f), f))
	return dn.RawVector().Data
}
