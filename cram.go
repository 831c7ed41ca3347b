package isodep

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Partial fraction form of the order 14 Chebyshev rational approximation of
// exp(x) on the negative real axis (Pusa, 2011). Only one pole of each complex
// conjugate pair is kept, hence the factor two in the sum.
var (
	cramAlpha0 = 1.832169985281401e-14

	cramAlpha = [7]complex128{
		complex(-2.787519865682509135e+01, 1.021475193898859288e+02),
		complex(4.693334194385033697e+01, -4.564374483877281818e+01),
		complex(-2.349827077751854176e+01, 5.808380499290905163e+00),
		complex(4.807121003130305326e+00, 1.320978069401313348e+00),
		complex(-3.763610319891608214e-01, -3.351836827831888854e-01),
		complex(9.439062657932428824e-03, 1.718480882229012074e-02),
		complex(-7.154321570590092480e-05, -1.436105666144070481e-04),
	}

	cramTheta = [7]complex128{
		complex(5.623144174753178959e+00, -1.194069216112474408e+00),
		complex(5.089346797282161106e+00, -3.588824392283768816e+00),
		complex(3.993371363653025696e+00, -6.004832090996046645e+00),
		complex(2.269785430958563666e+00, -8.461738817586933692e+00),
		complex(-2.087569297538278690e-01, -1.099126156622094186e+01),
		complex(-3.703273409575956521e+00, -1.365637319249918846e+01),
		complex(-8.897771518773311072e+00, -1.663098428347120716e+01),
	}
)

// cramFloor is the concentration below which CRAM results are set to zero.
const cramFloor = 1e-25

// CRAMSolver applies the order 14 Chebyshev rational approximation to exp(A*dt)*n0:
//
//	n = alpha0*n0 + 2*Re(sum_k (A*dt - theta_k*I)^-1 * alpha_k*n0)
//
// The approximation is accurate to about 14 digits when the eigenvalues of
// A*dt lie close to the negative real axis, which is the case for burnup and
// decay matrices. Nothing guarantees accuracy for other matrices and no
// correction is attempted. Entries below 1e-25, including the small negative
// values the approximation may produce, are set to zero.
type CRAMSolver struct {
	// Clamped, if set, receives the number of entries set to zero by each Solve call.
	Clamped func(n int)
}

// Solve implements Solver. The seven shifted systems are solved concurrently.
func (s CRAMSolver) Solve(a mat.Matrix, n0 []float64, dt float64) ([]float64, error) {
	if err := checkSystem(a, n0, dt); err != nil {
		return nil, err
	}
	n := len(n0)
	var h mat.Dense
	h.Scale(dt, a)

	terms := make([][]float64, len(cramTheta))
	var g errgroup.Group
	for k := range cramTheta {
		g.Go(func() error {
			x, err := solveShifted(&h, cramTheta[k], cramAlpha[k], n0)
			if err != nil {
				return fmt.Errorf("pole %d: %w", k, err)
			}
			terms[k] = x
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = cramAlpha0 * n0[i]
	}
	for _, x := range terms {
		for i := range out {
			out[i] += 2 * x[i]
		}
	}
	clamped := 0
	for i, v := range out {
		if v < cramFloor {
			if v != 0 {
				clamped++
			}
			out[i] = 0
		}
	}
	if s.Clamped != nil {
		s.Clamped(clamped)
	}
	return out, nil
}

// solveShifted returns Re(x) where (H - theta*I) x = alpha*n0. The complex
// system is solved as the equivalent real block system
//
//	[H - Re(theta)I    Im(theta)I  ] [Re x]   [Re(alpha) n0]
//	[ -Im(theta)I    H - Re(theta)I] [Im x] = [Im(alpha) n0]
func solveShifted(h *mat.Dense, theta, alpha complex128, n0 []float64) ([]float64, error) {
	n := len(n0)
	tr, ti := real(theta), imag(theta)
	m := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := h.At(i, j)
			if i == j {
				v -= tr
			}
			if v != 0 {
				m.Set(i, j, v)
				m.Set(n+i, n+j, v)
			}
		}
		m.Set(i, n+i, ti)
		m.Set(n+i, i, -ti)
	}
	b := mat.NewVecDense(2*n, nil)
	for i, v := range n0 {
		b.SetVec(i, real(alpha)*v)
		b.SetVec(n+i, imag(alpha)*v)
	}
	var x mat.VecDense
	if err := x.SolveVec(m, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%v: %w", err, ErrSingular)
		}
		// An ill-conditioned but solvable system still yields a usable solution.
	}
	re := make([]float64, n)
	for i := range re {
		re[i] = x.AtVec(i)
	}
	return re, nil
}
