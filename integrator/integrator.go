// Package integrator provides an adaptive Dormand-Prince 5(4) integrator for
// systems of ordinary differential equations y'(t) = f(t, y).
package integrator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStepSize is returned when the step size needed to meet the tolerance falls below MinStep.
	ErrStepSize = errors.New("integrator: step size below minimum")
	// ErrMaxSteps is returned when MaxSteps steps did not reach the end time.
	ErrMaxSteps = errors.New("integrator: maximum number of steps reached")
	// ErrConfig is returned for negative or NaN settings, or an empty state.
	ErrConfig = errors.New("integrator: invalid configuration")
)

// Func evaluates the derivative of y at time t into dy. It must not retain y or dy.
type Func func(t float64, y, dy []float64)

// Config configures the integration. Zero values select sensible defaults.
type Config struct {
	InitialStep float64 // If zero, estimated from the initial derivative.
	MinStep     float64
	MaxStep     float64 // If zero, the whole integration span.
	RelTol      float64 // Defaults to 1e-10.
	AbsTol      float64 // Defaults to 1e-12 times the largest |y0|.
	MaxSteps    int     // Defaults to 100000.
}

// Stats reports the work done by an integration.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	LastStep    float64
}

func (c Config) check() error {
	for _, v := range []float64{c.InitialStep, c.MinStep, c.MaxStep, c.RelTol, c.AbsTol} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%+v: %w", c, ErrConfig)
		}
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%+v: %w", c, ErrConfig)
	}
	return nil
}

func (c Config) withDefaults(y0 []float64, span float64) Config {
	if c.RelTol <= 0 {
		c.RelTol = 1e-10
	}
	if c.AbsTol <= 0 {
		m := 0.0
		for _, v := range y0 {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		c.AbsTol = 1e-12 * m
		if c.AbsTol == 0 {
			c.AbsTol = 1e-30
		}
	}
	if c.MaxStep <= 0 || c.MaxStep > span {
		c.MaxStep = span
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 100000
	}
	return c
}
