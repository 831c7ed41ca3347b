package isodep

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

const (
	u235  ZAID = 922350
	u236  ZAID = 922360
	xe135 ZAID = 541350
	i135  ZAID = 531350
)

// xenonXS returns one-group data of a small U235 / iodine / xenon system, in barns.
func xenonXS() CrossSections {
	fy := mat.NewDense(4, 4, nil)
	fy.Set(3, 0, 0.0639)  // I135 from U235
	fy.Set(2, 0, 0.00237) // Xe135 from U235
	return CrossSections{
		ID:           []ZAID{u235, u236, xe135, i135},
		Fission:      []float64{580, 0, 0, 0},
		Capture:      []float64{100, 5, 2.6e6, 7},
		FissionYield: fy,
		Lambda:       []float64{3.12e-17, 9.38e-16, 2.10657e-05, 2.93061e-05},
		AtomicWeight: []float64{235.04393, 236.04556, 134.90723, 134.91005},
		Q:            []float64{7.4e-13, 7.3e-13, 1.7e-13, 2.6e-13},
		Ingestion:    []float64{4.7e-8, 4.7e-8, 0, 8.8e-10},
		Inhalation:   []float64{8.5e-6, 8.7e-6, 0, 9.2e-10},
		Nu:           []float64{2.43, 0, 0, 0},
		Barns:        true,
	}
}

func TestNewDataSet(t *testing.T) {
	d, err := NewDataSet(xenonXS())
	require.NoError(t, err)
	require.Equal(t, 4, d.Len())
	require.Equal(t, []ZAID{u235, u236, xe135, i135}, d.IDs())

	trans := d.Transmutation()
	sigf := 580 * BarnToCm2
	checks := []struct {
		i, j int
		exp  float64
	}{
		{0, 0, -680 * BarnToCm2},
		{1, 0, 100 * BarnToCm2},
		{3, 0, sigf * 0.0639},
		{2, 0, sigf * 0.00237},
		{2, 2, -2.6e6 * BarnToCm2},
		{0, 1, 0},
	}
	for _, c := range checks {
		got := trans.At(c.i, c.j)
		if !scalar.EqualWithinRel(got, c.exp, 1e-12) {
			t.Fatalf("trans[%d,%d] = %g, expected %g", c.i, c.j, got, c.exp)
		}
	}
	// No branching given: the decay matrix is the diagonal of -lambda.
	decay := d.Decay()
	require.Equal(t, -2.93061e-05, decay.At(3, 3))
	require.Equal(t, 0.0, decay.At(2, 3))

	require.InDelta(t, 201.70114397138732, d.FissionEnergyMeV()[0], 1e-9)
	require.InDelta(t, 201.70114397138732/JouleToMeV, d.FissionEnergyJoule()[0], 1e-20)
	require.Equal(t, 0.0, d.FissionEnergyMeV()[2])
}

func TestNewDataSetDecayMatrix(t *testing.T) {
	xs := xenonXS()
	lambda := xs.Lambda
	decay, err := DecayMatrix(xs.ID, lambda, []Branch{{Parent: i135, Daughter: xe135, Fraction: 1}})
	require.NoError(t, err)
	xs.Decay = decay
	xs.Lambda = nil
	d, err := NewDataSet(xs)
	require.NoError(t, err)
	require.Equal(t, lambda[3], d.Decay().At(2, 3))
	// Lambda is read back from the diagonal.
	require.Equal(t, lambda, d.Lambda())
}

func TestCaptureBranching(t *testing.T) {
	d, err := NewDataSet(CrossSections{
		ID:          []ZAID{952410, 952420, 952421},
		Capture:     []float64{10, 0, 0},
		BranchRatio: []float64{0.2, 0, 0},
	})
	require.NoError(t, err)
	require.InDelta(t, 8, d.XS(Capture)[0], 1e-12)
	require.InDelta(t, 2, d.XS(CaptureMeta)[0], 1e-12)
	require.InDelta(t, 10, d.XS(Absorption)[0], 1e-12)
	trans := d.Transmutation()
	require.InDelta(t, 8, trans.At(1, 0), 1e-12)
	require.InDelta(t, 2, trans.At(2, 0), 1e-12)
}

func TestNewDataSetErrors(t *testing.T) {
	cases := map[string]struct {
		mutate func(*CrossSections)
		err    error
	}{
		"empty":       {func(xs *CrossSections) { xs.ID = nil }, ErrEmpty},
		"duplicate":   {func(xs *CrossSections) { xs.ID[1] = u235 }, ErrDuplicateID},
		"negative id": {func(xs *CrossSections) { xs.ID[1] = -1 }, ErrNegative},
		"length":      {func(xs *CrossSections) { xs.Fission = xs.Fission[:3] }, ErrLength},
		"negative xs": {func(xs *CrossSections) { xs.Capture[2] = -1 }, ErrNegative},
		"fy shape":    {func(xs *CrossSections) { xs.FissionYield = mat.NewDense(3, 3, nil) }, ErrShape},
		"decay shape": {func(xs *CrossSections) { xs.Decay = mat.NewDense(4, 3, nil) }, ErrShape},
		"nu length":   {func(xs *CrossSections) { xs.Nu = []float64{2.4} }, ErrLength},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			xs := xenonXS()
			c.mutate(&xs)
			_, err := NewDataSet(xs)
			if !errors.Is(err, c.err) {
				t.Fatalf("expected %v, got %v", c.err, err)
			}
		})
	}
}

func TestCondense(t *testing.T) {
	d, err := NewDataSet(xenonXS())
	require.NoError(t, err)
	c, err := d.Condense([]ZAID{xe135, u235, 10010})
	require.NoError(t, err)
	require.Equal(t, []ZAID{u235, xe135}, c.IDs())
	require.Equal(t, d.Transmutation().At(2, 0), c.Transmutation().At(1, 0))
	require.Equal(t, d.Lambda()[2], c.Lambda()[1])
	_, ok := c.Index(i135)
	require.False(t, ok)
	// The receiver is left untouched.
	require.Equal(t, 4, d.Len())

	_, err = d.Condense([]ZAID{10010})
	require.ErrorIs(t, err, ErrEmpty)
}
