package isodep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CrossSections holds the one-group reaction data for a list of isotopes.
// Nil reaction vectors are treated as zero. Optional fields left nil are taken
// from the library (see Library.DataSet) or left empty in a standalone DataSet.
type CrossSections struct {
	ID []ZAID

	Fission     []float64
	Capture     []float64
	CaptureMeta []float64
	N2n         []float64
	N3n         []float64
	Alpha       []float64
	Proton      []float64
	Deuteron    []float64
	Triton      []float64

	FissionYield     *mat.Dense // [product, parent]
	Decay            *mat.Dense // [daughter, parent]
	FissionEnergyMeV []float64
	BranchRatio      []float64
	Nu               []float64

	AtomicWeight []float64
	Lambda       []float64
	Q            []float64
	Ingestion    []float64
	Inhalation   []float64

	// Barns is set when cross sections are given in barns rather than cm^2.
	Barns bool
}

func (xs *CrossSections) reactions() [NumReactions][]float64 {
	return [NumReactions][]float64{
		Fission:     xs.Fission,
		Capture:     xs.Capture,
		CaptureMeta: xs.CaptureMeta,
		N2n:         xs.N2n,
		N3n:         xs.N3n,
		Alpha:       xs.Alpha,
		Proton:      xs.Proton,
		Deuteron:    xs.Deuteron,
		Triton:      xs.Triton,
	}
}

// validate checks every input and returns the per-isotope cross section table
// in cm^2 along with the fission energies. Nothing is built when it fails.
func (xs *CrossSections) validate() (*mat.Dense, []float64, error) {
	n := len(xs.ID)
	if n == 0 {
		return nil, nil, fmt.Errorf("isotope list: %w", ErrEmpty)
	}
	seen := make(map[ZAID]bool, n)
	for _, id := range xs.ID {
		if id < 0 {
			return nil, nil, fmt.Errorf("isotope %d: %w", id, ErrNegative)
		}
		if seen[id] {
			return nil, nil, fmt.Errorf("isotope %d: %w", id, ErrDuplicateID)
		}
		seen[id] = true
	}
	rxs := xs.reactions()
	for r := Fission; r < NumReactions; r++ {
		if err := checkVec(rxs[r], n, r.String()+" cross section", true); err != nil {
			return nil, nil, err
		}
	}
	optional := []struct {
		name string
		v    []float64
	}{
		{"fission energy", xs.FissionEnergyMeV},
		{"branching ratio", xs.BranchRatio},
		{"nu", xs.Nu},
		{"atomic weight", xs.AtomicWeight},
		{"lambda", xs.Lambda},
		{"Q", xs.Q},
		{"ingestion", xs.Ingestion},
		{"inhalation", xs.Inhalation},
	}
	for _, o := range optional {
		if err := checkVec(o.v, n, o.name, true); err != nil {
			return nil, nil, err
		}
	}
	if err := checkSquare(xs.FissionYield, n, "fission yield matrix", true); err != nil {
		return nil, nil, err
	}
	if err := checkSquare(xs.Decay, n, "decay matrix", false); err != nil {
		return nil, nil, err
	}

	conv := 1.0
	if xs.Barns {
		conv = BarnToCm2
	}
	table := mat.NewDense(n, int(NumReactions), nil)
	for i := 0; i < n; i++ {
		abs := 0.0
		for r := Fission; r < NumReactions; r++ {
			if rxs[r] == nil {
				continue
			}
			v := rxs[r][i] * conv
			table.Set(i, int(r), v)
			abs += v
		}
		table.Set(i, int(Absorption), abs)
	}
	if xs.BranchRatio != nil {
		splitCapture(table, xs.BranchRatio)
	}

	efiss := xs.FissionEnergyMeV
	if efiss == nil {
		efiss = make([]float64, n)
		for i, id := range xs.ID {
			efiss[i] = id.FissionEnergyMeV()
		}
	} else {
		efiss = cloneVec(efiss)
	}
	return table, efiss, nil
}

// splitCapture divides the total capture (ground plus metastable) of each row
// according to the branching ratio to the metastable state.
func splitCapture(table *mat.Dense, br []float64) {
	for i, b := range br {
		c := table.At(i, int(Capture)) + table.At(i, int(CaptureMeta))
		table.Set(i, int(CaptureMeta), c*b)
		table.Set(i, int(Capture), c*(1-b))
	}
}

// NewDataSet builds a standalone DataSet whose isotope list is exactly xs.ID.
// A missing decay matrix is derived from Lambda (no branching), and missing
// decay constants are read from the diagonal of the decay matrix.
func NewDataSet(xs CrossSections) (*DataSet, error) {
	table, efiss, err := xs.validate()
	if err != nil {
		return nil, err
	}
	n := len(xs.ID)
	d := &DataSet{
		ids:        append([]ZAID(nil), xs.ID...),
		aw:         cloneVec(xs.AtomicWeight),
		lambda:     cloneVec(xs.Lambda),
		q:          cloneVec(xs.Q),
		br:         cloneVec(xs.BranchRatio),
		ingestion:  cloneVec(xs.Ingestion),
		inhalation: cloneVec(xs.Inhalation),
		nu:         cloneVec(xs.Nu),
		xs:         table,
	}
	d.index = indexOf(d.ids)
	d.setFissionEnergy(efiss)

	switch {
	case xs.Decay != nil:
		d.decay = mat.DenseCopyOf(xs.Decay)
		if d.lambda == nil {
			d.lambda = make([]float64, n)
			for i := range d.lambda {
				d.lambda[i] = -d.decay.At(i, i)
			}
		}
	case d.lambda != nil:
		d.decay = mat.NewDense(n, n, nil)
		for i, l := range d.lambda {
			d.decay.Set(i, i, -l)
		}
	default:
		d.decay = mat.NewDense(n, n, nil)
		d.lambda = make([]float64, n)
	}
	if xs.FissionYield != nil {
		d.fy = mat.DenseCopyOf(xs.FissionYield)
	} else {
		d.fy = mat.NewDense(n, n, nil)
	}
	d.trans = assembleTransmutation(d.ids, d.index, d.xs, d.fy)
	return d, nil
}

func (d *DataSet) setFissionEnergy(mev []float64) {
	d.efissMeV = mev
	d.efissJoule = make([]float64, len(mev))
	for i, e := range mev {
		d.efissJoule[i] = e / JouleToMeV
	}
}

// assembleTransmutation builds the one-group transmutation matrix: minus the
// absorption on the diagonal, each reaction cross section at [product, parent]
// and the fission yields weighted by the parent's fission cross section.
func assembleTransmutation(ids []ZAID, index map[ZAID]int, table, fy *mat.Dense) *mat.Dense {
	n := len(ids)
	m := mat.NewDense(n, n, nil)
	dropped := 0
	for j, parent := range ids {
		m.Set(j, j, -table.At(j, int(Absorption)))
		for r := Capture; r < NumReactions; r++ {
			sig := table.At(j, int(r))
			product, ok := parent.Product(r)
			if !ok {
				if sig > 0 {
					dropped++
				}
				continue
			}
			i, tracked := index[product]
			if !tracked {
				continue
			}
			m.Set(i, j, m.At(i, j)+sig)
		}
	}
	if dropped > 0 {
		logDebug("subsys", "data", "message", "reaction products below tracked range", "dropped", dropped)
	}
	if fy != nil {
		for j := 0; j < n; j++ {
			sigf := table.At(j, int(Fission))
			if sigf == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				if y := fy.At(i, j); y != 0 {
					m.Set(i, j, m.At(i, j)+sigf*y)
				}
			}
		}
	}
	return m
}

// Branch is one decay path from a parent to a daughter.
type Branch struct {
	Parent   ZAID
	Daughter ZAID
	Fraction float64
}

// DecayMatrix assembles a decay matrix with -lambda on the diagonal and
// lambda[parent]*fraction at [daughter, parent] for each branch. Branches to
// or from isotopes outside ids are skipped.
func DecayMatrix(ids []ZAID, lambda []float64, branches []Branch) (*mat.Dense, error) {
	n := len(ids)
	if n == 0 {
		return nil, fmt.Errorf("decay matrix: %w", ErrEmpty)
	}
	if err := checkVec(lambda, n, "lambda", true); err != nil {
		return nil, err
	}
	index := indexOf(ids)
	if len(index) != n {
		return nil, fmt.Errorf("decay matrix: %w", ErrDuplicateID)
	}
	m := mat.NewDense(n, n, nil)
	for i, l := range lambda {
		m.Set(i, i, -l)
	}
	for _, b := range branches {
		if b.Fraction < 0 {
			return nil, fmt.Errorf("branch %s->%s: %w", b.Parent, b.Daughter, ErrNegative)
		}
		j, okP := index[b.Parent]
		i, okD := index[b.Daughter]
		if !okP || !okD || i == j {
			continue
		}
		m.Set(i, j, m.At(i, j)+lambda[j]*b.Fraction)
	}
	return m, nil
}

// checkVec validates the length of an optional vector and, if nonNeg, that it
// holds no negative entry.
func checkVec(v []float64, n int, name string, nonNeg bool) error {
	if v == nil {
		return nil
	}
	if len(v) != n {
		return fmt.Errorf("%s has %d values, expected %d: %w", name, len(v), n, ErrLength)
	}
	if nonNeg {
		for i, x := range v {
			if x < 0 {
				return fmt.Errorf("%s[%d]=%g: %w", name, i, x, ErrNegative)
			}
		}
	}
	return nil
}

func checkSquare(m *mat.Dense, n int, name string, nonNeg bool) error {
	if m == nil {
		return nil
	}
	if r, c := m.Dims(); r != n || c != n {
		return fmt.Errorf("%s is %dx%d, expected %dx%d: %w", name, r, c, n, n, ErrShape)
	}
	if nonNeg {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if m.At(i, j) < 0 {
					return fmt.Errorf("%s[%d,%d]: %w", name, i, j, ErrNegative)
				}
			}
		}
	}
	return nil
}
