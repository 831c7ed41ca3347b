package isodep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DataSet holds the nuclear data of one material state: the ordered isotope
// list and every per-isotope vector and matrix indexed against it.
// A DataSet is never modified after construction and may be shared by several
// depletion drivers. Matrices are returned as read-only views.
type DataSet struct {
	ids   []ZAID
	index map[ZAID]int

	aw         []float64
	lambda     []float64
	q          []float64
	br         []float64
	ingestion  []float64
	inhalation []float64
	efissMeV   []float64
	efissJoule []float64
	nu         []float64

	xs    *mat.Dense // len(ids) x NumReactions, cm^2
	decay *mat.Dense
	fy    *mat.Dense
	trans *mat.Dense
}

// Len returns the number of isotopes.
func (d *DataSet) Len() int { return len(d.ids) }

// IDs returns a copy of the ordered isotope list.
func (d *DataSet) IDs() []ZAID {
	ids := make([]ZAID, len(d.ids))
	copy(ids, d.ids)
	return ids
}

// Index returns the position of the isotope.
func (d *DataSet) Index(id ZAID) (int, bool) {
	i, ok := d.index[id]
	return i, ok
}

// SameIDs returns whether both data sets share the same isotope ordering.
func (d *DataSet) SameIDs(o *DataSet) bool {
	if len(d.ids) != len(o.ids) {
		return false
	}
	for i, id := range d.ids {
		if o.ids[i] != id {
			return false
		}
	}
	return true
}

// AtomicWeight returns the atomic weights, or nil when unknown.
func (d *DataSet) AtomicWeight() []float64 { return cloneVec(d.aw) }

// Lambda returns the decay constants in 1/s.
func (d *DataSet) Lambda() []float64 { return cloneVec(d.lambda) }

// Q returns the decay heat coefficients in W/Bq.
func (d *DataSet) Q() []float64 { return cloneVec(d.q) }

func (d *DataSet) BranchRatio() []float64 { return cloneVec(d.br) }
func (d *DataSet) Ingestion() []float64   { return cloneVec(d.ingestion) }
func (d *DataSet) Inhalation() []float64  { return cloneVec(d.inhalation) }

// FissionEnergyMeV returns the recoverable energy per fission in MeV.
func (d *DataSet) FissionEnergyMeV() []float64 { return cloneVec(d.efissMeV) }

// FissionEnergyJoule returns the recoverable energy per fission in Joules.
func (d *DataSet) FissionEnergyJoule() []float64 { return cloneVec(d.efissJoule) }

// Nu returns the number of neutrons per fission, or nil when unknown.
func (d *DataSet) Nu() []float64 { return cloneVec(d.nu) }

// XS returns the cross sections of reaction r in cm^2.
func (d *DataSet) XS(r Reaction) []float64 {
	return mat.Col(nil, int(r), d.xs)
}

// XSTable returns the cross section table, one row per isotope and one column per Reaction.
func (d *DataSet) XSTable() mat.Matrix { return d.xs }

// Decay returns the decay matrix.
func (d *DataSet) Decay() mat.Matrix { return d.decay }

// FissionYield returns the fission yield matrix indexed [product, parent].
func (d *DataSet) FissionYield() mat.Matrix { return d.fy }

// Transmutation returns the transmutation matrix, which excludes decay.
func (d *DataSet) Transmutation() mat.Matrix { return d.trans }

// Condense returns a new DataSet restricted to the provided isotopes. All
// vectors and matrices are sliced with the same permutation and the receiver
// is left untouched. Isotopes unknown to the data set are ignored; the order
// of the receiver is kept.
func (d *DataSet) Condense(ids []ZAID) (*DataSet, error) {
	keep := make(map[ZAID]bool, len(ids))
	for _, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("condense id %d: %w", id, ErrNegative)
		}
		keep[id] = true
	}
	var idx []int
	for i, id := range d.ids {
		if keep[id] {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("no isotope in common with the data set: %w", ErrEmpty)
	}
	c := &DataSet{
		aw:         subVec(d.aw, idx),
		lambda:     subVec(d.lambda, idx),
		q:          subVec(d.q, idx),
		br:         subVec(d.br, idx),
		ingestion:  subVec(d.ingestion, idx),
		inhalation: subVec(d.inhalation, idx),
		efissMeV:   subVec(d.efissMeV, idx),
		efissJoule: subVec(d.efissJoule, idx),
		nu:         subVec(d.nu, idx),
		xs:         subRows(d.xs, idx),
		decay:      subSquare(d.decay, idx),
		fy:         subSquare(d.fy, idx),
		trans:      subSquare(d.trans, idx),
	}
	c.ids = make([]ZAID, len(idx))
	for k, i := range idx {
		c.ids[k] = d.ids[i]
	}
	c.index = indexOf(c.ids)
	return c, nil
}

// shallow returns a copy sharing every slice and matrix with d. Callers
// replace the fields they change with fresh values.
func (d *DataSet) shallow() *DataSet {
	c := *d
	return &c
}

func indexOf(ids []ZAID) map[ZAID]int {
	m := make(map[ZAID]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func cloneVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	c := make([]float64, len(v))
	copy(c, v)
	return c
}

func subVec(v []float64, idx []int) []float64 {
	if v == nil {
		return nil
	}
	s := make([]float64, len(idx))
	for k, i := range idx {
		s[k] = v[i]
	}
	return s
}

func subRows(m *mat.Dense, idx []int) *mat.Dense {
	if m == nil {
		return nil
	}
	_, c := m.Dims()
	s := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		s.SetRow(k, m.RawRowView(i))
	}
	return s
}

func subSquare(m *mat.Dense, idx []int) *mat.Dense {
	if m == nil {
		return nil
	}
	s := mat.NewDense(len(idx), len(idx), nil)
	for r, i := range idx {
		for c, j := range idx {
			s.Set(r, c, m.At(i, j))
		}
	}
	return s
}
