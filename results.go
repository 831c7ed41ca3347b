package isodep

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
)

// Results is an immutable snapshot of a solved depletion: the time points,
// the densities and every quantity computed from them.
type Results struct {
	name       string
	ids        []ZAID
	index      map[ZAID]int
	timePoints []float64
	units      TimeUnit
	volume     float64
	mode       Mode
	method     Method

	series     map[Attribute]*mat.Dense // isotopes x time points
	timeSeries map[Attribute][]float64
}

// Results returns a snapshot of the solution and of every post-processed quantity.
func (d *Depletion) Results() (*Results, error) {
	if d.state < stateSolved {
		return nil, fmt.Errorf("no results before solving (state %s): %w", d.state, ErrState)
	}
	r := &Results{
		name:       d.name,
		ids:        d.IDs(),
		index:      indexOf(d.ids),
		timePoints: cloneVec(d.sc.points),
		units:      d.sc.units,
		volume:     d.volume,
		mode:       d.mode,
		method:     d.method,
		series:     make(map[Attribute]*mat.Dense),
		timeSeries: make(map[Attribute][]float64),
	}
	p := d.post
	for a, m := range map[Attribute]*mat.Dense{
		AttrNt:            d.nt,
		AttrAt:            p.at,
		AttrAtCurie:       p.atCurie,
		AttrQt:            p.qt,
		AttrMass:          p.mass,
		AttrToxIngestion:  p.toxIng,
		AttrToxInhalation: p.toxInh,
		AttrDRho:          p.dRho,
		AttrDRhoToRho:     p.dRhoToRho,
		AttrEssential:     p.essential,
	} {
		if m != nil {
			r.series[a] = mat.DenseCopyOf(m)
		}
	}
	for a, v := range map[Attribute][]float64{
		AttrPower:              d.power,
		AttrFlux:               d.flux,
		AttrTotalAt:            p.totalAt,
		AttrTotalAtCurie:       p.totalAtCurie,
		AttrTotalQt:            p.totalQt,
		AttrTotalMass:          p.totalMass,
		AttrTotalToxIngestion:  p.totalToxIng,
		AttrTotalToxInhalation: p.totalToxInh,
		AttrKeff:               p.keff,
		AttrRho:                p.rho,
	} {
		if v != nil {
			r.timeSeries[a] = cloneVec(v)
		}
	}
	return r, nil
}

// Name returns the name of the material.
func (r *Results) Name() string { return r.name }

// IDs returns the isotopes, in row order.
func (r *Results) IDs() []ZAID { return append([]ZAID(nil), r.ids...) }

// TimePoints returns the time points in Units.
func (r *Results) TimePoints() []float64 { return cloneVec(r.timePoints) }

// Units returns the time unit of the time points.
func (r *Results) Units() TimeUnit { return r.units }

// Volume returns the volume in cm^3.
func (r *Results) Volume() float64 { return r.volume }

// Mode returns whether the results come from a depletion or a decay solve.
func (r *Results) Mode() Mode { return r.mode }

// Method returns the solver used.
func (r *Results) Method() Method { return r.method }

// Has returns whether the attribute was computed.
func (r *Results) Has(a Attribute) bool {
	if _, ok := r.series[a]; ok {
		return true
	}
	_, ok := r.timeSeries[a]
	return ok
}

// Attributes returns the computed attributes in schema order.
func (r *Results) Attributes() []Attribute {
	var attrs []Attribute
	for a := AttrIDs; a < numAttributes; a++ {
		if r.Has(a) {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// Values returns the attribute multiplied by factor, one row per isotope of
// ids (every isotope when ids is empty) and one column per time point. A
// quantity without isotope dimension is returned as a single row.
func (r *Results) Values(a Attribute, ids []ZAID, factor float64) (*mat.Dense, error) {
	if v, ok := r.timeSeries[a]; ok {
		out := mat.NewDense(1, len(v), cloneVec(v))
		out.Scale(factor, out)
		return out, nil
	}
	m, ok := r.series[a]
	if !ok {
		return nil, fmt.Errorf("%s not computed: %w", a, ErrMissingAttribute)
	}
	if len(ids) == 0 {
		ids = r.ids
	}
	_, c := m.Dims()
	out := mat.NewDense(len(ids), c, nil)
	for k, id := range ids {
		i, ok := r.index[id]
		if !ok {
			return nil, fmt.Errorf("isotope %s: %w", id, ErrNotFound)
		}
		row := out.RawRowView(k)
		copy(row, m.RawRowView(i))
		floats.Scale(factor, row)
	}
	return out, nil
}

// Total returns the attribute summed over isotopes, or the attribute itself
// when it has no isotope dimension.
func (r *Results) Total(a Attribute) ([]float64, error) {
	if v, ok := r.timeSeries[a]; ok {
		return cloneVec(v), nil
	}
	m, ok := r.series[a]
	if !ok {
		return nil, fmt.Errorf("%s not computed: %w", a, ErrMissingAttribute)
	}
	return colSums(m), nil
}

// RankOptions configures Rank.
type RankOptions struct {
	// At is the time point index ranked. Negative values count from the end.
	At int
	// Integrated ranks by the trapezoidal integral over the time points instead.
	Integrated bool
	// Limit keeps the first rows only, when positive.
	Limit int
}

// RankRow is one isotope of a ranking.
type RankRow struct {
	ID    ZAID
	Value float64
	// Cumulative is the fraction of the total held by this row and all rows above it.
	Cumulative float64
}

// Rank sorts the isotopes by decreasing value of the attribute. Reactivity
// worths leave out the isotopes flagged essential, whose worth is undefined.
func (r *Results) Rank(a Attribute, opts RankOptions) ([]RankRow, error) {
	m, ok := r.series[a]
	if !ok {
		return nil, fmt.Errorf("%s cannot be ranked: %w", a, ErrMissingAttribute)
	}
	n, np := m.Dims()
	at := opts.At
	if at < 0 {
		at += np
	}
	if !opts.Integrated && (at < 0 || at >= np) {
		return nil, fmt.Errorf("time index %d of %d: %w", opts.At, np, ErrOutOfRange)
	}
	var essential *mat.Dense
	if a == AttrDRho || a == AttrDRhoToRho {
		essential = r.series[AttrEssential]
	}
	rows := make([]RankRow, 0, n)
	total := 0.0
	for i := 0; i < n; i++ {
		if essential != nil && isEssential(essential, i, at, opts.Integrated) {
			continue
		}
		v := 0.0
		if opts.Integrated {
			v = integrate.Trapezoidal(r.timePoints, m.RawRowView(i))
		} else {
			v = m.At(i, at)
		}
		rows = append(rows, RankRow{ID: r.ids[i], Value: v})
		total += v
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	cum := 0.0
	for i := range rows {
		cum += rows[i].Value
		if total != 0 {
			rows[i].Cumulative = cum / total
		}
	}
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

// isEssential reports whether isotope i is flagged at time point at, or at any
// time point when integrated.
func isEssential(m *mat.Dense, i, at int, integrated bool) bool {
	if !integrated {
		return m.At(i, at) != 0
	}
	return floats.Max(m.RawRowView(i)) != 0
}
