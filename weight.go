package isodep

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Weight combines the results of several materials sharing the same isotopes
// and time points into one volume-weighted composite. Every weighted
// attribute computed for all inputs becomes sum(v*V)/sum(V). Identity data is
// taken from the first input; the reactivity quantities, which do not
// combine linearly, are left out. The volume of the composite is sum(V).
func Weight(results ...*Results) (*Results, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to weight: %w", ErrEmpty)
	}
	first := results[0]
	totalVolume := 0.0
	names := make([]string, len(results))
	for k, r := range results {
		if len(r.ids) != len(first.ids) {
			return nil, fmt.Errorf("material %q: %w", r.name, ErrIsotopeOrder)
		}
		for i, id := range r.ids {
			if first.ids[i] != id {
				return nil, fmt.Errorf("material %q: %w", r.name, ErrIsotopeOrder)
			}
		}
		if !floats.Equal(r.timePoints, first.timePoints) || r.units != first.units {
			return nil, fmt.Errorf("material %q has different time points: %w", r.name, ErrLength)
		}
		totalVolume += r.volume
		names[k] = r.name
	}
	if !(totalVolume > 0) {
		return nil, fmt.Errorf("total volume %g: %w", totalVolume, ErrNegative)
	}

	w := &Results{
		name:       strings.Join(names, "+"),
		ids:        first.IDs(),
		index:      indexOf(first.ids),
		timePoints: first.TimePoints(),
		units:      first.units,
		volume:     totalVolume,
		mode:       first.mode,
		method:     first.method,
		series:     make(map[Attribute]*mat.Dense),
		timeSeries: make(map[Attribute][]float64),
	}
	for a := AttrIDs; a < numAttributes; a++ {
		if !a.Info().Weighted || !weightable(a, results) {
			continue
		}
		if m, ok := first.series[a]; ok {
			r, c := m.Dims()
			sum := mat.NewDense(r, c, nil)
			for _, res := range results {
				sum.Apply(func(i, j int, v float64) float64 {
					return v + res.series[a].At(i, j)*res.volume
				}, sum)
			}
			sum.Scale(1/totalVolume, sum)
			w.series[a] = sum
			continue
		}
		sum := make([]float64, len(first.timeSeries[a]))
		for _, res := range results {
			floats.AddScaled(sum, res.volume, res.timeSeries[a])
		}
		floats.Scale(1/totalVolume, sum)
		w.timeSeries[a] = sum
	}
	return w, nil
}

// weightable reports whether every result carries the attribute with the same shape.
func weightable(a Attribute, results []*Results) bool {
	for _, r := range results {
		if !r.Has(a) {
			return false
		}
		if v, ok := r.timeSeries[a]; ok && len(v) != len(results[0].timeSeries[a]) {
			return false
		}
	}
	return true
}
