package isodep

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
)

// maxAxes is the largest number of state variables an XSInterface supports.
const maxAxes = 3

// XSInterface stores data sets generated on a rectilinear grid of operating
// states (for example fuel temperature, moderator density and burnup) and
// builds data sets at intermediate states by multilinear interpolation.
type XSInterface struct {
	axes        [][]float64 // sorted unique values per state variable
	strides     []int
	grid        []*DataSet
	extrapolate bool
}

// InterpOption configures an XSInterface.
type InterpOption func(*XSInterface)

// WithExtrapolation allows queries outside of the grid, extrapolating from
// the two outermost values of each violated axis.
func WithExtrapolation(on bool) InterpOption {
	return func(x *XSInterface) { x.extrapolate = on }
}

// NewXSInterface returns an interface over the data sets, where sets[i] was
// generated at states[i]. The states must form a complete grid.
func NewXSInterface(states [][]float64, sets []*DataSet, opts ...InterpOption) (*XSInterface, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no state: %w", ErrEmpty)
	}
	if len(states) != len(sets) {
		return nil, fmt.Errorf("%d states for %d data sets: %w", len(states), len(sets), ErrLength)
	}
	dims := len(states[0])
	if dims < 1 || dims > maxAxes {
		return nil, fmt.Errorf("%d state variables, expected 1 to %d: %w", dims, maxAxes, ErrShape)
	}
	x := &XSInterface{axes: make([][]float64, dims), strides: make([]int, dims)}
	for _, opt := range opts {
		opt(x)
	}
	for i, st := range states {
		if len(st) != dims {
			return nil, fmt.Errorf("state %d has %d values, expected %d: %w", i, len(st), dims, ErrLength)
		}
		if sets[i] == nil {
			return nil, fmt.Errorf("data set %d is nil: %w", i, ErrMissingAttribute)
		}
		if !sets[i].SameIDs(sets[0]) {
			return nil, fmt.Errorf("data set %d: %w", i, ErrIsotopeOrder)
		}
	}

	size := 1
	for k := 0; k < dims; k++ {
		x.axes[k] = uniqueAxis(states, k)
		size *= len(x.axes[k])
	}
	if size != len(states) {
		return nil, fmt.Errorf("%d unique states span %d grid points: %w", len(states), size, ErrIncompleteGrid)
	}
	stride := 1
	for k := dims - 1; k >= 0; k-- {
		x.strides[k] = stride
		stride *= len(x.axes[k])
	}
	x.grid = make([]*DataSet, size)
	for i, st := range states {
		flat := 0
		for k, v := range st {
			j := sort.SearchFloat64s(x.axes[k], v)
			flat += j * x.strides[k]
		}
		if x.grid[flat] != nil {
			return nil, fmt.Errorf("state %v given twice: %w", st, ErrIncompleteGrid)
		}
		x.grid[flat] = sets[i]
	}
	level.Debug(Logger()).Log("subsys", "interp", "axes", dims, "points", size, "extrapolate", x.extrapolate)
	return x, nil
}

func uniqueAxis(states [][]float64, k int) []float64 {
	vals := make([]float64, 0, len(states))
	for _, st := range states {
		vals = append(vals, st[k])
	}
	sort.Float64s(vals)
	out := vals[:0]
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Dims returns the number of state variables.
func (x *XSInterface) Dims() int { return len(x.axes) }

// Axis returns the grid values of state variable k.
func (x *XSInterface) Axis(k int) []float64 { return cloneVec(x.axes[k]) }

// bracket returns the lower index along axis k and the weight of the upper
// neighbour. A value on the grid yields a weight of exactly 0 or 1.
func (x *XSInterface) bracket(k int, v float64) (lower int, w float64, exact bool, err error) {
	axis := x.axes[k]
	n := len(axis)
	if math.IsNaN(v) {
		return 0, 0, false, fmt.Errorf("state variable %d is NaN: %w", k, ErrOutOfRange)
	}
	if i := sort.SearchFloat64s(axis, v); i < n && axis[i] == v {
		switch {
		case n == 1:
			return 0, 0, true, nil
		case i == n-1:
			return i - 1, 1, true, nil
		default:
			return i, 0, true, nil
		}
	}
	if v < axis[0] || v > axis[n-1] {
		if !x.extrapolate {
			return 0, 0, false, fmt.Errorf("state variable %d = %g outside [%g, %g]: %w", k, v, axis[0], axis[n-1], ErrOutOfRange)
		}
		if n == 1 {
			return 0, 0, false, nil
		}
		if v < axis[0] {
			return 0, (v - axis[0]) / (axis[1] - axis[0]), false, nil
		}
		return n - 2, (v - axis[n-2]) / (axis[n-1] - axis[n-2]), false, nil
	}
	upper := sort.Search(n, func(i int) bool { return axis[i] > v })
	lower = upper - 1
	return lower, (v - axis[lower]) / (axis[upper] - axis[lower]), false, nil
}

// At returns the data set at the state. A state on the grid returns the
// stored data set itself; any other state returns a new data set whose cross
// sections, transmutation matrix, fission energies and fission yields are
// interpolated, every other field being shared with the lower grid corner.
func (x *XSInterface) At(state ...float64) (*DataSet, error) {
	dims := len(x.axes)
	if len(state) != dims {
		return nil, fmt.Errorf("%d state values, expected %d: %w", len(state), dims, ErrLength)
	}
	lower := make([]int, dims)
	w := make([]float64, dims)
	onGrid := true
	flat := 0
	for k, v := range state {
		l, wk, exact, err := x.bracket(k, v)
		if err != nil {
			return nil, err
		}
		lower[k], w[k] = l, wk
		onGrid = onGrid && exact
		if exact {
			idx := l
			if wk == 1 {
				idx++
			}
			flat += idx * x.strides[k]
		}
	}
	if onGrid {
		return x.grid[flat], nil
	}

	// Corner c holds the data set at lower[k] + bit k of c.
	corners := make([]*DataSet, 1<<dims)
	for c := range corners {
		flat := 0
		for k := 0; k < dims; k++ {
			idx := lower[k]
			if c&(1<<k) != 0 && len(x.axes[k]) > 1 {
				idx++
			}
			flat += idx * x.strides[k]
		}
		corners[c] = x.grid[flat]
	}
	return interpolate(corners, w), nil
}

// interpolate blends the 2^len(w) corners, first along axis 0, then along
// axis 1 and so on.
func interpolate(corners []*DataSet, w []float64) *DataSet {
	out := corners[0].shallow()

	xs := make([]*mat.Dense, len(corners))
	trans := make([]*mat.Dense, len(corners))
	fy := make([]*mat.Dense, len(corners))
	efiss := make([][]float64, len(corners))
	for c, d := range corners {
		xs[c], trans[c], fy[c], efiss[c] = d.xs, d.trans, d.fy, d.efissMeV
	}
	if m := multilinearDense(xs, w); m != nil {
		out.xs = m
	}
	if m := multilinearDense(trans, w); m != nil {
		out.trans = m
	}
	if m := multilinearDense(fy, w); m != nil {
		out.fy = m
	}
	if v := multilinearVec(efiss, w); v != nil {
		out.setFissionEnergy(v)
	}
	return out
}

func multilinearDense(vals []*mat.Dense, w []float64) *mat.Dense {
	for _, v := range vals {
		if v == nil {
			return nil
		}
	}
	for k := range w {
		half := len(vals) / 2
		next := make([]*mat.Dense, 0, half)
		for c := 0; c < len(vals); c += 2 {
			next = append(next, lerpDense(vals[c], vals[c+1], w[k]))
		}
		vals = next
	}
	return vals[0]
}

func multilinearVec(vals [][]float64, w []float64) []float64 {
	for _, v := range vals {
		if v == nil {
			return nil
		}
	}
	for k := range w {
		next := make([][]float64, 0, len(vals)/2)
		for c := 0; c < len(vals); c += 2 {
			next = append(next, lerpVec(vals[c], vals[c+1], w[k]))
		}
		vals = next
	}
	return vals[0]
}

// TimeTrace returns one data set per time point, following one trace per
// state variable. The result can be passed to NewDepletion along with the
// time points.
func (x *XSInterface) TimeTrace(timepoints []float64, traces ...[]float64) ([]*DataSet, error) {
	if len(timepoints) == 0 {
		return nil, fmt.Errorf("no time point: %w", ErrEmpty)
	}
	if len(traces) != len(x.axes) {
		return nil, fmt.Errorf("%d traces for %d state variables: %w", len(traces), len(x.axes), ErrLength)
	}
	for k, tr := range traces {
		if err := checkVec(tr, len(timepoints), fmt.Sprintf("trace %d", k), true); err != nil {
			return nil, err
		}
		if tr == nil {
			return nil, fmt.Errorf("trace %d is empty: %w", k, ErrEmpty)
		}
	}
	sets := make([]*DataSet, len(timepoints))
	state := make([]float64, len(x.axes))
	for i := range timepoints {
		for k, tr := range traces {
			state[k] = tr[i]
		}
		d, err := x.At(state...)
		if err != nil {
			return nil, fmt.Errorf("time point %g: %w", timepoints[i], err)
		}
		sets[i] = d
	}
	return sets, nil
}

// Linear interpolates between v0 at x0 and v1 at x1.
func Linear(x0, x1, v0, v1, x float64) float64 {
	t := (x - x0) / (x1 - x0)
	return (1-t)*v0 + t*v1
}

// BiLinear interpolates on the cell [x0, x1] x [y0, y1], where vXY is the
// value at corner (xX, yY).
func BiLinear(x0, x1, y0, y1, v00, v10, v01, v11, x, y float64) float64 {
	a := Linear(x0, x1, v00, v10, x)
	b := Linear(x0, x1, v01, v11, x)
	return Linear(y0, y1, a, b, y)
}

// TriLinear interpolates on the cell [x0, x1] x [y0, y1] x [z0, z1], where
// vXYZ is the value at corner (xX, yY, zZ).
func TriLinear(x0, x1, y0, y1, z0, z1, v000, v100, v010, v110, v001, v101, v011, v111, x, y, z float64) float64 {
	a := BiLinear(x0, x1, y0, y1, v000, v100, v010, v110, x, y)
	b := BiLinear(x0, x1, y0, y1, v001, v101, v011, v111, x, y)
	return Linear(z0, z1, a, b, z)
}
