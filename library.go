package isodep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Keys looked up in a DataSource.
const (
	KeyAtomicWeight = "AW"
	KeyQ            = "Q"
	KeyBranchRatio  = "BR"
	KeyLambda       = "lambda"
	KeyIngestion    = "ingestion"
	KeyInhalation   = "inhalation"
	KeyThermalFY    = "thermalFY"
	KeyFastFY       = "fastFY"
	KeyDecayMatrix  = "decayMatrix"
)

// DataSource supplies nuclear data for a fixed, ordered list of isotopes.
// Vectors and matrices are indexed like IDs.
type DataSource interface {
	IDs() ([]ZAID, error)
	Vector(key string) ([]float64, error)
	Matrix(key string) (*mat.Dense, error)
}

// Library is the full reference data for a list of isotopes, against which
// partial cross section sets are scattered.
type Library struct {
	ids   []ZAID
	index map[ZAID]int

	aw, q, br, lambda     []float64
	ingestion, inhalation []float64
	decay, fy             *mat.Dense
}

// NewLibrary reads every key from the source. The fission yield matrix is
// wgtFY*thermal + (1-wgtFY)*fast.
func NewLibrary(src DataSource, wgtFY float64) (*Library, error) {
	if wgtFY < 0 || wgtFY > 1 {
		return nil, fmt.Errorf("fission yield weight %g: %w", wgtFY, ErrWeight)
	}
	ids, err := src.IDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("library isotopes: %w", ErrEmpty)
	}
	l := &Library{ids: append([]ZAID(nil), ids...), index: indexOf(ids)}
	if len(l.index) != len(ids) {
		return nil, fmt.Errorf("library isotopes: %w", ErrDuplicateID)
	}
	n := len(ids)
	vectors := []struct {
		key string
		dst *[]float64
	}{
		{KeyAtomicWeight, &l.aw},
		{KeyQ, &l.q},
		{KeyBranchRatio, &l.br},
		{KeyLambda, &l.lambda},
		{KeyIngestion, &l.ingestion},
		{KeyInhalation, &l.inhalation},
	}
	for _, v := range vectors {
		vals, err := src.Vector(v.key)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", v.key, err)
		}
		if err := checkVec(vals, n, v.key, true); err != nil {
			return nil, err
		}
		if vals == nil {
			vals = make([]float64, n)
		}
		*v.dst = vals
	}
	if l.decay, err = src.Matrix(KeyDecayMatrix); err != nil {
		return nil, fmt.Errorf("library %s: %w", KeyDecayMatrix, err)
	}
	if err := checkSquare(l.decay, n, KeyDecayMatrix, false); err != nil {
		return nil, err
	}
	if l.decay == nil {
		l.decay = mat.NewDense(n, n, nil)
		for i, lam := range l.lambda {
			l.decay.Set(i, i, -lam)
		}
	}
	thermal, err := src.Matrix(KeyThermalFY)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", KeyThermalFY, err)
	}
	fast, err := src.Matrix(KeyFastFY)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", KeyFastFY, err)
	}
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{KeyThermalFY, thermal}, {KeyFastFY, fast}} {
		if err := checkSquare(m.m, n, m.name, true); err != nil {
			return nil, err
		}
	}
	l.fy = mat.NewDense(n, n, nil)
	if thermal != nil {
		l.fy.Scale(wgtFY, thermal)
	}
	if fast != nil {
		var f mat.Dense
		f.Scale(1-wgtFY, fast)
		l.fy.Add(l.fy, &f)
	}
	return l, nil
}

// Len returns the number of isotopes in the library.
func (l *Library) Len() int { return len(l.ids) }

// IDs returns a copy of the library isotope list.
func (l *Library) IDs() []ZAID { return append([]ZAID(nil), l.ids...) }

// DecayDataSet returns a DataSet spanning the whole library with zero cross
// sections, suited to pure decay calculations.
func (l *Library) DecayDataSet() *DataSet {
	n := len(l.ids)
	d := l.base()
	d.xs = mat.NewDense(n, int(NumReactions), nil)
	d.setFissionEnergy(make([]float64, n))
	d.trans = mat.NewDense(n, n, nil)
	return d
}

// base copies the library data into a new DataSet without cross sections.
func (l *Library) base() *DataSet {
	return &DataSet{
		ids:        append([]ZAID(nil), l.ids...),
		index:      indexOf(l.ids),
		aw:         cloneVec(l.aw),
		lambda:     cloneVec(l.lambda),
		q:          cloneVec(l.q),
		br:         cloneVec(l.br),
		ingestion:  cloneVec(l.ingestion),
		inhalation: cloneVec(l.inhalation),
		decay:      mat.DenseCopyOf(l.decay),
		fy:         mat.DenseCopyOf(l.fy),
	}
}

// DataSet scatters the partial cross sections onto the full library isotope
// list. Isotopes of xs that are not in the library are ignored. Supplied
// branching ratios, yields, decay matrix and decay data overwrite the
// library values only at the intersected positions. Without a supplied
// branching ratio, capture is split with the library one. The decay matrix
// follows a supplied Lambda, keeping the library branch fractions; a supplied
// decay matrix sets Lambda from its diagonal instead.
func (l *Library) DataSet(xs CrossSections) (*DataSet, error) {
	part, efissPart, err := xs.validate()
	if err != nil {
		return nil, err
	}
	d := l.base()
	n := len(l.ids)

	var idxFull, idxPart []int
	var missing []ZAID
	for k, id := range xs.ID {
		if i, ok := l.index[id]; ok {
			idxFull = append(idxFull, i)
			idxPart = append(idxPart, k)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		logDebug("subsys", "data", "message", "isotopes not in library", "count", len(missing), "ids", fmt.Sprint(missing))
	}

	d.xs = mat.NewDense(n, int(NumReactions), nil)
	efiss := make([]float64, n)
	for k, i := range idxFull {
		d.xs.SetRow(i, part.RawRowView(idxPart[k]))
		efiss[i] = efissPart[idxPart[k]]
	}
	d.setFissionEnergy(efiss)
	if xs.BranchRatio == nil {
		splitCapture(d.xs, l.br)
	}

	scatter := func(dst []float64, src []float64) {
		if src == nil {
			return
		}
		for k, i := range idxFull {
			dst[i] = src[idxPart[k]]
		}
	}
	scatter(d.br, xs.BranchRatio)
	scatter(d.aw, xs.AtomicWeight)
	if xs.Lambda != nil {
		for k, i := range idxFull {
			rescaleDecay(d.decay, i, d.lambda[i], xs.Lambda[idxPart[k]])
		}
	}
	scatter(d.lambda, xs.Lambda)
	scatter(d.q, xs.Q)
	scatter(d.ingestion, xs.Ingestion)
	scatter(d.inhalation, xs.Inhalation)
	if xs.Nu != nil {
		d.nu = make([]float64, n)
		scatter(d.nu, xs.Nu)
	}

	scatterMatrix := func(dst, src *mat.Dense) {
		for a, i := range idxFull {
			for b, j := range idxFull {
				dst.Set(i, j, src.At(idxPart[a], idxPart[b]))
			}
		}
	}
	if xs.FissionYield != nil {
		scatterMatrix(d.fy, xs.FissionYield)
	}
	if xs.Decay != nil {
		scatterMatrix(d.decay, xs.Decay)
		for _, i := range idxFull {
			d.lambda[i] = -d.decay.At(i, i)
		}
	}
	d.trans = assembleTransmutation(d.ids, d.index, d.xs, d.fy)
	return d, nil
}

// rescaleDecay changes the decay constant of isotope j in the decay matrix
// from old to lambda. A stable isotope gets no daughter.
func rescaleDecay(decay *mat.Dense, j int, old, lambda float64) {
	if old == 0 {
		decay.Set(j, j, -lambda)
		return
	}
	n, _ := decay.Dims()
	for i := 0; i < n; i++ {
		decay.Set(i, j, decay.At(i, j)*lambda/old)
	}
}
