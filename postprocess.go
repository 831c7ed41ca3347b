package isodep

import (
	"fmt"
	"math"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
)

// postResults holds the quantities derived from Nt.
type postResults struct {
	at, atCurie  *mat.Dense
	qt           *mat.Dense
	mass         *mat.Dense
	toxIng       *mat.Dense
	toxInh       *mat.Dense
	totalAt      []float64
	totalAtCurie []float64
	totalQt      []float64
	totalMass    []float64
	totalToxIng  []float64
	totalToxInh  []float64

	keff, rho       []float64
	dRho, dRhoToRho *mat.Dense
	essential       *mat.Dense
}

// Activity holds the activity of every isotope (rows) at every time point (columns).
type Activity struct {
	Bq    *mat.Dense
	Curie *mat.Dense
	// Totals over isotopes.
	TotalBq    []float64
	TotalCurie []float64
}

// Activity computes the activity in Bq and Ci.
func (d *Depletion) Activity() (Activity, error) {
	if err := d.require(PurposeActivity); err != nil {
		return Activity{}, err
	}
	d.activity()
	d.markPost(PurposeActivity)
	return Activity{
		Bq:         mat.DenseCopyOf(d.post.at),
		Curie:      mat.DenseCopyOf(d.post.atCurie),
		TotalBq:    cloneVec(d.post.totalAt),
		TotalCurie: cloneVec(d.post.totalAtCurie),
	}, nil
}

func (d *Depletion) activity() {
	d.post.at = d.scaleRows(d.sets[0].lambda, d.volume/BarnToCm2)
	d.post.atCurie = mat.DenseCopyOf(d.post.at)
	d.post.atCurie.Scale(1/BqToCurie, d.post.atCurie)
	d.post.totalAt = colSums(d.post.at)
	d.post.totalAtCurie = colSums(d.post.atCurie)
}

// DecayHeat computes the decay heat in W of every isotope and its total.
func (d *Depletion) DecayHeat() (*mat.Dense, []float64, error) {
	if err := d.require(PurposeDecayHeat); err != nil {
		return nil, nil, err
	}
	d.activity()
	d.post.qt = rowsTimes(d.post.at, d.sets[0].q)
	d.post.totalQt = colSums(d.post.qt)
	d.markPost(PurposeDecayHeat)
	return mat.DenseCopyOf(d.post.qt), cloneVec(d.post.totalQt), nil
}

// Radiotoxicity holds the ingestion and inhalation radiotoxicity in Sv.
type Radiotoxicity struct {
	Ingestion       *mat.Dense
	Inhalation      *mat.Dense
	TotalIngestion  []float64
	TotalInhalation []float64
}

// Radiotoxicity computes the ingestion and inhalation radiotoxicity.
func (d *Depletion) Radiotoxicity() (Radiotoxicity, error) {
	if err := d.require(PurposeRadiotoxicity); err != nil {
		return Radiotoxicity{}, err
	}
	d.activity()
	d.post.toxIng = rowsTimes(d.post.at, d.sets[0].ingestion)
	d.post.toxInh = rowsTimes(d.post.at, d.sets[0].inhalation)
	d.post.totalToxIng = colSums(d.post.toxIng)
	d.post.totalToxInh = colSums(d.post.toxInh)
	d.markPost(PurposeRadiotoxicity)
	return Radiotoxicity{
		Ingestion:       mat.DenseCopyOf(d.post.toxIng),
		Inhalation:      mat.DenseCopyOf(d.post.toxInh),
		TotalIngestion:  cloneVec(d.post.totalToxIng),
		TotalInhalation: cloneVec(d.post.totalToxInh),
	}, nil
}

// Mass computes the mass in grams of every isotope and its total.
func (d *Depletion) Mass() (*mat.Dense, []float64, error) {
	if err := d.require(PurposeMass); err != nil {
		return nil, nil, err
	}
	d.post.mass = d.scaleRows(d.sets[0].aw, d.volume/Avogadro)
	d.post.totalMass = colSums(d.post.mass)
	d.markPost(PurposeMass)
	return mat.DenseCopyOf(d.post.mass), cloneVec(d.post.totalMass), nil
}

// Reactivity holds the multiplication factor and the reactivity worth of
// each isotope, computed with first order perturbation theory.
type Reactivity struct {
	Keff []float64
	Rho  []float64 // pcm
	// DRho is the worth in pcm of each isotope (rows) at each time point.
	DRho      *mat.Dense
	DRhoToRho *mat.Dense
	// Essential is 1 where removing the isotope leaves no fission source or
	// no absorber. The worth is undefined there and DRho holds 0.
	Essential *mat.Dense
}

// Reactivity computes k = P*sum(N*nu*sigf)/sum(N*siga) at every time point,
// where P is the non-leakage probability. A zero P is read as 1. The worth of
// an isotope without which no fission source remains is left at 0 and the
// isotope is flagged in Essential. At k = 1, DRhoToRho is 0.
func (d *Depletion) Reactivity(nonLeakage float64) (Reactivity, error) {
	if nonLeakage == 0 {
		nonLeakage = 1
	}
	if nonLeakage < 0 || math.IsNaN(nonLeakage) {
		return Reactivity{}, fmt.Errorf("non-leakage probability %g: %w", nonLeakage, ErrNegative)
	}
	if err := d.require(PurposeReactivity); err != nil {
		return Reactivity{}, err
	}
	n, np := d.nt.Dims()
	nu := d.sets[0].nu
	keff := make([]float64, np)
	rho := make([]float64, np)
	dRho := mat.NewDense(n, np, nil)
	dRhoToRho := mat.NewDense(n, np, nil)
	essential := mat.NewDense(n, np, nil)
	prod := make([]float64, n)
	abs := make([]float64, n)
	for t := 0; t < np; t++ {
		xs := d.xs[t]
		var sumProd, sumAbs float64
		for j := 0; j < n; j++ {
			nj := d.nt.At(j, t)
			prod[j] = nj * nu[j] * xs.At(j, int(Fission))
			abs[j] = nj * xs.At(j, int(Absorption))
			sumProd += prod[j]
			sumAbs += abs[j]
		}
		if sumProd <= 0 || sumAbs <= 0 {
			return Reactivity{}, fmt.Errorf("time point %d: %w", t, ErrNoFission)
		}
		keff[t] = nonLeakage * sumProd / sumAbs
		rho[t] = ToPCM * (1 - 1/keff[t])
		for j := 0; j < n; j++ {
			remProd, remAbs := sumProd-prod[j], sumAbs-abs[j]
			if remProd <= 0 || remAbs <= 0 {
				essential.Set(j, t, 1)
				continue
			}
			kj := nonLeakage * remProd / remAbs
			worth := rho[t] - ToPCM*(1-1/kj)
			dRho.Set(j, t, worth)
			if rho[t] != 0 {
				dRhoToRho.Set(j, t, worth/rho[t])
			}
		}
	}
	d.post.keff, d.post.rho = keff, rho
	d.post.dRho, d.post.dRhoToRho = dRho, dRhoToRho
	d.post.essential = essential
	d.markPost(PurposeReactivity)
	return Reactivity{
		Keff:      cloneVec(keff),
		Rho:       cloneVec(rho),
		DRho:      mat.DenseCopyOf(dRho),
		DRhoToRho: mat.DenseCopyOf(dRhoToRho),
		Essential: mat.DenseCopyOf(essential),
	}, nil
}

func (d *Depletion) markPost(p Purpose) {
	d.state = statePostProcessed
	level.Debug(d.logger).Log("subsys", "driver", "status", d.state, "purpose", p)
}

// scaleRows returns factor * v[i] * Nt[i, t].
func (d *Depletion) scaleRows(v []float64, factor float64) *mat.Dense {
	out := rowsTimes(d.nt, v)
	out.Scale(factor, out)
	return out
}

// rowsTimes returns m with row i multiplied by v[i].
func rowsTimes(m *mat.Dense, v []float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(i, _ int, x float64) float64 { return x * v[i] }, m)
	return &out
}

func colSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	sums := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}
