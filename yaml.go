package isodep

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// YAMLIsotope is one isotope entry of a YAML library file. Either Lambda or
// HalfLife (seconds) may be given.
type YAMLIsotope struct {
	ID         ZAID           `yaml:"id"`
	AW         float64        `yaml:"aw"`
	Lambda     float64        `yaml:"lambda,omitempty"`
	HalfLife   float64        `yaml:"half_life,omitempty"`
	Q          float64        `yaml:"q,omitempty"`
	BR         float64        `yaml:"br,omitempty"`
	Ingestion  float64        `yaml:"ingestion,omitempty"`
	Inhalation float64        `yaml:"inhalation,omitempty"`
	Decay      []YAMLDaughter `yaml:"decay,omitempty"`
}

// YAMLDaughter is a decay branch of a YAMLIsotope.
type YAMLDaughter struct {
	Daughter ZAID    `yaml:"daughter"`
	Fraction float64 `yaml:"fraction"`
}

// YAMLYield is one sparse fission yield entry.
type YAMLYield struct {
	Parent  ZAID    `yaml:"parent"`
	Product ZAID    `yaml:"product"`
	Yield   float64 `yaml:"yield"`
}

// YAMLSource is a DataSource read from a YAML document:
//
//	isotopes:
//	  - id: 531350
//	    aw: 134.91
//	    half_life: 23652
//	    decay: [{daughter: 541350, fraction: 1.0}]
//	fission_yields:
//	  thermal: [{parent: 922350, product: 531350, yield: 0.0629}]
//	  fast: []
type YAMLSource struct {
	Isotopes      []YAMLIsotope `yaml:"isotopes"`
	FissionYields struct {
		Thermal []YAMLYield `yaml:"thermal,omitempty"`
		Fast    []YAMLYield `yaml:"fast,omitempty"`
	} `yaml:"fission_yields"`
}

// ReadYAMLSource decodes a YAML library.
func ReadYAMLSource(r io.Reader) (*YAMLSource, error) {
	var src YAMLSource
	if err := yaml.NewDecoder(r).Decode(&src); err != nil {
		return nil, fmt.Errorf("decoding yaml library: %w", err)
	}
	return &src, nil
}

// LoadYAMLLibrary reads a YAML library file and builds the Library.
func LoadYAMLLibrary(path string, wgtFY float64) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := ReadYAMLSource(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewLibrary(src, wgtFY)
}

// IDs implements DataSource.
func (s *YAMLSource) IDs() ([]ZAID, error) {
	ids := make([]ZAID, len(s.Isotopes))
	for i, iso := range s.Isotopes {
		ids[i] = iso.ID
	}
	return ids, nil
}

func (s *YAMLSource) lambda(iso YAMLIsotope) float64 {
	if iso.Lambda == 0 && iso.HalfLife > 0 {
		return math.Ln2 / iso.HalfLife
	}
	return iso.Lambda
}

// Vector implements DataSource.
func (s *YAMLSource) Vector(key string) ([]float64, error) {
	v := make([]float64, len(s.Isotopes))
	for i, iso := range s.Isotopes {
		switch key {
		case KeyAtomicWeight:
			v[i] = iso.AW
		case KeyLambda:
			v[i] = s.lambda(iso)
		case KeyQ:
			v[i] = iso.Q
		case KeyBranchRatio:
			v[i] = iso.BR
		case KeyIngestion:
			v[i] = iso.Ingestion
		case KeyInhalation:
			v[i] = iso.Inhalation
		default:
			return nil, fmt.Errorf("vector %q: %w", key, ErrNotFound)
		}
	}
	return v, nil
}

// Matrix implements DataSource.
func (s *YAMLSource) Matrix(key string) (*mat.Dense, error) {
	ids, _ := s.IDs()
	n := len(ids)
	if n == 0 {
		return nil, fmt.Errorf("matrix %q: %w", key, ErrEmpty)
	}
	switch key {
	case KeyDecayMatrix:
		lambda, _ := s.Vector(KeyLambda)
		var branches []Branch
		for _, iso := range s.Isotopes {
			for _, d := range iso.Decay {
				branches = append(branches, Branch{Parent: iso.ID, Daughter: d.Daughter, Fraction: d.Fraction})
			}
		}
		return DecayMatrix(ids, lambda, branches)
	case KeyThermalFY, KeyFastFY:
		yields := s.FissionYields.Thermal
		if key == KeyFastFY {
			yields = s.FissionYields.Fast
		}
		index := indexOf(ids)
		m := mat.NewDense(n, n, nil)
		for _, y := range yields {
			j, okP := index[y.Parent]
			i, okD := index[y.Product]
			if !okP || !okD {
				continue
			}
			m.Set(i, j, m.At(i, j)+y.Yield)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("matrix %q: %w", key, ErrNotFound)
	}
}
