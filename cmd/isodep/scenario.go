package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
)

// scenarioFile is the content of a scenario TOML file.
type scenarioFile struct {
	General struct {
		Name        string    `mapstructure:"name" validate:"required"`
		Library     string    `mapstructure:"library" validate:"required"`
		WgtFY       float64   `mapstructure:"wgt_fy" validate:"gte=0,lte=1"` // 1 for thermal yields, 0 for fast
		Units       string    `mapstructure:"units" validate:"required"`
		Steps       []float64 `mapstructure:"steps" validate:"required,min=1,dive,gte=0"`
		Mode        string    `mapstructure:"mode" validate:"omitempty,oneof=depletion decay"`
		Method      string    `mapstructure:"method"` // overrides solver.method of conf.toml
		Interpolate bool      `mapstructure:"interpolate"`
		NonLeakage  float64   `mapstructure:"non_leakage" validate:"gte=0,lte=1"`
		Rank        string    `mapstructure:"rank"`
		Top         int       `mapstructure:"top" validate:"gte=0"`
	} `mapstructure:"general"`
	Materials []materialConf `mapstructure:"material" validate:"required,min=1,dive"`
}

type materialConf struct {
	Name      string    `mapstructure:"name" validate:"required"`
	Volume    float64   `mapstructure:"volume" validate:"gt=0"`
	Power     []float64 `mapstructure:"power" validate:"omitempty,dive,gte=0"`
	Flux      []float64 `mapstructure:"flux" validate:"omitempty,dive,gte=0"`
	Isotopes  []string  `mapstructure:"ids" validate:"required,min=1,dive,required"`
	Densities []float64 `mapstructure:"densities" validate:"required,min=1,dive,gte=0"`
	XS        []xsConf  `mapstructure:"xs" validate:"dive"`
}

// xsConf holds the one-group cross sections of one isotope, in barns, at
// one time frame.
type xsConf struct {
	ID          string  `mapstructure:"id" validate:"required"`
	Frame       float64 `mapstructure:"frame" validate:"gte=0"`
	Fission     float64 `mapstructure:"fission" validate:"gte=0"`
	Capture     float64 `mapstructure:"capture" validate:"gte=0"`
	CaptureMeta float64 `mapstructure:"capture_meta" validate:"gte=0"`
	N2n         float64 `mapstructure:"n2n" validate:"gte=0"`
	N3n         float64 `mapstructure:"n3n" validate:"gte=0"`
	Alpha       float64 `mapstructure:"alpha" validate:"gte=0"`
	Proton      float64 `mapstructure:"proton" validate:"gte=0"`
	Deuteron    float64 `mapstructure:"deuteron" validate:"gte=0"`
	Triton      float64 `mapstructure:"triton" validate:"gte=0"`
	Nu          float64 `mapstructure:"nu" validate:"gte=0"`
}

var validate = validator.New()

// readScenario reads and validates the scenario file. The library path is
// made relative to the directory of the scenario.
func readScenario(path string) (*scenarioFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("general.wgt_fy", 0.0)
	v.SetDefault("general.mode", string(isodep.ModeDepletion))
	v.SetDefault("general.rank", isodep.AttrNt.String())
	v.SetDefault("general.top", 10)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var sc scenarioFile
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := validate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, m := range sc.Materials {
		if len(m.Isotopes) != len(m.Densities) {
			return nil, fmt.Errorf("material %s: %d ids for %d densities: %w", m.Name, len(m.Isotopes), len(m.Densities), isodep.ErrLength)
		}
	}
	if !filepath.IsAbs(sc.General.Library) {
		sc.General.Library = filepath.Join(filepath.Dir(path), sc.General.Library)
	}
	return &sc, nil
}

// scenario returns the time scenario of the material.
func (sc *scenarioFile) scenario(m materialConf) (isodep.Scenario, error) {
	units, err := isodep.ParseTimeUnit(sc.General.Units)
	if err != nil {
		return isodep.Scenario{}, err
	}
	s := isodep.Scenario{Steps: sc.General.Steps, Units: units}
	if sc.mode() == isodep.ModeDepletion {
		s.Power, s.Flux = m.Power, m.Flux
	}
	return s, nil
}

func (sc *scenarioFile) mode() isodep.Mode { return isodep.Mode(sc.General.Mode) }

// composition parses the isotope names of the material.
func (m materialConf) composition() ([]isodep.ZAID, error) {
	ids := make([]isodep.ZAID, len(m.Isotopes))
	for i, s := range m.Isotopes {
		id, err := isodep.ParseZAID(s)
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", m.Name, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// dataSets builds one data set per time frame of the material. A material
// without cross sections gets the decay data of the library.
func (m materialConf) dataSets(lib *isodep.Library) ([]float64, []*isodep.DataSet, error) {
	if len(m.XS) == 0 {
		return []float64{0}, []*isodep.DataSet{lib.DecayDataSet()}, nil
	}
	byFrame := make(map[float64][]xsConf)
	for _, x := range m.XS {
		byFrame[x.Frame] = append(byFrame[x.Frame], x)
	}
	frames := make([]float64, 0, len(byFrame))
	for f := range byFrame {
		frames = append(frames, f)
	}
	sort.Float64s(frames)
	sets := make([]*isodep.DataSet, len(frames))
	for k, f := range frames {
		xs, err := crossSections(byFrame[f])
		if err != nil {
			return nil, nil, fmt.Errorf("material %s, frame %g: %w", m.Name, f, err)
		}
		if sets[k], err = lib.DataSet(xs); err != nil {
			return nil, nil, fmt.Errorf("material %s, frame %g: %w", m.Name, f, err)
		}
	}
	return frames, sets, nil
}

func crossSections(rows []xsConf) (isodep.CrossSections, error) {
	n := len(rows)
	xs := isodep.CrossSections{
		ID:          make([]isodep.ZAID, n),
		Fission:     make([]float64, n),
		Capture:     make([]float64, n),
		CaptureMeta: make([]float64, n),
		N2n:         make([]float64, n),
		N3n:         make([]float64, n),
		Alpha:       make([]float64, n),
		Proton:      make([]float64, n),
		Deuteron:    make([]float64, n),
		Triton:      make([]float64, n),
		Nu:          make([]float64, n),
		Barns:       true,
	}
	for i, r := range rows {
		id, err := isodep.ParseZAID(r.ID)
		if err != nil {
			return xs, err
		}
		xs.ID[i] = id
		xs.Fission[i], xs.Capture[i], xs.CaptureMeta[i] = r.Fission, r.Capture, r.CaptureMeta
		xs.N2n[i], xs.N3n[i], xs.Alpha[i] = r.N2n, r.N3n, r.Alpha
		xs.Proton[i], xs.Deuteron[i], xs.Triton[i] = r.Proton, r.Deuteron, r.Triton
		xs.Nu[i] = r.Nu
	}
	return xs, nil
}
