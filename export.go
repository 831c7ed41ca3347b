package isodep

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
)

// ExportConfig configures the files written by WriteFiles.
type ExportConfig struct {
	Dir       string
	Name      string
	Timestamp bool // Append the creation time to the file names
	AsCSV     bool // One CSV file per attribute
	AsJSON    bool // One JSON snapshot of the driver
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV && !c.AsJSON
}

func (c ExportConfig) path(suffix, ext string) string {
	name := c.Name
	if suffix != "" {
		name += "-" + suffix
	}
	if c.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(c.Dir, name+"."+ext)
}

// DataSetSnapshot is the serialized form of a DataSet.
type DataSetSnapshot struct {
	IDs        []ZAID      `json:"fullId"`
	AW         []float64   `json:"AW,omitempty"`
	Lambda     []float64   `json:"lambda,omitempty"`
	Q          []float64   `json:"Q,omitempty"`
	BR         []float64   `json:"BR,omitempty"`
	Ingestion  []float64   `json:"ingestion,omitempty"`
	Inhalation []float64   `json:"inhalation,omitempty"`
	EfissMeV   []float64   `json:"EfissMeV,omitempty"`
	Nu         []float64   `json:"nu,omitempty"`
	XS         [][]float64 `json:"xsData,omitempty"`
	Decay      [][]float64 `json:"decaymtx,omitempty"`
	FY         [][]float64 `json:"fymtx,omitempty"`
	Trans      [][]float64 `json:"transmutationmtx,omitempty"`
}

// Snapshot holds the complete state of a depletion driver.
type Snapshot struct {
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Mode        Mode      `json:"mode,omitempty"`
	Method      string    `json:"method,omitempty"`
	Interpolate bool      `json:"interpolate,omitempty"`

	Frames   []float64         `json:"timeframes"`
	DataSets []DataSetSnapshot `json:"datasets"`

	Units  string    `json:"units,omitempty"`
	Steps  []float64 `json:"steps,omitempty"`
	Power  []float64 `json:"power,omitempty"`
	Flux   []float64 `json:"flux,omitempty"`
	Points []float64 `json:"timepoints,omitempty"`

	ProvidedIDs []ZAID    `json:"providedIds,omitempty"`
	ProvidedN0  []float64 `json:"providedN0,omitempty"`
	Volume      float64   `json:"volume,omitempty"`

	// Per time point quantities, keyed by attribute name.
	Series     map[string][][]float64 `json:"series,omitempty"`
	TimeSeries map[string][]float64   `json:"timeSeries,omitempty"`
	XS         [][][]float64          `json:"xsTrace,omitempty"`
}

// Export returns a snapshot of the driver, at whichever state it is.
func (d *Depletion) Export() *Snapshot {
	s := &Snapshot{
		Name:        d.name,
		Created:     time.Now().UTC(),
		Mode:        d.mode,
		Interpolate: d.interpolate,
		Frames:      cloneVec(d.frames),
	}
	if d.method != 0 {
		s.Method = d.method.String()
	}
	for _, set := range d.sets {
		s.DataSets = append(s.DataSets, set.snapshot())
	}
	if d.sc != nil {
		s.Units = d.sc.units.String()
		s.Steps = cloneVec(d.sc.userSteps)
		if d.sc.powerGiven {
			s.Power = cloneVec(d.sc.power)
		}
		if d.sc.fluxGiven {
			s.Flux = cloneVec(d.sc.flux)
		}
	}
	if d.state >= stateComposition {
		s.ProvidedIDs = append([]ZAID(nil), d.providedIDs...)
		s.ProvidedN0 = cloneVec(d.providedN0)
		s.Volume = d.volume
	}
	if d.state >= stateSolved {
		r, _ := d.Results()
		s.Points = r.TimePoints()
		s.Series = make(map[string][][]float64, len(r.series))
		for a, m := range r.series {
			s.Series[a.String()] = toRows(m)
		}
		s.TimeSeries = make(map[string][]float64, len(r.timeSeries))
		for a, v := range r.timeSeries {
			s.TimeSeries[a.String()] = v
		}
		for _, m := range d.xs {
			s.XS = append(s.XS, toRows(m))
		}
	}
	return s
}

// Import rebuilds a driver from a snapshot. Results present in the snapshot
// are restored without solving again.
func Import(s *Snapshot, opts ...Option) (*Depletion, error) {
	sets := make([]*DataSet, len(s.DataSets))
	for i, ds := range s.DataSets {
		set, err := ds.dataSet()
		if err != nil {
			return nil, fmt.Errorf("data set %d: %w", i, err)
		}
		sets[i] = set
	}
	d, err := NewDepletion(s.Frames, sets, append([]Option{WithName(s.Name)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if s.Steps == nil {
		return d, nil
	}
	units, err := ParseTimeUnit(s.Units)
	if err != nil {
		return nil, err
	}
	if err := d.SetScenario(Scenario{Power: s.Power, Flux: s.Flux, Steps: s.Steps, Units: units}); err != nil {
		return nil, err
	}
	if s.ProvidedIDs == nil {
		return d, nil
	}
	if err := d.SetInitialComposition(s.ProvidedIDs, s.ProvidedN0, s.Volume); err != nil {
		return nil, err
	}
	nt, ok := s.Series[AttrNt.String()]
	if !ok {
		return d, nil
	}
	if err := d.restore(s, nt); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Depletion) restore(s *Snapshot, nt [][]float64) error {
	ns := d.sc.nsteps()
	m, err := fromRows(nt, len(d.ids), ns+1)
	if err != nil {
		return fmt.Errorf("%s: %w", AttrNt, err)
	}
	method, err := ParseMethod(s.Method)
	if err != nil {
		return err
	}
	d.nt, d.mode, d.method, d.interpolate = m, s.Mode, method, s.Interpolate
	d.power = cloneVec(s.TimeSeries[AttrPower.String()])
	d.flux = cloneVec(s.TimeSeries[AttrFlux.String()])
	if len(d.power) != ns || len(d.flux) != ns {
		return fmt.Errorf("power and flux need %d values: %w", ns, ErrLength)
	}
	for _, rows := range s.XS {
		xs, err := fromRows(rows, len(d.ids), int(NumReactions))
		if err != nil {
			return fmt.Errorf("%s: %w", AttrXS, err)
		}
		d.xs = append(d.xs, xs)
	}
	if d.xs != nil && len(d.xs) != ns+1 {
		return fmt.Errorf("%d cross section tables for %d time points: %w", len(d.xs), ns+1, ErrLength)
	}
	d.state = stateSolved

	series := func(a Attribute, r int) (*mat.Dense, error) {
		rows, ok := s.Series[a.String()]
		if !ok {
			return nil, nil
		}
		return fromRows(rows, r, ns+1)
	}
	p := &d.post
	for _, f := range []struct {
		attr Attribute
		dst  **mat.Dense
	}{
		{AttrAt, &p.at}, {AttrAtCurie, &p.atCurie}, {AttrQt, &p.qt}, {AttrMass, &p.mass},
		{AttrToxIngestion, &p.toxIng}, {AttrToxInhalation, &p.toxInh},
		{AttrDRho, &p.dRho}, {AttrDRhoToRho, &p.dRhoToRho}, {AttrEssential, &p.essential},
	} {
		m, err := series(f.attr, len(d.ids))
		if err != nil {
			return fmt.Errorf("%s: %w", f.attr, err)
		}
		if m != nil {
			*f.dst = m
			d.state = statePostProcessed
		}
	}
	for _, f := range []struct {
		attr Attribute
		dst  *[]float64
	}{
		{AttrTotalAt, &p.totalAt}, {AttrTotalAtCurie, &p.totalAtCurie}, {AttrTotalQt, &p.totalQt},
		{AttrTotalMass, &p.totalMass}, {AttrTotalToxIngestion, &p.totalToxIng},
		{AttrTotalToxInhalation, &p.totalToxInh}, {AttrKeff, &p.keff}, {AttrRho, &p.rho},
	} {
		if v, ok := s.TimeSeries[f.attr.String()]; ok {
			*f.dst = cloneVec(v)
		}
	}
	return nil
}

func (d *DataSet) snapshot() DataSetSnapshot {
	return DataSetSnapshot{
		IDs:        d.IDs(),
		AW:         cloneVec(d.aw),
		Lambda:     cloneVec(d.lambda),
		Q:          cloneVec(d.q),
		BR:         cloneVec(d.br),
		Ingestion:  cloneVec(d.ingestion),
		Inhalation: cloneVec(d.inhalation),
		EfissMeV:   cloneVec(d.efissMeV),
		Nu:         cloneVec(d.nu),
		XS:         toRows(d.xs),
		Decay:      toRows(d.decay),
		FY:         toRows(d.fy),
		Trans:      toRows(d.trans),
	}
}

func (s DataSetSnapshot) dataSet() (*DataSet, error) {
	n := len(s.IDs)
	if n == 0 {
		return nil, fmt.Errorf("no isotope: %w", ErrEmpty)
	}
	d := &DataSet{
		ids:        append([]ZAID(nil), s.IDs...),
		aw:         cloneVec(s.AW),
		lambda:     cloneVec(s.Lambda),
		q:          cloneVec(s.Q),
		br:         cloneVec(s.BR),
		ingestion:  cloneVec(s.Ingestion),
		inhalation: cloneVec(s.Inhalation),
		nu:         cloneVec(s.Nu),
	}
	d.index = indexOf(d.ids)
	if len(d.index) != n {
		return nil, ErrDuplicateID
	}
	for name, v := range map[string][]float64{"AW": d.aw, "lambda": d.lambda, "Q": d.q, "BR": d.br,
		"ingestion": d.ingestion, "inhalation": d.inhalation, "EfissMeV": s.EfissMeV, "nu": d.nu} {
		if err := checkVec(v, n, name, false); err != nil {
			return nil, err
		}
	}
	if s.EfissMeV != nil {
		d.setFissionEnergy(cloneVec(s.EfissMeV))
	}
	var err error
	for _, f := range []struct {
		rows [][]float64
		cols int
		dst  **mat.Dense
	}{{s.XS, int(NumReactions), &d.xs}, {s.Decay, n, &d.decay}, {s.FY, n, &d.fy}, {s.Trans, n, &d.trans}} {
		if f.rows == nil {
			continue
		}
		if *f.dst, err = fromRows(f.rows, n, f.cols); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func toRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = cloneVec(m.RawRowView(i))
	}
	return rows
}

func fromRows(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%d rows, expected %d: %w", len(rows), r, ErrShape)
	}
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, expected %d: %w", i, len(row), c, ErrShape)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// WriteJSON writes the snapshot as indented JSON.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadJSON reads a snapshot written by WriteJSON.
func ReadJSON(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

// WriteCSV writes the attribute of the isotopes (all of them when ids is
// empty) with one row per time point, after a commented header.
func (r *Results) WriteCSV(w io.Writer, a Attribute, ids []ZAID) error {
	vals, err := r.Values(a, ids, 1)
	if err != nil {
		return err
	}
	info := a.Info()
	if _, err := fmt.Fprintf(w, `# Creation date (UTC): %s
# Material: %s (volume %g cm^3)
# Records are %s in %s, one row per time point
#   Time is in %s
`, time.Now().UTC(), r.name, r.volume, info.Name, info.Unit, r.units); err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = r.ids
	}
	header := []string{"time"}
	if _, ok := r.timeSeries[a]; ok {
		header = append(header, info.Name)
	} else {
		for _, id := range ids {
			header = append(header, id.String())
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rows, cols := vals.Dims()
	// Step quantities (power, flux) hold one value less than the time points.
	for t := 0; t < cols; t++ {
		record := make([]string, 0, rows+1)
		record = append(record, strconv.FormatFloat(r.timePoints[t], 'g', -1, 64))
		for i := 0; i < rows; i++ {
			record = append(record, strconv.FormatFloat(vals.At(i, t), 'e', 8, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes the requested outputs of a solved driver and returns the
// paths written. The CSV files cover attrs, or every computed attribute when
// attrs is empty.
func (d *Depletion) WriteFiles(conf ExportConfig, attrs ...Attribute) ([]string, error) {
	if conf.IsUseless() {
		return nil, nil
	}
	if conf.Name == "" {
		conf.Name = d.name
	}
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	if conf.AsJSON {
		path := conf.path("", "json")
		if err := writeFile(path, d.Export().WriteJSON); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if conf.AsCSV {
		r, err := d.Results()
		if err != nil {
			return written, err
		}
		paths, err := r.writeCSVFiles(conf, attrs)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	level.Info(d.logger).Log("subsys", "driver", "message", "exported", "files", len(written), "dir", conf.Dir)
	return written, nil
}

// WriteFiles writes one CSV file per attribute of the results.
func (r *Results) WriteFiles(conf ExportConfig, attrs ...Attribute) ([]string, error) {
	if !conf.AsCSV {
		return nil, nil
	}
	if conf.Name == "" {
		conf.Name = r.name
	}
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, err
	}
	return r.writeCSVFiles(conf, attrs)
}

func (r *Results) writeCSVFiles(conf ExportConfig, attrs []Attribute) ([]string, error) {
	if len(attrs) == 0 {
		attrs = r.Attributes()
	}
	var written []string
	for _, a := range attrs {
		path := conf.path(a.String(), "csv")
		err := writeFile(path, func(w io.Writer) error { return r.WriteCSV(w, a, nil) })
		if err != nil {
			return written, fmt.Errorf("%s: %w", a, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
