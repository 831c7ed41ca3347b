package isodep

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func postProcessed(t *testing.T) *Depletion {
	t.Helper()
	d := xenonDriver(t, Scenario{Steps: []float64{1, 1}, Power: []float64{1e3, 2e3}, Units: Days})
	require.NoError(t, d.SolveDepletion(CRAM, SolveOptions{}))
	_, err := d.Activity()
	require.NoError(t, err)
	_, _, err = d.Mass()
	require.NoError(t, err)
	_, err = d.Reactivity(1)
	require.NoError(t, err)
	return d
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := postProcessed(t)
	snap := d.Export()
	var buf bytes.Buffer
	require.NoError(t, snap.WriteJSON(&buf))
	back, err := ReadJSON(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, back, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("snapshot changed through JSON (-want +got):\n%s", diff)
	}

	imported, err := Import(back, WithLogger(kitlog.NewNopLogger()))
	require.NoError(t, err)
	require.Equal(t, d.Name(), imported.Name())
	nt, _ := d.Nt()
	got, err := imported.Nt()
	require.NoError(t, err)
	require.True(t, mat.Equal(nt, got))
	ignoreCreated := cmpopts.IgnoreFields(Snapshot{}, "Created")
	if diff := cmp.Diff(snap, imported.Export(), ignoreCreated, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("imported driver differs (-want +got):\n%s", diff)
	}

	// A restored driver post-processes without solving again.
	r, err := imported.Reactivity(1)
	require.NoError(t, err)
	require.Len(t, r.Keff, 3)
}

func TestImportPartial(t *testing.T) {
	d, err := NewDepletion([]float64{0}, []*DataSet{xenonDataSet(t)}, testOptions("partial")...)
	require.NoError(t, err)
	imported, err := Import(d.Export())
	require.NoError(t, err)
	require.Equal(t, stateConstructed, imported.state)

	require.NoError(t, d.SetScenario(Scenario{Steps: []float64{2}, Flux: []float64{1e14}, Units: Hours}))
	require.NoError(t, d.SetInitialComposition([]ZAID{u235}, []float64{1e-3}, 2))
	imported, err = Import(d.Export())
	require.NoError(t, err)
	require.Equal(t, stateComposition, imported.state)
	require.NoError(t, imported.SolveDepletion(ODE, SolveOptions{}))

	snap := postProcessed(t).Export()
	snap.Method = "simpson"
	_, err = Import(snap)
	require.ErrorIs(t, err, ErrUnknownMethod)

	snap = postProcessed(t).Export()
	snap.Series[AttrNt.String()] = snap.Series[AttrNt.String()][:2]
	_, err = Import(snap)
	require.ErrorIs(t, err, ErrShape)
}

func TestWriteCSV(t *testing.T) {
	r, err := postProcessed(t).Results()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf, AttrMass, []ZAID{u235, xe135}))
	var records []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.HasPrefix(line, "#") {
			records = append(records, line)
		}
	}
	require.Len(t, records, 4)
	require.Equal(t, "time,U235,Xe135", records[0])
	require.True(t, strings.HasPrefix(records[1], "0,"), records[1])
	require.True(t, strings.HasPrefix(records[3], "2,"), records[3])
	require.Contains(t, buf.String(), "# Material: fuel (volume 10 cm^3)")

	buf.Reset()
	require.NoError(t, r.WriteCSV(&buf, AttrPower, nil))
	require.Contains(t, buf.String(), "time,power\n0,1.00000000e+03\n1,2.00000000e+03\n")

	require.ErrorIs(t, r.WriteCSV(&buf, AttrQt, nil), ErrMissingAttribute)
}

func TestWriteFiles(t *testing.T) {
	d := postProcessed(t)
	dir := filepath.Join(t.TempDir(), "out")
	written, err := d.WriteFiles(ExportConfig{Dir: dir, AsCSV: true, AsJSON: true}, AttrNt, AttrKeff)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "fuel.json"),
		filepath.Join(dir, "fuel-Nt.csv"),
		filepath.Join(dir, "fuel-keff.csv"),
	}, written)
	for _, path := range written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}

	f, err := os.Open(written[0])
	require.NoError(t, err)
	defer f.Close()
	snap, err := ReadJSON(f)
	require.NoError(t, err)
	require.Equal(t, "fuel", snap.Name)

	written, err = d.WriteFiles(ExportConfig{Dir: dir})
	require.NoError(t, err)
	require.Empty(t, written)

	r, err := d.Results()
	require.NoError(t, err)
	written, err = r.WriteFiles(ExportConfig{Dir: dir, Name: "core", AsCSV: true})
	require.NoError(t, err)
	require.Len(t, written, len(r.Attributes()))
}
