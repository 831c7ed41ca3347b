package store

import (
	"context"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, Logger: kitlog.NewNopLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// decaySnapshot returns the snapshot of a solved iodine decay.
func decaySnapshot(t *testing.T, name string) *isodep.Snapshot {
	t.Helper()
	set, err := isodep.NewDataSet(isodep.CrossSections{
		ID:     []isodep.ZAID{531350, 541350},
		Lambda: []float64{2.93061e-05, 2.10657e-05},
	})
	require.NoError(t, err)
	d, err := isodep.NewDepletion([]float64{0}, []*isodep.DataSet{set},
		isodep.WithName(name), isodep.WithLogger(kitlog.NewNopLogger()), isodep.WithMetrics(isodep.NewMetrics()))
	require.NoError(t, err)
	require.NoError(t, d.SetScenario(isodep.Scenario{Steps: []float64{6, 6}, Units: isodep.Hours}))
	require.NoError(t, d.SetInitialComposition([]isodep.ZAID{531350}, []float64{1e-8}, 1))
	require.NoError(t, d.SolveDecay(isodep.CRAM, isodep.SolverOptions{}))
	return d.Export()
}

func TestSaveLoad(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	snap := decaySnapshot(t, "iodine")
	id, err := s.Save(ctx, snap)
	require.NoError(t, err)

	back, err := s.Load(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, back, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("stored run differs (-want +got):\n%s", diff)
	}
	d, err := isodep.Import(back, isodep.WithLogger(kitlog.NewNopLogger()))
	require.NoError(t, err)
	nt, err := d.Nt()
	require.NoError(t, err)
	require.Equal(t, snap.Series["Nt"][0][2], nt.At(0, 2))
}

func TestListDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	first, err := s.Save(ctx, decaySnapshot(t, "first"))
	require.NoError(t, err)
	second, err := s.Save(ctx, decaySnapshot(t, "second"))
	require.NoError(t, err)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[0].ID)
	require.Equal(t, "first", entries[0].Name)
	require.Equal(t, isodep.ModeDecay, entries[0].Mode)
	require.Equal(t, second, entries[1].ID)

	require.NoError(t, s.Delete(ctx, first))
	require.ErrorIs(t, s.Delete(ctx, first), isodep.ErrNotFound)
	_, err = s.Load(ctx, first)
	require.ErrorIs(t, err, isodep.ErrNotFound)
	entries, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadErrors(t *testing.T) {
	s := openTest(t)
	_, err := s.Load(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, isodep.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, decaySnapshot(t, "late"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(Config{Path: dir, Logger: kitlog.NewNopLogger()})
	require.NoError(t, err)
	id, err := s.Save(ctx, decaySnapshot(t, "disk"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir, Logger: kitlog.NewNopLogger()})
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "disk", snap.Name)
}
