package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
)

func TestReadScenario(t *testing.T) {
	sc, err := readScenario(filepath.Join("testdata", "core.toml"))
	require.NoError(t, err)
	require.Equal(t, "core", sc.General.Name)
	require.Equal(t, filepath.Join("testdata", "xenon.yaml"), sc.General.Library)
	require.Equal(t, 1.0, sc.General.WgtFY)
	require.Equal(t, isodep.ModeDepletion, sc.mode())
	require.Equal(t, 3, sc.General.Top)
	require.Len(t, sc.Materials, 2)
	require.Equal(t, []float64{5e-4, 1e-5}, sc.Materials[1].Densities)
	require.Len(t, sc.Materials[0].XS, 3)
	require.Equal(t, 2.6e6, sc.Materials[0].XS[1].Capture)

	s, err := sc.scenario(sc.Materials[1])
	require.NoError(t, err)
	require.Equal(t, isodep.Hours, s.Units)
	require.Equal(t, []float64{2e3, 2e3, 2e3, 2e3, 0}, s.Power)

	lib, err := isodep.LoadYAMLLibrary(sc.General.Library, sc.General.WgtFY)
	require.NoError(t, err)
	frames, sets, err := sc.Materials[0].dataSets(lib)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, frames)
	require.Equal(t, lib.IDs(), sets[0].IDs())
}

func TestReadScenarioDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[general]
name = "x"
library = "/data/lib.yaml"
units = "days"
steps = [1]
[[material]]
name = "m"
volume = 1
ids = ["U235"]
densities = [1e-3]
`), 0o600))
	sc, err := readScenario(path)
	require.NoError(t, err)
	require.Equal(t, 0.0, sc.General.WgtFY, "fast yields by default")
	require.Equal(t, isodep.ModeDepletion, sc.mode())
	require.Equal(t, isodep.AttrNt.String(), sc.General.Rank)
	require.Equal(t, 10, sc.General.Top)
	require.Equal(t, "/data/lib.yaml", sc.General.Library)
}

func TestReadScenarioErrors(t *testing.T) {
	cases := map[string]string{
		"no material": `
[general]
name = "x"
library = "lib.yaml"
units = "days"
steps = [1]
`,
		"volume": `
[general]
name = "x"
library = "lib.yaml"
units = "days"
steps = [1]
[[material]]
name = "m"
volume = 0
ids = ["U235"]
densities = [1e-3]
`,
		"mode": `
[general]
name = "x"
library = "lib.yaml"
units = "days"
steps = [1]
mode = "burn"
[[material]]
name = "m"
volume = 1
ids = ["U235"]
densities = [1e-3]
`,
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "sc.toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := readScenario(path)
		var verr validator.ValidationErrors
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected a validation error, got %v", name, err)
		}
	}

	path := filepath.Join(t.TempDir(), "sc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[general]
name = "x"
library = "lib.yaml"
units = "days"
steps = [1]
[[material]]
name = "m"
volume = 1
ids = ["U235", "U238"]
densities = [1e-3]
`), 0o600))
	_, err := readScenario(path)
	require.ErrorIs(t, err, isodep.ErrLength)
}

func TestRunAndShow(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	conf := fmt.Sprintf("[output]\ndir = %q\njson = true\n", outDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.toml"), []byte(conf), 0o600))
	t.Setenv(isodep.ConfigEnv, dir)
	storeDir := filepath.Join(dir, "runs")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", filepath.Join("testdata", "core.toml"), "--store", storeDir, "--log", "none", "--metrics"})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	require.Contains(t, text, "Nt [#/b-cm] of inner+outer at 50 hours")
	require.Contains(t, text, "U235")
	require.Contains(t, text, `isodep_steps_total{method="cram",mode="depletion"} 10`)
	for _, name := range []string{"core-inner.json", "core-inner-Nt.csv", "core-outer-keff.csv", "core-Nt.csv", "core-totalQt.csv"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
	}
	// The composite leaves reactivity out.
	_, err := os.Stat(filepath.Join(outDir, "core-keff.csv"))
	require.True(t, os.IsNotExist(err))

	saved := regexp.MustCompile(`saved inner as (\S+)`).FindStringSubmatch(text)
	require.Len(t, saved, 2, text)

	out.Reset()
	rootCmd.SetArgs([]string{"show", saved[1], "--store", storeDir, "--attr", "massgr", "--top", "2"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "inner: depletion solved with cram")
	require.Contains(t, out.String(), "massgr [g] of inner at 50 hours")

	out.Reset()
	rootCmd.SetArgs([]string{"show", "--store", storeDir})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), saved[1])
	require.Contains(t, out.String(), "outer")
}
