package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
	"github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE/store"
)

// material is one solved material of a scenario.
type material struct {
	driver  *isodep.Depletion
	results *isodep.Results
}

// runner solves the materials of a scenario.
type runner struct {
	sc      *scenarioFile
	lib     *isodep.Library
	method  isodep.Method
	opts    isodep.SolverOptions
	metrics *isodep.Metrics
	export  bool
}

func newRunner(path string, metrics *isodep.Metrics) (*runner, error) {
	sc, err := readScenario(path)
	if err != nil {
		return nil, err
	}
	method, err := conf.Method()
	if sc.General.Method != "" {
		method, err = isodep.ParseMethod(sc.General.Method)
	}
	if err != nil {
		return nil, err
	}
	lib, err := isodep.LoadYAMLLibrary(sc.General.Library, sc.General.WgtFY)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("scenario", sc.General.Name, "materials", len(sc.Materials), "isotopes", lib.Len(), "method", method, "mode", sc.mode())
	return &runner{sc: sc, lib: lib, method: method, opts: conf.SolverOptions(), metrics: metrics}, nil
}

// solveAll solves every material concurrently. The results keep the order
// of the scenario file.
func (r *runner) solveAll(ctx context.Context) ([]material, error) {
	out := make([]material, len(r.sc.Materials))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range r.sc.Materials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			solved, err := r.solve(m)
			if err != nil {
				return fmt.Errorf("material %s: %w", m.Name, err)
			}
			out[i] = solved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runner) solve(m materialConf) (material, error) {
	frames, sets, err := m.dataSets(r.lib)
	if err != nil {
		return material{}, err
	}
	d, err := isodep.NewDepletion(frames, sets, isodep.WithName(m.Name), isodep.WithMetrics(r.metrics))
	if err != nil {
		return material{}, err
	}
	s, err := r.sc.scenario(m)
	if err != nil {
		return material{}, err
	}
	if err := d.SetScenario(s); err != nil {
		return material{}, err
	}
	ids, err := m.composition()
	if err != nil {
		return material{}, err
	}
	if err := d.SetInitialComposition(ids, m.Densities, m.Volume); err != nil {
		return material{}, err
	}
	if r.sc.mode() == isodep.ModeDecay {
		err = d.SolveDecay(r.method, r.opts)
	} else {
		err = d.SolveDepletion(r.method, isodep.SolveOptions{SolverOptions: r.opts, Interpolate: r.sc.General.Interpolate})
	}
	if err != nil {
		return material{}, err
	}
	if err := r.postProcess(d); err != nil {
		return material{}, err
	}
	if r.export {
		if _, err := d.WriteFiles(conf.ExportConfig(r.sc.General.Name + "-" + m.Name)); err != nil {
			return material{}, err
		}
	}
	res, err := d.Results()
	if err != nil {
		return material{}, err
	}
	return material{driver: d, results: res}, nil
}

// postProcess computes every derived quantity the data allows.
func (r *runner) postProcess(d *isodep.Depletion) error {
	steps := []func() error{
		func() error { _, err := d.Activity(); return err },
		func() error { _, _, err := d.DecayHeat(); return err },
		func() error { _, err := d.Radiotoxicity(); return err },
		func() error { _, _, err := d.Mass(); return err },
	}
	if r.sc.mode() == isodep.ModeDepletion {
		steps = append(steps, func() error { _, err := d.Reactivity(r.sc.General.NonLeakage); return err })
	}
	for _, step := range steps {
		err := step()
		if errors.Is(err, isodep.ErrMissingAttribute) || errors.Is(err, isodep.ErrNoFission) {
			level.Debug(logger).Log("material", d.Name(), "skipped", err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	withMetrics, _ := cmd.Flags().GetBool("metrics")
	noFiles, _ := cmd.Flags().GetBool("no-files")
	metrics := isodep.NewMetrics()
	r, err := newRunner(args[0], metrics)
	if err != nil {
		return err
	}
	r.export = !noFiles
	mats, err := r.solveAll(cmd.Context())
	if err != nil {
		return err
	}

	results := make([]*isodep.Results, len(mats))
	for i, m := range mats {
		results[i] = m.results
	}
	composite, err := isodep.Weight(results...)
	if err != nil {
		return err
	}
	if r.export {
		paths, err := composite.WriteFiles(conf.ExportConfig(r.sc.General.Name))
		if err != nil {
			return err
		}
		level.Info(logger).Log("message", "composite written", "files", len(paths), "dir", conf.Output.Dir)
	}

	if storePath != "" {
		if err := saveRuns(cmd.Context(), cmd.OutOrStdout(), mats); err != nil {
			return err
		}
	}

	attr, err := isodep.ParseAttribute(r.sc.General.Rank)
	if err != nil {
		return err
	}
	if err := printRanking(cmd.OutOrStdout(), composite, attr, isodep.RankOptions{At: -1, Limit: r.sc.General.Top}); err != nil {
		return err
	}
	if withMetrics {
		return metrics.WriteMetrics(cmd.OutOrStdout())
	}
	return nil
}

func saveRuns(ctx context.Context, w io.Writer, mats []material) error {
	s, err := store.Open(store.Config{Path: storePath, SyncWrites: conf.Store.SyncWrites, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()
	for _, m := range mats {
		id, err := s.Save(ctx, m.driver.Export())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "saved %s as %s\n", m.driver.Name(), id)
	}
	return nil
}

func printMetrics(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return isodep.DefaultMetrics.WriteMetrics(cmd.OutOrStdout())
	}
	metrics := isodep.NewMetrics()
	r, err := newRunner(args[0], metrics)
	if err != nil {
		return err
	}
	if _, err := r.solveAll(cmd.Context()); err != nil {
		return err
	}
	return metrics.WriteMetrics(cmd.OutOrStdout())
}
