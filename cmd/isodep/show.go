package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
	"github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE/store"
)

func showRun(cmd *cobra.Command, args []string) error {
	if storePath == "" {
		return fmt.Errorf("no run store: set --store or store.path in conf.toml")
	}
	s, err := store.Open(store.Config{Path: storePath, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		entries, err := s.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tMODE\tCREATED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Mode, e.Created.Format(dateFormat))
		}
		return tw.Flush()
	}

	snap, err := s.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	d, err := isodep.Import(snap, isodep.WithLogger(logger))
	if err != nil {
		return err
	}
	r, err := d.Results()
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("attr")
	top, _ := cmd.Flags().GetInt("top")
	integrated, _ := cmd.Flags().GetBool("integrated")
	attr, err := isodep.ParseAttribute(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s solved with %s on %s\n", r.Name(), r.Mode(), r.Method(), snap.Created.Format(dateFormat))
	return printRanking(out, r, attr, isodep.RankOptions{At: -1, Integrated: integrated, Limit: top})
}

const dateFormat = "2006-01-02 15:04:05"

// printRanking prints the isotopes by decreasing value of the attribute.
func printRanking(w io.Writer, r *isodep.Results, attr isodep.Attribute, opts isodep.RankOptions) error {
	rows, err := r.Rank(attr, opts)
	if err != nil {
		return err
	}
	info := attr.Info()
	points := r.TimePoints()
	when := fmt.Sprintf("at %g %s", points[len(points)-1], r.Units())
	if opts.Integrated {
		when = fmt.Sprintf("integrated over %g %s", points[len(points)-1]-points[0], r.Units())
	}
	fmt.Fprintf(w, "%s [%s] of %s %s\n", info.Name, info.Unit, r.Name(), when)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tISOTOPE\tVALUE\tCUMULATIVE\t")
	for i, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.6e\t%.4f\t\n", i+1, row.ID, row.Value, row.Cumulative)
	}
	return tw.Flush()
}
