package main

import (
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
)

var (
	conf      isodep.Config
	logger    kitlog.Logger
	storePath string
	logLevel  string

	rootCmd = &cobra.Command{
		Use:   "isodep",
		Short: "Isotopic depletion and decay of zero-dimensional materials",
		Long: `isodep solves the Bateman equations of one or more materials under a
power or flux history, post-processes the compositions and exports them.
Settings are read from conf.toml in the directory named by $ISODEP_CONFIG.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if conf, err = isodep.LoadConfig(); err != nil {
				return err
			}
			if logLevel == "" {
				logLevel = conf.Log.Level
			}
			isodep.SetLogger(isodep.NewLogger(os.Stderr, logLevel))
			logger = kitlog.With(isodep.Logger(), "subsys", "cli")
			if storePath == "" {
				storePath = conf.Store.Path
			}
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run <scenario.toml>",
		Short: "Solve every material of a scenario, then weight, export and rank them",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	showCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "List the stored runs, or print the ranking of one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showRun,
	}

	metricsCmd = &cobra.Command{
		Use:   "metrics [scenario.toml]",
		Short: "Print the solver metrics, after solving the scenario when one is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printMetrics,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "badger directory of the run store, where run saves every material (defaults to store.path of conf.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "log level: debug, info, warn, error or none")

	runCmd.Flags().Bool("metrics", false, "print the solver metrics once done")
	runCmd.Flags().Bool("no-files", false, "skip the CSV and JSON outputs")

	showCmd.Flags().String("attr", isodep.AttrNt.String(), "attribute to rank")
	showCmd.Flags().Int("top", 10, "number of isotopes printed")
	showCmd.Flags().Bool("integrated", false, "rank by the time integral instead of the last time point")

	rootCmd.AddCommand(runCmd, showCmd, metricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			level.Error(logger).Log("err", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
