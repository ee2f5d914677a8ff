package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/gridmarch/internal/config"
	"github.com/san-kum/gridmarch/internal/scenario"
)

var (
	dataDir string
	// Run settings. Unset flags fall back to the config file, then the
	// preset, then the scenario defaults.
	configFile  string
	preset      string
	workers     int
	swatch      []int
	extents     []int
	steps       []float64
	periodic    []bool
	params      map[string]string
	iterations  int
	backtrack   int
	singular    string
	corrector   bool
	viscosity   bool
	backend     string
	dbPath      string
	saveEvery   int
	logLevel    string
	jsonLog     bool
	verbose     bool
	metricsAddr string
	// solve
	at []int
	// stencil
	axis     int
	order    int
	step     float64
	scale    float64
	rank     int
	timeAxis bool
	// plot / analyze
	lineAxis  int
	component int
	part      string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gridmarch",
		Short:         "finite-difference time marching on regular grids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gridmarch", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "march a scenario and save the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMarch,
	}
	addMarchFlags(runCmd)
	runCmd.Flags().IntVar(&saveEvery, "save-every", 1, "save every n-th slice")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "march a scenario with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addMarchFlags(liveCmd)

	solveCmd := &cobra.Command{
		Use:   "solve [scenario]",
		Short: "march up to a point and solve it without committing",
		Args:  cobra.MaximumNArgs(1),
		RunE:  solvePoint,
	}
	addMarchFlags(solveCmd)
	solveCmd.Flags().IntSliceVar(&at, "at", nil, "coordinate t,x1,... to solve")
	_ = solveCmd.MarkFlagRequired("at")

	stencilCmd := &cobra.Command{
		Use:   "stencil",
		Short: "print the finite-difference expansion of a derivative",
		Args:  cobra.NoArgs,
		RunE:  printStencil,
	}
	stencilCmd.Flags().IntVar(&axis, "axis", 1, "axis index")
	stencilCmd.Flags().IntVar(&order, "order", 2, "derivative order")
	stencilCmd.Flags().Float64Var(&step, "step", 1, "grid step")
	stencilCmd.Flags().Float64Var(&scale, "scale", 0, "second order divisor scale")
	stencilCmd.Flags().IntVar(&rank, "rank", 2, "grid rank used for printing")
	stencilCmd.Flags().BoolVar(&timeAxis, "time", false, "use the one-sided time stencil")

	describeCmd := &cobra.Command{
		Use:   "describe [scenario]",
		Short: "print the compiled residual of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  describeScenario,
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			reg := scenario.NewRegistry()
			for _, name := range reg.List() {
				s, _ := reg.Get(name)
				fmt.Printf("  %-12s %s\n", name, s.Description)
			}
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the first and last saved slice along one axis",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	addLineFlags(plotCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "slice statistics and spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	addLineFlags(analyzeCmd)

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export saved slices to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export saved slices to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, solveCmd, stencilCmd, describeCmd, scenariosCmd,
		listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, presetsCmd)
	return rootCmd
}

func addMarchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVar(&workers, "workers", 0, "worker count (0: one per CPU)")
	f.IntSliceVar(&swatch, "swatch", nil, "swatch size per spatial axis")
	f.IntSliceVar(&extents, "extents", nil, "grid extents, time first")
	f.Float64SliceVar(&steps, "steps", nil, "grid steps, time first")
	f.BoolSliceVar(&periodic, "periodic", nil, "periodic flag per axis")
	f.StringToStringVar(&params, "param", nil, "parameter override name=value")
	f.IntVar(&iterations, "iterations", config.DefaultIterations, "newton iterations per point")
	f.IntVar(&backtrack, "backtrack", config.DefaultBacktrack, "line search halvings")
	f.StringVar(&singular, "singular", "abort", "singular jacobian policy (abort, identity)")
	f.BoolVar(&corrector, "pc", false, "predictor-corrector")
	f.BoolVar(&viscosity, "viscosity", false, "limit per-iteration change")
	f.StringVar(&backend, "store", config.DefaultBackend, "field store (memory, sqlite)")
	f.StringVar(&dbPath, "db", "", "sqlite database path")
}

func addLineFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&lineAxis, "axis", 1, "spatial axis of the line through the grid center")
	cmd.Flags().IntVar(&component, "component", 0, "field component")
	cmd.Flags().StringVar(&part, "part", "re", "re, im or abs")
}
