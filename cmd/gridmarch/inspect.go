package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/gridmarch/internal/analysis"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/scenario"
	"github.com/san-kum/gridmarch/internal/stencil"
	"github.com/san-kum/gridmarch/internal/storage"
	"github.com/san-kum/gridmarch/internal/store"
	"github.com/san-kum/gridmarch/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tEXTENTS\tSLICES\tELAPSED\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%.2fs\t%s\n",
			r.ID, r.Scenario, r.Extents, len(r.Slices), r.Elapsed, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func gridCenter(shape grid.Shape, t int) grid.Coord {
	var c grid.Coord
	c[grid.Time] = t
	for a := 1; a < shape.Rank(); a++ {
		c[a] = shape.Extents[a] / 2
	}
	return c
}

// centerLine extracts the line along lineAxis through the grid center.
func centerLine(sd storage.SliceData, shape grid.Shape, p analysis.Part) []float64 {
	return analysis.Parts(analysis.Line(sd.Values, shape, lineAxis, gridCenter(shape, sd.T), component), p)
}

func loadLines(runID string) (*storage.RunMetadata, []storage.SliceData, analysis.Part, error) {
	p, ok := analysis.ParsePart(part)
	if !ok {
		return nil, nil, 0, fmt.Errorf("unknown part %q (re, im, abs)", part)
	}
	meta, slices, err := storage.New(dataDir).LoadSlices(runID)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(slices) == 0 {
		return nil, nil, 0, fmt.Errorf("run %s has no saved slices", runID)
	}
	if lineAxis < 1 || lineAxis >= len(meta.Extents) {
		return nil, nil, 0, fmt.Errorf("axis %d is not a spatial axis of %v", lineAxis, meta.Extents)
	}
	if component < 0 || component >= meta.Components {
		return nil, nil, 0, fmt.Errorf("component %d out of range [0, %d)", component, meta.Components)
	}
	return meta, slices, p, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, slices, p, err := loadLines(args[0])
	if err != nil {
		return err
	}
	shape := meta.Shape()
	first, last := slices[0], slices[len(slices)-1]

	series := [][]float64{centerLine(first, shape, p)}
	if last.T != first.T {
		series = append(series, centerLine(last, shape, p))
	}
	fmt.Println(viz.PlotLines(series, viz.PlotOptions{
		Caption: fmt.Sprintf("%s u%d along axis %d, t=%d and t=%d", meta.Scenario, component, lineAxis, first.T, last.T),
	}))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, slices, p, err := loadLines(args[0])
	if err != nil {
		return err
	}
	shape := meta.Shape()
	cell := 1.0
	for a := 1; a < shape.Rank(); a++ {
		cell *= shape.Step(a)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T\tMIN\tMAX\tMEAN\tSTDDEV\tL2\tMODE")
	for _, sd := range slices {
		s := analysis.SliceStats(sd.Values, component, p, cell)
		spectrum := analysis.Spectrum(analysis.Line(sd.Values, shape, lineAxis, gridCenter(shape, sd.T), component))
		fmt.Fprintf(w, "%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%d\n",
			sd.T, s.Min, s.Max, s.Mean, s.StdDev, s.L2, analysis.DominantMode(spectrum))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	final := centerLine(slices[len(slices)-1], shape, p)
	power := analysis.PowerSpectrum(final)
	fmt.Println()
	fmt.Println(viz.PlotLine(power, viz.PlotOptions{Height: 8, Caption: "power spectrum of the last slice"}))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	meta, slices, err := storage.New(dataDir).LoadSlices(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, meta, slices)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	meta, slices, err := storage.New(dataDir).LoadSlices(args[0])
	if err != nil {
		return err
	}
	shape := meta.Shape()

	mem := store.NewMemory()
	if err := storage.Restore(ctx, mem, shape, slices); err != nil {
		return err
	}
	data, err := store.BuildExport(ctx, mem, meta.Scenario, shape, meta.Slices)
	if err != nil {
		return err
	}
	data.Metrics = make(map[string]any, len(meta.Metrics))
	for k, v := range meta.Metrics {
		data.Metrics[k] = v
	}
	return store.ExportJSONStdout(data)
}

func printStencil(cmd *cobra.Command, args []string) error {
	if axis < 0 || axis >= grid.MaxAxes {
		return fmt.Errorf("axis %d out of range [0, %d)", axis, grid.MaxAxes)
	}
	if order < 0 {
		return fmt.Errorf("order %d is negative", order)
	}
	if step <= 0 {
		return fmt.Errorf("step %g must be positive", step)
	}
	ax := stencil.Axis{Index: axis, Time: timeAxis || axis == grid.Time, SecondOrderScale: scale}
	e := stencil.Expand(stencil.Identity(), ax, order, step)
	fmt.Print(e.Describe(max(rank, axis+1)))
	return nil
}

func describeScenario(cmd *cobra.Command, args []string) error {
	s, err := scenario.NewRegistry().Get(args[0])
	if err != nil {
		return err
	}
	eq, err := s.Compile(s.Shape)
	if err != nil {
		return err
	}
	fmt.Println(viz.Title.Render(s.Name))
	fmt.Println(viz.Subtle.Render(s.Description))
	fmt.Printf("\ngrid %v steps %v periodic %v\n\n", s.Shape.Extents, s.Shape.Steps, s.Shape.Periodic)
	fmt.Println(eq.Describe())
	if len(s.Params) > 0 {
		fmt.Println("params:")
		for _, name := range s.Params.Names() {
			fmt.Printf("  %s = %g\n", name, s.Params[name])
		}
	}
	return nil
}
