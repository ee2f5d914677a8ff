package viz

import (
	"github.com/guptarohit/asciigraph"
)

type PlotOptions struct {
	Width, Height int
	Caption       string
}

// PlotLine draws a single series with asciigraph.
func PlotLine(values []float64, opts PlotOptions) string {
	if len(values) == 0 {
		return ""
	}
	if opts.Width <= 0 {
		opts.Width = 60
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}
	graphOpts := []asciigraph.Option{asciigraph.Width(opts.Width), asciigraph.Height(opts.Height)}
	if opts.Caption != "" {
		graphOpts = append(graphOpts, asciigraph.Caption(opts.Caption))
	}
	return asciigraph.Plot(values, graphOpts...)
}

// PlotLines draws several series on one chart, e.g. the first and last
// slice of a run.
func PlotLines(series [][]float64, opts PlotOptions) string {
	if len(series) == 0 {
		return ""
	}
	if len(series) == 1 {
		return PlotLine(series[0], opts)
	}
	if opts.Width <= 0 {
		opts.Width = 60
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}
	colors := []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red}
	seriesColors := make([]asciigraph.AnsiColor, len(series))
	for i := range series {
		seriesColors[i] = colors[i%len(colors)]
	}
	graphOpts := []asciigraph.Option{
		asciigraph.Width(opts.Width),
		asciigraph.Height(opts.Height),
		asciigraph.SeriesColors(seriesColors...),
	}
	if opts.Caption != "" {
		graphOpts = append(graphOpts, asciigraph.Caption(opts.Caption))
	}
	return asciigraph.PlotMany(series, graphOpts...)
}
