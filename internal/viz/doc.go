// Package viz renders run progress and grid lines in the terminal.
//
//   - [PlotLine], [PlotLines]: asciigraph charts of one or more lines
//   - [Canvas]: Braille canvas with [Canvas.Profile] for compact line plots
//   - [Model]: Bubble Tea view fed with [SliceMsg] while a march runs
//
// # Key Bindings
//
//	q, esc - Quit the live view
package viz
