// Package analysis summarises stored time slices.
//
//   - [SliceStats]: min, max, mean, standard deviation and discrete L2 norm
//   - [Line]: one component along a spatial axis
//   - [Spectrum], [PowerSpectrum]: FFT magnitudes of a grid line
//
// A typical use is checking that a diffusing field loses its high modes:
//
//	line := analysis.Line(values, shape, 1, grid.Coord{}, 0)
//	spec := analysis.Spectrum(line)
package analysis
