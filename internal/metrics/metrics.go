// Package metrics observes the solution slice by slice and exports driver
// counters to Prometheus.
package metrics

import "github.com/san-kum/gridmarch/internal/field"

// Metric accumulates a scalar over committed time slices. values holds the
// slice in row-major order; cell is the volume of one grid cell.
type Metric interface {
	Name() string
	Observe(t int, values []field.Sample, cell float64)
	Value() float64
	Reset()
}

func sumSquares(values []field.Sample) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v.Norm2()
	}
	return sum
}
