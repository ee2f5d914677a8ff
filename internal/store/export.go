package store

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/gridmarch/internal/grid"
)

type ExportData struct {
	Scenario string         `json:"scenario"`
	Extents  []int          `json:"extents"`
	Steps    []float64      `json:"steps"`
	Periodic []bool         `json:"periodic,omitempty"`
	Slices   []ExportSlice  `json:"slices"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

// ExportSlice holds one time slice in row-major order. Each value is a list
// of [re, im] pairs, one per component; absent samples are null.
type ExportSlice struct {
	T      int            `json:"t"`
	Values [][][2]float64 `json:"values"`
}

func BuildExport(ctx context.Context, st Store, scenario string, shape grid.Shape, slices []int) (*ExportData, error) {
	data := &ExportData{
		Scenario: scenario,
		Extents:  shape.Extents,
		Steps:    shape.Steps,
		Periodic: shape.Periodic,
		Slices:   make([]ExportSlice, 0, len(slices)),
	}

	for _, t := range slices {
		samples, err := ReadSlice(ctx, st, shape, t)
		if err != nil {
			return nil, err
		}
		es := ExportSlice{T: t, Values: make([][][2]float64, len(samples))}
		for i, s := range samples {
			if s == nil {
				continue
			}
			pairs := make([][2]float64, len(s))
			for j, v := range s {
				pairs[j] = [2]float64{real(v), imag(v)}
			}
			es.Values[i] = pairs
		}
		data.Slices = append(data.Slices, es)
	}
	return data, nil
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, data)
}

func ExportJSONStdout(data *ExportData) error {
	return WriteJSON(os.Stdout, data)
}
