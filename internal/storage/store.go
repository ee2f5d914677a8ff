// Package storage keeps finished runs on disk: a metadata.json per run and
// a CSV of the saved time slices.
package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/store"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Extents    []int              `json:"extents"`
	Steps      []float64          `json:"steps"`
	Periodic   []bool             `json:"periodic,omitempty"`
	Components int                `json:"components"`
	Workers    int                `json:"workers"`
	Params     map[string]float64 `json:"params,omitempty"`
	Slices     []int              `json:"slices"`
	Elapsed    float64            `json:"elapsed_seconds"`
	Metrics    map[string]float64 `json:"metrics"`
}

func (m *RunMetadata) Shape() grid.Shape {
	return grid.Shape{Extents: m.Extents, Steps: m.Steps, Periodic: m.Periodic}
}

// SliceData is one saved time slice in row-major order.
type SliceData struct {
	T      int
	Values []field.Sample
}

// SelectSlices picks every n-th slice from first to last, always including
// last.
func SelectSlices(first, last, every int) []int {
	if every <= 0 {
		every = 1
	}
	var out []int
	for t := first; t < last; t += every {
		out = append(out, t)
	}
	if last >= first {
		out = append(out, last)
	}
	return out
}

// Save writes the run metadata and the chosen slices read from src. It
// returns the new run ID.
func (s *Store) Save(ctx context.Context, meta RunMetadata, src store.Store, slices []int) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Scenario, uuid.NewString()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Slices = slices

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "field.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	shape := meta.Shape()
	w := newCSV(csvFile, shape.Rank(), meta.Components)
	if err := w.header(); err != nil {
		return "", err
	}
	for _, t := range slices {
		values, err := store.ReadSlice(ctx, src, shape, t)
		if err != nil {
			return "", fmt.Errorf("storage: read slice %d: %w", t, err)
		}
		if err := w.slice(shape, SliceData{T: t, Values: values}); err != nil {
			return "", err
		}
	}
	if err := w.flush(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// WriteCSV writes loaded slices in the same layout as field.csv.
func WriteCSV(out io.Writer, meta *RunMetadata, slices []SliceData) error {
	shape := meta.Shape()
	w := newCSV(out, shape.Rank(), meta.Components)
	if err := w.header(); err != nil {
		return err
	}
	for _, sd := range slices {
		if err := w.slice(shape, sd); err != nil {
			return err
		}
	}
	return w.flush()
}

// Restore writes loaded slices into dst so they can be read back through
// the store interface.
func Restore(ctx context.Context, dst store.Store, shape grid.Shape, slices []SliceData) error {
	for _, sd := range slices {
		i := 0
		var err error
		shape.SliceCoords(sd.T, func(c grid.Coord) {
			v := sd.Values[i]
			i++
			if err != nil || v == nil {
				return
			}
			err = dst.Set(ctx, c, v)
		})
		if err != nil {
			return fmt.Errorf("storage: restore slice %d: %w", sd.T, err)
		}
	}
	return nil
}

type csvWriter struct {
	w     *csv.Writer
	rank  int
	comps int
}

func newCSV(out io.Writer, rank, comps int) *csvWriter {
	return &csvWriter{w: csv.NewWriter(out), rank: rank, comps: comps}
}

func (cw *csvWriter) header() error {
	header := []string{"t"}
	for a := 1; a < cw.rank; a++ {
		header = append(header, fmt.Sprintf("x%d", a))
	}
	for c := 0; c < cw.comps; c++ {
		header = append(header, fmt.Sprintf("re%d", c), fmt.Sprintf("im%d", c))
	}
	return cw.w.Write(header)
}

// slice writes one row per present sample; nil entries are skipped.
func (cw *csvWriter) slice(shape grid.Shape, sd SliceData) error {
	i := 0
	var err error
	shape.SliceCoords(sd.T, func(c grid.Coord) {
		v := sd.Values[i]
		i++
		if err != nil || v == nil {
			return
		}
		row := make([]string, 0, cw.rank+2*len(v))
		for a := 0; a < cw.rank; a++ {
			row = append(row, strconv.Itoa(c[a]))
		}
		for _, z := range v {
			row = append(row,
				strconv.FormatFloat(real(z), 'g', -1, 64),
				strconv.FormatFloat(imag(z), 'g', -1, 64))
		}
		err = cw.w.Write(row)
	})
	return err
}

func (cw *csvWriter) flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSlices reads back the saved slices in ascending time order.
func (s *Store) LoadSlices(runID string) (*RunMetadata, []SliceData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	shape := meta.Shape()
	if err := shape.Validate(); err != nil {
		return nil, nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "field.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	rank := shape.Rank()
	width := rank + 2*meta.Components
	byT := make(map[int]*SliceData)
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) != width {
			return nil, nil, fmt.Errorf("storage: run %s line %d: %d fields, want %d", runID, i+1, len(rec), width)
		}
		var c grid.Coord
		for a := 0; a < rank; a++ {
			if c[a], err = strconv.Atoi(rec[a]); err != nil {
				return nil, nil, fmt.Errorf("storage: run %s line %d: %w", runID, i+1, err)
			}
		}
		v := field.New(meta.Components)
		for k := range v {
			re, err := strconv.ParseFloat(rec[rank+2*k], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: run %s line %d: %w", runID, i+1, err)
			}
			im, err := strconv.ParseFloat(rec[rank+2*k+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: run %s line %d: %w", runID, i+1, err)
			}
			v[k] = complex(re, im)
		}

		sd, ok := byT[c[grid.Time]]
		if !ok {
			sd = &SliceData{T: c[grid.Time], Values: make([]field.Sample, shape.SpatialPoints())}
			byT[c[grid.Time]] = sd
		}
		idx, ok := rowMajor(shape, c)
		if !ok {
			return nil, nil, fmt.Errorf("storage: run %s line %d: coordinate %s outside the grid", runID, i+1, c.Format(rank))
		}
		sd.Values[idx] = v
	}

	out := make([]SliceData, 0, len(byT))
	for _, sd := range byT {
		out = append(out, *sd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	return meta, out, nil
}

func rowMajor(shape grid.Shape, c grid.Coord) (int, bool) {
	idx := 0
	for a := 1; a < shape.Rank(); a++ {
		if c[a] < 0 || c[a] >= shape.Extents[a] {
			return 0, false
		}
		idx = idx*shape.Extents[a] + c[a]
	}
	return idx, true
}
