package analysis

import (
	"math"
	"testing"

	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
)

func TestPowerSpectrumSingleMode(t *testing.T) {
	n := 32
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Cos(2 * math.Pi * 3 * float64(i) / float64(n))
	}
	ps := PowerSpectrum(data)
	if len(ps) != n/2+1 {
		t.Fatalf("len = %d, want %d", len(ps), n/2+1)
	}
	if DominantMode(ps) != 3 {
		t.Errorf("dominant mode %d, want 3", DominantMode(ps))
	}
	if math.Abs(ps[3]-float64(n)/2) > 1e-9 {
		t.Errorf("|X_3| = %v, want %v", ps[3], float64(n)/2)
	}
}

func TestSpectrumOddLength(t *testing.T) {
	line := make([]complex128, 15)
	for i := range line {
		line[i] = 2
	}
	s := Spectrum(line)
	if math.Abs(s[0]-30) > 1e-9 {
		t.Errorf("DC = %v, want 30", s[0])
	}
	for k := 1; k < len(s); k++ {
		if s[k] > 1e-9 {
			t.Errorf("mode %d = %v, want 0", k, s[k])
		}
	}
	if Spectrum(nil) != nil || PowerSpectrum(nil) != nil {
		t.Error("empty input should yield nil")
	}
}

func TestSliceStats(t *testing.T) {
	values := []field.Sample{
		{complex(1, 0)},
		{complex(3, 4)},
		nil,
		{complex(-1, 0)},
	}
	st := SliceStats(values, 0, Re, 4)
	if st.Min != -1 || st.Max != 3 || st.Missing != 1 {
		t.Errorf("unexpected %+v", st)
	}
	if math.Abs(st.Mean-1) > 1e-12 {
		t.Errorf("mean %v, want 1", st.Mean)
	}
	if math.Abs(st.L2-2*math.Sqrt(11)) > 1e-12 {
		t.Errorf("L2 %v, want %v", st.L2, 2*math.Sqrt(11))
	}

	abs := SliceStats(values, 0, Abs, 1)
	if abs.Max != 5 {
		t.Errorf("max |u| = %v, want 5", abs.Max)
	}
	if got := SliceStats(nil, 0, Re, 1); got != (Stats{}) {
		t.Errorf("empty stats %+v", got)
	}
}

func TestLine(t *testing.T) {
	shape := grid.Shape{Extents: []int{1, 3, 4}, Steps: []float64{1, 1, 1}}
	values := make([]field.Sample, 12)
	for i := range values {
		values[i] = field.Real(float64(i))
	}

	row := Line(values, shape, 2, grid.Coord{0, 1, 0}, 0)
	want := []float64{4, 5, 6, 7}
	for i, z := range row {
		if real(z) != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, z, want[i])
		}
	}

	col := Parts(Line(values, shape, 1, grid.Coord{0, 0, 2}, 0), Re)
	if col[0] != 2 || col[1] != 6 || col[2] != 10 {
		t.Errorf("column = %v", col)
	}
	if Line(values, shape, 0, grid.Coord{}, 0) != nil {
		t.Error("time axis is not a line")
	}
}

func TestParsePart(t *testing.T) {
	for in, want := range map[string]Part{"re": Re, "imag": Im, "abs": Abs, "": Re} {
		got, ok := ParsePart(in)
		if !ok || got != want {
			t.Errorf("ParsePart(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParsePart("phase"); ok {
		t.Error("unexpected part accepted")
	}
}
