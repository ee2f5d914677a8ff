package viz

import (
	"strings"

	"gonum.org/v1/gonum/floats"
)

const brailleBlank = 0x2800

// dots maps a sub-pixel (row, col) inside one braille cell to its bit.
var dots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille bitmap of Width x Height cells, each holding 2x4
// sub-pixels.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights sub-pixel (x, y); y grows downwards. Points off the canvas
// are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.cells[y/4][x/2] |= dots[y%4][x%2]
}

func (c *Canvas) Clear() {
	for _, row := range c.cells {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// DrawLine lights every sub-pixel between two points (Bresenham).
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := x1-x0, y1-y0
	sx, sy := 1, 1
	if dx < 0 {
		dx, sx = -dx, -1
	}
	if dy < 0 {
		dy, sy = -dy, -1
	}
	e := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		if 2*e > -dy {
			e -= dy
			x0 += sx
		}
		if 2*e < dx {
			e += dx
			y0 += sy
		}
	}
}

// Profile draws values left to right as a polyline scaled to the canvas.
// A flat profile is drawn through the middle.
func (c *Canvas) Profile(values []float64) {
	if len(values) == 0 {
		return
	}
	lo, hi := floats.Min(values), floats.Max(values)
	w, h := c.Width*2-1, c.Height*4-1
	px := func(i int) int {
		if len(values) == 1 {
			return 0
		}
		return i * w / (len(values) - 1)
	}
	py := func(v float64) int {
		if hi == lo {
			return h / 2
		}
		return int(float64(h) * (hi - v) / (hi - lo))
	}

	x0, y0 := px(0), py(values[0])
	c.Set(x0, y0)
	for i := 1; i < len(values); i++ {
		x1, y1 := px(i), py(values[i])
		c.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}
