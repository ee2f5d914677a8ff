// Package traverse partitions a time slice into swatches and walks each
// swatch so consecutive points differ by a single unit step.
package traverse

import (
	"fmt"

	"github.com/san-kum/gridmarch/internal/grid"
)

type MotionKind int

const (
	// Jump means the window must be refilled from scratch.
	Jump MotionKind = iota
	// Shift means the center moved by Dir along Axis.
	Shift
)

type Motion struct {
	Kind MotionKind
	Axis int
	Dir  int
}

func (m Motion) String() string {
	if m.Kind == Jump {
		return "jump"
	}
	return fmt.Sprintf("shift(axis=%d,dir=%+d)", m.Axis, m.Dir)
}

// Swatch is a hyper-rectangle of spatial coordinates, Lo inclusive and Hi
// exclusive. The time component is unused.
type Swatch struct {
	Lo, Hi grid.Coord
}

func (s Swatch) Points(rank int) int {
	n := 1
	for a := 1; a < rank; a++ {
		n *= s.Hi[a] - s.Lo[a]
	}
	return n
}

// Partition splits the spatial axes of shape into swatches of the given
// size, enumerated row-major. size[a] <= 0 means the whole extent of axis a.
// Edge swatches are clipped to the grid.
func Partition(shape grid.Shape, size grid.Offset) []Swatch {
	rank := shape.Rank()
	var counts, step [grid.MaxAxes]int
	for a := 1; a < rank; a++ {
		step[a] = size[a]
		if step[a] <= 0 || step[a] > shape.Extents[a] {
			step[a] = shape.Extents[a]
		}
		counts[a] = (shape.Extents[a] + step[a] - 1) / step[a]
	}

	var out []Swatch
	var idx [grid.MaxAxes]int
	var walk func(a int)
	walk = func(a int) {
		if a == rank {
			var s Swatch
			for b := 1; b < rank; b++ {
				s.Lo[b] = idx[b] * step[b]
				s.Hi[b] = min(s.Lo[b]+step[b], shape.Extents[b])
			}
			out = append(out, s)
			return
		}
		for i := 0; i < counts[a]; i++ {
			idx[a] = i
			walk(a + 1)
		}
	}
	walk(1)
	return out
}

// Assign returns the swatches owned by worker: indices worker,
// worker+workers, worker+2*workers and so on.
func Assign(all []Swatch, worker, workers int) []Swatch {
	var out []Swatch
	for i := worker; i < len(all); i += workers {
		out = append(out, all[i])
	}
	return out
}

// Cursor walks a worker's swatches for one time slice. Within a swatch the
// innermost axis moves fastest; when an axis reaches the edge it reverses
// direction and the next outer axis advances. The outermost axis only
// increments.
type Cursor struct {
	rank     int
	t        int
	swatches []Swatch
	next     int
	cur      Swatch
	pos      grid.Coord
	dir      [grid.MaxAxes]int
	started  bool
	points   int
}

func NewCursor(rank int) *Cursor {
	return &Cursor{rank: rank}
}

// Reset prepares the cursor to walk swatches of slice t.
func (c *Cursor) Reset(t int, swatches []Swatch) {
	c.t = t
	c.swatches = swatches
	c.next = 0
	c.started = false
	c.points = 0
}

// Next advances to the next point. ok is false once every swatch is done.
func (c *Cursor) Next() (at grid.Coord, m Motion, ok bool) {
	if c.started {
		if m, ok := c.step(); ok {
			return c.emit(m)
		}
	}
	for c.next < len(c.swatches) {
		s := c.swatches[c.next]
		c.next++
		if s.Points(c.rank) == 0 {
			continue
		}
		c.cur = s
		c.pos = s.Lo
		c.pos[grid.Time] = c.t
		for a := range c.dir {
			c.dir[a] = 1
		}
		c.started = true
		return c.emit(Motion{Kind: Jump})
	}
	c.started = false
	return grid.Coord{}, Motion{}, false
}

func (c *Cursor) emit(m Motion) (grid.Coord, Motion, bool) {
	c.points++
	return c.pos, m, true
}

func (c *Cursor) step() (Motion, bool) {
	for a := c.rank - 1; a >= 1; a-- {
		n := c.pos[a] + c.dir[a]
		if n >= c.cur.Lo[a] && n < c.cur.Hi[a] {
			c.pos[a] = n
			return Motion{Kind: Shift, Axis: a, Dir: c.dir[a]}, true
		}
		if a == 1 {
			break
		}
		c.dir[a] = -c.dir[a]
	}
	return Motion{}, false
}

// Swatch is the swatch the last emitted point belongs to.
func (c *Cursor) Swatch() Swatch { return c.cur }

// Points counts the points emitted since the last Reset.
func (c *Cursor) Points() int { return c.points }
