package metrics

import (
	"math"

	"github.com/san-kum/gridmarch/internal/field"
)

// Change is the largest per-point change between the last two observed
// slices. It falls to zero at a steady state.
type Change struct {
	name string
	prev []field.Sample
	last float64
}

func NewChange() *Change {
	return &Change{name: "max_change"}
}

func (c *Change) Name() string {
	return c.name
}

func (c *Change) Observe(_ int, values []field.Sample, _ float64) {
	if c.prev != nil && len(c.prev) == len(values) {
		c.last = 0
		for i, v := range values {
			if v == nil || c.prev[i] == nil {
				continue
			}
			c.last = math.Max(c.last, v.Sub(c.prev[i]).Norm())
		}
	}
	c.prev = make([]field.Sample, len(values))
	for i, v := range values {
		c.prev[i] = v.Clone()
	}
}

func (c *Change) Value() float64 {
	return c.last
}

func (c *Change) Reset() {
	c.prev = nil
	c.last = 0
}
