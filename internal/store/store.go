// Package store defines the backing key/value array that holds every grid
// sample, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"hash/maphash"
	"sync"

	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
)

var ErrClosed = errors.New("store: closed")

// Store is addressed by full grid coordinates. Implementations must be safe
// for concurrent calls on disjoint keys. Get returns ok=false for a
// coordinate that was never written.
type Store interface {
	Get(ctx context.Context, c grid.Coord) (field.Sample, bool, error)
	Set(ctx context.Context, c grid.Coord, s field.Sample) error
}

const shardCount = 64

type shard struct {
	mu   sync.RWMutex
	data map[grid.Coord]field.Sample
}

// Memory is a sharded in-memory Store. Samples are copied on the way in and
// on the way out.
type Memory struct {
	seed   maphash.Seed
	shards [shardCount]shard
}

func NewMemory() *Memory {
	m := &Memory{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].data = make(map[grid.Coord]field.Sample)
	}
	return m
}

func (m *Memory) shardFor(c grid.Coord) *shard {
	return &m.shards[maphash.Comparable(m.seed, c)%shardCount]
}

func (m *Memory) Get(ctx context.Context, c grid.Coord) (field.Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	sh := m.shardFor(c)
	sh.mu.RLock()
	s, ok := sh.data[c]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *Memory) Set(ctx context.Context, c grid.Coord, s field.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := m.shardFor(c)
	sh.mu.Lock()
	sh.data[c] = s.Clone()
	sh.mu.Unlock()
	return nil
}

// Len is the number of stored coordinates.
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

// Counting wraps a Store and counts calls. Used to verify refill costs.
type Counting struct {
	Store
	mu   sync.Mutex
	gets int
	sets int
}

func NewCounting(s Store) *Counting { return &Counting{Store: s} }

func (c *Counting) Get(ctx context.Context, at grid.Coord) (field.Sample, bool, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, at)
}

func (c *Counting) Set(ctx context.Context, at grid.Coord, s field.Sample) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Store.Set(ctx, at, s)
}

func (c *Counting) Counts() (gets, sets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.sets
}

func (c *Counting) Reset() {
	c.mu.Lock()
	c.gets, c.sets = 0, 0
	c.mu.Unlock()
}

// ReadSlice returns every sample of slice t in row-major order. Missing
// coordinates yield nil entries.
func ReadSlice(ctx context.Context, s Store, shape grid.Shape, t int) ([]field.Sample, error) {
	out := make([]field.Sample, 0, shape.SpatialPoints())
	var firstErr error
	shape.SliceCoords(t, func(c grid.Coord) {
		if firstErr != nil {
			return
		}
		v, ok, err := s.Get(ctx, c)
		if err != nil {
			firstErr = err
			return
		}
		if !ok {
			v = nil
		}
		out = append(out, v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
