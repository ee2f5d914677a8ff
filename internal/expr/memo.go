package expr

// Memo caches node values for a single binding snapshot. Each worker owns
// one; a nil *Memo disables caching.
type Memo struct {
	snapshot uint64
	values   map[uint64]complex128
	hits     int
}

func NewMemo() *Memo {
	return &Memo{values: make(map[uint64]complex128)}
}

func (m *Memo) lookup(id, snapshot uint64) (complex128, bool) {
	if m == nil {
		return 0, false
	}
	if snapshot != m.snapshot {
		clear(m.values)
		m.snapshot = snapshot
		return 0, false
	}
	v, ok := m.values[id]
	if ok {
		m.hits++
	}
	return v, ok
}

func (m *Memo) store(id uint64, v complex128) {
	if m == nil {
		return
	}
	m.values[id] = v
}

// Hits reports how many lookups were served from the cache.
func (m *Memo) Hits() int {
	if m == nil {
		return 0
	}
	return m.hits
}

func (m *Memo) Len() int {
	if m == nil {
		return 0
	}
	return len(m.values)
}
