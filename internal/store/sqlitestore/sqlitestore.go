// Package sqlitestore keeps grid samples in a SQLite file so a run can exceed
// available memory.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var ErrCorrupt = errors.New("sqlitestore: malformed sample blob")

// Store implements store.Store on top of a single SQLite connection.
// database/sql serializes access, so concurrent callers are safe. mu guards
// the handles against Close.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	get *sql.Stmt
	set *sql.Stmt
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	s := &Store{db: db}
	if s.get, err = db.Prepare(`SELECT value FROM samples WHERE t = ? AND x1 = ? AND x2 = ? AND x3 = ? AND x4 = ?`); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare get: %w", err)
	}
	if s.set, err = db.Prepare(`INSERT INTO samples (t, x1, x2, x3, x4, value) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (t, x1, x2, x3, x4) DO UPDATE SET value = excluded.value`); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare set: %w", err)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	s.get.Close()
	s.set.Close()
	err := s.db.Close()
	s.db = nil
	return err
}

func keyArgs(c grid.Coord) []any {
	return []any{c[0], c[1], c[2], c[3], c[4]}
}

func (s *Store) Get(ctx context.Context, c grid.Coord) (field.Sample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, false, store.ErrClosed
	}
	var blob []byte
	err := s.get.QueryRowContext(ctx, keyArgs(c)...).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: get %v: %w", c, err)
	}
	v, err := decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: get %v: %w", c, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, c grid.Coord, v field.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return store.ErrClosed
	}
	args := append(keyArgs(c), encode(v))
	if _, err := s.set.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("sqlitestore: set %v: %w", c, err)
	}
	return nil
}

// Count returns the number of samples stored for slice t.
func (s *Store) Count(ctx context.Context, t int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, store.ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE t = ?`, t).Scan(&n)
	return n, err
}

// encode lays out each component as little-endian real then imaginary part.
func encode(v field.Sample) []byte {
	buf := make([]byte, 16*len(v))
	for i, c := range v {
		binary.LittleEndian.PutUint64(buf[16*i:], math.Float64bits(real(c)))
		binary.LittleEndian.PutUint64(buf[16*i+8:], math.Float64bits(imag(c)))
	}
	return buf
}

func decode(buf []byte) (field.Sample, error) {
	if len(buf)%16 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(buf))
	}
	v := make(field.Sample, len(buf)/16)
	for i := range v {
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i+8:]))
		v[i] = complex(re, im)
	}
	return v, nil
}
