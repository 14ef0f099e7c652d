// Package store persists finalized rows in a pebble key-value database.
// Rows are opaque byte slices to the store; encoding and decoding live in
// pkg/codec. Keys are a one-byte row kind followed by a KSUID, so rows of
// one kind occupy a contiguous key range.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/query"
)

// ErrRowNotFound is returned for lookups of unknown row IDs.
var ErrRowNotFound = errors.New("row not found")

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// RowKind partitions the key space by row class.
type RowKind byte

const (
	KindVertex RowKind = 'v'
	KindEdge   RowKind = 'e'
)

func (k RowKind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	default:
		return fmt.Sprintf("kind(%c)", byte(k))
	}
}

// Options configures a RowStore.
type Options struct {
	// Path is the pebble database directory.
	Path string
	// SyncWrites makes every write wait for the WAL fsync.
	SyncWrites bool
	// Metrics receives operation counters; nil disables instrumentation.
	Metrics *Metrics
}

// RowStore is a pebble-backed store for encoded rows.
type RowStore struct {
	db       *pebble.DB
	metrics  *Metrics
	writeOpt *pebble.WriteOptions

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the store at opts.Path.
func Open(opts Options) (*RowStore, error) {
	db, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	writeOpt := pebble.NoSync
	if opts.SyncWrites {
		writeOpt = pebble.Sync
	}
	return &RowStore{db: db, metrics: opts.Metrics, writeOpt: writeOpt}, nil
}

// Close flushes and closes the underlying database.
func (s *RowStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *RowStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func rowKey(kind RowKind, id ksuid.KSUID) []byte {
	key := make([]byte, 1+len(id))
	key[0] = byte(kind)
	copy(key[1:], id.Bytes())
	return key
}

// Put stores a row under a fresh KSUID and returns the ID.
func (s *RowStore) Put(kind RowKind, row []byte) (ksuid.KSUID, error) {
	id := ksuid.New()
	if err := s.PutRow(kind, id, row); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

// PutRow stores a row under an existing ID, overwriting any previous value.
func (s *RowStore) PutRow(kind RowKind, id ksuid.KSUID, row []byte) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	start := time.Now()
	err := s.db.Set(rowKey(kind, id), row, s.writeOpt)
	s.metrics.recordOp("put", err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("put %s row %s: %w", kind, id, err)
	}
	s.metrics.recordWrite(len(row))
	return nil
}

// Get fetches the encoded row stored under the ID.
func (s *RowStore) Get(kind RowKind, id ksuid.KSUID) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	start := time.Now()
	data, closer, err := s.db.Get(rowKey(kind, id))
	s.metrics.recordOp("get", err == nil, time.Since(start))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%s row %s: %w", kind, id, ErrRowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s row %s: %w", kind, id, err)
	}
	defer closer.Close()
	return append([]byte(nil), data...), nil
}

// Delete removes a row. Deleting an absent row is not an error.
func (s *RowStore) Delete(kind RowKind, id ksuid.KSUID) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	start := time.Now()
	err := s.db.Delete(rowKey(kind, id), s.writeOpt)
	s.metrics.recordOp("delete", err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("delete %s row %s: %w", kind, id, err)
	}
	return nil
}

// Scan visits every row of a kind in ID order until fn returns false.
// The row slice is only valid during the callback.
func (s *RowStore) Scan(kind RowKind, fn func(id ksuid.KSUID, row []byte) bool) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	start := time.Now()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(kind)},
		UpperBound: []byte{byte(kind) + 1},
	})
	if err != nil {
		s.metrics.recordOp("scan", false, time.Since(start))
		return fmt.Errorf("scan %s rows: %w", kind, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[1:])
		if err != nil {
			s.metrics.recordOp("scan", false, time.Since(start))
			return fmt.Errorf("scan %s rows: bad key: %w", kind, err)
		}
		if !fn(id, iter.Value()) {
			break
		}
	}
	err = iter.Error()
	s.metrics.recordOp("scan", err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("scan %s rows: %w", kind, err)
	}
	return nil
}

// Rows adapts one kind of stored rows to the row-source shape pkg/index
// expects: primary keys are raw KSUID bytes, values decode with schema.
func (s *RowStore) Rows(schema *codec.Schema, kind RowKind) *DecodedRows {
	return &DecodedRows{store: s, schema: schema, kind: kind}
}

// DecodedRows fetches rows by primary key and decodes them for filter
// evaluation.
type DecodedRows struct {
	store  *RowStore
	schema *codec.Schema
	kind   RowKind
}

// Fetch looks up a row by its KSUID bytes and returns a decoded view.
func (d *DecodedRows) Fetch(primaryKey []byte) (query.Row, error) {
	id, err := ksuid.FromBytes(primaryKey)
	if err != nil {
		return nil, fmt.Errorf("bad primary key: %w", err)
	}
	encoded, err := d.store.Get(d.kind, id)
	if err != nil {
		return nil, err
	}
	r, err := codec.NewRowReader(d.schema, encoded)
	if err != nil {
		return nil, err
	}
	return query.RowFromReader(r), nil
}
