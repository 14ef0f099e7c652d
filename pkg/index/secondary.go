// Package index maintains in-memory secondary indexes over encoded rows
// and executes the scan contexts produced by pkg/query.
package index

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/query"
)

// RowSource fetches a row by primary key so residual filters can be
// re-checked during a scan.
type RowSource interface {
	Fetch(primaryKey []byte) (query.Row, error)
}

// entry is one index posting: the indexed column values plus the primary
// key as tiebreaker. Pivot entries used for seeking carry a nil key and
// may hold fewer values than the index has columns.
type entry struct {
	vals []codec.Value
	key  []byte
}

// SecondaryIndex is an ordered index over one or more schema fields.
type SecondaryIndex struct {
	name    string
	columns []string
	tree    *btree.BTreeG[entry]
	mu      sync.RWMutex
}

// NewSecondaryIndex creates an empty index over the given columns.
func NewSecondaryIndex(name string, columns []string) (*SecondaryIndex, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("index %q: no columns", name)
	}
	return &SecondaryIndex{
		name:    name,
		columns: columns,
		tree:    btree.NewG(32, entryLess),
	}, nil
}

// Name returns the index name.
func (idx *SecondaryIndex) Name() string { return idx.name }

// Columns returns the indexed columns in declaration order.
func (idx *SecondaryIndex) Columns() []string { return idx.columns }

// Descriptor returns the planner-facing description of this index.
func (idx *SecondaryIndex) Descriptor() *query.Index {
	return &query.Index{Name: idx.name, Columns: idx.columns}
}

// Len returns the number of postings.
func (idx *SecondaryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// entryLess orders postings by column values, primary key as tiebreaker.
// A pivot with fewer values sorts before every posting sharing its prefix.
func entryLess(a, b entry) bool {
	n := len(a.vals)
	if len(b.vals) < n {
		n = len(b.vals)
	}
	for i := 0; i < n; i++ {
		if cmp := compareValues(a.vals[i], b.vals[i]); cmp != 0 {
			return cmp < 0
		}
	}
	if len(a.vals) != len(b.vals) {
		return len(a.vals) < len(b.vals)
	}
	return bytes.Compare(a.key, b.key) < 0
}

// compareValues totally orders values for index placement: null sorts
// lowest, then cross-type by kind, comparable values by Compare.
func compareValues(a, b codec.Value) int {
	if a.IsNull() || b.IsNull() {
		switch {
		case a.IsNull() && b.IsNull():
			return 0
		case a.IsNull():
			return -1
		default:
			return 1
		}
	}
	if cmp, ok := a.Compare(b); ok {
		return cmp
	}
	switch {
	case a.Kind() < b.Kind():
		return -1
	case a.Kind() > b.Kind():
		return 1
	default:
		return 0
	}
}

// extract pulls the indexed column values out of a row.
func (idx *SecondaryIndex) extract(row query.Row) ([]codec.Value, error) {
	vals := make([]codec.Value, len(idx.columns))
	for i, col := range idx.columns {
		v, err := row.Field(col)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", idx.name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// Insert adds a posting for the row under the given primary key.
func (idx *SecondaryIndex) Insert(row query.Row, primaryKey []byte) error {
	vals, err := idx.extract(row)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(entry{vals: vals, key: append([]byte(nil), primaryKey...)})
	return nil
}

// Remove deletes the row's posting.
func (idx *SecondaryIndex) Remove(row query.Row, primaryKey []byte) error {
	vals, err := idx.extract(row)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.Delete(entry{vals: vals, key: primaryKey})
	return nil
}

// Scan executes a planned scan context against this index and returns the
// matching primary keys in index order. When the context carries a
// residual filter, src is used to fetch each candidate row for the
// re-check; src may be nil when the residual is nil.
func (idx *SecondaryIndex) Scan(sc query.ScanContext, src RowSource) ([][]byte, error) {
	if sc.Index == nil || sc.Index.Name != idx.name {
		return nil, fmt.Errorf("scan context targets index %q, not %q", scanIndexName(sc), idx.name)
	}
	if sc.Empty {
		return nil, nil
	}
	if len(sc.Hints) == 0 {
		return nil, fmt.Errorf("index %q: scan context has no hints", idx.name)
	}

	prefix, rng, err := splitHints(sc.Hints)
	if err != nil {
		return nil, fmt.Errorf("index %q: %w", idx.name, err)
	}

	pivot := entry{vals: make([]codec.Value, 0, len(prefix)+1)}
	for _, h := range prefix {
		pivot.vals = append(pivot.vals, h.Begin.Val)
	}
	if rng != nil && rng.Begin != nil {
		pivot.vals = append(pivot.vals, rng.Begin.Val)
	}

	var keys [][]byte
	idx.mu.RLock()
	idx.tree.AscendGreaterOrEqual(pivot, func(e entry) bool {
		for i, h := range prefix {
			if compareValues(e.vals[i], h.Begin.Val) != 0 {
				return false
			}
		}
		if rng != nil {
			v := e.vals[len(prefix)]
			if rng.Begin != nil && rng.Begin.Op == query.OpGT && compareValues(v, rng.Begin.Val) == 0 {
				return true
			}
			if rng.End != nil {
				cmp := compareValues(v, rng.End.Val)
				if cmp > 0 || (cmp == 0 && rng.End.Op == query.OpLT) {
					return false
				}
			}
		}
		keys = append(keys, e.key)
		return true
	})
	idx.mu.RUnlock()

	if sc.Residual == nil {
		return keys, nil
	}
	if src == nil {
		return nil, fmt.Errorf("index %q: residual filter requires a row source", idx.name)
	}

	matched := keys[:0]
	for _, key := range keys {
		row, err := src.Fetch(key)
		if err != nil {
			return nil, err
		}
		ok, err := sc.Residual.Matches(row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

// splitHints validates hint shape: zero or more leading equalities, then
// at most one trailing range.
func splitHints(hints []query.ColumnHint) ([]query.ColumnHint, *query.ColumnHint, error) {
	for i, h := range hints {
		if h.Scan == query.ScanPrefix {
			continue
		}
		if i != len(hints)-1 {
			return nil, nil, fmt.Errorf("range hint on %q is not last", h.Col)
		}
		rng := h
		return hints[:i], &rng, nil
	}
	return hints, nil, nil
}

func scanIndexName(sc query.ScanContext) string {
	if sc.Index == nil {
		return "<nil>"
	}
	return sc.Index.Name
}
