package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/torvik/yggdb/pkg/expr"
	"github.com/torvik/yggdb/pkg/query"
)

// ErrIndexExists is returned when creating an index whose name is taken.
var ErrIndexExists = errors.New("index already exists")

// ErrIndexNotFound is returned for lookups of unknown index names.
var ErrIndexNotFound = errors.New("index not found")

// IndexManager owns the secondary indexes of one store and routes planned
// scans to them.
type IndexManager struct {
	mu      sync.RWMutex
	indexes map[string]*SecondaryIndex
}

// NewIndexManager creates an empty manager.
func NewIndexManager() *IndexManager {
	return &IndexManager{indexes: make(map[string]*SecondaryIndex)}
}

// CreateIndex registers a new index over the given columns.
func (im *IndexManager) CreateIndex(name string, columns []string) (*SecondaryIndex, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, exists := im.indexes[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrIndexExists, name)
	}
	idx, err := NewSecondaryIndex(name, columns)
	if err != nil {
		return nil, err
	}
	im.indexes[name] = idx
	return idx, nil
}

// Index returns a registered index by name.
func (im *IndexManager) Index(name string) (*SecondaryIndex, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	idx, ok := im.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrIndexNotFound, name)
	}
	return idx, nil
}

// Descriptors returns planner descriptions of every index, ordered by name
// so planning is deterministic.
func (im *IndexManager) Descriptors() []*query.Index {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]*query.Index, 0, len(im.indexes))
	for _, idx := range im.indexes {
		out = append(out, idx.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Insert adds the row to every index.
func (im *IndexManager) Insert(row query.Row, primaryKey []byte) error {
	im.mu.RLock()
	defer im.mu.RUnlock()
	for _, idx := range im.indexes {
		if err := idx.Insert(row, primaryKey); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the row from every index.
func (im *IndexManager) Remove(row query.Row, primaryKey []byte) error {
	im.mu.RLock()
	defer im.mu.RUnlock()
	for _, idx := range im.indexes {
		if err := idx.Remove(row, primaryKey); err != nil {
			return err
		}
	}
	return nil
}

// Lookup plans the filter against the registered indexes, executes every
// branch, and returns the union of matching primary keys. Each key appears
// once even when several branches select it.
func (im *IndexManager) Lookup(f query.Filter, src RowSource) ([][]byte, error) {
	contexts, err := query.PlanScan(f, im.Descriptors())
	if err != nil {
		return nil, err
	}

	var (
		out  [][]byte
		seen = make(map[string]struct{})
	)
	for _, sc := range contexts {
		idx, err := im.Index(sc.Index.Name)
		if err != nil {
			return nil, err
		}
		keys, err := idx.Scan(sc, src)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if _, dup := seen[string(key)]; dup {
				continue
			}
			seen[string(key)] = struct{}{}
			out = append(out, key)
		}
	}
	return out, nil
}

// Index files are named index_<name>.dat and hold the column list followed
// by the postings, values in the default-expression encoding.
const indexFileMagic = "YGI1"

// SaveAll persists every index under dir.
func (im *IndexManager) SaveAll(dir string) error {
	im.mu.RLock()
	defer im.mu.RUnlock()
	for _, idx := range im.indexes {
		if err := idx.Save(dir); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll restores every index file found under dir.
func (im *IndexManager) LoadAll(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "index_*.dat"))
	if err != nil {
		return err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, file := range files {
		idx, err := loadIndex(file)
		if err != nil {
			return err
		}
		im.indexes[idx.name] = idx
	}
	return nil
}

func (idx *SecondaryIndex) indexFileName(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("index_%s.dat", idx.name))
}

// Save writes the index to its file under dir.
func (idx *SecondaryIndex) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, err := os.CreateTemp(dir, "index_*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(indexFileMagic); err != nil {
		f.Close()
		return err
	}
	if err := writeString(w, strings.Join(idx.columns, ",")); err != nil {
		f.Close()
		return err
	}

	var writeErr error
	idx.tree.Ascend(func(e entry) bool {
		for _, v := range e.vals {
			blob, err := expr.Encode(v)
			if err != nil {
				writeErr = err
				return false
			}
			if err := writeBytes(w, blob); err != nil {
				writeErr = err
				return false
			}
		}
		if err := writeBytes(w, e.key); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		f.Close()
		return writeErr
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), idx.indexFileName(dir))
}

// Load restores the index from its file under dir; a missing file leaves
// the index empty.
func (idx *SecondaryIndex) Load(dir string) error {
	loaded, err := loadIndex(idx.indexFileName(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if loaded.name != idx.name {
		return fmt.Errorf("index file holds %q, expected %q", loaded.name, idx.name)
	}
	idx.mu.Lock()
	idx.columns = loaded.columns
	idx.tree = loaded.tree
	idx.mu.Unlock()
	return nil
}

func loadIndex(file string) (*SecondaryIndex, error) {
	base := filepath.Base(file)
	name := strings.TrimSuffix(strings.TrimPrefix(base, "index_"), ".dat")
	if name == "" || name == base {
		return nil, fmt.Errorf("not an index file: %s", base)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(indexFileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != indexFileMagic {
		return nil, fmt.Errorf("index file %s: bad magic", base)
	}
	colList, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("index file %s: %w", base, err)
	}
	idx, err := NewSecondaryIndex(name, strings.Split(colList, ","))
	if err != nil {
		return nil, err
	}

	eval := expr.NewEvaluator()
	for {
		e := entry{}
		for i := 0; i < len(idx.columns); i++ {
			blob, err := readBytes(r)
			if i == 0 && errors.Is(err, io.EOF) {
				return idx, nil
			}
			if err != nil {
				return nil, fmt.Errorf("index file %s: %w", base, err)
			}
			v, err := eval.Resolve(blob)
			if err != nil {
				return nil, fmt.Errorf("index file %s: %w", base, err)
			}
			e.vals = append(e.vals, v)
		}
		key, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("index file %s: %w", base, err)
		}
		e.key = key
		idx.tree.ReplaceOrInsert(e)
	}
}

func writeBytes(w *bufio.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w *bufio.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func readString(r *bufio.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}
