package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/query"
)

type mapSource map[string]query.MapRow

func (m mapSource) Fetch(key []byte) (query.Row, error) {
	row, ok := m[string(key)]
	if !ok {
		return nil, fmt.Errorf("no row for key %q", key)
	}
	return row, nil
}

func testRows() mapSource {
	src := mapSource{}
	cities := []string{"oslo", "bergen"}
	for i := 0; i < 10; i++ {
		src[fmt.Sprintf("k%02d", i)] = query.MapRow{
			"city": codec.NewString(cities[i%2]),
			"age":  codec.NewInt(int64(20 + i)),
			"name": codec.NewString(fmt.Sprintf("user%02d", i)),
		}
	}
	return src
}

func fillIndex(t *testing.T, idx *SecondaryIndex, src mapSource) {
	t.Helper()
	for key, row := range src {
		require.NoError(t, idx.Insert(row, []byte(key)))
	}
}

func TestSecondaryIndexPrefixScan(t *testing.T) {
	idx, err := NewSecondaryIndex("by_city", []string{"city"})
	require.NoError(t, err)
	src := testRows()
	fillIndex(t, idx, src)

	contexts, err := query.PlanScan(
		query.NewRel("city", query.OpEQ, codec.NewString("oslo")),
		[]*query.Index{idx.Descriptor()},
	)
	require.NoError(t, err)

	keys, err := idx.Scan(contexts[0], nil)
	require.NoError(t, err)
	require.Len(t, keys, 5)
	for _, key := range keys {
		row, err := src.Fetch(key)
		require.NoError(t, err)
		v, err := row.Field("city")
		require.NoError(t, err)
		assert.Equal(t, "oslo", v.Str())
	}
}

func TestSecondaryIndexRangeScan(t *testing.T) {
	idx, err := NewSecondaryIndex("by_city_age", []string{"city", "age"})
	require.NoError(t, err)
	src := testRows()
	fillIndex(t, idx, src)

	// oslo rows carry the even ages 20 through 28.
	contexts, err := query.PlanScan(query.NewAnd(
		query.NewRel("city", query.OpEQ, codec.NewString("oslo")),
		query.NewRel("age", query.OpGT, codec.NewInt(20)),
		query.NewRel("age", query.OpLE, codec.NewInt(26)),
	), []*query.Index{idx.Descriptor()})
	require.NoError(t, err)

	keys, err := idx.Scan(contexts[0], nil)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	var ages []int64
	for _, key := range keys {
		v, err := src[string(key)].Field("age")
		require.NoError(t, err)
		ages = append(ages, v.Int())
	}
	assert.Equal(t, []int64{22, 24, 26}, ages)
}

func TestSecondaryIndexResidualRecheck(t *testing.T) {
	idx, err := NewSecondaryIndex("by_city", []string{"city"})
	require.NoError(t, err)
	src := testRows()
	fillIndex(t, idx, src)

	contexts, err := query.PlanScan(query.NewAnd(
		query.NewRel("city", query.OpEQ, codec.NewString("bergen")),
		query.NewRel("age", query.OpGE, codec.NewInt(27)),
	), []*query.Index{idx.Descriptor()})
	require.NoError(t, err)
	require.NotNil(t, contexts[0].Residual)

	keys, err := idx.Scan(contexts[0], src)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, key := range keys {
		v, err := src[string(key)].Field("age")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.Int(), int64(27))
	}

	// A residual filter without a row source cannot be re-checked.
	_, err = idx.Scan(contexts[0], nil)
	assert.Error(t, err)
}

func TestSecondaryIndexRemove(t *testing.T) {
	idx, err := NewSecondaryIndex("by_name", []string{"name"})
	require.NoError(t, err)
	src := testRows()
	fillIndex(t, idx, src)
	require.Equal(t, 10, idx.Len())

	require.NoError(t, idx.Remove(src["k03"], []byte("k03")))
	assert.Equal(t, 9, idx.Len())

	contexts, err := query.PlanScan(
		query.NewRel("name", query.OpEQ, codec.NewString("user03")),
		[]*query.Index{idx.Descriptor()},
	)
	require.NoError(t, err)
	keys, err := idx.Scan(contexts[0], nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIndexManagerLookupUnion(t *testing.T) {
	im := NewIndexManager()
	_, err := im.CreateIndex("by_city", []string{"city"})
	require.NoError(t, err)
	_, err = im.CreateIndex("by_age", []string{"age"})
	require.NoError(t, err)

	src := testRows()
	for key, row := range src {
		require.NoError(t, im.Insert(row, []byte(key)))
	}

	// Branches overlap: oslo rows under age 22 satisfy both arms.
	keys, err := im.Lookup(query.NewOr(
		query.NewRel("city", query.OpEQ, codec.NewString("oslo")),
		query.NewRel("age", query.OpLT, codec.NewInt(22)),
	), src)
	require.NoError(t, err)

	// 5 oslo rows plus bergen's age-21 row, no duplicates.
	require.Len(t, keys, 6)
	seen := make(map[string]struct{})
	for _, key := range keys {
		_, dup := seen[string(key)]
		require.False(t, dup, "duplicate key %q", key)
		seen[string(key)] = struct{}{}
	}
}

func TestIndexManagerCreateErrors(t *testing.T) {
	im := NewIndexManager()
	_, err := im.CreateIndex("by_city", []string{"city"})
	require.NoError(t, err)
	_, err = im.CreateIndex("by_city", []string{"city"})
	assert.ErrorIs(t, err, ErrIndexExists)
	_, err = im.Index("missing")
	assert.ErrorIs(t, err, ErrIndexNotFound)
	_, err = im.CreateIndex("empty", nil)
	assert.Error(t, err)
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	im := NewIndexManager()
	_, err := im.CreateIndex("by_city_age", []string{"city", "age"})
	require.NoError(t, err)
	src := testRows()
	for key, row := range src {
		require.NoError(t, im.Insert(row, []byte(key)))
	}
	require.NoError(t, im.SaveAll(dir))

	restored := NewIndexManager()
	require.NoError(t, restored.LoadAll(dir))
	idx, err := restored.Index("by_city_age")
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "age"}, idx.Columns())
	assert.Equal(t, 10, idx.Len())

	contexts, err := query.PlanScan(query.NewAnd(
		query.NewRel("city", query.OpEQ, codec.NewString("bergen")),
		query.NewRel("age", query.OpGE, codec.NewInt(25)),
	), restored.Descriptors())
	require.NoError(t, err)
	keys, err := idx.Scan(contexts[0], nil)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestIndexLoadMissingFileLeavesEmpty(t *testing.T) {
	idx, err := NewSecondaryIndex("by_city", []string{"city"})
	require.NoError(t, err)
	require.NoError(t, idx.Load(t.TempDir()))
	assert.Equal(t, 0, idx.Len())
}
