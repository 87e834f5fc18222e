package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/infrastructure/search"
	"github.com/lostworld/plateau/internal/testdb"
)

func TestSQLiteVectorStore_UpsertAndGet(t *testing.T) {
	db := testdb.New(t)
	store := search.NewSQLiteVectorStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "LW-001", "more trees", []float64{1, 0}))
	require.NoError(t, store.Upsert(ctx, "LW-002", "more water", []float64{0, 1}))

	records, err := store.Get(ctx, []string{"LW-002", "LW-001", "LW-404"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Missing references are omitted; present ones keep caller order.
	assert.Equal(t, "LW-002", records[0].Reference())
	assert.Equal(t, "more water", records[0].Document())
	assert.Equal(t, "LW-001", records[1].Reference())
	assert.Equal(t, []float64{1, 0}, records[1].Vector())
}

func TestSQLiteVectorStore_UpsertReplaces(t *testing.T) {
	db := testdb.New(t)
	store := search.NewSQLiteVectorStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "LW-001", "old text", []float64{1, 0}))
	require.NoError(t, store.Upsert(ctx, "LW-001", "new text", []float64{0, 1}))

	records, err := store.Get(ctx, []string{"LW-001"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new text", records[0].Document())
	assert.Equal(t, []float64{0, 1}, records[0].Vector())
}

func TestSQLiteVectorStore_QueryOrdersByDistance(t *testing.T) {
	db := testdb.New(t)
	store := search.NewSQLiteVectorStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "LW-001", "exact", []float64{1, 0}))
	require.NoError(t, store.Upsert(ctx, "LW-002", "near", []float64{0.9, 0.1}))
	require.NoError(t, store.Upsert(ctx, "LW-003", "far", []float64{-1, 0}))

	matches, err := store.Query(ctx, []float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "LW-001", matches[0].Reference())
	assert.InDelta(t, 0.0, matches[0].Distance(), 1e-9)
	assert.Equal(t, "LW-002", matches[1].Reference())
	assert.Equal(t, "LW-003", matches[2].Reference())
}

func TestSQLiteVectorStore_QueryCapsResults(t *testing.T) {
	db := testdb.New(t)
	store := search.NewSQLiteVectorStore(db)
	ctx := context.Background()

	for i, ref := range []string{"LW-001", "LW-002", "LW-003"} {
		require.NoError(t, store.Upsert(ctx, ref, ref, []float64{float64(i), 0}))
	}

	matches, err := store.Query(ctx, []float64{0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSQLiteVectorStore_DimensionMismatchNeverMatches(t *testing.T) {
	db := testdb.New(t)
	store := search.NewSQLiteVectorStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "LW-001", "three dims", []float64{1, 0, 0}))

	matches, err := store.Query(ctx, []float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Distance() > 1e9)
}
