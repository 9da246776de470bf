package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-hangar/pkg/cache"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

func TestResultCacheKey(t *testing.T) {
	id := uuid.MustParse("6f1c1c7e-8d2a-5b7e-9a53-2f4a6c0d9e11")

	a, err := ResultCacheKey(id, map[string]any{"b": "x", "a": []int64{1, 2}})
	require.NoError(t, err)
	b, err := ResultCacheKey(id, map[string]any{"a": []int64{1, 2}, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key must not depend on map order")
	assert.True(t, strings.HasPrefix(a, "hangar.endpoint_query.6f1c1c7e-8d2a-5b7e-9a53-2f4a6c0d9e11."))

	c, err := ResultCacheKey(id, map[string]any{"a": []int64{1, 3}, "b": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	empty, err := ResultCacheKey(id, nil)
	require.NoError(t, err)
	emptyMap, err := ResultCacheKey(id, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, empty, emptyMap)
}

func sampleResult(sql string) *models.ExecutionResult {
	row := models.NewRow()
	row.Set("zeta", "z")
	row.Set("alpha", int64(1))
	return &models.ExecutionResult{SQL: sql, Rows: []models.Row{row}}
}

func TestResultCache_HitAndMiss(t *testing.T) {
	store := cache.NewMemoryStore(16, time.Hour)
	rc := NewResultCache(store, zaptest.NewLogger(t))
	ctx := context.Background()
	id := uuid.New()

	calls := 0
	compute := func(context.Context) (*models.ExecutionResult, error) {
		calls++
		return sampleResult("SELECT 1"), nil
	}

	first, hit, err := rc.Run(ctx, id, time.Minute, map[string]any{"id": int64(1)}, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := rc.Run(ctx, id, time.Minute, map[string]any{"id": int64(1)}, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, []string{"zeta", "alpha"}, models.RowColumns(second.Rows[0]), "column order survives the cache")

	_, hit, err = rc.Run(ctx, id, time.Minute, map[string]any{"id": int64(2)}, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	_, hit, err = rc.Run(ctx, uuid.New(), time.Minute, map[string]any{"id": int64(1)}, compute)
	require.NoError(t, err)
	assert.False(t, hit, "bindings do not share entries")
}

func TestResultCache_ComputeErrorNotCached(t *testing.T) {
	rc := NewResultCache(cache.NewMemoryStore(16, time.Hour), zaptest.NewLogger(t))
	boom := errors.New("boom")

	_, _, err := rc.Run(context.Background(), uuid.New(), time.Minute, nil, func(context.Context) (*models.ExecutionResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

type failingStore struct{ cache.Store }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestResultCache_StoreErrorPropagates(t *testing.T) {
	rc := NewResultCache(failingStore{}, zaptest.NewLogger(t))
	_, _, err := rc.Run(context.Background(), uuid.New(), time.Minute, nil, func(context.Context) (*models.ExecutionResult, error) {
		t.Fatal("compute must not run when the store fails")
		return nil, nil
	})
	assert.ErrorContains(t, err, "result cache lookup")
}

func TestResultCache_UnreadableEntryRecomputed(t *testing.T) {
	store := cache.NewMemoryStore(16, time.Hour)
	rc := NewResultCache(store, zaptest.NewLogger(t))
	id := uuid.New()
	key, err := ResultCacheKey(id, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), key, []byte("not json"), time.Minute))

	result, hit, err := rc.Run(context.Background(), id, time.Minute, nil, func(context.Context) (*models.ExecutionResult, error) {
		return sampleResult("SELECT 2"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "SELECT 2", result.SQL)
}

func TestResultCache_HitKeepsValueTypes(t *testing.T) {
	rc := NewResultCache(cache.NewMemoryStore(16, time.Hour), zaptest.NewLogger(t))
	id := uuid.New()
	created := time.Date(2024, 3, 9, 14, 30, 5, 123456789, time.UTC)

	compute := func(context.Context) (*models.ExecutionResult, error) {
		row := models.NewRow()
		row.Set("id", int64(9007199254740993))
		row.Set("small", int32(7))
		row.Set("count", uint64(18446744073709551615))
		row.Set("ratio", 0.1)
		row.Set("name", "Ada")
		row.Set("active", true)
		row.Set("payload", []byte{0x00, 0xff})
		row.Set("created", created)
		row.Set("tags", []any{"a", int64(2), nil})
		row.Set("deleted", nil)
		return &models.ExecutionResult{SQL: "SELECT 1", Rows: []models.Row{row}, One: true}, nil
	}

	miss, hit, err := rc.Run(context.Background(), id, time.Minute, nil, compute)
	require.NoError(t, err)
	require.False(t, hit)

	cached, hit, err := rc.Run(context.Background(), id, time.Minute, nil, compute)
	require.NoError(t, err)
	require.True(t, hit)

	assert.Equal(t, miss.SQL, cached.SQL)
	assert.True(t, cached.One)
	assert.Equal(t, models.RowColumns(miss.Rows[0]), models.RowColumns(cached.Rows[0]))

	for pair := miss.Rows[0].Oldest(); pair != nil; pair = pair.Next() {
		got, ok := cached.Rows[0].Get(pair.Key)
		require.True(t, ok, pair.Key)
		if want, isTime := pair.Value.(time.Time); isTime {
			gotTime, ok := got.(time.Time)
			require.True(t, ok, "created stays a time.Time")
			assert.True(t, want.Equal(gotTime))
			continue
		}
		assert.Equal(t, pair.Value, got, pair.Key)
	}

	id64, _ := cached.Rows[0].Get("id")
	assert.Equal(t, int64(9007199254740993), id64)
}

func TestResultCache_UncacheableResultServed(t *testing.T) {
	store := cache.NewMemoryStore(16, time.Hour)
	rc := NewResultCache(store, zaptest.NewLogger(t))
	calls := 0
	compute := func(context.Context) (*models.ExecutionResult, error) {
		calls++
		row := models.NewRow()
		row.Set("x", math.NaN())
		return &models.ExecutionResult{SQL: "SELECT 'NaN'::float", Rows: []models.Row{row}}, nil
	}

	for range 2 {
		result, hit, err := rc.Run(context.Background(), uuid.New(), time.Minute, nil, compute)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Len(t, result.Rows, 1)
	}
	assert.Equal(t, 2, calls)
}

func TestResultCache_OldFormatRecomputed(t *testing.T) {
	store := cache.NewMemoryStore(16, time.Hour)
	rc := NewResultCache(store, zaptest.NewLogger(t))
	id := uuid.New()
	key, err := ResultCacheKey(id, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), key, []byte(`{"sql":"SELECT 1","rows":[{"id":1}]}`), time.Minute))

	_, hit, err := rc.Run(context.Background(), id, time.Minute, nil, func(context.Context) (*models.ExecutionResult, error) {
		return sampleResult("SELECT 1"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
}
