//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-hangar/pkg/testhelpers"
)

func TestRedisStore_Integration(t *testing.T) {
	redisCfg := testhelpers.GetTestRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, redisCfg)
	require.NoError(t, err)
	store := NewRedisStore(client)
	defer store.Close()

	_, ok, err := store.Get(ctx, "hangar.test.missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "hangar.test.k", []byte(`{"sql":"SELECT 1"}`), time.Minute))
	got, ok, err := store.Get(ctx, "hangar.test.k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"sql":"SELECT 1"}`, string(got))

	ttl, err := client.TTL(ctx, "hangar.test.k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
