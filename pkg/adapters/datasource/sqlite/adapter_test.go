package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{"path": "/data/app.db", "read_only": true, "busy_timeout_ms": 250})
	require.NoError(t, err)
	assert.Equal(t, &Config{Path: "/data/app.db", ReadOnly: true, BusyTimeout: 250 * time.Millisecond}, cfg)

	_, err = FromMap(map[string]any{})
	assert.ErrorContains(t, err, "path is required")
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t,
		"file:/data/app.db?_pragma=busy_timeout%285000%29&mode=ro",
		buildDSN(&Config{Path: "/data/app.db", ReadOnly: true, BusyTimeout: 5 * time.Second}, "app"))

	assert.Equal(t,
		"file:reports?_pragma=busy_timeout%285000%29&cache=shared&mode=memory",
		buildDSN(&Config{Path: ":memory:", BusyTimeout: 5 * time.Second}, "reports"))
}

func TestQueryExecutor_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hangar.db")

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = connMgr.Close() })

	cfg, err := FromMap(map[string]any{"path": path})
	require.NoError(t, err)

	executor, err := NewQueryExecutor(ctx, cfg, connMgr, "local")
	require.NoError(t, err)
	defer executor.Close()

	_, err = executor.Query(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = executor.Query(ctx, "INSERT INTO users (id, name) VALUES (1, 'ada'), (2, 'grace')")
	require.NoError(t, err)

	result, err := executor.Query(ctx, "SELECT name, id FROM users ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "name", result.Columns[0].Name)
	assert.Equal(t, "id", result.Columns[1].Name)

	name, _ := result.Rows[1].Get("name")
	assert.Equal(t, "grace", name)
	id, _ := result.Rows[1].Get("id")
	assert.Equal(t, int64(2), id)

	tester, err := NewAdapter(ctx, cfg, connMgr, "local")
	require.NoError(t, err)
	defer tester.Close()
	assert.NoError(t, tester.TestConnection(ctx))

	// Both share one managed pool.
	assert.Equal(t, 1, connMgr.GetStats().TotalConnections)
}

func TestQueryExecutor_SharedMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Path: ":memory:", BusyTimeout: time.Second}

	executor, err := NewQueryExecutor(ctx, cfg, nil, t.Name())
	require.NoError(t, err)
	defer executor.Close()

	_, err = executor.Query(ctx, "CREATE TABLE t (v TEXT)")
	require.NoError(t, err)
	_, err = executor.Query(ctx, "INSERT INTO t VALUES ('x')")
	require.NoError(t, err)

	result, err := executor.Query(ctx, "SELECT v FROM t")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
}
