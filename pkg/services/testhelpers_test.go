package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// testEnv wires the query layer to a seeded SQLite file named "local".
type testEnv struct {
	datasources DatasourceService
	factory     datasource.DatasourceAdapterFactory
	runner      QueryRunner
}

func newTestEnv(t *testing.T, opts QueryRunnerOptions) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{}, logger)
	t.Cleanup(func() { _ = connMgr.Close() })
	factory := datasource.NewDatasourceAdapterFactory(connMgr)

	dsSvc, err := NewDatasourceService(map[string]config.DatabaseConfig{
		"local": {Type: "sqlite", Options: map[string]any{"path": filepath.Join(t.TempDir(), "hangar.db")}},
	}, factory, logger)
	require.NoError(t, err)

	env := &testEnv{
		datasources: dsSvc,
		factory:     factory,
		runner:      NewQueryRunner(dsSvc, factory, opts, logger),
	}
	env.exec(t,
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT NOT NULL)",
		"INSERT INTO customers (id, name, region) VALUES (1, 'Ada', 'EU'), (2, 'Grace', 'US'), (3, 'O''Brien', 'EU')",
	)
	return env
}

func (e *testEnv) exec(t *testing.T, statements ...string) {
	t.Helper()
	ds, err := e.datasources.Get("local")
	require.NoError(t, err)
	executor, err := e.factory.NewQueryExecutor(context.Background(), ds)
	require.NoError(t, err)
	defer executor.Close()
	for _, stmt := range statements {
		_, err := executor.Query(context.Background(), stmt)
		require.NoError(t, err)
	}
}

func printfQuery(name, sql string) *models.QueryDefinition {
	return &models.QueryDefinition{Name: name, SQL: sql, Database: "local", Syntax: models.SyntaxPrintf}
}

func templateQuery(name, sql string) *models.QueryDefinition {
	return &models.QueryDefinition{Name: name, SQL: sql, Database: "local", Syntax: models.SyntaxTemplate}
}

func rowValue(t *testing.T, row models.Row, column string) any {
	t.Helper()
	v, ok := row.Get(column)
	require.True(t, ok, "column %s missing", column)
	return v
}
