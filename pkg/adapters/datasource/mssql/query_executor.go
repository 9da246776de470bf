package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
)

// QueryExecutor provides SQL Server query execution.
type QueryExecutor struct {
	db      *sql.DB
	ownedDB bool
}

// NewQueryExecutor creates a SQL Server query executor using the connection manager.
// If connMgr is nil, creates an unmanaged pool.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*QueryExecutor, error) {
	db, owned, err := openDB(ctx, cfg, connMgr, databaseID)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{
		db:      db,
		ownedDB: owned,
	}, nil
}

// Query runs sqlQuery as given and returns every row in column order.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result, err := datasource.ScanSQLRows(rows, convertValue)
	if err != nil {
		return nil, err
	}
	for i := range result.Columns {
		result.Columns[i].Type = mapSQLServerType(result.Columns[i].Type)
	}
	return result, nil
}

// Close releases the executor (but NOT the DB if managed).
func (e *QueryExecutor) Close() error {
	if e.ownedDB && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
