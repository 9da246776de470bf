package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
)

// QueryExecutor provides MySQL query execution.
type QueryExecutor struct {
	db      *sql.DB
	ownedDB bool
}

// NewQueryExecutor creates a MySQL query executor using the connection manager.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*QueryExecutor, error) {
	db, owned, err := openDB(ctx, cfg, connMgr, databaseID)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{db: db, ownedDB: owned}, nil
}

// Query runs sqlQuery as given and returns every row in column order.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanSQLRows(rows, convertValue)
}

// Close releases the executor (but NOT the DB if managed).
func (e *QueryExecutor) Close() error {
	if e.ownedDB && e.db != nil {
		return e.db.Close()
	}
	return nil
}

func convertValue(column *sql.ColumnType, value any) (any, bool) {
	return convertTypedValue(column.DatabaseTypeName(), value)
}

// convertTypedValue turns DECIMAL text into numbers and leaves the rest to
// datasource.NormalizeValue.
func convertTypedValue(typeName string, value any) (any, bool) {
	b, ok := value.([]byte)
	if !ok {
		return nil, false
	}
	switch strings.ToUpper(typeName) {
	case "DECIMAL", "UNSIGNED DECIMAL":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f, true
		}
	}
	return nil, false
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
