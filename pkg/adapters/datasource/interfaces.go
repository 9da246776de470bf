package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// ConnectionTester tests database connectivity.
// Each implementation must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the adapter. Managed pools stay open.
	Close() error
}

// QueryExecutor runs rendered SQL against a database.
//
// The SQL is sent exactly as given: no wrapping, no limit and no bound
// parameters. Every row is fetched.
type QueryExecutor interface {
	// Query runs sqlQuery and returns all rows in result-set column order.
	Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error)

	// Close releases the executor. Managed pools stay open.
	Close() error
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo `json:"columns"`
	Rows     []models.Row `json:"rows"`
	RowCount int          `json:"row_count"`
}
