package datasource

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// ValueConverter converts a raw scanned value for one column. Adapters use it
// for driver-specific types; returning handled=false falls back to NormalizeValue.
type ValueConverter func(column *sql.ColumnType, value any) (converted any, handled bool)

// ScanSQLRows reads every row of a database/sql result into ordered rows.
// Column order follows the result set. A repeated column name keeps its first
// position and the last value.
func ScanSQLRows(rows *sql.Rows, convert ValueConverter) (*QueryExecutionResult, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ColumnInfo{
			Name: ct.Name(),
			Type: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	resultRows := make([]models.Row, 0)
	for rows.Next() {
		for i := range values {
			values[i] = nil
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := models.NewRow()
		for i, col := range columns {
			value := values[i]
			if converted, ok := convertValue(convert, columnTypes[i], value); ok {
				value = converted
			} else {
				value = NormalizeValue(col.Type, value)
			}
			row.Set(col.Name, value)
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

func convertValue(convert ValueConverter, ct *sql.ColumnType, value any) (any, bool) {
	if convert == nil {
		return nil, false
	}
	return convert(ct, value)
}

// NormalizeValue converts driver values into JSON-friendly Go values.
//
// Byte slices become numbers for integer and floating point columns and
// strings otherwise. 16-byte arrays are UUIDs. Everything else passes through.
func NormalizeValue(dbType string, value any) any {
	switch v := value.(type) {
	case []byte:
		return bytesValue(dbType, v)
	case [16]byte:
		return uuid.UUID(v).String()
	default:
		return value
	}
}

func bytesValue(dbType string, b []byte) any {
	s := string(b)
	switch {
	case isIntegerType(dbType):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case isFloatType(dbType):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func isIntegerType(dbType string) bool {
	switch strings.TrimPrefix(dbType, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "INT2", "INT4", "INT8", "YEAR":
		return true
	}
	return false
}

func isFloatType(dbType string) bool {
	switch dbType {
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return true
	}
	return false
}
