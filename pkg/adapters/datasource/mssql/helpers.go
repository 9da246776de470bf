package mssql

import (
	"database/sql"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
)

// convertValue handles the SQL Server types that database/sql hands back as
// raw bytes: UNIQUEIDENTIFIER in SQL Server byte order and the decimal family
// as text.
func convertValue(column *sql.ColumnType, value any) (any, bool) {
	return convertTypedValue(column.DatabaseTypeName(), value)
}

func convertTypedValue(typeName string, value any) (any, bool) {
	b, ok := value.([]byte)
	if !ok {
		return nil, false
	}

	switch strings.ToUpper(typeName) {
	case "UNIQUEIDENTIFIER":
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err != nil {
			return nil, false
		}
		return id.String(), true
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f, true
		}
		return string(b), true
	}
	return nil, false
}

// mapSQLServerType maps SQL Server type names to standard type names.
func mapSQLServerType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	case "INT":
		return "INTEGER"

	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"

	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"

	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"

	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"

	case "BIT":
		return "BOOLEAN"

	case "UNIQUEIDENTIFIER":
		return "UUID"

	default:
		return sqlServerType
	}
}
