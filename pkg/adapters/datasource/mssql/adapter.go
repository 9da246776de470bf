package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	"github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
)

// DatabaseType is the registry key of this adapter.
const DatabaseType = "mssql"

// Adapter provides SQL Server connectivity.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we created the DB (for TestConnection case)
}

// driverAndDSN returns the database/sql driver name and connection URL for cfg.
// Service principals go through the azuresql driver with fedauth.
func driverAndDSN(cfg *Config) (string, string, error) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	switch cfg.AuthMethod {
	case AuthSQL:
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", host, cfg.Port),
			RawQuery: query.Encode(),
		}
		return "sqlserver", u.String(), nil
	case AuthServicePrincipal:
		query.Add("fedauth", azuread.ActiveDirectoryServicePrincipal)
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		u := &url.URL{
			Scheme:   "sqlserver",
			Host:     fmt.Sprintf("%s:%d", host, cfg.Port),
			RawQuery: query.Encode(),
		}
		return azuread.DriverName, u.String(), nil
	default:
		return "", "", fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// openDB returns the pool for databaseID, shared through connMgr when given.
func openDB(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*sql.DB, bool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid config: %w", err)
	}

	driverName, dsn, err := driverAndDSN(cfg)
	if err != nil {
		return nil, false, err
	}

	if connMgr == nil {
		connector, err := datasource.OpenSQLPool(ctx, driverName, dsn, DatabaseType, datasource.ConnectionManagerConfig{})
		if err != nil {
			return nil, false, err
		}
		db, err := datasource.GetSQLDB(connector)
		return db, true, err
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, DatabaseType, databaseID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.OpenSQLPool(ctx, driverName, dsn, DatabaseType, connMgr.Config())
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, false, fmt.Errorf("failed to extract mssql db: %w", err)
	}
	return db, false, nil
}

// NewAdapter creates a SQL Server adapter. If connMgr is nil the adapter owns
// a private pool.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*Adapter, error) {
	db, owned, err := openDB(ctx, cfg, connMgr, databaseID)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		config:  cfg,
		db:      db,
		ownedDB: owned,
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials
// and that the session landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	// SQL Server database names are case-insensitive by default
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	return nil
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
