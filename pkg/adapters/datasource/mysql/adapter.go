package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
)

// DatabaseType is the registry key of this adapter.
const DatabaseType = "mysql"

// Adapter provides MySQL connectivity.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
}

// buildDSN renders cfg as a go-sql-driver DSN. Time columns are parsed into
// time.Time so they serialize as timestamps.
func buildDSN(cfg *Config) (string, error) {
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}

	dsn := mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.Timeout = cfg.ConnectionTimeout
	dsn.TLSConfig = cfg.TLS
	return dsn.FormatDSN(), nil
}

func openDB(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*sql.DB, bool, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, false, err
	}

	if connMgr == nil {
		connector, err := datasource.OpenSQLPool(ctx, "mysql", dsn, DatabaseType, datasource.ConnectionManagerConfig{})
		if err != nil {
			return nil, false, err
		}
		db, err := datasource.GetSQLDB(connector)
		return db, true, err
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, DatabaseType, databaseID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.OpenSQLPool(ctx, "mysql", dsn, DatabaseType, connMgr.Config())
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, false, fmt.Errorf("failed to extract mysql db: %w", err)
	}
	return db, false, nil
}

// NewAdapter creates a MySQL adapter. If connMgr is nil the adapter owns a
// private pool.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*Adapter, error) {
	db, owned, err := openDB(ctx, cfg, connMgr, databaseID)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db, ownedDB: owned}, nil
}

// TestConnection verifies the database is reachable and the session uses
// the configured schema.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if a.config.Database != "" && currentDB.String != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB.String)
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

var _ datasource.ConnectionTester = (*Adapter)(nil)
