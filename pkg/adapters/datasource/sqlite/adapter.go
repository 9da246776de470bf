package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
)

// DatabaseType is the registry key of this adapter.
const DatabaseType = "sqlite"

const driverName = "sqlite"

// Adapter provides SQLite connectivity.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
}

// buildDSN renders cfg as a modernc.org/sqlite DSN. In-memory databases get
// a shared cache named after the database so every pooled connection sees
// the same data.
func buildDSN(cfg *Config, databaseID string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))

	path := cfg.Path
	if path == ":memory:" {
		path = "file:" + url.PathEscape(databaseID)
		params.Set("mode", "memory")
		params.Set("cache", "shared")
	} else {
		if !strings.HasPrefix(path, "file:") {
			path = "file:" + path
		}
		if cfg.ReadOnly {
			params.Set("mode", "ro")
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

func openDB(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*sql.DB, bool, error) {
	dsn := buildDSN(cfg, databaseID)

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
		return nil, false, fmt.Errorf("failed to extract sqlite db: %w", err)
	}
	return db, false, nil
}

// NewAdapter creates a SQLite adapter. If connMgr is nil the adapter owns a
// private pool.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, databaseID string) (*Adapter, error) {
	db, owned, err := openDB(ctx, cfg, connMgr, databaseID)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db, ownedDB: owned}, nil
}

// TestConnection verifies the database file can be opened and read.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var version string
	if err := a.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("test query failed: %w", err)
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
