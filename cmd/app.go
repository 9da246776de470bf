package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/catalog"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
	"github.com/ekaya-inc/ekaya-hangar/pkg/services"
)

// app holds the components every command shares.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	connMgr     *datasource.ConnectionManager
	factory     datasource.DatasourceAdapterFactory
	datasources services.DatasourceService
	catalog     *catalog.Catalog
	queries     services.QueryRunner
}

// newApp loads configuration and the catalog and wires the query layer.
func newApp() (*app, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   cfg.Datasource.ConnectionTTLMinutes,
		MaxPools:     cfg.Datasource.MaxPools,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	factory := datasource.NewDatasourceAdapterFactory(connMgr)

	a := &app{cfg: cfg, logger: logger, connMgr: connMgr, factory: factory}

	a.datasources, err = services.NewDatasourceService(cfg.Databases, factory, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.catalog, err = catalog.Load(cfg.CatalogPath, catalog.Options{Databases: a.datasources.IDs()})
	if err != nil {
		a.close()
		return nil, err
	}

	a.queries = services.NewQueryRunner(a.datasources, factory, services.QueryRunnerOptions{
		ScreenInjection: cfg.ScreenInjection,
		SingleStatement: cfg.SingleStatement,
	}, logger)

	logger.Debug("Catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("queries", len(a.catalog.QueryNames())),
		zap.Int("endpoints", len(a.catalog.EndpointURLs())),
		zap.Int("views", len(a.catalog.ViewURLs())))

	return a, nil
}

func (a *app) close() {
	if err := a.connMgr.Close(); err != nil {
		a.logger.Error("Failed to close connection manager", zap.Error(err))
	}
	// Sync fails on console outputs; nothing useful to do about it.
	_ = a.logger.Sync()
}

// checkDatabases logs unreachable databases without failing startup.
func (a *app) checkDatabases(ctx context.Context) {
	for id, err := range a.datasources.TestAll(ctx) {
		a.logger.Warn("Database unreachable at startup",
			zap.String("database", id),
			zap.String("error", logging.SanitizeError(err)))
	}
}
