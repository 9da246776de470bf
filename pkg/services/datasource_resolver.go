package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// DatasourceService resolves the database ids named by queries into
// configured datasources.
type DatasourceService interface {
	// Get returns the datasource for a database id, or ErrUnknownDatabase.
	Get(databaseID string) (*models.Datasource, error)

	// IDs returns every configured database id, sorted.
	IDs() []string

	// TestConnection opens the database and verifies it is reachable.
	TestConnection(ctx context.Context, databaseID string) error

	// TestAll checks every configured database and returns the failures by id.
	TestAll(ctx context.Context) map[string]error
}

type datasourceService struct {
	datasources    map[string]*models.Datasource
	adapterFactory datasource.DatasourceAdapterFactory
	logger         *zap.Logger
}

// NewDatasourceService builds datasources from the configured databases.
// Credentials referenced through password_env are resolved here, so a
// missing secret fails at startup rather than on the first request.
func NewDatasourceService(
	databases map[string]config.DatabaseConfig,
	adapterFactory datasource.DatasourceAdapterFactory,
	logger *zap.Logger,
) (DatasourceService, error) {
	datasources := make(map[string]*models.Datasource, len(databases))
	for id, db := range databases {
		options, err := db.ConnectionOptions()
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", id, err)
		}
		if !datasource.IsRegistered(db.Type) {
			return nil, fmt.Errorf("database %q: unsupported datasource type: %s (not compiled in)", id, db.Type)
		}
		datasources[id] = &models.Datasource{
			ID:             id,
			DatasourceType: db.Type,
			Config:         options,
		}
	}

	return &datasourceService{
		datasources:    datasources,
		adapterFactory: adapterFactory,
		logger:         logger.Named("datasource"),
	}, nil
}

func (s *datasourceService) Get(databaseID string) (*models.Datasource, error) {
	ds, ok := s.datasources[databaseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDatabase, databaseID)
	}
	return ds, nil
}

func (s *datasourceService) IDs() []string {
	ids := make([]string, 0, len(s.datasources))
	for id := range s.datasources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *datasourceService) TestConnection(ctx context.Context, databaseID string) error {
	ds, err := s.Get(databaseID)
	if err != nil {
		return err
	}

	tester, err := s.adapterFactory.NewConnectionTester(ctx, ds)
	if err != nil {
		return fmt.Errorf("failed to create connection tester: %w", err)
	}
	defer tester.Close()

	if err := tester.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (s *datasourceService) TestAll(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, id := range s.IDs() {
		if err := s.TestConnection(ctx, id); err != nil {
			s.logger.Warn("Database connection check failed",
				zap.String("database", id),
				zap.String("type", s.datasources[id].DatasourceType),
				zap.String("error", logging.SanitizeError(err)))
			failures[id] = err
			continue
		}
		s.logger.Info("Database connection verified", zap.String("database", id))
	}
	return failures
}

var _ DatasourceService = (*datasourceService)(nil)
