package sqlite

import (
	"context"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        DatabaseType,
			DisplayName: "SQLite",
			Description: "SQLite 3 database files",
		},
		Factory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, databaseID string) (datasource.ConnectionTester, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, connMgr, databaseID)
		},
		QueryExecutorFactory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, databaseID string) (datasource.QueryExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewQueryExecutor(ctx, cfg, connMgr, databaseID)
		},
	})
}
