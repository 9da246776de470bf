package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// NewConnectionTester creates a connection tester for the datasource.
	NewConnectionTester(ctx context.Context, ds *models.Datasource) (ConnectionTester, error)

	// NewQueryExecutor creates a query executor for the datasource.
	NewQueryExecutor(ctx context.Context, ds *models.Datasource) (QueryExecutor, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
func NewDatasourceAdapterFactory(connMgr *ConnectionManager) DatasourceAdapterFactory {
	return &registryFactory{
		connMgr: connMgr,
	}
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, ds *models.Datasource) (ConnectionTester, error) {
	factory := GetFactory(ds.DatasourceType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", ds.DatasourceType)
	}
	return factory(ctx, ds.Config, f.connMgr, ds.ID)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, ds *models.Datasource) (QueryExecutor, error) {
	factory := GetQueryExecutorFactory(ds.DatasourceType)
	if factory == nil {
		return nil, fmt.Errorf("query execution not supported for type: %s", ds.DatasourceType)
	}
	return factory(ctx, ds.Config, f.connMgr, ds.ID)
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
