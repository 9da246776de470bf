package services

import (
	"context"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	hangarsql "github.com/ekaya-inc/ekaya-hangar/pkg/sql"
)

// EndpointResult is the response body of an endpoint run. Both maps are
// keyed by binding key in binding order.
type EndpointResult struct {
	Queries *orderedmap.OrderedMap[string, string] `json:"queries"`
	Results *orderedmap.OrderedMap[string, any]    `json:"results"`
}

// EndpointService runs endpoints and describes their parameters.
type EndpointService interface {
	// Run executes every query bound to the endpoint with the same params.
	// The first failing binding aborts the run.
	Run(ctx context.Context, endpoint *models.Endpoint, params map[string]any) (*EndpointResult, error)

	// Variables returns the sorted, de-duplicated tagged variable names
	// accepted by the endpoint's queries.
	Variables(endpoint *models.Endpoint) ([]string, error)
}

type endpointService struct {
	runner ResultRunner
	logger *zap.Logger
}

// ResultRunner is the part of the query layer an endpoint needs.
type ResultRunner struct {
	Queries QueryRunner
	// Cache may be nil, in which case cache timeouts are ignored.
	Cache ResultCache
}

// NewEndpointService creates an endpoint service.
func NewEndpointService(runner ResultRunner, logger *zap.Logger) EndpointService {
	return &endpointService{
		runner: runner,
		logger: logger.Named("endpoint"),
	}
}

func (s *endpointService) Run(ctx context.Context, endpoint *models.Endpoint, params map[string]any) (*EndpointResult, error) {
	out := &EndpointResult{
		Queries: orderedmap.New[string, string](),
		Results: orderedmap.New[string, any](),
	}

	for _, binding := range endpoint.Queries {
		result, err := s.runBinding(ctx, binding, params)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s, key %s: %w", endpoint.URL, binding.Key, err)
		}
		out.Queries.Set(binding.Key, result.SQL)
		out.Results.Set(binding.Key, result.Payload())
	}

	return out, nil
}

func (s *endpointService) runBinding(ctx context.Context, binding *models.EndpointQuery, params map[string]any) (*models.ExecutionResult, error) {
	compute := func(ctx context.Context) (*models.ExecutionResult, error) {
		return s.runner.Queries.Run(ctx, binding.Query, binding.ReturnOne, params)
	}

	if !binding.Cached() || s.runner.Cache == nil {
		return compute(ctx)
	}

	result, hit, err := s.runner.Cache.Run(ctx, binding.ID, binding.CacheTimeout, params, compute)
	if err != nil {
		return nil, err
	}
	if hit {
		s.logger.Debug("Served binding from cache",
			zap.String("key", binding.Key),
			zap.String("binding_id", binding.ID.String()))
	}
	return result, nil
}

func (s *endpointService) Variables(endpoint *models.Endpoint) ([]string, error) {
	seen := make(map[string]bool)
	for _, binding := range endpoint.Queries {
		vars, err := hangarsql.GetVariables(binding.Query, hangarsql.ExtractOptions{})
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			seen[v.String()] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CheckPermission verifies that every required group is among the caller's
// groups. The error names the first missing group.
func CheckPermission(required, groups []string) error {
	if len(required) == 0 {
		return nil
	}
	member := make(map[string]bool, len(groups))
	for _, g := range groups {
		member[g] = true
	}
	for _, g := range required {
		if !member[g] {
			return fmt.Errorf("%w: requires group %s", apperrors.ErrForbidden, g)
		}
	}
	return nil
}

var _ EndpointService = (*endpointService)(nil)
