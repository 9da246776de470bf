package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/cache"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// resultKeyPrefix namespaces endpoint results in a shared cache store.
const resultKeyPrefix = "hangar.endpoint_query."

// ResultCache memoizes query results per endpoint binding and parameter set.
type ResultCache interface {
	// Run returns the cached result for (bindingID, params) when one is
	// stored, otherwise calls compute and stores its result for ttl.
	// hit reports whether compute was skipped.
	Run(ctx context.Context, bindingID uuid.UUID, ttl time.Duration, params map[string]any,
		compute func(ctx context.Context) (*models.ExecutionResult, error)) (result *models.ExecutionResult, hit bool, err error)
}

type resultCache struct {
	store  cache.Store
	logger *zap.Logger
}

// NewResultCache creates a result cache on top of a store.
func NewResultCache(store cache.Store, logger *zap.Logger) ResultCache {
	return &resultCache{
		store:  store,
		logger: logger.Named("result-cache"),
	}
}

// ResultCacheKey builds the store key for a binding and its parameters:
// hangar.endpoint_query.<binding-id>.<xxhash64 of the parameters' JSON>.
// encoding/json writes map keys sorted, so equal parameter sets always hash
// the same.
func ResultCacheKey(bindingID uuid.UUID, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key params: %w", err)
	}
	return resultKeyPrefix + bindingID.String() + "." + strconv.FormatUint(xxhash.Sum64(canonical), 16), nil
}

func (c *resultCache) Run(
	ctx context.Context,
	bindingID uuid.UUID,
	ttl time.Duration,
	params map[string]any,
	compute func(ctx context.Context) (*models.ExecutionResult, error),
) (*models.ExecutionResult, bool, error) {
	key, err := ResultCacheKey(bindingID, params)
	if err != nil {
		return nil, false, err
	}

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("result cache lookup: %w", err)
	}
	if ok {
		result, decodeErr := decodeResult(cached)
		if decodeErr == nil {
			c.logger.Debug("Result cache hit", zap.String("key", key))
			return result, true, nil
		}
		// Entries written by an incompatible version are recomputed.
		c.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(decodeErr))
	}

	result, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	encoded, err := encodeResult(result)
	if err != nil {
		// NaN and other values JSON cannot carry are served uncached.
		c.logger.Warn("Result not cacheable", zap.String("key", key), zap.Error(err))
		return result, false, nil
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		return nil, false, fmt.Errorf("result cache store: %w", err)
	}
	return result, false, nil
}

var _ ResultCache = (*resultCache)(nil)
