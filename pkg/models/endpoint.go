package models

import (
	"time"

	"github.com/google/uuid"
)

// EndpointQuery binds a query definition into an endpoint under a result key.
type EndpointQuery struct {
	ID        uuid.UUID
	Key       string
	Query     *QueryDefinition
	ReturnOne bool
	// CacheTimeout enables result caching when positive.
	CacheTimeout time.Duration
}

// Cached reports whether results of this binding are cached.
func (q *EndpointQuery) Cached() bool {
	return q.CacheTimeout > 0
}

// Endpoint exposes one or more queries under a URL.
type Endpoint struct {
	URL            string
	Name           string
	Description    string
	Queries        []*EndpointQuery
	RequiredGroups []string
}

// PrebuiltView runs an endpoint with stored parameters under its own URL.
type PrebuiltView struct {
	URL            string
	Endpoint       *Endpoint
	ResponseType   string
	Template       string
	Params         map[string]any
	RequiredGroups []string
}
