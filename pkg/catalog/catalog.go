// Package catalog loads the administrator-maintained set of queries,
// endpoints and prebuilt views from a YAML file.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	hangarsql "github.com/ekaya-inc/ekaya-hangar/pkg/sql"
)

// Response types a view may render.
const (
	ResponseJSON = "json"
	ResponseHTML = "html"
)

// bindingNamespace scopes binding ids so they never collide with other
// SHA1 UUIDs derived from the same URL.
var bindingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ekaya.ai/hangar/endpoint-query"))

// Options control catalog validation.
type Options struct {
	// Databases lists the configured database ids. When non-nil, a query
	// naming any other database is rejected.
	Databases []string
}

// Catalog is an immutable, validated set of queries, endpoints and views.
type Catalog struct {
	queries   map[string]*models.QueryDefinition
	endpoints map[string]*models.Endpoint
	views     map[string]*models.PrebuiltView
}

// Load reads and validates the catalog file at path.
func Load(path string, opts Options) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a catalog document. Unknown keys are errors.
func Parse(data []byte, opts Options) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return Build(&file, opts)
}

// Build validates a decoded catalog and links its references.
func Build(file *File, opts Options) (*Catalog, error) {
	var databases map[string]bool
	if opts.Databases != nil {
		databases = make(map[string]bool, len(opts.Databases))
		for _, id := range opts.Databases {
			databases[id] = true
		}
	}

	cat := &Catalog{
		queries:   make(map[string]*models.QueryDefinition, len(file.Queries)),
		endpoints: make(map[string]*models.Endpoint, len(file.Endpoints)),
		views:     make(map[string]*models.PrebuiltView, len(file.Views)),
	}

	for i, entry := range file.Queries {
		def, err := buildQuery(entry, databases)
		if err != nil {
			return nil, fmt.Errorf("queries[%d]: %w", i, err)
		}
		if _, dup := cat.queries[def.Name]; dup {
			return nil, fmt.Errorf("queries[%d]: duplicate query name %q", i, def.Name)
		}
		cat.queries[def.Name] = def
	}

	for i, entry := range file.Endpoints {
		endpoint, err := cat.buildEndpoint(entry)
		if err != nil {
			return nil, fmt.Errorf("endpoints[%d]: %w", i, err)
		}
		if _, dup := cat.endpoints[endpoint.URL]; dup {
			return nil, fmt.Errorf("endpoints[%d]: duplicate endpoint url %q", i, endpoint.URL)
		}
		cat.endpoints[endpoint.URL] = endpoint
	}

	for i, entry := range file.Views {
		view, err := cat.buildView(entry)
		if err != nil {
			return nil, fmt.Errorf("views[%d]: %w", i, err)
		}
		if _, dup := cat.views[view.URL]; dup {
			return nil, fmt.Errorf("views[%d]: duplicate view url %q", i, view.URL)
		}
		cat.views[view.URL] = view
	}

	return cat, nil
}

func buildQuery(entry QueryEntry, databases map[string]bool) (*models.QueryDefinition, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return nil, fmt.Errorf("query name is required")
	}
	if strings.TrimSpace(entry.SQL) == "" {
		return nil, fmt.Errorf("query %q: sql is required", name)
	}
	if entry.Database == "" {
		return nil, fmt.Errorf("query %q: database is required", name)
	}
	if databases != nil && !databases[entry.Database] {
		return nil, fmt.Errorf("query %q: %w: %s", name, apperrors.ErrUnknownDatabase, entry.Database)
	}

	var mode models.SyntaxMode
	if err := mode.UnmarshalText([]byte(entry.Syntax)); err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}

	def := &models.QueryDefinition{
		Name:        name,
		Description: entry.Description,
		SQL:         entry.SQL,
		Database:    entry.Database,
		Syntax:      mode,
	}
	if err := hangarsql.ValidateDefinition(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (c *Catalog) buildEndpoint(entry EndpointEntry) (*models.Endpoint, error) {
	url := NormalizeURL(entry.URL)
	if url == "" {
		return nil, fmt.Errorf("endpoint url is required")
	}
	if len(entry.Queries) == 0 {
		return nil, fmt.Errorf("endpoint %q: at least one query is required", url)
	}

	endpoint := &models.Endpoint{
		URL:            url,
		Name:           entry.Name,
		Description:    entry.Description,
		RequiredGroups: entry.RequiredGroups,
		Queries:        make([]*models.EndpointQuery, 0, len(entry.Queries)),
	}

	keys := make(map[string]bool, len(entry.Queries))
	for _, b := range entry.Queries {
		if b.Key == "" {
			return nil, fmt.Errorf("endpoint %q: binding key is required", url)
		}
		if keys[b.Key] {
			return nil, fmt.Errorf("endpoint %q: duplicate key %q", url, b.Key)
		}
		keys[b.Key] = true

		def, ok := c.queries[b.Query]
		if !ok {
			return nil, fmt.Errorf("endpoint %q key %q: unknown query %q", url, b.Key, b.Query)
		}
		if b.CacheTimeoutSeconds < 0 {
			return nil, fmt.Errorf("endpoint %q key %q: cache_timeout_seconds must not be negative", url, b.Key)
		}

		endpoint.Queries = append(endpoint.Queries, &models.EndpointQuery{
			ID:           BindingID(url, b.Key),
			Key:          b.Key,
			Query:        def,
			ReturnOne:    b.ReturnOne,
			CacheTimeout: time.Duration(b.CacheTimeoutSeconds) * time.Second,
		})
	}
	return endpoint, nil
}

func (c *Catalog) buildView(entry ViewEntry) (*models.PrebuiltView, error) {
	url := NormalizeURL(entry.URL)
	if url == "" {
		return nil, fmt.Errorf("view url is required")
	}
	endpoint, ok := c.endpoints[NormalizeURL(entry.Endpoint)]
	if !ok {
		return nil, fmt.Errorf("view %q: unknown endpoint %q", url, entry.Endpoint)
	}

	responseType := strings.ToLower(entry.ResponseType)
	switch responseType {
	case "":
		responseType = ResponseJSON
	case ResponseJSON, ResponseHTML:
	default:
		return nil, fmt.Errorf("view %q: unknown response_type %q (expected json or html)", url, entry.ResponseType)
	}

	params := entry.Params
	if params == nil {
		params = map[string]any{}
	}

	return &models.PrebuiltView{
		URL:            url,
		Endpoint:       endpoint,
		ResponseType:   responseType,
		Template:       entry.Template,
		Params:         params,
		RequiredGroups: entry.RequiredGroups,
	}, nil
}

// BindingID derives the stable id of an endpoint binding. Cached results
// are keyed by it, so it survives restarts and catalog reordering.
func BindingID(url, key string) uuid.UUID {
	return uuid.NewSHA1(bindingNamespace, []byte(NormalizeURL(url)+"/"+key))
}

// NormalizeURL trims surrounding whitespace and slashes from an endpoint or view URL.
func NormalizeURL(url string) string {
	return strings.Trim(strings.TrimSpace(url), "/")
}

// Query returns the query definition with the given name.
func (c *Catalog) Query(name string) (*models.QueryDefinition, error) {
	def, ok := c.queries[name]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", name, apperrors.ErrNotFound)
	}
	return def, nil
}

// Endpoint returns the endpoint served at url.
func (c *Catalog) Endpoint(url string) (*models.Endpoint, error) {
	endpoint, ok := c.endpoints[NormalizeURL(url)]
	if !ok {
		return nil, fmt.Errorf("endpoint %q: %w", url, apperrors.ErrNotFound)
	}
	return endpoint, nil
}

// View returns the prebuilt view served at url.
func (c *Catalog) View(url string) (*models.PrebuiltView, error) {
	view, ok := c.views[NormalizeURL(url)]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", url, apperrors.ErrNotFound)
	}
	return view, nil
}

// LongestCacheTimeout returns the longest cache_timeout_seconds of any
// endpoint binding, or zero when nothing is cached.
func (c *Catalog) LongestCacheTimeout() time.Duration {
	var longest time.Duration
	for _, endpoint := range c.endpoints {
		for _, binding := range endpoint.Queries {
			longest = max(longest, binding.CacheTimeout)
		}
	}
	return longest
}

// QueryNames returns all query names, sorted.
func (c *Catalog) QueryNames() []string {
	return sortedKeys(c.queries)
}

// EndpointURLs returns all endpoint URLs, sorted.
func (c *Catalog) EndpointURLs() []string {
	return sortedKeys(c.endpoints)
}

// ViewURLs returns all view URLs, sorted.
func (c *Catalog) ViewURLs() []string {
	return sortedKeys(c.views)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
