package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

const sampleCatalog = `
queries:
  - name: customers_by_region
    description: Customers in a region
    database: sales
    sql: |
      SELECT id, name
      FROM customers
      WHERE region = '%(region)s'
  - name: orders_for
    database: sales
    syntax: template
    sql: SELECT * FROM orders WHERE customer_id IN {{ list:int:ids }}

endpoints:
  - url: /customers/by-region/
    name: Customers by region
    required_groups: [sales]
    queries:
      - key: customers
        query: customers_by_region
        cache_timeout_seconds: 60
      - key: orders
        query: orders_for
        return_one: true

views:
  - url: eu-customers
    endpoint: customers/by-region
    response_type: HTML
    template: customers.html
    params:
      region: EU
      ids: [1, 2]
`

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog), Options{Databases: []string{"sales"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"customers_by_region", "orders_for"}, cat.QueryNames())
	assert.Equal(t, []string{"customers/by-region"}, cat.EndpointURLs())
	assert.Equal(t, []string{"eu-customers"}, cat.ViewURLs())
	assert.Equal(t, 60*time.Second, cat.LongestCacheTimeout())

	def, err := cat.Query("orders_for")
	require.NoError(t, err)
	assert.Equal(t, models.SyntaxTemplate, def.Syntax)

	endpoint, err := cat.Endpoint("customers/by-region/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, endpoint.RequiredGroups)
	require.Len(t, endpoint.Queries, 2)

	first := endpoint.Queries[0]
	assert.Equal(t, "customers", first.Key)
	assert.Equal(t, 60*time.Second, first.CacheTimeout)
	assert.True(t, first.Cached())
	assert.Equal(t, BindingID("customers/by-region", "customers"), first.ID)
	assert.Same(t, cat.queries["customers_by_region"], first.Query)

	second := endpoint.Queries[1]
	assert.True(t, second.ReturnOne)
	assert.False(t, second.Cached())
	assert.NotEqual(t, first.ID, second.ID)

	view, err := cat.View("/eu-customers")
	require.NoError(t, err)
	assert.Same(t, endpoint, view.Endpoint)
	assert.Equal(t, ResponseHTML, view.ResponseType)
	assert.Equal(t, "customers.html", view.Template)
	assert.Equal(t, "EU", view.Params["region"])
	assert.Equal(t, []any{1, 2}, view.Params["ids"])
}

func TestBindingID_Stable(t *testing.T) {
	assert.Equal(t, BindingID("a/b", "rows"), BindingID("/a/b/", "rows"))
	assert.NotEqual(t, BindingID("a/b", "rows"), BindingID("a/b", "total"))
	assert.Equal(t, uint8(5), uint8(BindingID("a/b", "rows").Version()))
}

func TestLookupNotFound(t *testing.T) {
	cat, err := Parse([]byte(""), Options{})
	require.NoError(t, err)

	_, err = cat.Query("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = cat.Endpoint("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = cat.View("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		opts    Options
		wantErr string
		is      error
	}{
		{
			name:    "unknown field",
			yaml:    "queries:\n  - name: q\n    database: d\n    sql: SELECT 1\n    timeout: 5\n",
			wantErr: "field timeout not found",
		},
		{
			name:    "missing sql",
			yaml:    "queries:\n  - name: q\n    database: d\n",
			wantErr: "sql is required",
		},
		{
			name:    "unknown database",
			yaml:    "queries:\n  - name: q\n    database: other\n    sql: SELECT 1\n",
			opts:    Options{Databases: []string{"sales"}},
			is:      apperrors.ErrUnknownDatabase,
		},
		{
			name:    "unknown syntax",
			yaml:    "queries:\n  - name: q\n    database: d\n    syntax: jinja\n    sql: SELECT 1\n",
			wantErr: "unknown syntax mode",
		},
		{
			name:    "duplicate query",
			yaml:    "queries:\n  - {name: q, database: d, sql: SELECT 1}\n  - {name: q, database: d, sql: SELECT 2}\n",
			wantErr: "duplicate query name",
		},
		{
			name: "conflicting template tags",
			yaml: "queries:\n  - name: q\n    database: d\n    syntax: template\n    sql: SELECT {{ int:id }}, {{ list:id }}\n",
			is:   apperrors.ErrAmbiguousVariable,
		},
		{
			name: "conflicting printf types",
			yaml: "queries:\n  - name: q\n    database: d\n    sql: SELECT %(id)d, %(id)s\n",
			is:   apperrors.ErrAmbiguousVariable,
		},
		{
			name:    "unknown query in endpoint",
			yaml:    "endpoints:\n  - url: e\n    queries:\n      - {key: k, query: missing}\n",
			wantErr: `unknown query "missing"`,
		},
		{
			name:    "endpoint without queries",
			yaml:    "endpoints:\n  - url: e\n",
			wantErr: "at least one query",
		},
		{
			name: "duplicate binding key",
			yaml: "queries:\n  - {name: q, database: d, sql: SELECT 1}\n" +
				"endpoints:\n  - url: e\n    queries:\n      - {key: k, query: q}\n      - {key: k, query: q}\n",
			wantErr: `duplicate key "k"`,
		},
		{
			name: "duplicate endpoint url",
			yaml: "queries:\n  - {name: q, database: d, sql: SELECT 1}\n" +
				"endpoints:\n  - url: e\n    queries: [{key: k, query: q}]\n  - url: /e/\n    queries: [{key: k, query: q}]\n",
			wantErr: "duplicate endpoint url",
		},
		{
			name: "negative cache timeout",
			yaml: "queries:\n  - {name: q, database: d, sql: SELECT 1}\n" +
				"endpoints:\n  - url: e\n    queries: [{key: k, query: q, cache_timeout_seconds: -1}]\n",
			wantErr: "must not be negative",
		},
		{
			name:    "unknown endpoint in view",
			yaml:    "views:\n  - url: v\n    endpoint: nowhere\n",
			wantErr: `unknown endpoint "nowhere"`,
		},
		{
			name: "bad response type",
			yaml: "queries:\n  - {name: q, database: d, sql: SELECT 1}\n" +
				"endpoints:\n  - url: e\n    queries: [{key: k, query: q}]\n" +
				"views:\n  - {url: v, endpoint: e, response_type: csv}\n",
			wantErr: "unknown response_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), tt.opts)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	cat, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Len(t, cat.QueryNames(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), Options{})
	assert.ErrorContains(t, err, "failed to read catalog")
}

func TestLongestCacheTimeout(t *testing.T) {
	src := `
queries:
  - {name: q, database: sales, sql: SELECT 1}
endpoints:
  - url: daily
    queries:
      - {key: a, query: q, cache_timeout_seconds: 3600}
      - {key: b, query: q, cache_timeout_seconds: 172800}
  - url: live
    queries:
      - {key: a, query: q}
`
	cat, err := Parse([]byte(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cat.LongestCacheTimeout())

	empty, err := Parse([]byte("queries: []\n"), Options{})
	require.NoError(t, err)
	assert.Zero(t, empty.LongestCacheTimeout())
}
