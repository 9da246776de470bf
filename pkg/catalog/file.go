package catalog

// File is the on-disk layout of a catalog.
type File struct {
	Queries   []QueryEntry    `yaml:"queries"`
	Endpoints []EndpointEntry `yaml:"endpoints"`
	Views     []ViewEntry     `yaml:"views"`
}

// QueryEntry declares a query definition. Syntax is "printf" (default) or "template".
type QueryEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Database    string `yaml:"database"`
	Syntax      string `yaml:"syntax"`
	SQL         string `yaml:"sql"`
}

// EndpointEntry exposes queries under a URL.
type EndpointEntry struct {
	URL            string         `yaml:"url"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	RequiredGroups []string       `yaml:"required_groups"`
	Queries        []BindingEntry `yaml:"queries"`
}

// BindingEntry binds a query into an endpoint under Key.
type BindingEntry struct {
	Key       string `yaml:"key"`
	Query     string `yaml:"query"`
	ReturnOne bool   `yaml:"return_one"`
	// CacheTimeoutSeconds enables result caching when positive.
	CacheTimeoutSeconds int `yaml:"cache_timeout_seconds"`
}

// ViewEntry runs an endpoint with stored params.
type ViewEntry struct {
	URL            string         `yaml:"url"`
	Endpoint       string         `yaml:"endpoint"`
	ResponseType   string         `yaml:"response_type"`
	Template       string         `yaml:"template"`
	Params         map[string]any `yaml:"params"`
	RequiredGroups []string       `yaml:"required_groups"`
}
