package models

// Datasource is a configured database connection addressed by its ID.
// Config holds driver-specific connection options (host, credentials, path, ...).
type Datasource struct {
	ID             string         `json:"id"`
	DatasourceType string         `json:"datasource_type"` // "postgres", "mssql", "mysql", "sqlite"
	Config         map[string]any `json:"-"`
}
