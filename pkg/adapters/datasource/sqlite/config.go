package sqlite

import (
	"fmt"
	"time"
)

// Config contains SQLite connection options.
type Config struct {
	// Path is the database file, or ":memory:" for a private in-memory database.
	Path string

	ReadOnly    bool
	BusyTimeout time.Duration
}

// DefaultBusyTimeout returns how long a connection waits on a locked database.
func DefaultBusyTimeout() time.Duration {
	return 5 * time.Second
}

// FromMap creates a Config from a database entry's options.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{BusyTimeout: DefaultBusyTimeout()}

	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else if database, ok := config["database"].(string); ok && database != "" {
		cfg.Path = database
	} else {
		return nil, fmt.Errorf("path is required")
	}

	if readOnly, ok := config["read_only"].(bool); ok {
		cfg.ReadOnly = readOnly
	}

	switch timeout := config["busy_timeout_ms"].(type) {
	case int:
		cfg.BusyTimeout = time.Duration(timeout) * time.Millisecond
	case float64:
		cfg.BusyTimeout = time.Duration(timeout) * time.Millisecond
	}

	return cfg, nil
}
