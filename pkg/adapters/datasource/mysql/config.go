package mysql

import (
	"fmt"
	"time"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// TLS is a go-sql-driver tls value: "true", "false", "skip-verify" or "preferred".
	TLS string

	ConnectionTimeout time.Duration

	// DSN is a complete go-sql-driver DSN. When set it is used as-is.
	DSN string
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultConnectionTimeout returns the default dial timeout.
func DefaultConnectionTimeout() time.Duration {
	return 10 * time.Second
}

// FromMap creates a Config from a database entry's options.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		TLS:               "preferred",
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		cfg.DSN = dsn
		return cfg, nil
	}

	if host, ok := config["host"].(string); ok {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	switch port := config["port"].(type) {
	case int:
		cfg.Port = port
	case int64:
		cfg.Port = int(port)
	case float64:
		cfg.Port = int(port)
	}

	if user, ok := config["user"].(string); ok {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if tls, ok := config["tls"].(string); ok {
		cfg.TLS = tls
	}

	switch timeout := config["connection_timeout"].(type) {
	case int:
		cfg.ConnectionTimeout = time.Duration(timeout) * time.Second
	case float64:
		cfg.ConnectionTimeout = time.Duration(timeout * float64(time.Second))
	}

	return cfg, nil
}
