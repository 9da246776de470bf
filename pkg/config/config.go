package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-hangar/pkg/crypto"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all configuration for ekaya-hangar.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CatalogPath is the YAML file with queries, endpoints and views.
	CatalogPath string `yaml:"catalog_path" env:"HANGAR_CATALOG_PATH" env-default:"catalog.yaml"`

	// TemplatesDir holds the HTML templates selectable with ?template=name.
	TemplatesDir string `yaml:"templates_dir" env:"HANGAR_TEMPLATES_DIR" env-default:"templates"`

	// ScreenInjection rejects string parameters that libinjection flags as SQL injection.
	ScreenInjection bool `yaml:"screen_injection" env:"HANGAR_SCREEN_INJECTION" env-default:"false"`

	// SingleStatement rejects rendered SQL that contains more than one statement.
	SingleStatement bool `yaml:"single_statement" env:"HANGAR_SINGLE_STATEMENT" env-default:"false"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Result cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Datasource connection management configuration
	Datasource DatasourceConfig `yaml:"datasource"`

	// Databases maps database IDs used by queries to their connection settings.
	Databases map[string]DatabaseConfig `yaml:"databases"`

	// CredentialsKey opens encrypted_password values. Secret - env only.
	CredentialsKey string `yaml:"-" env:"HANGAR_CREDENTIALS_KEY"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// When false, tokens are parsed without verification (local development).
	// No env-default: cleanenv would override an explicit "false" from YAML.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// CookieName is checked for a token before the Authorization header.
	CookieName string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"hangar_jwt"`
}

// CacheConfig selects and sizes the endpoint result cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	MemorySize int         `yaml:"memory_size" env:"CACHE_MEMORY_SIZE" env-default:"1024"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
}

// Addr returns host:port with localhost resolved for Docker.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(r.Host), r.Port)
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long idle datasource pools are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// MaxPools limits how many database pools are open at once.
	MaxPools int `yaml:"max_pools" env:"DATASOURCE_MAX_POOLS" env-default:"32"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// DatabaseConfig describes one queryable database.
//
//	databases:
//	  reporting:
//	    type: postgres
//	    password_env: REPORTING_PGPASSWORD
//	    options:
//	      host: db.internal
//	      user: hangar
//	      database: reporting
type DatabaseConfig struct {
	Type string `yaml:"type"`

	// PasswordEnv names an environment variable holding the password.
	// Its value is passed to the adapter as the "password" option.
	PasswordEnv string `yaml:"password_env"`

	// EncryptedPassword is a password sealed with "hangar seal-password".
	// It is opened with HANGAR_CREDENTIALS_KEY at load time.
	EncryptedPassword string `yaml:"encrypted_password"`

	// Options are the adapter-specific connection settings.
	Options map[string]any `yaml:"options"`

	password string
}

// ConnectionOptions returns the adapter options with the password resolved
// from PasswordEnv. The receiver's map is not modified.
func (d DatabaseConfig) ConnectionOptions() (map[string]any, error) {
	opts := make(map[string]any, len(d.Options)+1)
	for k, v := range d.Options {
		opts[k] = v
	}
	if d.password != "" {
		opts["password"] = d.password
	}
	if d.PasswordEnv != "" {
		password, ok := os.LookupEnv(d.PasswordEnv)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", d.PasswordEnv)
		}
		opts["password"] = password
	}
	return opts, nil
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := cfg.openPasswords(); err != nil {
		return nil, err
	}

	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	return nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid cache backend %q (must be %s or %s)", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}

	for id, db := range c.Databases {
		if db.Type == "" {
			return fmt.Errorf("database %q: type is required", id)
		}
		if db.PasswordEnv != "" && db.EncryptedPassword != "" {
			return fmt.Errorf("database %q: password_env and encrypted_password are mutually exclusive", id)
		}
	}

	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth.jwks_endpoints is required when auth.enable_verification is true")
	}
	return nil
}

// openPasswords decrypts every encrypted_password with CredentialsKey.
func (c *Config) openPasswords() error {
	var box *crypto.SecretBox
	for id, db := range c.Databases {
		if db.EncryptedPassword == "" {
			continue
		}
		if box == nil {
			var err error
			if box, err = crypto.NewSecretBox(c.CredentialsKey); err != nil {
				return fmt.Errorf("database %q has encrypted_password: %w", id, err)
			}
		}
		password, err := box.Open(id, db.EncryptedPassword)
		if err != nil {
			return fmt.Errorf("database %q: %w", id, err)
		}
		db.password = password
		c.Databases[id] = db
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// Actual readability checked by tls.LoadX509KeyPair at startup
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// DatabaseIDs returns the configured database IDs.
func (c *Config) DatabaseIDs() map[string]bool {
	ids := make(map[string]bool, len(c.Databases))
	for id := range c.Databases {
		ids[id] = true
	}
	return ids
}
