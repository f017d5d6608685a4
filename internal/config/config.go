package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable holding an optional config file path.
const ConfigFileEnv = "DOCREPO_CONFIG"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSurreal  = "surrealdb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CORSConfig holds the allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig selects the document store backend and the collections served over HTTP
type StoreConfig struct {
	Backend     string   `mapstructure:"backend"`
	Prefix      string   `mapstructure:"prefix"`
	Collections []string `mapstructure:"collections"`
	Manifest    string   `mapstructure:"manifest"` // applied at server start when set
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
}

// PostgresConfig holds PostgreSQL pool settings
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SQLiteConfig holds the SQLite database path (":memory:" for a private in-memory database)
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds the Redis read-through cache settings
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	StatsInterval time.Duration `mapstructure:"stats_interval"` // collection size gauge refresh, 0 disables
}

// RateLimitConfig holds the per-client request limit
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// defaults are keyed by config path. Environment variables are the
// upper-cased paths with dots replaced by underscores (server.port -> SERVER_PORT).
var defaults = map[string]any{
	"server.port":            "8080",
	"server.env":             "development",
	"server.read_timeout":    15 * time.Second,
	"server.write_timeout":   15 * time.Second,
	"cors.allowed_origins":   []string{"http://localhost:3000"},
	"store.backend":          BackendMemory,
	"store.prefix":           "doc_",
	"store.collections":      []string{},
	"store.manifest":         "",
	"db.host":                "localhost",
	"db.port":                "8000",
	"db.namespace":           "docrepo",
	"db.database":            "main",
	"db.user":                "root",
	"db.password":            "root",
	"postgres.dsn":           "",
	"postgres.max_conns":     10,
	"sqlite.path":            "docrepo.db",
	"cache.enabled":          false,
	"cache.addr":             "localhost:6379",
	"cache.password":         "",
	"cache.db":               0,
	"cache.ttl":              5 * time.Minute,
	"cache.prefix":           "docrepo:",
	"log.level":              "info",
	"log.format":             "json",
	"metrics.enabled":        true,
	"metrics.path":           "/metrics",
	"metrics.stats_interval": time.Minute,
	"ratelimit.enabled":      false,
	"ratelimit.rps":          20.0,
	"ratelimit.burst":        40,
}

// Load reads configuration from environment variables and an optional config
// file. An empty path falls back to $DOCREPO_CONFIG; with neither set only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Collections = splitList(cfg.Store.Collections)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	return &cfg, nil
}

// splitList trims entries and drops empty ones.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Store validation
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSurreal:
		errs = append(errs, c.Database.validate()...)
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
		if c.Postgres.MaxConns <= 0 {
			errs = append(errs, errors.New("POSTGRES_MAX_CONNS must be positive"))
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, surrealdb, postgres, sqlite, got '%s'", c.Store.Backend))
	}
	if dup := firstDuplicate(c.Store.Collections); dup != "" {
		errs = append(errs, fmt.Errorf("STORE_COLLECTIONS lists '%s' twice", dup))
	}

	// Cache validation
	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			errs = append(errs, errors.New("CACHE_ADDR is required when CACHE_ENABLED is true"))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("CACHE_TTL must be positive"))
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got '%s'", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got '%s'", c.Log.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("METRICS_PATH must start with '/'"))
	}
	if c.Metrics.StatsInterval < 0 {
		errs = append(errs, errors.New("METRICS_STATS_INTERVAL must not be negative"))
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATELIMIT_RPS and RATELIMIT_BURST must be positive when rate limiting is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (d DatabaseConfig) validate() []error {
	var missing []string
	if d.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if d.Port == "" {
		missing = append(missing, "DB_PORT")
	}
	if d.Namespace == "" {
		missing = append(missing, "DB_NAMESPACE")
	}
	if d.Database == "" {
		missing = append(missing, "DB_DATABASE")
	}
	if len(missing) > 0 {
		return []error{fmt.Errorf("SurrealDB: missing required fields: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
