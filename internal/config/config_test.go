package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := validBaseConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_InvalidServerEnv(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Env = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid SERVER_ENV")
	}
	if !strings.Contains(err.Error(), "SERVER_ENV") {
		t.Errorf("expected error to mention SERVER_ENV, got: %v", err)
	}
}

func TestConfig_Validate_MissingPort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Port = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing SERVER_PORT")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected error to mention SERVER_PORT, got: %v", err)
	}
}

func TestConfig_Validate_EmptyAllowedOrigins(t *testing.T) {
	cfg := validBaseConfig()
	cfg.CORS.AllowedOrigins = []string{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty CORS_ALLOWED_ORIGINS")
	}
	if !strings.Contains(err.Error(), "CORS_ALLOWED_ORIGINS") {
		t.Errorf("expected error to mention CORS_ALLOWED_ORIGINS, got: %v", err)
	}
}

func TestConfig_Validate_Backends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"memory", func(c *Config) { c.Store.Backend = BackendMemory }, ""},
		{"surrealdb", func(c *Config) { c.Store.Backend = BackendSurreal }, ""},
		{"surrealdb_missing_host", func(c *Config) {
			c.Store.Backend = BackendSurreal
			c.Database.Host = ""
		}, "DB_HOST"},
		{"postgres_missing_dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "POSTGRES_DSN"},
		{"postgres", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Postgres.DSN = "postgres://localhost/docrepo"
		}, ""},
		{"sqlite_missing_path", func(c *Config) {
			c.Store.Backend = BackendSQLite
			c.SQLite.Path = ""
		}, "SQLITE_PATH"},
		{"unknown", func(c *Config) { c.Store.Backend = "mongo" }, "STORE_BACKEND"},
		{"duplicate_collection", func(c *Config) { c.Store.Collections = []string{"users", "users"} }, "STORE_COLLECTIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Validate_CacheEnabledRequiresAddr(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when cache enabled without address")
	}
	if !strings.Contains(err.Error(), "CACHE_ADDR") {
		t.Errorf("expected error to mention CACHE_ADDR, got: %v", err)
	}
}

func TestConfig_Validate_CacheDisabledNoAddrRequired(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.Addr = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error when cache disabled, got: %v", err)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: "", Env: "invalid"},
		Store:  StoreConfig{Backend: BackendSurreal},
		Log:    LogConfig{Level: "loud", Format: "xml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	expectedFields := []string{"SERVER_PORT", "SERVER_ENV", "CORS_ALLOWED_ORIGINS", "DB_HOST", "LOG_LEVEL", "LOG_FORMAT"}
	for _, field := range expectedFields {
		if !strings.Contains(errStr, field) {
			t.Errorf("expected error to mention %s, got: %v", field, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port: got %q", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend: got %q", cfg.Store.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL: got %v", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("STORE_COLLECTIONS", "users, orders")
	t.Setenv("POSTGRES_MAX_CONNS", "4")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port: got %q", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("Store.Backend: got %q", cfg.Store.Backend)
	}
	if got := strings.Join(cfg.Store.Collections, "|"); got != "users|orders" {
		t.Errorf("Store.Collections: got %q", got)
	}
	if cfg.Postgres.MaxConns != 4 {
		t.Errorf("Postgres.MaxConns: got %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache: got %+v", cfg.Cache)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  backend: sqlite
  collections: [users, orders]
sqlite:
  path: /var/lib/docrepo/file.db
log:
  level: debug
`
	path := filepath.Join(dir, "docrepo.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SQLITE_PATH", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend: got %q", cfg.Store.Backend)
	}
	if len(cfg.Store.Collections) != 2 {
		t.Errorf("Store.Collections: got %v", cfg.Store.Collections)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.SQLite.Path != "/tmp/override.db" {
		t.Errorf("environment should override the file, got %q", cfg.SQLite.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "development"}}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return true")
	}

	cfg.Server.Env = "production"
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return false in production")
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "production"}}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to return true")
	}

	cfg.Server.Env = "development"
	if cfg.IsProduction() {
		t.Error("expected IsProduction() to return false in development")
	}
}

// validBaseConfig returns a minimal valid configuration for testing
func validBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Env:          "development",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		CORS:  CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Store: StoreConfig{Backend: BackendMemory, Prefix: "doc_"},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "8000",
			Namespace: "docrepo",
			Database:  "main",
			User:      "root",
			Password:  "root",
		},
		Postgres: PostgresConfig{MaxConns: 10},
		SQLite:   SQLiteConfig{Path: "docrepo.db"},
		Cache:    CacheConfig{Addr: "localhost:6379", TTL: 5 * time.Minute},
		Log:      LogConfig{Level: "info", Format: "json"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}
