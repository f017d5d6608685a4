// Package config manages application configuration for the docrepo server and CLI.
//
// Configuration is loaded with viper from defaults, an optional config file
// and environment variables, in increasing order of precedence:
//
//	cfg, err := config.Load("")        // $DOCREPO_CONFIG if set
//	cfg, err := config.Load("app.yaml")
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts)
//   - StoreConfig: document store backend and served collections
//   - DatabaseConfig: SurrealDB connection settings
//   - PostgresConfig, SQLiteConfig: SQL backend settings
//   - CacheConfig: Redis read-through cache
//   - LogConfig, MetricsConfig, RateLimitConfig
//
// # Environment Variables
//
// Every key maps to an environment variable by upper-casing it and
// replacing dots with underscores:
//
//	SERVER_PORT        - HTTP server port (default: 8080)
//	STORE_BACKEND      - memory, surrealdb, postgres or sqlite (default: memory)
//	STORE_COLLECTIONS  - comma separated collections exposed over HTTP
//	DB_HOST, DB_PORT   - SurrealDB address
//	POSTGRES_DSN       - PostgreSQL connection string
//	SQLITE_PATH        - SQLite database file
//	CACHE_ENABLED      - enable the Redis cache (CACHE_ADDR, CACHE_TTL)
//	LOG_LEVEL          - debug, info, warn or error
package config
