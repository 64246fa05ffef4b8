// Package config handles configuration loading for chatvault.
//
// # Overview
//
// Configuration is built in three layers: compiled-in defaults, an
// optional YAML file, and CHATVAULT_* environment variable overrides.
// The file layer supports environment variable expansion.
//
// # Defaults
//
// Without any file or overrides, the server listens on 0.0.0.0:8080
// and stores its database under /data when that directory exists,
// falling back to a chatvault directory under the system temp dir.
//
// # Environment Variable Expansion
//
// Configuration file values can reference environment variables:
//
//	database:
//	  path: "${CHATVAULT_DATA}/chatvault.db"
//
// Syntax: ${VAR_NAME}
//
// # Environment Overrides
//
// Each field can also be set directly, taking precedence over the
// file:
//
//	CHATVAULT_HTTP_ADDR
//	CHATVAULT_DB_PATH
//	CHATVAULT_BACKUP_DIR
//	CHATVAULT_BACKUP_INTERVAL
//	CHATVAULT_BACKUP_RETENTION
//	CHATVAULT_LOG_LEVEL
//	CHATVAULT_LOG_FORMAT
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	backup:
//	  interval: "6h"
//
// Supported units: ns, us, ms, s, m, h. An empty or absent interval
// disables scheduled backups; on-demand backups remain available.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/data/chatvault.db"
//
// Backups:
//
//	backup:
//	  dir: "/data/backups"
//	  interval: "6h"
//	  retention: 5
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load(os.Getenv("CHATVAULT_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
