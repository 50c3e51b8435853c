// Package config provides centralized configuration management for the
// scoring pipeline. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern ZIPYIELD_* for namespacing:
//
//	ZIPYIELD_DATABASE_URL=postgres://...
//	ZIPYIELD_DATABASE_MAX_CONNS=8
//	ZIPYIELD_LOGGING_LEVEL=info
//	ZIPYIELD_PIPELINE_UPSERT_BATCH_SIZE=1000
//	ZIPYIELD_TRACING_EXPORTER=stdout
//
// The config file location can be overridden with ZIPYIELD_CONFIG; otherwise
// config.yaml and configs/config.yaml are probed.
//
// # Validation
//
// All configuration is validated at load time to ensure required fields are
// present and values are within acceptable ranges. Invalid enum-like values
// (log format, log output) are coerced to safe defaults rather than rejected.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
