// Package config loads and validates the service configuration.
//
// # Overview
//
// Values start from Default, are overlaid by an optional YAML file
// (-config flag or DPP_CONFIG_FILE) and finally by DPP_* environment
// variables.
//
// # Configuration Structure
//
// Server settings:
//
//	DPP_HOST="0.0.0.0"
//	DPP_PORT="8080"
//	DPP_HEALTH_PORT="9090"
//
// Storage settings:
//
//	DPP_STORAGE="sql"          # sql, memory
//	DPP_DB_DRIVER="postgres"   # postgres, sqlite3
//	DPP_DB_DSN="postgres://localhost/dpp?sslmode=disable"
//
// Membership cache:
//
//	DPP_CACHE_ENABLED="true"
//	DPP_REDIS_URL="redis://localhost:6379/0"
//
// Observability settings:
//
//	DPP_LOG_LEVEL="info"  # debug, info, warn, error
//	DPP_OTEL_ENABLED="true"
//	DPP_OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML
//
//	database:
//	  storage: memory
//	audit:
//	  database: false
//	memberships:
//	  - user_id: alice
//	    organization_id: acme
//	    role: ORG_ADMIN
package config
