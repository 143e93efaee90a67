package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

// Storage backends
const (
	StorageSQL    = "sql"
	StorageMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Cache         CacheConfig         `yaml:"cache"`
	Audit         AuditConfig         `yaml:"audit"`
	Templates     TemplatesConfig     `yaml:"templates"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`

	// Memberships seeds the membership store at startup. Mostly useful with
	// the memory storage backend.
	Memberships []MembershipSeed `yaml:"memberships"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s liveness and readiness checks)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig selects the template and membership storage
type DatabaseConfig struct {
	// Storage is "sql" or "memory"
	Storage     string        `yaml:"storage"`
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

// RedisConfig holds the optional shared cache connection
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// CacheConfig configures the membership cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// AuditConfig selects the audit destinations
type AuditConfig struct {
	// Database writes events to the audit_logs table
	Database bool `yaml:"database"`
	// Log writes events as structured log lines
	Log     bool          `yaml:"log"`
	Timeout time.Duration `yaml:"timeout"`
}

// TemplatesConfig holds template engine settings
type TemplatesConfig struct {
	// KeyTranslationsFile is a YAML label to key table for field keys
	KeyTranslationsFile string `yaml:"key_translations_file"`
	// StatusSchedule is the cron spec of the templates-by-status gauge refresh
	StatusSchedule string `yaml:"status_schedule"`
}

// RateLimitConfig throttles mutating API requests per actor
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
	// FailOpen lets requests through while the shared limiter is unreachable
	FailOpen bool `yaml:"fail_open"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// MembershipSeed is one organization membership loaded from configuration
type MembershipSeed struct {
	UserID         string `yaml:"user_id"`
	OrganizationID string `yaml:"organization_id"`
	Role           string `yaml:"role"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Storage:     StorageSQL,
			Driver:      "postgres",
			MaxConns:    20,
			MinConns:    2,
			Timeout:     5 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    10000,
			TTL:     30 * time.Second,
		},
		Audit: AuditConfig{
			Database: true,
			Log:      true,
			Timeout:  5 * time.Second,
		},
		Templates: TemplatesConfig{
			StatusSchedule: "@every 1m",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 120,
			Window:            time.Minute,
			Burst:             20,
			FailOpen:          true,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "dpp-templates",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or DPP_CONFIG_FILE when path is empty), then DPP_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("DPP_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyYAML overlays a YAML document. Unknown keys are rejected.
func (c *Config) applyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays DPP_* environment variables
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("DPP_HOST", s.Host)
	s.Port = getEnv("DPP_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("DPP_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("DPP_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("DPP_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("DPP_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("DPP_HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Storage = getEnv("DPP_STORAGE", d.Storage)
	d.Driver = getEnv("DPP_DB_DRIVER", d.Driver)
	d.DSN = getEnv("DPP_DB_DSN", d.DSN)
	d.MaxConns = getEnvInt("DPP_DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("DPP_DB_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("DPP_DB_TIMEOUT", d.Timeout)
	d.AutoMigrate = getEnvBool("DPP_DB_AUTO_MIGRATE", d.AutoMigrate)

	r := &c.Redis
	r.URL = getEnv("DPP_REDIS_URL", r.URL)
	r.Password = getEnv("DPP_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("DPP_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("DPP_REDIS_POOL_SIZE", r.PoolSize)
	r.MaxRetries = getEnvInt("DPP_REDIS_MAX_RETRIES", r.MaxRetries)

	c.Cache.Enabled = getEnvBool("DPP_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Size = getEnvInt("DPP_CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getEnvDuration("DPP_CACHE_TTL", c.Cache.TTL)

	c.Audit.Database = getEnvBool("DPP_AUDIT_DATABASE", c.Audit.Database)
	c.Audit.Log = getEnvBool("DPP_AUDIT_LOG", c.Audit.Log)
	c.Audit.Timeout = getEnvDuration("DPP_AUDIT_TIMEOUT", c.Audit.Timeout)

	c.Templates.KeyTranslationsFile = getEnv("DPP_KEY_TRANSLATIONS_FILE", c.Templates.KeyTranslationsFile)
	c.Templates.StatusSchedule = getEnv("DPP_STATUS_SCHEDULE", c.Templates.StatusSchedule)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("DPP_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerWindow = getEnvInt("DPP_RATE_LIMIT_REQUESTS", rl.RequestsPerWindow)
	rl.Window = getEnvDuration("DPP_RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("DPP_RATE_LIMIT_BURST", rl.Burst)
	rl.FailOpen = getEnvBool("DPP_RATE_LIMIT_FAIL_OPEN", rl.FailOpen)

	o := &c.Observability
	o.LogLevel = getEnv("DPP_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("DPP_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("DPP_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("DPP_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("DPP_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("DPP_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("DPP_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Storage {
	case StorageMemory:
		if c.Audit.Database {
			return fmt.Errorf("database audit requires sql storage")
		}
	case StorageSQL:
		switch c.Database.Driver {
		case "postgres", "sqlite3":
		default:
			return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for sql storage")
		}
	default:
		return fmt.Errorf("invalid storage: %s (must be sql or memory)", c.Database.Storage)
	}

	if c.Cache.Enabled && (c.Cache.Size <= 0 || c.Cache.TTL <= 0) {
		return fmt.Errorf("cache size and TTL must be positive when the cache is enabled")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 || c.RateLimit.Burst < 0) {
		return fmt.Errorf("rate limit requests and window must be positive")
	}

	if c.Templates.StatusSchedule == "" {
		return fmt.Errorf("templates status schedule is required")
	}

	for i, m := range c.Memberships {
		if m.UserID == "" || m.OrganizationID == "" {
			return fmt.Errorf("membership %d: user_id and organization_id are required", i)
		}
		if _, ok := rbac.ParseRole(m.Role); !ok {
			return fmt.Errorf("membership %d: unknown role %q", i, m.Role)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
