// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the registry store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Neo4jAdminURI is the bolt URI for the cluster administrative endpoint.
	Neo4jAdminURI string `mapstructure:"NEO4J_ADMIN_URI"`
	// Neo4jAdminUser is the shared administrative principal username.
	Neo4jAdminUser string `mapstructure:"NEO4J_ADMIN_USER"`
	// Neo4jAdminPass is the shared administrative principal password. Never logged.
	Neo4jAdminPass string `mapstructure:"NEO4J_ADMIN_PASS"`
	// Neo4jPublicURI is the URI recorded on provisioned DomainGraph rows.
	Neo4jPublicURI string `mapstructure:"NEO4J_PUBLIC_URI"`

	// RegistryEncKey is the base64 AES key (optional "base64:" prefix) used
	// to encrypt graph secrets at rest. Must decode to 16/24/32 bytes.
	RegistryEncKey string `mapstructure:"REGISTRY_ENC_KEY"`

	// ProvisionAsync dispatches provisioning jobs to the worker pool when
	// true; runs them inline in the request when false (dev mode).
	ProvisionAsync bool `mapstructure:"PROVISION_ASYNC"`
	// ProvisionWorkers is the fixed worker-pool size.
	ProvisionWorkers int `mapstructure:"PROVISION_WORKERS"`
	// ProvisionQueueSize bounds the pending-job queue.
	ProvisionQueueSize int `mapstructure:"PROVISION_QUEUE_SIZE"`
	// ProvisionOnlineTimeout is the wait-until-online budget (e.g. "120s").
	ProvisionOnlineTimeout string `mapstructure:"PROVISION_ONLINE_TIMEOUT"`

	// InternalProvisionToken is the shared secret for the internal
	// provision trigger. The trigger is rejected when unset.
	InternalProvisionToken string `mapstructure:"INTERNAL_PROVISION_TOKEN"`

	// OTLPTraceEndpoint enables OTLP gRPC trace export when set
	// (e.g. localhost:4317).
	OTLPTraceEndpoint string `mapstructure:"OTLP_TRACE_ENDPOINT"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug/info/warn/error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("NEO4J_ADMIN_URI", "")
	v.SetDefault("NEO4J_ADMIN_USER", "neo4j")
	v.SetDefault("NEO4J_ADMIN_PASS", "")
	v.SetDefault("NEO4J_PUBLIC_URI", "")
	v.SetDefault("REGISTRY_ENC_KEY", "")
	v.SetDefault("PROVISION_ASYNC", true)
	v.SetDefault("PROVISION_WORKERS", 4)
	v.SetDefault("PROVISION_QUEUE_SIZE", 64)
	v.SetDefault("PROVISION_ONLINE_TIMEOUT", "120s")
	v.SetDefault("INTERNAL_PROVISION_TOKEN", "")
	v.SetDefault("OTLP_TRACE_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.ProvisionWorkers <= 0 {
		return nil, errors.New("config: PROVISION_WORKERS must be positive")
	}
	if cfg.ProvisionQueueSize <= 0 {
		return nil, errors.New("config: PROVISION_QUEUE_SIZE must be positive")
	}

	return &cfg, nil
}

// OnlineTimeout parses ProvisionOnlineTimeout as a time.Duration.
// Returns 120s if unset or invalid.
func (c *Config) OnlineTimeout() time.Duration {
	d, err := time.ParseDuration(c.ProvisionOnlineTimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
