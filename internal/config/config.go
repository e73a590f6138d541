// Package config defines the service configuration. The Config struct
// is built once at process start and passed explicitly to components;
// nothing in the service reads configuration ambiently.
package config

import (
	"fmt"
	"time"

	"github.com/greenops/binsight/pkg/constants"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Pprof     PprofConfig     `mapstructure:"pprof"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// MaxBodyBytes bounds inbound request bodies before parsing.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig holds the origin gate settings. AllowedOrigins is loaded
// once and never mutated at runtime.
type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

// TierConfig holds one rate limiting tier's counter parameters.
type TierConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig holds the three parallel limiter tiers.
type RateLimitConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	General TierConfig `mapstructure:"general"`
	Strict  TierConfig `mapstructure:"strict"`
	IoT     TierConfig `mapstructure:"iot"`

	// Backend selects "memory" or "redis".
	Backend string `mapstructure:"backend"`
}

// Tier returns the parameters for a named tier.
func (c RateLimitConfig) Tier(tier constants.RateLimitTier) TierConfig {
	switch tier {
	case constants.TierStrict:
		return c.Strict
	case constants.TierIoT:
		return c.IoT
	default:
		return c.General
	}
}

// EngineConfig holds the bin state engine thresholds.
type EngineConfig struct {
	FullThreshold        int                            `mapstructure:"full_threshold"`
	AnomalyThreshold     int                            `mapstructure:"anomaly_threshold"`
	HeartbeatTimeout     time.Duration                  `mapstructure:"heartbeat_timeout"`
	SweepInterval        time.Duration                  `mapstructure:"sweep_interval"`
	DefaultFrequency     constants.MaintenanceFrequency `mapstructure:"default_frequency"`
	AlertFeedCapacity    int                            `mapstructure:"alert_feed_capacity"`
}

// DatabaseConfig holds the bin store connection settings.
type DatabaseConfig struct {
	// Driver selects "postgres" or "sqlite".
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`

	// Path is the sqlite file path; ":memory:" for tests.
	Path string `mapstructure:"path"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds the rate limiter's redis backend settings.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig holds the downstream event stream settings.
type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	AlertTopic     string        `mapstructure:"alert_topic"`
	TelemetryTopic string        `mapstructure:"telemetry_topic"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
}

// AdminConfig holds admin route protection settings. Token issuance is
// out of scope; the service only verifies bearer tokens signed with
// this shared secret.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       constants.LogLevel `mapstructure:"level"`
	Development bool               `mapstructure:"development"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// PprofConfig toggles the debug profiling routes.
type PprofConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	for _, tier := range []struct {
		name string
		cfg  TierConfig
	}{
		{"general", c.RateLimit.General},
		{"strict", c.RateLimit.Strict},
		{"iot", c.RateLimit.IoT},
	} {
		if tier.cfg.Limit <= 0 {
			return fmt.Errorf("rate_limit.%s.limit must be positive", tier.name)
		}
		if tier.cfg.Window <= 0 {
			return fmt.Errorf("rate_limit.%s.window must be positive", tier.name)
		}
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.Engine.FullThreshold <= 0 || c.Engine.FullThreshold > constants.MaxFillLevel {
		return fmt.Errorf("engine.full_threshold out of range: %d", c.Engine.FullThreshold)
	}
	if c.Engine.AnomalyThreshold < c.Engine.FullThreshold {
		return fmt.Errorf("engine.anomaly_threshold below full_threshold")
	}
	if c.Engine.HeartbeatTimeout <= 0 {
		return fmt.Errorf("engine.heartbeat_timeout must be positive")
	}
	if !c.Engine.DefaultFrequency.IsValid() {
		return fmt.Errorf("engine.default_frequency invalid: %q", c.Engine.DefaultFrequency)
	}
	if c.Engine.AlertFeedCapacity <= 0 {
		return fmt.Errorf("engine.alert_feed_capacity must be positive")
	}
	return nil
}
