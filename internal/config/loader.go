package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/greenops/binsight/pkg/constants"
)

// Load reads configuration from an optional yaml file and BINSIGHT_*
// environment variables, applies defaults, and validates the result.
// The returned Config is treated as immutable by all consumers.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/binsight/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, err
		}
	}

	v.SetEnvPrefix("BINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_body_bytes", constants.DefaultMaxBodyBytes)

	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.max_age", constants.MaxCORSMaxAge)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.general.limit", constants.DefaultGeneralLimit)
	v.SetDefault("rate_limit.general.window", constants.DefaultGeneralWindow)
	v.SetDefault("rate_limit.strict.limit", constants.DefaultStrictLimit)
	v.SetDefault("rate_limit.strict.window", constants.DefaultStrictWindow)
	v.SetDefault("rate_limit.iot.limit", constants.DefaultIoTLimit)
	v.SetDefault("rate_limit.iot.window", constants.DefaultIoTWindow)

	v.SetDefault("engine.full_threshold", constants.DefaultFullThreshold)
	v.SetDefault("engine.anomaly_threshold", constants.DefaultAnomalyThreshold)
	v.SetDefault("engine.heartbeat_timeout", constants.DefaultHeartbeatTimeout)
	v.SetDefault("engine.sweep_interval", constants.DefaultHeartbeatSweepInterval)
	v.SetDefault("engine.default_frequency", string(constants.DefaultMaintenanceFrequency))
	v.SetDefault("engine.alert_feed_capacity", constants.DefaultAlertFeedCapacity)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "binsight.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.alert_topic", "binsight.alerts")
	v.SetDefault("kafka.telemetry_topic", "binsight.telemetry")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "1s")

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.development", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "binsight")

	v.SetDefault("pprof.enabled", false)
}
