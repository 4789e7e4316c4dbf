package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"injectionfilter/internal/constants"
)

const envPrefix = "FILTERCTL"

// LoadConfig reads configFile (optional) on top of the built-in defaults and
// applies FILTERCTL_* environment overrides, e.g. FILTERCTL_STORE_TYPE.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.type", constants.StoreTypeSQLite)
	v.SetDefault("store.timeout", constants.DefaultStoreTimeout)

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.sqlite.path", constants.DefaultSQLitePath)
	v.SetDefault("database.sqlite.busy_timeout_ms", 5000)
	v.SetDefault("database.redis.host", "localhost")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	v.SetDefault("database.mongodb.collection", constants.DefaultMongoCollection)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("broker.kafka.enabled", false)
	v.SetDefault("broker.kafka.topic", constants.DefaultChangeTopic)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("management.key_prefix", constants.DefaultKeyPrefix)
	v.SetDefault("management.retry.max_attempts", 3)
	v.SetDefault("management.retry.initial_interval", "100ms")
	v.SetDefault("management.retry.max_interval", "2s")
	v.SetDefault("management.retry.multiplier", 2.0)
	v.SetDefault("management.retry.max_elapsed_time", "10s")
	v.SetDefault("management.validation.max_patterns", constants.DefaultMaxPatterns)
	v.SetDefault("management.validation.max_expression_length", constants.DefaultMaxExpressionLength)
	v.SetDefault("management.validation.check_expressions", true)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("circuit_breaker.min_requests", 5)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.otlp.endpoint", "localhost:4317")
	v.SetDefault("tracing.otlp.insecure", true)
	v.SetDefault("tracing.sampler.type", "always_on")
	v.SetDefault("tracing.sampler.param", 1.0)

	v.SetDefault("metrics.job_name", constants.ServiceName)
}

// bindEnvVariables binds keys without a default so AutomaticEnv can see them.
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("database.postgres.host")
	_ = v.BindEnv("database.postgres.user")
	_ = v.BindEnv("database.postgres.password")
	_ = v.BindEnv("database.postgres.dbname")
	_ = v.BindEnv("database.redis.password")
	_ = v.BindEnv("database.mongodb.uri")
	_ = v.BindEnv("metrics.pushgateway_url")
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}
}
