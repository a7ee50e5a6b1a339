package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("queue.stream", "QUEUE_STREAM")
	viper.BindEnv("queue.group", "QUEUE_GROUP")
	viper.BindEnv("queue.consumer", "QUEUE_CONSUMER")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")
	viper.BindEnv("database.mongodb.collection", "DATABASE_MONGODB_COLLECTION")

	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.model", "AI_MODEL")
	viper.BindEnv("ai.token", "AI_TOKEN")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func setDefaults() {
	viper.SetDefault("queue.stream", "feedback-events")
	viper.SetDefault("queue.group", "feedback-consumers")
	viper.SetDefault("queue.lease_timeout", "30s")
	viper.SetDefault("queue.block_timeout", "1s")

	viper.SetDefault("database.mongodb.collection", "feedback_analysis")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("pipeline.workers", 10)
	viper.SetDefault("pipeline.batch_size", 10)
	viper.SetDefault("pipeline.idle_interval", "1s")
	viper.SetDefault("pipeline.backoff.initial_interval", "1s")
	viper.SetDefault("pipeline.backoff.max_interval", "30s")
	viper.SetDefault("pipeline.backoff.multiplier", 2.0)
	viper.SetDefault("pipeline.backoff.jitter", 0.1)

	viper.SetDefault("ai.request_timeout", "30s")
}
