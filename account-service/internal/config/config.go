/**
 * @description
 * Configuration for the account-service. Settings come from environment variables
 * or an optional .env file in the given directory, read through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lgsalgado/banking-system-backend/pkg/events"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config stores all configuration for the account-service.
type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER"`
	RabbitMQURL        string        `mapstructure:"RABBITMQ_URL"`
	CustomerExchange   string        `mapstructure:"CUSTOMER_EVENTS_EXCHANGE"`
	CustomerQueue      string        `mapstructure:"CUSTOMER_EVENTS_QUEUE"`
	CustomerRoutingKey string        `mapstructure:"CUSTOMER_CHANGED_ROUTING_KEY"`
	ConsumerWorkers    int           `mapstructure:"CONSUMER_WORKERS"`
	ConsumerPrefetch   int           `mapstructure:"CONSUMER_PREFETCH"`
	AccountLockTimeout time.Duration `mapstructure:"ACCOUNT_LOCK_TIMEOUT"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	RateLimitPrefix    string        `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	MovementRateLimit  int           `mapstructure:"MOVEMENT_RATE_LIMIT"`
	MovementRateWindow time.Duration `mapstructure:"MOVEMENT_RATE_WINDOW"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from path/.env and the environment.
func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8082")
	viper.SetDefault("DB_MAX_CONNS", 20)
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("CUSTOMER_EVENTS_EXCHANGE", events.CustomerExchange)
	viper.SetDefault("CUSTOMER_EVENTS_QUEUE", events.CustomerChangedQueue)
	viper.SetDefault("CUSTOMER_CHANGED_ROUTING_KEY", events.CustomerChangedRoutingKey)
	viper.SetDefault("CONSUMER_WORKERS", 4)
	viper.SetDefault("CONSUMER_PREFETCH", 16)
	viper.SetDefault("ACCOUNT_LOCK_TIMEOUT", "2s")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "banking:rate_limit")
	viper.SetDefault("MOVEMENT_RATE_LIMIT", 0)
	viper.SetDefault("MOVEMENT_RATE_WINDOW", "1m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind envs explicitly so containers pick them up reliably
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DB_MAX_CONNS")
	_ = viper.BindEnv("STORE_DRIVER")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CUSTOMER_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CUSTOMER_EVENTS_QUEUE")
	_ = viper.BindEnv("CUSTOMER_CHANGED_ROUTING_KEY")
	_ = viper.BindEnv("CONSUMER_WORKERS")
	_ = viper.BindEnv("CONSUMER_PREFETCH")
	_ = viper.BindEnv("ACCOUNT_LOCK_TIMEOUT")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("MOVEMENT_RATE_LIMIT")
	_ = viper.BindEnv("MOVEMENT_RATE_WINDOW")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))
	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.AccountLockTimeout <= 0 {
		return errors.New("ACCOUNT_LOCK_TIMEOUT must be positive")
	}
	if c.ConsumerWorkers < 1 {
		return errors.New("CONSUMER_WORKERS must be at least 1")
	}
	if c.MovementRateLimit < 0 {
		return errors.New("MOVEMENT_RATE_LIMIT must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
