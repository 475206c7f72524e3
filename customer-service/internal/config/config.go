/**
 * @description
 * This file is responsible for managing the configuration of the customer-service.
 * It uses the Viper library to read settings from environment variables or a .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 *
 * @notes
 * - RABBITMQ_URL may be empty for local runs; customer writes then stay flagged
 *   as pending until a broker is configured and the resync job runs.
 */
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lgsalgado/banking-system-backend/pkg/events"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string        `mapstructure:"RABBITMQ_URL"`
	CustomerExchange   string        `mapstructure:"CUSTOMER_EVENTS_EXCHANGE"`
	CustomerRoutingKey string        `mapstructure:"CUSTOMER_CHANGED_ROUTING_KEY"`
	PublishTimeout     time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
	ResyncSchedule     string        `mapstructure:"RESYNC_SCHEDULE"`
	ResyncBatchSize    int           `mapstructure:"RESYNC_BATCH_SIZE"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from path/.env or environment variables.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper where to look for the config file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// This allows viper to read variables from the environment
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8081")
	viper.SetDefault("CUSTOMER_EVENTS_EXCHANGE", events.CustomerExchange)
	viper.SetDefault("CUSTOMER_CHANGED_ROUTING_KEY", events.CustomerChangedRoutingKey)
	viper.SetDefault("PUBLISH_TIMEOUT", "5s")
	viper.SetDefault("RESYNC_SCHEDULE", "@every 1m")
	viper.SetDefault("RESYNC_BATCH_SIZE", 100)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CUSTOMER_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CUSTOMER_CHANGED_ROUTING_KEY")
	_ = viper.BindEnv("PUBLISH_TIMEOUT")
	_ = viper.BindEnv("RESYNC_SCHEDULE")
	_ = viper.BindEnv("RESYNC_BATCH_SIZE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")

	// A missing config file is not an error; environment variables are enough.
	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config file: %w", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}

	config.CORSAllowedOrigins = nil
	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			config.CORSAllowedOrigins = append(config.CORSAllowedOrigins, trimmed)
		}
	}

	err = config.Validate()
	return
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("PUBLISH_TIMEOUT must be positive")
	}
	if c.ResyncBatchSize < 1 {
		return errors.New("RESYNC_BATCH_SIZE must be at least 1")
	}
	if _, err := cron.ParseStandard(c.ResyncSchedule); err != nil {
		return fmt.Errorf("invalid RESYNC_SCHEDULE %q: %w", c.ResyncSchedule, err)
	}
	return nil
}
