package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	SettleSweepSpec string `mapstructure:"SCHEDULER_SETTLE_SWEEP_SPEC"`
	RemindSweepSpec string `mapstructure:"SCHEDULER_REMIND_SWEEP_SPEC"`
	Timezone        string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	// RemindCooldown is the window during which repeat reminders for
	// the same settlement are rejected. Override per environment; local
	// setups typically use a few seconds.
	RemindCooldown  string `mapstructure:"REMIND_COOLDOWN"`
	AutoRemindAfter string `mapstructure:"AUTO_REMIND_AFTER"`
	MinPartySize    int    `mapstructure:"MIN_PARTY_SIZE"`
	CurrentCacheTTL string `mapstructure:"CURRENT_SETTLEMENT_CACHE_TTL"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REMIND_COOLDOWN", "40m")
	viper.SetDefault("AUTO_REMIND_AFTER", "24h")
	viper.SetDefault("MIN_PARTY_SIZE", 2)
	viper.SetDefault("CURRENT_SETTLEMENT_CACHE_TTL", "30s")
	viper.SetDefault("SCHEDULER_SETTLE_SWEEP_SPEC", "0 */10 * * * *")
	viper.SetDefault("SCHEDULER_REMIND_SWEEP_SPEC", "0 0 9 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Seoul")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.MinPartySize < 2 {
		return fmt.Errorf("MIN_PARTY_SIZE must be at least 2 (host plus one companion)")
	}

	if _, err := time.ParseDuration(c.Business.RemindCooldown); err != nil {
		return fmt.Errorf("REMIND_COOLDOWN must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Business.AutoRemindAfter); err != nil {
		return fmt.Errorf("AUTO_REMIND_AFTER must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Business.CurrentCacheTTL); err != nil {
		return fmt.Errorf("CURRENT_SETTLEMENT_CACHE_TTL must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetRemindCooldown returns the reminder cooldown as duration
func (c *Config) GetRemindCooldown() time.Duration {
	cooldown, _ := time.ParseDuration(c.Business.RemindCooldown)
	return cooldown
}

// GetAutoRemindAfter returns the stale-settlement reminder age as duration
func (c *Config) GetAutoRemindAfter() time.Duration {
	age, _ := time.ParseDuration(c.Business.AutoRemindAfter)
	return age
}

// GetCurrentCacheTTL returns the current-settlement cache TTL as duration
func (c *Config) GetCurrentCacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Business.CurrentCacheTTL)
	return ttl
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
