package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Billing   BillingConfig   `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
	Env  string `mapstructure:"ENV"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"DATABASE_HOST"`
	Port         string `mapstructure:"DATABASE_PORT"`
	Name         string `mapstructure:"DATABASE_NAME"`
	User         string `mapstructure:"DATABASE_USER"`
	Password     string `mapstructure:"DATABASE_PASSWORD"`
	SSLMode      string `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	MigrationDir string `mapstructure:"MIGRATION_DIR"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	// SweepSpec is a 6-field cron expression for the daily sweep.
	SweepSpec string `mapstructure:"SWEEP_CRON_SPEC"`
}

type BillingConfig struct {
	// Timezone pins which calendar day "today" means for due-date and
	// reminder decisions, independent of server zone.
	Timezone         string `mapstructure:"BILLING_TIMEZONE"`
	WebhookSecret    string `mapstructure:"WEBHOOK_SECRET"`
	SweepConcurrency int    `mapstructure:"SWEEP_CONCURRENCY"`
	LockTTL          string `mapstructure:"AGREEMENT_LOCK_TTL"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_NAME", "billing")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("MIGRATION_DIR", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SWEEP_CRON_SPEC", "0 0 1 * * *")
	viper.SetDefault("BILLING_TIMEZONE", "UTC")
	viper.SetDefault("SWEEP_CONCURRENCY", 4)
	viper.SetDefault("AGREEMENT_LOCK_TTL", "30s")
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

	if c.Database.Name == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return fmt.Errorf("BILLING_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.Billing.SweepConcurrency <= 0 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be greater than 0")
	}

	if _, err := time.ParseDuration(c.Billing.LockTTL); err != nil {
		return fmt.Errorf("AGREEMENT_LOCK_TTL must be a valid duration: %w", err)
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

// DSN builds the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// MigrationURL builds the URL golang-migrate connects with.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Location returns the pinned billing timezone.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Billing.Timezone)
	return loc
}

// GetLockTTL returns the per-agreement lock TTL as duration
func (c *Config) GetLockTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Billing.LockTTL)
	return ttl
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
