package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	PayFast    PayFastConfig    `mapstructure:"payfast"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SettlementConfig holds settlement engine policy
type SettlementConfig struct {
	// FeeRate is the platform commission as a fraction, e.g. 0.12 for 12%.
	FeeRate             float64 `mapstructure:"fee_rate"`
	MaxAttempts         int     `mapstructure:"max_attempts"`
	ProviderConcurrency int     `mapstructure:"provider_concurrency"`
	Currency            string  `mapstructure:"currency"`
	// AllowHoldingOverdraft lets the holding account go negative, covering
	// the window between payout runs and incoming booking funds.
	AllowHoldingOverdraft bool `mapstructure:"allow_holding_overdraft"`
	// GatewayEnabled turns on the real-money PayFast leg.
	GatewayEnabled bool `mapstructure:"gateway_enabled"`
}

// SchedulerConfig holds cron schedules for automated runs
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	WeeklySchedule    string `mapstructure:"weekly_schedule"`
	SafetyNetSchedule string `mapstructure:"safety_net_schedule"`
	JobTimeoutMinutes int    `mapstructure:"job_timeout_minutes"`
}

// PayFastConfig holds PayFast payout gateway configuration
type PayFastConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	MerchantID     string `mapstructure:"merchant_id"`
	Passphrase     string `mapstructure:"passphrase"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// RabbitMQConfig holds the broker connection for report delivery. An empty
// URL falls back to log-only notification.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig holds shared secrets for the cron and admin surfaces
type AuthConfig struct {
	CronSecret  string `mapstructure:"cron_secret"`
	AdminSecret string `mapstructure:"admin_secret"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `mapstructure:"level"` // debug, info, warn, error
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables, with an optional
// config file for local development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "rubhub_settlement")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("settlement.fee_rate", 0.12)
	v.SetDefault("settlement.max_attempts", 3)
	v.SetDefault("settlement.provider_concurrency", 4)
	v.SetDefault("settlement.currency", "ZAR")
	v.SetDefault("settlement.allow_holding_overdraft", false)
	v.SetDefault("settlement.gateway_enabled", false)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.weekly_schedule", "0 2 * * 5")     // Friday 02:00
	v.SetDefault("scheduler.safety_net_schedule", "0 9 * * 1") // Monday 09:00
	v.SetDefault("scheduler.job_timeout_minutes", 30)
	v.SetDefault("payfast.base_url", "https://api.payfast.co.za")
	v.SetDefault("payfast.timeout_seconds", 30)
	v.SetDefault("payfast.max_retries", 2)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)

	v.SetEnvPrefix("RUBHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly so they appear in Unmarshal, e.g.
	// RUBHUB_DATABASE_PASSWORD -> database.password.
	for _, key := range []string{
		"server.host", "server.port",
		"database.host", "database.port", "database.user", "database.password",
		"database.name", "database.ssl_mode", "database.max_conns", "database.min_conns",
		"settlement.fee_rate", "settlement.max_attempts", "settlement.provider_concurrency",
		"settlement.currency", "settlement.allow_holding_overdraft", "settlement.gateway_enabled",
		"scheduler.enabled", "scheduler.weekly_schedule", "scheduler.safety_net_schedule",
		"scheduler.job_timeout_minutes",
		"payfast.base_url", "payfast.merchant_id", "payfast.passphrase",
		"payfast.timeout_seconds", "payfast.max_retries",
		"rabbitmq.url",
		"auth.cron_secret", "auth.admin_secret",
		"logger.level", "logger.development",
	} {
		_ = v.BindEnv(key)
	}

	// Optional local config file; environment always wins.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("RUBHUB_DATABASE_PASSWORD is required")
	}
	if c.Settlement.FeeRate < 0 || c.Settlement.FeeRate >= 1 {
		return fmt.Errorf("settlement fee_rate must be in [0, 1), got %v", c.Settlement.FeeRate)
	}
	if c.Settlement.MaxAttempts < 1 {
		return fmt.Errorf("settlement max_attempts must be at least 1")
	}
	if c.Settlement.GatewayEnabled && c.PayFast.MerchantID == "" {
		return fmt.Errorf("RUBHUB_PAYFAST_MERCHANT_ID is required when the gateway is enabled")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
