package config

import (
	"fmt"
	"time"

	redis "github.com/marketbet/referral-bot/pkg/redis"
)

// Config holds runtime configuration for the referral bot and its admin
// server.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot         BotConfig         `mapstructure:"bot" validate:"required"`
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	DB          DBConfig          `mapstructure:"db" validate:"required"`
	Redis       redis.Config      `mapstructure:"redis"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Broadcast   BroadcastConfig   `mapstructure:"broadcast"`
	Withdrawals WithdrawalsConfig `mapstructure:"withdrawals"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
}

// BotConfig configures the Telegram connection and the links surfaced in
// bot replies.
type BotConfig struct {
	Token          string        `mapstructure:"token" validate:"required"`
	Mode           string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	WebhookPort    string        `mapstructure:"webhook_port" validate:"required_if=Mode webhook"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ChannelID      string        `mapstructure:"channel_id"`
	WebsiteURL     string        `mapstructure:"website_url"`
	SupportContact string        `mapstructure:"support_contact"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig configures the PostgreSQL connection pool.
type DBConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password" validate:"required"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig configures the root logger.
type LoggerConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	FilePath      string `mapstructure:"file_path"`
	FileMaxSizeMB int    `mapstructure:"file_max_size_mb"`
	FileMaxAge    int    `mapstructure:"file_max_age"`
	FileBackups   int    `mapstructure:"file_backups"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// BroadcastConfig paces admin broadcasts.
type BroadcastConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// WithdrawalsConfig carries withdrawal policy knobs.
type WithdrawalsConfig struct {
	// RecreditOnReject returns the debited amount to the user's balance
	// when an admin rejects the withdrawal.
	RecreditOnReject bool `mapstructure:"recredit_on_reject"`
}

// DedupConfig governs the update deduplication records in Redis.
type DedupConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}
