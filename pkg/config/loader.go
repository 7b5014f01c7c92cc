// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the environment-specific YAML file and
// environment variables, validates it, and returns the resulting Config.
// Environment variables override file values using underscore-separated
// keys, e.g. BOT_TOKEN overrides bot.token.
func Load() (*Config, *viper.Viper, error) {
	// Missing .env files are fine; containers inject real env vars.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// WatchLogLevel re-applies logger.level to the given LevelVar whenever
// the config file changes on disk, so verbosity can be raised on a live
// process without restarting it.
func WatchLogLevel(v *viper.Viper, level *slog.LevelVar, parse func(string) slog.Level, log *slog.Logger) {
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}

		next := parse(v.GetString("logger.level"))
		if level.Level() == next {
			return
		}

		level.Set(next)
		log.Info("log level changed",
			slog.String("file", event.Name),
			slog.String("level", next.String()),
		)
	})
	v.WatchConfig()
}
