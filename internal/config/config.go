// Package config loads service configuration from an optional YAML file
// and VORTEX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VORTEX_SERVER_ADDR.
const EnvPrefix = "VORTEX"

// Config is the full service configuration.
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	HTTP     HTTPConfig
	Perf     PerfConfig
	Outbox   OutboxConfig
	Log      LogConfig
	Subs     SubscriptionsConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig enables the Redis bus and profile cache when URL is set.
type RedisConfig struct {
	URL           string
	ChannelPrefix string
	ProfileTTL    time.Duration
}

// EmailConfig selects Resend when ResendKey is set, otherwise a logging sender.
type EmailConfig struct {
	ResendKey string
	From      string
	ReplyTo   string
}

type HTTPConfig struct {
	RateLimitPerSecond int
	CSRFKey            string
	AllowedOrigins     []string // also trusted for CSRF and WebSocket origin checks
	AdminIDs           []string // user IDs allowed on /api/admin/
	PageSize           int      // default ?limit= for GET .../messages
}

type PerfConfig struct {
	SlowQueryMs   int
	SlowRequestMs int
	RingSize      int
}

type OutboxConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

type LogConfig struct {
	Level string
}

type SubscriptionsConfig struct {
	MarkReadConcurrency int
	MessageLimit        int // live history cap; non-positive pushes the whole history
}

// IsProduction reports whether Env is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// SlogLevel maps Log.Level to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Validate rejects configurations that cannot run safely.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.IsProduction() && len(c.HTTP.CSRFKey) < 32 {
		errs = append(errs, errors.New("http.csrf_key must be at least 32 bytes in production"))
	}
	if c.HTTP.PageSize <= 0 {
		errs = append(errs, errors.New("http.page_size must be positive"))
	}
	if c.HTTP.RateLimitPerSecond < 0 {
		errs = append(errs, errors.New("http.rate_limit_per_second must not be negative"))
	}
	if c.Outbox.Interval <= 0 {
		errs = append(errs, errors.New("outbox.interval must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.path", "vortex.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel_prefix", "vortex:")
	v.SetDefault("redis.profile_ttl", "5m")
	v.SetDefault("email.resend_key", "")
	v.SetDefault("email.from", "Vortex <noreply@vortex.social>")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("http.rate_limit_per_second", 20)
	v.SetDefault("http.csrf_key", "")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.admin_ids", []string{})
	v.SetDefault("http.page_size", 500)
	v.SetDefault("perf.slow_query_ms", 50)
	v.SetDefault("perf.slow_request_ms", 500)
	v.SetDefault("perf.ring_size", 2000)
	v.SetDefault("outbox.interval", "1m")
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("subscriptions.mark_read_concurrency", 8)
	v.SetDefault("subscriptions.message_limit", 0)
}

// Load reads config.yaml from configPath, "." or "./config" when present,
// then applies environment overrides and defaults.
// POST: Returns a validated Config
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Env: v.GetString("env"),
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Redis: RedisConfig{
			URL:           v.GetString("redis.url"),
			ChannelPrefix: v.GetString("redis.channel_prefix"),
			ProfileTTL:    v.GetDuration("redis.profile_ttl"),
		},
		Email: EmailConfig{
			ResendKey: v.GetString("email.resend_key"),
			From:      v.GetString("email.from"),
			ReplyTo:   v.GetString("email.reply_to"),
		},
		HTTP: HTTPConfig{
			RateLimitPerSecond: v.GetInt("http.rate_limit_per_second"),
			CSRFKey:            v.GetString("http.csrf_key"),
			AllowedOrigins:     v.GetStringSlice("http.allowed_origins"),
			AdminIDs:           v.GetStringSlice("http.admin_ids"),
			PageSize:           v.GetInt("http.page_size"),
		},
		Perf: PerfConfig{
			SlowQueryMs:   v.GetInt("perf.slow_query_ms"),
			SlowRequestMs: v.GetInt("perf.slow_request_ms"),
			RingSize:      v.GetInt("perf.ring_size"),
		},
		Outbox: OutboxConfig{
			Interval:    v.GetDuration("outbox.interval"),
			MaxAttempts: v.GetInt("outbox.max_attempts"),
		},
		Log: LogConfig{Level: v.GetString("log.level")},
		Subs: SubscriptionsConfig{
			MarkReadConcurrency: v.GetInt("subscriptions.mark_read_concurrency"),
			MessageLimit:        v.GetInt("subscriptions.message_limit"),
		},
	}
}
