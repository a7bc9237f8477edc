// Package config loads the rollauth-server configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	rollAuth "github.com/MrEthical07/rollAuth"
)

// Config holds the server configuration. Durations are kept as strings the
// way operators write them and parsed by the accessor methods.
type Config struct {
	// HTTPAddr is the listen address of the event API (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// RedisURL is a redis:// or rediss:// URL.
	RedisURL    string `mapstructure:"REDIS_URL"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	ProviderBaseURL string `mapstructure:"PROVIDER_BASE_URL"`
	ProviderOrigin  string `mapstructure:"PROVIDER_ORIGIN"`
	ProviderTimeout string `mapstructure:"PROVIDER_TIMEOUT"`

	PollMaxAttempts int    `mapstructure:"POLL_MAX_ATTEMPTS"`
	PollInterval    string `mapstructure:"POLL_INTERVAL"`
	PendingTTL      string `mapstructure:"PENDING_TTL"`

	ThrottleEnabled   bool   `mapstructure:"THROTTLE_ENABLED"`
	ThrottleMaxStarts int    `mapstructure:"THROTTLE_MAX_STARTS"`
	ThrottleWindow    string `mapstructure:"THROTTLE_WINDOW"`

	AuditEnabled   bool `mapstructure:"AUDIT_ENABLED"`
	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`

	// BotOwners is a comma-separated list of chat user ids allowed to call
	// owner-only events such as check_proto.
	BotOwners string `mapstructure:"BOT_OWNERS"`

	// GatewaySecret is the HS256 key shared with the chat gateway. When
	// GatewayPublicKey is set instead, tokens are verified as Ed25519.
	GatewaySecret    string `mapstructure:"GATEWAY_JWT_SECRET"`
	GatewayPublicKey string `mapstructure:"GATEWAY_JWT_PUBLIC_KEY"`
	GatewayIssuer    string `mapstructure:"GATEWAY_JWT_ISSUER"`
	GatewayAudience  string `mapstructure:"GATEWAY_JWT_AUDIENCE"`

	// NotifyWebhookURL is the chat gateway's message endpoint. Empty means
	// messages are only logged.
	NotifyWebhookURL    string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookSecret string `mapstructure:"NOTIFY_WEBHOOK_SECRET"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.AutomaticEnv()

	defaults := rollAuth.DefaultConfig()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_PREFIX", defaults.Store.RedisPrefix)
	v.SetDefault("PROVIDER_BASE_URL", defaults.Provider.BaseURL)
	v.SetDefault("PROVIDER_ORIGIN", defaults.Provider.Origin)
	v.SetDefault("PROVIDER_TIMEOUT", defaults.Provider.Timeout.String())
	v.SetDefault("POLL_MAX_ATTEMPTS", defaults.Polling.MaxAttempts)
	v.SetDefault("POLL_INTERVAL", defaults.Polling.Interval.String())
	v.SetDefault("PENDING_TTL", defaults.Polling.PendingTTL.String())
	v.SetDefault("THROTTLE_ENABLED", defaults.Throttle.Enabled)
	v.SetDefault("THROTTLE_MAX_STARTS", defaults.Throttle.MaxStarts)
	v.SetDefault("THROTTLE_WINDOW", defaults.Throttle.Window.String())
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("BOT_OWNERS", "")
	v.SetDefault("GATEWAY_JWT_SECRET", "")
	v.SetDefault("GATEWAY_JWT_PUBLIC_KEY", "")
	v.SetDefault("GATEWAY_JWT_ISSUER", "")
	v.SetDefault("GATEWAY_JWT_AUDIENCE", "")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_WEBHOOK_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.RedisURL == "" {
		return errors.New("config: REDIS_URL must be set")
	}
	if c.GatewaySecret == "" && c.GatewayPublicKey == "" {
		return errors.New("config: one of GATEWAY_JWT_SECRET or GATEWAY_JWT_PUBLIC_KEY must be set")
	}
	if c.GatewaySecret != "" && len(c.GatewaySecret) < 32 {
		return errors.New("config: GATEWAY_JWT_SECRET must be at least 32 bytes")
	}
	for name, raw := range map[string]string{
		"PROVIDER_TIMEOUT": c.ProviderTimeout,
		"POLL_INTERVAL":    c.PollInterval,
		"PENDING_TTL":      c.PendingTTL,
		"THROTTLE_WINDOW":  c.ThrottleWindow,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if _, err := c.Owners(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return errors.New("config: LOG_FORMAT must be json or text")
	}
	return nil
}

// Owners parses BotOwners. Every entry must be a decimal chat id.
func (c *Config) Owners() ([]string, error) {
	if c == nil || strings.TrimSpace(c.BotOwners) == "" {
		return nil, nil
	}
	parts := strings.Split(c.BotOwners, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("config: BOT_OWNERS entry %q is not a chat id", s)
		}
		out = append(out, s)
	}
	return out, nil
}

// Engine maps the server settings onto a rollAuth.Config. It must only be
// called on a Config returned by Load.
func (c *Config) Engine() rollAuth.Config {
	cfg := rollAuth.DefaultConfig()
	cfg.Provider.BaseURL = c.ProviderBaseURL
	cfg.Provider.Origin = c.ProviderOrigin
	cfg.Provider.Timeout = mustDuration(c.ProviderTimeout)
	cfg.Polling.MaxAttempts = c.PollMaxAttempts
	cfg.Polling.Interval = mustDuration(c.PollInterval)
	cfg.Polling.PendingTTL = mustDuration(c.PendingTTL)
	cfg.Store.RedisPrefix = c.RedisPrefix
	cfg.Throttle.Enabled = c.ThrottleEnabled
	cfg.Throttle.MaxStarts = c.ThrottleMaxStarts
	cfg.Throttle.Window = mustDuration(c.ThrottleWindow)
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

func mustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}
