package rollAuth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by rollAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Polling  PollingConfig
	Provider ProviderConfig
	Store    StoreConfig
	Throttle ThrottleConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
POLLING CONFIG
====================================
*/

// PollingConfig bounds one poll task. PendingTTL is the lifetime of the
// stored pending handshake and must outlive the whole attempt budget.
type PollingConfig struct {
	MaxAttempts int
	Interval    time.Duration
	PendingTTL  time.Duration
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig defines a public type used by rollAuth APIs.
//
// Timeout is the hard ceiling for any single provider call.
type ProviderConfig struct {
	BaseURL string
	Origin  string
	Timeout time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls Redis key layout and ancillary cache lifetimes.
type StoreConfig struct {
	RedisPrefix     string
	ProfileCacheTTL time.Duration
	PromptTTL       time.Duration
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits how often one user may start a roll-in.
type ThrottleConfig struct {
	Enabled   bool
	MaxStarts int
	Window    time.Duration
}

// AuditConfig defines a public type used by rollAuth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by rollAuth APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the engine uses when none is
// supplied: fifteen attempts four seconds apart against the public
// provider host.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Polling: PollingConfig{
			MaxAttempts: 15,
			Interval:    4 * time.Second,
			PendingTTL:  5 * time.Minute,
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.mono.sominemo.com",
			Origin:  "https://monoweb.app",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix:     "",
			ProfileCacheTTL: 5 * time.Minute,
			PromptTTL:       24 * time.Hour,
		},
		Throttle: ThrottleConfig{
			Enabled:   false,
			MaxStarts: 5,
			Window:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Provider.BaseURL = strings.TrimSpace(cfg.Provider.BaseURL)
	out.Provider.Origin = strings.TrimSpace(cfg.Provider.Origin)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when a field is out of range or sections contradict each other.
// Validate does not mutate the receiver.
func (c *Config) Validate() error {
	// Polling
	if c.Polling.MaxAttempts <= 0 {
		return errors.New("Polling MaxAttempts must be > 0")
	}
	if c.Polling.MaxAttempts > 100 {
		return errors.New("Polling MaxAttempts must be <= 100")
	}
	if c.Polling.Interval < 0 {
		return errors.New("Polling Interval must be >= 0")
	}
	if c.Polling.Interval > 5*time.Minute {
		return errors.New("Polling Interval must be <= 5m")
	}
	if c.Polling.PendingTTL <= 0 {
		return errors.New("Polling PendingTTL must be > 0")
	}
	if c.Polling.PendingTTL < time.Duration(c.Polling.MaxAttempts)*c.Polling.Interval {
		return errors.New("Polling PendingTTL must cover MaxAttempts * Interval")
	}

	// Provider
	base := strings.TrimSpace(c.Provider.BaseURL)
	if base == "" {
		return errors.New("Provider BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return errors.New("Provider BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Provider BaseURL scheme must be http or https")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("Provider Timeout must be > 0")
	}
	if c.Provider.Timeout > time.Minute {
		return errors.New("Provider Timeout must be <= 1m")
	}

	// Store
	if c.Store.ProfileCacheTTL < 0 {
		return errors.New("Store ProfileCacheTTL must be >= 0")
	}
	if c.Store.PromptTTL <= 0 {
		return errors.New("Store PromptTTL must be > 0")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\n") {
		return errors.New("Store RedisPrefix must not contain whitespace")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxStarts <= 0 {
			return errors.New("Throttle MaxStarts must be > 0 when throttle is enabled")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0 when throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
