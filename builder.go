package rollAuth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/rollAuth/internal/flows"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/rate"
	"github.com/MrEthical07/rollAuth/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by rollAuth APIs.
//
// A Builder is single use: Build may succeed once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger         *slog.Logger
	notifier       Notifier
	providerClient *http.Client
	auditSink      AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// The returned Builder starts from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the store backing sessions, pending handshakes, caches and
// the start throttle. Cluster and sentinel clients are accepted.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. The default is slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
//
// The notifier is required; Build fails without one.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithProviderHTTPClient overrides the HTTP client used for provider
// calls. Config.Provider.Timeout still bounds every call.
func (b *Builder) WithProviderHTTPClient(c *http.Client) *Builder {
	b.providerClient = c
	return b
}

// WithAuditSink sets the sink audit events are dispatched to when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the exchange latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or a required collaborator is missing.
// Build performs no I/O; the first Redis or provider call happens on the first Engine method.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PROVIDER --------
	client, err := provider.New(provider.Config{
		BaseURL:    cfg.Provider.BaseURL,
		Origin:     cfg.Provider.Origin,
		Timeout:    cfg.Provider.Timeout,
		HTTPClient: b.providerClient,
	})
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	sessions := stores.NewSessionStore(b.redis, cfg.Store.RedisPrefix)
	profiles := stores.NewProfileCache(b.redis, cfg.Store.RedisPrefix)
	prompts := stores.NewMessageRefStore(b.redis, cfg.Store.RedisPrefix)

	engine := &Engine{
		config:   cloneConfig(cfg),
		logger:   logger,
		provider: client,
		sessions: sessions,
		notifier: b.notifier,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.limiter = rate.New(b.redis, rate.Config{
		Enabled:   cfg.Throttle.Enabled,
		MaxStarts: cfg.Throttle.MaxStarts,
		Window:    cfg.Throttle.Window,
		Prefix:    cfg.Store.RedisPrefix,
	})

	// -------- POLLING --------
	engine.supervisor = poll.New(
		poll.Config{
			MaxAttempts: cfg.Polling.MaxAttempts,
			Interval:    cfg.Polling.Interval,
			Logger:      logger,
		},
		poll.Deps{
			Exchanger: client,
			Promoter:  sessions,
			Profiles:  client,
		},
		poll.Hooks{
			OnAttempt: engine.onPollAttempt,
			OnFinish:  engine.onPollFinish,
		},
	)

	// -------- FLOWS --------
	engine.flow = flows.New(flows.Deps{
		Sessions:        sessions,
		Profiles:        profiles,
		Prompts:         prompts,
		Provider:        client,
		Supervisor:      engine.supervisor,
		Notifier:        b.notifier,
		PendingTTL:      cfg.Polling.PendingTTL,
		PromptTTL:       cfg.Store.PromptTTL,
		ProfileCacheTTL: cfg.Store.ProfileCacheTTL,
		CheckThrottle:   engine.limiter.CheckStart,
		MetricInc:       engine.flowMetricInc,
		EmitAudit:       engine.emitAudit,
		Warn:            logger.Warn,
		Metrics: flows.Metrics{
			RollInStarted:        int(MetricRollInStarted),
			AlreadyAuthenticated: int(MetricAlreadyAuthenticated),
			HandshakeFailed:      int(MetricHandshakeFailed),
			PendingWriteFailed:   int(MetricPendingWriteFailed),
			StaleSessionCleared:  int(MetricStaleSessionCleared),
			RateLimited:          int(MetricRateLimited),
			Logout:               int(MetricLogout),
			LogoutFailed:         int(MetricLogoutFailed),
		},
		Events: flows.Events{
			RollInStarted:       auditEventRollInStarted,
			RollInAuthenticated: auditEventRollInAuthenticated,
			HandshakeFailed:     auditEventHandshakeFailed,
			SessionPromoted:     auditEventSessionPromoted,
			HandshakeExpired:    auditEventHandshakeExpired,
			PollFailed:          auditEventPollFailed,
			Logout:              auditEventLogout,
			RateLimited:         auditEventRateLimitTriggered,
		},
	})

	b.built = true

	return engine, nil
}
