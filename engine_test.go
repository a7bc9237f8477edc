package rollAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/provider/providertest"
)

type testEnv struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	fake   *providertest.Server
	rec    *notify.Recorder
	sink   *ChannelSink
	engine *Engine
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig(providerURL string, maxAttempts int) Config {
	cfg := DefaultConfig()
	cfg.Provider.BaseURL = providerURL
	cfg.Provider.Timeout = time.Second
	cfg.Polling.MaxAttempts = maxAttempts
	cfg.Polling.Interval = time.Millisecond
	cfg.Polling.PendingTTL = time.Minute
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	return cfg
}

func newTestEnv(t *testing.T, completeAfter int, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	fake := providertest.New(completeAfter)
	t.Cleanup(fake.Close)

	cfg := testConfig(fake.URL(), 15)
	if mutate != nil {
		mutate(&cfg)
	}

	rec := notify.NewRecorder()
	sink := NewChannelSink(256)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithNotifier(rec).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{mr: mr, rdb: rdb, fake: fake, rec: rec, sink: sink, engine: engine}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (env *testEnv) drainAudit() []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case ev := <-env.sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBuildRequiresCollaborators(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().WithNotifier(notify.NewRecorder()).Build(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis error, got %v", err)
	}
	if _, err := New().WithRedis(rdb).Build(); err == nil || !strings.Contains(err.Error(), "notifier") {
		t.Fatalf("expected notifier error, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Polling.MaxAttempts = 0
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithNotifier(notify.NewRecorder()).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithRedis(rdb).WithNotifier(notify.NewRecorder())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestStartAuthCompletesOnSeventhAttempt(t *testing.T) {
	env := newTestEnv(t, 7, nil)
	ctx := WithRequestID(context.Background(), "req-1")

	res, err := env.engine.StartAuth(ctx, "u1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.State != StatePollingStarted || res.TaskID == "" || res.PromptRef == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	waitFor(t, "session active", func() bool { return env.rec.Count("u1", KindSessionActive) == 1 })
	waitFor(t, "poll finished", func() bool { return env.engine.MetricsSnapshot().Counters[MetricPollSucceeded] == 1 })
	if env.engine.PollActive("u1") {
		t.Fatal("finished task should be deregistered")
	}

	token, err := env.rdb.Get(ctx, "session_token:u1").Result()
	if err != nil || token != "s-h1" {
		t.Fatalf("expected stored session s-h1, got %q (%v)", token, err)
	}
	if env.fake.ExchangeCalls("h1") != 7 {
		t.Fatalf("expected 7 exchange calls, got %d", env.fake.ExchangeCalls("h1"))
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricPollAttempt] != 7 {
		t.Fatalf("expected 7 attempts recorded, got %d", snap.Counters[MetricPollAttempt])
	}
	if snap.Counters[MetricPollSucceeded] != 1 || snap.Counters[MetricRollInStarted] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	var observed uint64
	for _, v := range snap.Histograms[MetricExchangeLatency] {
		observed += v
	}
	if observed != 7 {
		t.Fatalf("expected 7 latency observations, got %d", observed)
	}

	status, err := env.engine.CheckSession(ctx, "u1")
	if err != nil || !status.Authenticated || status.Profile.FirstName() != "Taras" {
		t.Fatalf("unexpected status %+v (%v)", status, err)
	}
}

func TestStartAuthAuditTrail(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	ctx := WithClientIP(WithRequestID(context.Background(), "req-7"), "10.0.0.1")

	if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "poll finished", func() bool { return env.engine.MetricsSnapshot().Counters[MetricPollSucceeded] == 1 })
	env.engine.Close()

	byType := map[string]AuditEvent{}
	for _, ev := range env.drainAudit() {
		byType[ev.EventType] = ev
	}

	started, ok := byType[auditEventRollInStarted]
	if !ok || started.RequestID != "req-7" || started.Metadata["ip"] != "10.0.0.1" {
		t.Fatalf("unexpected rollin_started event %+v", started)
	}
	promoted, ok := byType[auditEventSessionPromoted]
	if !ok || promoted.RequestID != "req-7" || !promoted.Success {
		t.Fatalf("unexpected session_promoted event %+v", promoted)
	}
	finished, ok := byType[auditEventPollFinished]
	if !ok || finished.Attempts != 2 || finished.Metadata["outcome"] != "succeeded" {
		t.Fatalf("unexpected poll_finished event %+v", finished)
	}
	for _, ev := range byType {
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("event not stamped: %+v", ev)
		}
	}
}

func TestStartAuthExistingSession(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	ctx := context.Background()
	env.mr.Set("session_token:u1", "s-old")

	res, err := env.engine.StartAuth(ctx, "u1", "uk")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.State != StateAuthenticated || res.Profile == nil {
		t.Fatalf("expected authenticated, got %+v", res)
	}
	if env.fake.RollInRequests() != 0 {
		t.Fatal("existing session must not request a handshake")
	}
	sent := env.rec.Sent("u1")
	if len(sent) != 1 || sent[0].Message.Kind != KindWelcomeBack || sent[0].Message.Args[0] != "Taras" {
		t.Fatalf("unexpected messages %+v", sent)
	}
}

func TestStartAuthExhaustion(t *testing.T) {
	env := newTestEnv(t, 0, func(c *Config) { c.Polling.MaxAttempts = 3 })
	ctx := context.Background()

	if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "expiry notice", func() bool { return env.rec.Count("u1", KindTokenExpired) == 1 })
	waitFor(t, "poll finished", func() bool { return env.engine.MetricsSnapshot().Counters[MetricPollExhausted] == 1 })

	if env.fake.ExchangeCalls("h1") != 3 {
		t.Fatalf("expected 3 exchange calls, got %d", env.fake.ExchangeCalls("h1"))
	}
	if env.mr.Exists("pending_handshake:u1") {
		t.Fatal("pending handshake should be cleared on exhaustion")
	}
	for _, s := range env.rec.Sent("u1") {
		if s.Message.Kind == KindTokenExpired {
			if len(s.Message.Buttons) != 1 || s.Message.Buttons[0].Action != ActionNewToken {
				t.Fatalf("expiry message must offer retry, got %+v", s.Message.Buttons)
			}
		}
	}

	// The retry action starts a fresh handshake.
	env.fake.CompleteAfter("h2", 1)
	res, err := env.engine.NewToken(ctx, "u1", "en")
	if err != nil || res.State != StatePollingStarted {
		t.Fatalf("retry: %+v (%v)", res, err)
	}
	waitFor(t, "session active", func() bool { return env.rec.Count("u1", KindSessionActive) == 1 })
}

func TestStartAuthSupersedesPreviousPoll(t *testing.T) {
	env := newTestEnv(t, 0, func(c *Config) {
		c.Polling.Interval = 20 * time.Millisecond
		c.Polling.MaxAttempts = 50
	})
	ctx := context.Background()

	if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	env.fake.CompleteAfter("h2", 2)
	if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if env.engine.ActivePolls() != 1 {
		t.Fatalf("expected one live poll, got %d", env.engine.ActivePolls())
	}

	waitFor(t, "session active", func() bool { return env.rec.Count("u1", KindSessionActive) == 1 })
	waitFor(t, "first task cancelled", func() bool {
		return env.engine.MetricsSnapshot().Counters[MetricPollCancelled] == 1
	})

	token, _ := env.rdb.Get(ctx, "session_token:u1").Result()
	if token != "s-h2" {
		t.Fatalf("expected s-h2, got %q", token)
	}
	if env.rec.Count("u1", KindTokenExpired) != 0 {
		t.Fatal("superseded task must not notify")
	}
}

func TestStartAuthHandshakeFailure(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	env.fake.FailRollIn(true)

	res, err := env.engine.StartAuth(context.Background(), "u1", "en")
	if !errors.Is(err, ErrHandshakeUnavailable) {
		t.Fatalf("expected ErrHandshakeUnavailable, got %v", err)
	}
	if res.State != StateHandshakeFailed {
		t.Fatalf("unexpected state %v", res.State)
	}
	if kinds := env.rec.Kinds("u1"); len(kinds) != 1 || kinds[0] != KindRollInError {
		t.Fatalf("unexpected messages %v", kinds)
	}
}

func TestStartAuthStoreFailureShowsNoQR(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	env.mr.SetError("READONLY")

	res, err := env.engine.StartAuth(context.Background(), "u1", "en")
	if err == nil {
		t.Fatal("expected error with failing store")
	}
	if res.State == StatePollingStarted {
		t.Fatal("poll must not start without a pending record")
	}
	if env.rec.Count("u1", KindQRPrompt) != 0 {
		t.Fatal("QR prompt must not be shown")
	}
	if env.engine.ActivePolls() != 0 {
		t.Fatal("no poll task expected")
	}
}

func TestStartAuthThrottle(t *testing.T) {
	env := newTestEnv(t, 0, func(c *Config) {
		c.Throttle.Enabled = true
		c.Throttle.MaxStarts = 2
		c.Throttle.Window = time.Minute
		c.Polling.Interval = 50 * time.Millisecond
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	res, err := env.engine.StartAuth(ctx, "u1", "en")
	if !errors.Is(err, ErrRateLimited) || res.State != StateRateLimited {
		t.Fatalf("expected rate limited, got %+v (%v)", res, err)
	}
	if env.rec.Count("u1", KindRateLimited) != 1 {
		t.Fatal("expected rate-limited notice")
	}
	if env.engine.MetricsSnapshot().Counters[MetricRateLimited] != 1 {
		t.Fatal("expected rate limited metric")
	}
}

func TestLogoutCancelsPollAndClears(t *testing.T) {
	env := newTestEnv(t, 0, func(c *Config) { c.Polling.Interval = 20 * time.Millisecond })
	ctx := context.Background()

	if _, err := env.engine.StartAuth(ctx, "u1", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !env.engine.PollActive("u1") {
		t.Fatal("expected live poll")
	}

	if err := env.engine.Logout(ctx, "u1", "en"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if env.engine.PollActive("u1") {
		t.Fatal("poll should be cancelled by logout")
	}
	if env.mr.Exists("pending_handshake:u1") || env.mr.Exists("session_token:u1") {
		t.Fatal("logout must clear pending and session keys")
	}
	waitFor(t, "cancelled outcome", func() bool {
		return env.engine.MetricsSnapshot().Counters[MetricPollCancelled] == 1
	})
	if env.rec.Count("u1", KindLogout) != 1 {
		t.Fatal("expected logout notice")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.Logout(ctx, "nobody", "en"); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	if env.engine.MetricsSnapshot().Counters[MetricLogout] != 2 {
		t.Fatal("expected two successful logouts")
	}
}

func TestLogoutStoreFailure(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	env.mr.SetError("DOWN")

	err := env.engine.Logout(context.Background(), "u1", "en")
	if !errors.Is(err, ErrLogoutFailed) {
		t.Fatalf("expected ErrLogoutFailed, got %v", err)
	}
	if env.rec.Count("u1", KindUnknownError) != 1 {
		t.Fatal("expected generic error notice")
	}
}

func TestProfileWithoutSession(t *testing.T) {
	env := newTestEnv(t, 0, nil)

	if _, err := env.engine.Profile(context.Background(), "u1", "en"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if env.rec.Count("u1", KindNotAuthorized) != 1 {
		t.Fatal("expected not authorized notice")
	}
}

func TestProfileStaleSessionCleared(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	env.mr.Set("session_token:u1", "s-dead")
	env.fake.Invalidate("s-dead")

	_, err := env.engine.Profile(context.Background(), "u1", "en")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if env.mr.Exists("session_token:u1") {
		t.Fatal("stale session should be cleared")
	}
	if env.engine.MetricsSnapshot().Counters[MetricStaleSessionCleared] != 1 {
		t.Fatal("expected stale session metric")
	}
}

func TestProfileSendsAccounts(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	env.mr.Set("session_token:u1", "s-live")

	p, err := env.engine.Profile(context.Background(), "u1", "en")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(p.Accounts) != 1 || p.Accounts[0].Currency != "UAH" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if env.rec.Count("u1", KindAccounts) != 1 {
		t.Fatal("expected accounts message")
	}
}

func TestCheckProto(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	info, err := env.engine.CheckProto(context.Background())
	if err != nil || info == nil {
		t.Fatalf("check proto: %v", err)
	}
}

func TestEngineRejectsEmptyUser(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	if _, err := env.engine.StartAuth(context.Background(), "  ", "en"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if err := env.engine.Logout(context.Background(), "", "en"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestClosedEngineNotReady(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	env.engine.Close()
	env.engine.Close()

	if _, err := env.engine.StartAuth(context.Background(), "u1", "en"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if len(env.rec.Sent("u1")) != 0 {
		t.Fatal("closed engine must not notify")
	}

	var nilEngine *Engine
	if _, err := nilEngine.CheckProto(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady from nil engine, got %v", err)
	}
	if nilEngine.ActivePolls() != 0 || nilEngine.AuditDropped() != 0 {
		t.Fatal("nil engine accessors should be inert")
	}
}
