package rollAuth

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigNoHighWarnings(t *testing.T) {
	cfg := defaultConfig()
	ws := cfg.Lint()

	if len(ws.BySeverity(LintHigh)) != 0 {
		t.Fatalf("default config should have no HIGH warnings, got %v", ws.BySeverity(LintHigh).Codes())
	}
	// The default leaves throttle and audit off.
	codes := ws.Codes()
	if !containsCode(codes, "throttle_disabled") {
		t.Error("expected throttle_disabled on default config")
	}
	if !containsCode(codes, "audit_disabled") {
		t.Error("expected audit_disabled on default config")
	}
}

func TestLint_ZeroInterval(t *testing.T) {
	cfg := defaultConfig()
	cfg.Polling.Interval = 0
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "poll_interval_zero") {
		t.Error("expected poll_interval_zero warning")
	}
	for _, w := range ws {
		if w.Code == "poll_interval_zero" && w.Severity != LintHigh {
			t.Errorf("poll_interval_zero should be HIGH, got %s", w.Severity)
		}
	}
}

func TestLint_ShortInterval(t *testing.T) {
	cfg := defaultConfig()
	cfg.Polling.Interval = 200 * time.Millisecond
	if !containsCode(cfg.Lint().Codes(), "poll_interval_short") {
		t.Error("expected poll_interval_short warning")
	}
}

func TestLint_LongWindow(t *testing.T) {
	cfg := defaultConfig()
	cfg.Polling.MaxAttempts = 60
	cfg.Polling.Interval = 10 * time.Second
	cfg.Polling.PendingTTL = time.Hour
	if !containsCode(cfg.Lint().Codes(), "poll_window_long") {
		t.Error("expected poll_window_long warning")
	}
}

func TestLint_PendingTTLTight(t *testing.T) {
	cfg := defaultConfig()
	cfg.Polling.PendingTTL = time.Minute
	if !containsCode(cfg.Lint().Codes(), "pending_ttl_tight") {
		t.Error("expected pending_ttl_tight warning")
	}

	cfg = defaultConfig()
	if containsCode(cfg.Lint().Codes(), "pending_ttl_tight") {
		t.Error("default pending TTL should cover a slow poll")
	}
}

func TestLint_PlainHTTPProvider(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider.BaseURL = "http://provider.example"
	if !containsCode(cfg.Lint().Codes(), "provider_plain_http") {
		t.Error("expected provider_plain_http warning")
	}

	cfg.Provider.BaseURL = "http://127.0.0.1:8080"
	if containsCode(cfg.Lint().Codes(), "provider_plain_http") {
		t.Error("loopback provider should not warn")
	}
}

func TestLint_AuditBlocking(t *testing.T) {
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "audit_blocking") {
		t.Error("expected audit_blocking warning")
	}
	if containsCode(codes, "audit_disabled") {
		t.Error("audit_disabled should not fire when audit is on")
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}

	cfg.Polling.Interval = 0
	if err := cfg.Lint().AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to return error for zero interval")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := defaultConfig()
	cfg.Polling.Interval = 0
	cfg.Provider.BaseURL = "http://provider.example"
	high := cfg.Lint().BySeverity(LintHigh)
	if len(high) != 2 {
		t.Fatalf("expected 2 HIGH warnings, got %v", high.Codes())
	}
	for _, w := range high {
		if w.Severity < LintHigh {
			t.Errorf("BySeverity(LintHigh) returned warning with severity %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
