package rollAuth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks a deliberate but notable choice.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that is legal but likely wrong in production.
	LintWarn
	// LintHigh marks a setting that undermines the polling or transport contract.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding produced by Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns
// nil when there are none.
func (r LintResult) AsError(min LintSeverity) error {
	selected := r.BySeverity(min)
	if len(selected) == 0 {
		return nil
	}
	parts := make([]string, 0, len(selected))
	for _, w := range selected {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint describes the lint operation and its observable behavior.
//
// Lint never fails; it reports settings that pass Validate but deserve a
// second look. Callers decide which severities are fatal through AsError.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	switch {
	case c.Polling.Interval == 0:
		add("poll_interval_zero", LintHigh, "poll attempts run back to back and hammer the provider")
	case c.Polling.Interval < time.Second:
		add("poll_interval_short", LintWarn, "poll interval below 1s")
	}

	window := time.Duration(c.Polling.MaxAttempts) * c.Polling.Interval
	if window > 5*time.Minute {
		add("poll_window_long", LintInfo, fmt.Sprintf("a poll task may run for %s", window))
	}

	worst := time.Duration(c.Polling.MaxAttempts) * (c.Polling.Interval + c.Provider.Timeout)
	if c.Polling.PendingTTL > 0 && c.Polling.PendingTTL < worst {
		add("pending_ttl_tight", LintWarn,
			fmt.Sprintf("pending handshake may expire before a slow poll finishes (%s < %s)", c.Polling.PendingTTL, worst))
	}

	if u, err := url.Parse(strings.TrimSpace(c.Provider.BaseURL)); err == nil && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		add("provider_plain_http", LintHigh, "session tokens would cross the network unencrypted")
	}

	if !c.Throttle.Enabled {
		add("throttle_disabled", LintWarn, "roll-in starts are not throttled per user")
	}
	if c.Store.ProfileCacheTTL == 0 {
		add("profile_cache_disabled", LintInfo, "every session check calls the provider")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit trail for roll-in and logout events")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink will stall poll callbacks")
	}

	return ws
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
