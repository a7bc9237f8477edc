package internaldefs

import (
	rollAuth "github.com/MrEthical07/rollAuth"
)

type CounterDef struct {
	ID   rollAuth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   rollAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: rollAuth.MetricRollInStarted, Name: "rollauth_rollin_started_total", Help: "Roll-ins that showed a QR prompt and started polling."},
	{ID: rollAuth.MetricAlreadyAuthenticated, Name: "rollauth_already_authenticated_total", Help: "Start requests answered from a valid existing session."},
	{ID: rollAuth.MetricHandshakeFailed, Name: "rollauth_handshake_failed_total", Help: "Handshake requests the provider could not serve."},
	{ID: rollAuth.MetricPendingWriteFailed, Name: "rollauth_pending_write_failed_total", Help: "Handshakes dropped because the pending record could not be stored."},
	{ID: rollAuth.MetricPollAttempt, Name: "rollauth_poll_attempt_total", Help: "Exchange calls made by poll tasks."},
	{ID: rollAuth.MetricPollSucceeded, Name: "rollauth_poll_succeeded_total", Help: "Poll tasks that promoted a session."},
	{ID: rollAuth.MetricPollCancelled, Name: "rollauth_poll_cancelled_total", Help: "Poll tasks cancelled by supersession, logout or shutdown."},
	{ID: rollAuth.MetricPollExhausted, Name: "rollauth_poll_exhausted_total", Help: "Poll tasks that ran out of attempts."},
	{ID: rollAuth.MetricPollFailed, Name: "rollauth_poll_failed_total", Help: "Poll tasks that could not persist the session."},
	{ID: rollAuth.MetricLogout, Name: "rollauth_logout_total", Help: "Successful logouts."},
	{ID: rollAuth.MetricLogoutFailed, Name: "rollauth_logout_failed_total", Help: "Logouts that failed to clear the session."},
	{ID: rollAuth.MetricStaleSessionCleared, Name: "rollauth_stale_session_cleared_total", Help: "Stored sessions the provider rejected and that were cleared."},
	{ID: rollAuth.MetricRateLimited, Name: "rollauth_rate_limited_total", Help: "Start requests rejected by the per-user throttle."},
}

var HistogramDefs = []HistogramDef{
	{ID: rollAuth.MetricExchangeLatency, Name: "rollauth_exchange_latency_seconds", Help: "Provider exchange call latency."},
}

var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix names the OTel bucket gauges; index-aligned with
// HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
