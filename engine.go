package rollAuth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/rollAuth/internal/audit"
	"github.com/MrEthical07/rollAuth/internal/flows"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/rate"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

// Engine defines a public type used by rollAuth APIs.
//
// Engine methods are safe for concurrent use after Builder.Build. Each user
// has at most one live poll task regardless of how many goroutines call
// StartAuth for that user.
type Engine struct {
	config     Config
	logger     *slog.Logger
	provider   *provider.Client
	sessions   *stores.SessionStore
	limiter    *rate.Limiter
	supervisor *poll.Supervisor
	notifier   Notifier
	flow       flows.Service
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	closed     atomic.Bool
}

// Close describes the close operation and its observable behavior.
//
// Close cancels every live poll task, waits for them to return and then
// drains the audit dispatcher. Calling Close more than once is safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	if e.supervisor != nil {
		e.supervisor.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot never returns nil maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ActivePolls returns the number of users with a live poll task.
func (e *Engine) ActivePolls() int {
	if e == nil || e.supervisor == nil {
		return 0
	}
	return e.supervisor.Len()
}

// PollActive reports whether userID has a live poll task.
func (e *Engine) PollActive(userID string) bool {
	if e == nil || e.supervisor == nil {
		return false
	}
	return e.supervisor.Active(userID)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) onPollAttempt(userID string, attempt int, elapsed time.Duration) {
	e.metricInc(MetricPollAttempt)
	e.metrics.Observe(MetricExchangeLatency, elapsed)
	e.logger.Debug("poll attempt", "user", userID, "attempt", attempt, "elapsed", elapsed)
}

func (e *Engine) onPollFinish(userID string, outcome poll.Outcome, attempts int) {
	switch outcome {
	case poll.OutcomeSucceeded:
		e.metricInc(MetricPollSucceeded)
	case poll.OutcomeCancelled:
		e.metricInc(MetricPollCancelled)
	case poll.OutcomeExhausted:
		e.metricInc(MetricPollExhausted)
	case poll.OutcomeFailed:
		e.metricInc(MetricPollFailed)
	}
	e.emitPollFinished(userID, outcome, attempts)
}

func (e *Engine) ready() error {
	if e == nil || !e.flow.Initialized() || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func validUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	return nil
}

// StartAuth describes the startauth operation and its observable behavior.
//
// StartAuth handles one start_auth event for userID. A user whose stored
// session the provider still accepts gets a welcome back message and
// StateAuthenticated. Otherwise a new handshake is requested, persisted as
// pending and shown as a QR prompt, and a poll task is started; the call
// returns StatePollingStarted without waiting for the poll. Any poll task
// already running for userID is cancelled first.
//
// The user is always notified; the returned error is for the caller's
// bookkeeping and wraps ErrRateLimited, ErrHandshakeUnavailable,
// ErrStoreUnavailable or ErrEngineNotReady.
func (e *Engine) StartAuth(ctx context.Context, userID, locale string) (RollInResult, error) {
	if err := e.ready(); err != nil {
		return RollInResult{State: StateNotReady}, err
	}
	if err := validUser(userID); err != nil {
		return RollInResult{}, err
	}

	res := e.flow.RollIn(ctx, flows.RollInRequest{UserID: userID, Locale: locale})
	out := RollInResult{
		State:     res.State,
		Profile:   res.Profile,
		PromptRef: res.PromptRef,
		TaskID:    res.TaskID,
	}

	switch res.State {
	case StatePollingStarted, StateAuthenticated:
		return out, nil
	case StateNotReady:
		if res.Err == nil {
			return out, ErrEngineNotReady
		}
	case StateStorageFailed:
		if res.Err != nil && !errors.Is(res.Err, stores.ErrStoreUnavailable) {
			return out, errors.Join(ErrStoreUnavailable, res.Err)
		}
	}
	return out, publicError(res.Err)
}

// NewToken handles the retry action offered after a handshake expired. It
// behaves exactly like StartAuth.
func (e *Engine) NewToken(ctx context.Context, userID, locale string) (RollInResult, error) {
	return e.StartAuth(ctx, userID, locale)
}

// Logout describes the logout operation and its observable behavior.
//
// Logout cancels any live poll task and clears the stored session and
// cached profile. Logging out without a session succeeds. On a store
// failure the user is told an error occurred and ErrLogoutFailed is
// returned.
func (e *Engine) Logout(ctx context.Context, userID, locale string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validUser(userID); err != nil {
		return err
	}

	res := e.flow.Logout(ctx, flows.LogoutRequest{UserID: userID, Locale: locale})
	if res.Err != nil {
		return errors.Join(ErrLogoutFailed, publicError(res.Err))
	}
	return nil
}

// CheckSession reports whether userID holds a session the provider still
// accepts. A rejected session is cleared before reporting
// unauthenticated. Only a store failure is returned as an error.
func (e *Engine) CheckSession(ctx context.Context, userID string) (AuthStatus, error) {
	if err := e.ready(); err != nil {
		return AuthStatus{}, err
	}
	if err := validUser(userID); err != nil {
		return AuthStatus{}, err
	}

	res := e.flow.CheckExisting(ctx, userID)
	status := AuthStatus{
		Authenticated: res.State == flows.Authenticated,
		Profile:       res.Profile,
		PollActive:    e.supervisor.Active(userID),
	}
	if res.Err != nil && !res.Stale {
		return status, publicError(res.Err)
	}
	return status, nil
}

// Profile describes the profile operation and its observable behavior.
//
// Profile sends the user their account list and returns the holder
// profile. Without a valid session the user is told they are not
// authorized and ErrSessionNotFound is returned.
func (e *Engine) Profile(ctx context.Context, userID, locale string) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validUser(userID); err != nil {
		return nil, err
	}

	res := e.flow.Profile(ctx, flows.ProfileRequest{UserID: userID, Locale: locale, Notify: true})
	if res.NoSession {
		if res.Err != nil {
			return nil, errors.Join(ErrSessionNotFound, publicError(res.Err))
		}
		return nil, ErrSessionNotFound
	}
	if res.Err != nil {
		return nil, publicError(res.Err)
	}
	return res.Profile, nil
}

// CheckProto returns the provider protocol descriptor.
func (e *Engine) CheckProto(ctx context.Context) (*ProtoInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	info, err := e.provider.CheckProto(ctx)
	if err != nil {
		return nil, publicError(err)
	}
	return info, nil
}
