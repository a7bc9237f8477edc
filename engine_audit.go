package rollAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/rate"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

const (
	auditEventRollInStarted       = "rollin_started"
	auditEventRollInAuthenticated = "rollin_authenticated"
	auditEventHandshakeFailed     = "handshake_failed"
	auditEventSessionPromoted     = "session_promoted"
	auditEventHandshakeExpired    = "handshake_expired"
	auditEventPollFailed          = "poll_failed"
	auditEventPollFinished        = "poll_finished"
	auditEventLogout              = "logout"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
)

// AuditErrorCode is the stable, token-free error label written to audit
// events.
type AuditErrorCode string

const (
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrHandshakeUnavailable AuditErrorCode = "handshake_unavailable"
	auditErrProfileUnavailable   AuditErrorCode = "profile_unavailable"
	auditErrSessionNotFound      AuditErrorCode = "session_not_found"
	auditErrSuperseded           AuditErrorCode = "superseded"
	auditErrStoreUnavailable     AuditErrorCode = "store_unavailable"
	auditErrNotifyFailed         AuditErrorCode = "notify_failed"
	auditErrEngineClosed         AuditErrorCode = "engine_closed"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["ip"] = ip
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitPollFinished records the terminal outcome of every poll task,
// including cancelled ones that fire no flow callback.
func (e *Engine) emitPollFinished(userID string, outcome poll.Outcome, attempts int) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(context.Background(), AuditEvent{
		EventType: auditEventPollFinished,
		UserID:    userID,
		Attempts:  attempts,
		Success:   outcome == poll.OutcomeSucceeded,
		Metadata: map[string]string{
			"outcome":  outcome.String(),
			"attempts": strconv.Itoa(attempts),
		},
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, rate.ErrRateLimited), errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, provider.ErrHandshakeUnavailable), errors.Is(err, ErrHandshakeUnavailable):
		return auditErrHandshakeUnavailable
	case errors.Is(err, provider.ErrProfileUnavailable), errors.Is(err, ErrProfileUnavailable):
		return auditErrProfileUnavailable
	case errors.Is(err, stores.ErrSessionNotFound), errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, stores.ErrHandshakeSuperseded):
		return auditErrSuperseded
	case errors.Is(err, stores.ErrStoreUnavailable),
		errors.Is(err, stores.ErrPendingCorrupt),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, notify.ErrDeliveryFailed):
		return auditErrNotifyFailed
	case errors.Is(err, poll.ErrClosed), errors.Is(err, ErrEngineNotReady):
		return auditErrEngineClosed
	default:
		return auditErrInternal
	}
}
