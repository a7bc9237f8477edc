package flows

import (
	"context"

	"github.com/MrEthical07/rollAuth/internal/notify"
)

// LogoutRequest is one inbound logout event.
type LogoutRequest struct {
	UserID string
	Locale string
}

type LogoutResult struct {
	// Cancelled reports whether a live poll task was stopped.
	Cancelled bool
	Err       error
}

// RunLogout cancels any poll for the user, then clears the session. The
// store treats clearing an absent session as success, so logging out twice
// is reported as success twice.
func RunLogout(ctx context.Context, req LogoutRequest, deps Deps) LogoutResult {
	deps = deps.withDefaults()
	if !deps.ready() {
		return LogoutResult{Err: errNotReady}
	}

	unlock := deps.Supervisor.LockUser(req.UserID)
	cancelled := deps.Supervisor.Cancel(req.UserID)
	err := deps.Sessions.ClearSession(ctx, req.UserID, deps.profileKeys(req.UserID)...)
	unlock()

	if err != nil {
		deps.MetricInc(deps.Metrics.LogoutFailed)
		deps.EmitAudit(ctx, deps.Events.Logout, false, req.UserID, err, nil)
		deps.send(ctx, req.UserID, notify.Message{Kind: notify.KindUnknownError, Locale: req.Locale})
		return LogoutResult{Cancelled: cancelled, Err: err}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, req.UserID, nil, nil)
	deps.send(ctx, req.UserID, notify.Message{Kind: notify.KindLogout, Locale: req.Locale})
	return LogoutResult{Cancelled: cancelled}
}
