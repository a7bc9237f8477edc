package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/rate"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

// RollInState is the state a roll-in invocation ended in.
type RollInState int

const (
	StateAuthenticated RollInState = iota + 1
	StateHandshakeFailed
	StateStorageFailed
	StatePollingStarted
	StateRateLimited
	StateNotReady
)

// RollInRequest is one inbound start_auth event.
type RollInRequest struct {
	UserID string
	Locale string
}

// RollInResult describes how the roll-in invocation ended. The poll task,
// if any, keeps running after the result is returned.
type RollInResult struct {
	State     RollInState
	Profile   *provider.Profile
	Handshake *provider.Handshake
	PromptRef string
	TaskID    string
	Err       error
}

// RunRollIn executes the roll-in state machine:
//
//	throttle -> cancel stray poll -> check existing session
//	  -> initiate handshake -> persist pending -> show QR -> start polling
//
// The pending handshake is persisted before the QR is shown and before any
// poll starts; a failed write ends the flow with StateStorageFailed. The
// steps from persisting the handshake to recording the prompt hold the
// user's lock, so the last handshake written is the one being polled.
func RunRollIn(ctx context.Context, req RollInRequest, deps Deps) RollInResult {
	deps = deps.withDefaults()
	if !deps.ready() {
		return RollInResult{State: StateNotReady}
	}
	userID := req.UserID

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, userID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				deps.MetricInc(deps.Metrics.RateLimited)
				deps.EmitAudit(ctx, deps.Events.RateLimited, false, userID, err, nil)
				deps.send(ctx, userID, notify.Message{Kind: notify.KindRateLimited, Locale: req.Locale})
				return RollInResult{State: StateRateLimited, Err: err}
			}
			deps.Warn("rollAuth: throttle check failed, admitting", "user", userID, "err", err)
		}
	}

	deps.Supervisor.Cancel(userID)

	existing := RunCheckExisting(ctx, userID, deps)
	if existing.State == Authenticated {
		deps.MetricInc(deps.Metrics.AlreadyAuthenticated)
		deps.EmitAudit(ctx, deps.Events.RollInAuthenticated, true, userID, nil, nil)
		deps.send(ctx, userID, notify.Message{
			Kind:    notify.KindWelcomeBack,
			Locale:  req.Locale,
			Args:    []string{existing.Profile.FirstName()},
			Buttons: sessionButtons(),
		})
		return RollInResult{State: StateAuthenticated, Profile: existing.Profile}
	}

	hs, err := deps.Provider.InitiateHandshake(ctx)
	if err != nil {
		deps.MetricInc(deps.Metrics.HandshakeFailed)
		deps.EmitAudit(ctx, deps.Events.HandshakeFailed, false, userID, err, nil)
		deps.send(ctx, userID, notify.Message{Kind: notify.KindRollInError, Locale: req.Locale})
		return RollInResult{State: StateHandshakeFailed, Err: err}
	}

	unlock := deps.Supervisor.LockUser(userID)
	if err := deps.Sessions.SetPending(ctx, userID, hs.Token, deps.PendingTTL); err != nil {
		unlock()
		deps.MetricInc(deps.Metrics.PendingWriteFailed)
		deps.EmitAudit(ctx, deps.Events.HandshakeFailed, false, userID, err, func() map[string]string {
			return map[string]string{"reason": "pending_write"}
		})
		deps.send(ctx, userID, notify.Message{Kind: notify.KindStorageError, Locale: req.Locale})
		return RollInResult{State: StateStorageFailed, Handshake: hs, Err: err}
	}

	promptRef := deps.send(ctx, userID, notify.Message{
		Kind:      notify.KindQRPrompt,
		Locale:    req.Locale,
		Image:     hs.QR,
		Buttons:   []notify.Button{{Label: notify.KindClaimButton, URL: hs.ClaimURL}},
		Protected: true,
	})

	taskID, err := deps.Supervisor.Start(userID, hs.Token, rollInCallbacks(ctx, req, hs, promptRef, deps))
	if err != nil {
		if clearErr := deps.Sessions.ClearPending(ctx, userID, hs.Token); clearErr != nil {
			deps.Warn("rollAuth: pending clear failed", "user", userID, "err", clearErr)
		}
		unlock()
		deps.deletePrompt(ctx, userID, promptRef)
		deps.send(ctx, userID, notify.Message{Kind: notify.KindUnknownError, Locale: req.Locale})
		return RollInResult{State: StateNotReady, Handshake: hs, Err: err}
	}

	if promptRef != "" && deps.Prompts != nil {
		prev, err := deps.Prompts.Swap(ctx, userID, promptRef, deps.PromptTTL)
		switch {
		case err == nil && prev != "" && prev != promptRef:
			if delErr := deps.Notifier.Delete(ctx, userID, prev); delErr != nil {
				deps.Warn("rollAuth: delete previous prompt failed", "user", userID, "err", delErr)
			}
		case err != nil && !errors.Is(err, stores.ErrNoPromptRecorded):
			deps.Warn("rollAuth: prompt ref swap failed", "user", userID, "err", err)
		}
	}
	unlock()

	deps.MetricInc(deps.Metrics.RollInStarted)
	deps.EmitAudit(ctx, deps.Events.RollInStarted, true, userID, nil, func() map[string]string {
		return map[string]string{"provider_request": hs.RequestID, "task": taskID}
	})

	return RollInResult{
		State:     StatePollingStarted,
		Handshake: hs,
		PromptRef: promptRef,
		TaskID:    taskID,
	}
}

// rollInCallbacks builds the terminal handlers for one poll task. Audit
// events keep the inbound request's context values; I/O uses the task's.
func rollInCallbacks(reqCtx context.Context, req RollInRequest, hs *provider.Handshake, promptRef string, deps Deps) poll.Callbacks {
	userID := req.UserID
	auditCtx := context.WithoutCancel(reqCtx)
	return poll.Callbacks{
		OnSuccess: func(ctx context.Context, _ string, profile *provider.Profile) {
			deps.deletePrompt(ctx, userID, promptRef)
			cacheProfile(ctx, userID, profile, deps)
			deps.EmitAudit(auditCtx, deps.Events.SessionPromoted, true, userID, nil, func() map[string]string {
				return map[string]string{"provider_request": hs.RequestID}
			})
			deps.send(ctx, userID, notify.Message{
				Kind:    notify.KindSessionActive,
				Locale:  req.Locale,
				Args:    []string{profile.FirstName()},
				Buttons: sessionButtons(),
			})
		},
		OnExhausted: func(ctx context.Context) {
			if err := deps.Sessions.ClearPending(ctx, userID, hs.Token); err != nil {
				deps.Warn("rollAuth: pending clear failed", "user", userID, "err", err)
			}
			deps.EmitAudit(auditCtx, deps.Events.HandshakeExpired, false, userID, nil, func() map[string]string {
				return map[string]string{"provider_request": hs.RequestID}
			})
			deps.send(ctx, userID, notify.Message{
				Kind:    notify.KindTokenExpired,
				Locale:  req.Locale,
				Buttons: []notify.Button{{Label: notify.KindTryAgain, Action: notify.ActionNewToken}},
			})
			deps.deletePrompt(ctx, userID, promptRef)
		},
		OnFailed: func(ctx context.Context, err error) {
			if clearErr := deps.Sessions.ClearPending(ctx, userID, hs.Token); clearErr != nil {
				deps.Warn("rollAuth: pending clear failed", "user", userID, "err", clearErr)
			}
			deps.EmitAudit(auditCtx, deps.Events.PollFailed, false, userID, err, nil)
			deps.send(ctx, userID, notify.Message{Kind: notify.KindStorageError, Locale: req.Locale})
		},
	}
}
