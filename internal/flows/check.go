package flows

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

// ExistingState tags the result of an existing-session check.
type ExistingState int

const (
	NoSession ExistingState = iota
	Authenticated
)

// ExistingResult is {Authenticated(profile) | NoSession}. Err is set only
// for diagnostics; a failed check always reports NoSession.
type ExistingResult struct {
	State   ExistingState
	Profile *provider.Profile
	Stale   bool
	Err     error
}

// RunCheckExisting looks up the user's session token and confirms it with a
// profile read on every call. A token the provider rejects is cleared
// locally. The profile cache is refreshed on success and never consulted.
func RunCheckExisting(ctx context.Context, userID string, deps Deps) ExistingResult {
	deps = deps.withDefaults()

	token, err := deps.Sessions.GetSessionToken(ctx, userID)
	if err != nil {
		if !errors.Is(err, stores.ErrSessionNotFound) {
			deps.Warn("rollAuth: session lookup failed", "user", userID, "err", err)
			return ExistingResult{State: NoSession, Err: err}
		}
		return ExistingResult{State: NoSession}
	}

	profile, err := deps.Provider.Profile(ctx, token)
	if err != nil {
		deps.MetricInc(deps.Metrics.StaleSessionCleared)
		if clearErr := deps.Sessions.ClearSession(ctx, userID, deps.profileKeys(userID)...); clearErr != nil {
			deps.Warn("rollAuth: stale session clear failed", "user", userID, "err", clearErr)
		}
		return ExistingResult{State: NoSession, Stale: true, Err: err}
	}

	cacheProfile(ctx, userID, profile, deps)
	return ExistingResult{State: Authenticated, Profile: profile}
}

func cacheProfile(ctx context.Context, userID string, p *provider.Profile, deps Deps) {
	if p == nil || deps.Profiles == nil || deps.ProfileCacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := deps.Profiles.Set(ctx, userID, data, deps.ProfileCacheTTL); err != nil {
		deps.Warn("rollAuth: profile cache write failed", "user", userID, "err", err)
	}
}
