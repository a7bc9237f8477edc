package rollAuth

import (
	"errors"

	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/rate"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

var (
	// ErrEngineNotReady is returned by Engine methods on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidUser is returned when the user identity is empty.
	ErrInvalidUser = errors.New("invalid user identity")
	// ErrSessionNotFound reports that the user has no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrHandshakeUnavailable reports that the provider refused or failed to start a roll-in.
	ErrHandshakeUnavailable = errors.New("handshake unavailable")
	// ErrProfileUnavailable reports that the provider no longer accepts the stored session token.
	ErrProfileUnavailable = errors.New("profile unavailable")
	// ErrProtoUnavailable reports that the provider protocol descriptor could not be read.
	ErrProtoUnavailable = errors.New("protocol descriptor unavailable")
	// ErrStoreUnavailable reports a backing store failure at a durability-critical step.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrRateLimited is returned when the per-user start throttle rejects a roll-in.
	ErrRateLimited = errors.New("roll-in rate limited")
	// ErrLogoutFailed is returned when the session keys could not be cleared.
	ErrLogoutFailed = errors.New("logout failed")
)

// publicError maps internal sentinels onto the exported ones, keeping the
// internal error in the chain.
func publicError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return errors.Join(ErrRateLimited, err)
	case errors.Is(err, provider.ErrHandshakeUnavailable):
		return errors.Join(ErrHandshakeUnavailable, err)
	case errors.Is(err, provider.ErrProfileUnavailable):
		return errors.Join(ErrProfileUnavailable, err)
	case errors.Is(err, provider.ErrProtoUnavailable):
		return errors.Join(ErrProtoUnavailable, err)
	case errors.Is(err, stores.ErrSessionNotFound):
		return errors.Join(ErrSessionNotFound, err)
	case errors.Is(err, stores.ErrStoreUnavailable):
		return errors.Join(ErrStoreUnavailable, err)
	case errors.Is(err, poll.ErrClosed):
		return errors.Join(ErrEngineNotReady, err)
	default:
		return err
	}
}
