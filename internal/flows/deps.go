package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
)

// SessionStore is the persisted session state the flows read and write.
type SessionStore interface {
	GetSessionToken(ctx context.Context, userID string) (string, error)
	SetPending(ctx context.Context, userID, handshakeToken string, ttl time.Duration) error
	ClearPending(ctx context.Context, userID, handshakeToken string) error
	ClearSession(ctx context.Context, userID string, extraKeys ...string) error
}

// ProfileCache is the ancillary profile cache. Flows write it; readers
// outside the flows treat it as display data only.
type ProfileCache interface {
	Key(userID string) string
	Set(ctx context.Context, userID string, data []byte, ttl time.Duration) error
}

// PromptRefs remembers the last QR prompt message per user.
type PromptRefs interface {
	Swap(ctx context.Context, userID, ref string, ttl time.Duration) (string, error)
	Forget(ctx context.Context, userID, ref string) error
}

// Provider is the subset of the auth provider client the flows call directly.
type Provider interface {
	InitiateHandshake(ctx context.Context) (*provider.Handshake, error)
	Profile(ctx context.Context, sessionToken string) (*provider.Profile, error)
}

// Supervisor starts and cancels per-user poll tasks. LockUser holds a
// per-user lock until the returned func is called.
type Supervisor interface {
	Start(userID, handshakeToken string, cb poll.Callbacks) (string, error)
	Cancel(userID string) bool
	LockUser(userID string) (unlock func())
}

// Metrics carries metric IDs recorded by the flows.
type Metrics struct {
	RollInStarted        int
	AlreadyAuthenticated int
	HandshakeFailed      int
	PendingWriteFailed   int
	StaleSessionCleared  int
	RateLimited          int
	Logout               int
	LogoutFailed         int
}

// Events carries audit event names emitted by the flows.
type Events struct {
	RollInStarted       string
	RollInAuthenticated string
	HandshakeFailed     string
	SessionPromoted     string
	HandshakeExpired    string
	PollFailed          string
	Logout              string
	RateLimited         string
}

// Deps groups every collaborator the flows use. The root engine builds it
// once and hands it to Service.
type Deps struct {
	Sessions   SessionStore
	Profiles   ProfileCache
	Prompts    PromptRefs
	Provider   Provider
	Supervisor Supervisor
	Notifier   notify.Notifier

	PendingTTL      time.Duration
	PromptTTL       time.Duration
	ProfileCacheTTL time.Duration

	CheckThrottle func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	Metrics Metrics
	Events  Events
}

func (d Deps) withDefaults() Deps {
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, ...any) {}
	}
	return d
}

func (d Deps) ready() bool {
	return d.Sessions != nil && d.Provider != nil && d.Supervisor != nil && d.Notifier != nil
}

func (d Deps) profileKeys(userID string) []string {
	if d.Profiles == nil {
		return nil
	}
	return []string{d.Profiles.Key(userID)}
}

// send delivers msg. Delivery failures are logged and yield an empty ref.
func (d Deps) send(ctx context.Context, userID string, msg notify.Message) string {
	ref, err := d.Notifier.Notify(ctx, userID, msg)
	if err != nil {
		d.Warn("rollAuth: notify failed", "user", userID, "kind", string(msg.Kind), "err", err)
		return ""
	}
	return ref
}

func (d Deps) deletePrompt(ctx context.Context, userID, ref string) {
	if ref == "" {
		return
	}
	if err := d.Notifier.Delete(ctx, userID, ref); err != nil {
		d.Warn("rollAuth: delete prompt failed", "user", userID, "ref", ref, "err", err)
	}
	if d.Prompts != nil {
		if err := d.Prompts.Forget(ctx, userID, ref); err != nil {
			d.Warn("rollAuth: forget prompt failed", "user", userID, "err", err)
		}
	}
}

func sessionButtons() []notify.Button {
	return []notify.Button{
		{Label: notify.KindAccountsButton, Action: notify.ActionAccounts},
		{Label: notify.KindLogoutButton, Action: notify.ActionLogout},
	}
}
