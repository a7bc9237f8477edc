package rollAuth

import (
	"log/slog"

	"github.com/MrEthical07/rollAuth/internal/flows"
	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/poll"
	"github.com/MrEthical07/rollAuth/internal/provider"
)

// Handshake is one roll-in attempt: its token, the claim URL the user opens
// and the QR image encoding that URL.
type Handshake = provider.Handshake

// Profile is the account holder returned by the provider.
//
//	Name is "Surname Name"; Profile.FirstName returns the last word.
type Profile = provider.Profile

// Account is one card or sub-account of a Profile, amounts in major units.
type Account = provider.Account

// ProtoInfo is the provider protocol descriptor returned by CheckProto.
type ProtoInfo = provider.ProtoInfo

// MessageKind names an outbound message and is also its catalog key.
type MessageKind = notify.MessageKind

// Message is what the engine hands to a Notifier. Text is rendered by the
// Notifier through its Localizer, so the engine never formats strings.
type Message = notify.Message

// Button is an inline URL or callback action.
type Button = notify.Button

// Notifier delivers messages to the user's chat.
//
// Notify failures are logged by the engine and never abort a flow.
type Notifier = notify.Notifier

// Localizer renders a MessageKind for a locale.
type Localizer = notify.Localizer

// Catalog is the built-in en/uk Localizer.
type Catalog = notify.Catalog

// WebhookConfig configures NewWebhookNotifier.
type WebhookConfig = notify.WebhookConfig

const (
	KindQRPrompt       = notify.KindQRPrompt
	KindClaimButton    = notify.KindClaimButton
	KindWelcomeBack    = notify.KindWelcomeBack
	KindSessionActive  = notify.KindSessionActive
	KindAccountsButton = notify.KindAccountsButton
	KindLogoutButton   = notify.KindLogoutButton
	KindRollInError    = notify.KindRollInError
	KindStorageError   = notify.KindStorageError
	KindTokenExpired   = notify.KindTokenExpired
	KindTryAgain       = notify.KindTryAgain
	KindLogout         = notify.KindLogout
	KindUnknownError   = notify.KindUnknownError
	KindRateLimited    = notify.KindRateLimited
	KindAccounts       = notify.KindAccounts
	KindNotAuthorized  = notify.KindNotAuthorized
)

// Button actions the inbound transport routes back into the engine.
const (
	ActionNewToken = notify.ActionNewToken
	ActionAccounts = notify.ActionAccounts
	ActionLogout   = notify.ActionLogout
)

// NewCatalog returns the built-in localizer. Unknown locales fall back to
// English.
func NewCatalog() *Catalog {
	return notify.NewCatalog()
}

// NewLogNotifier returns a Notifier that only writes rendered messages to
// logger. It is meant for development and the bundled demo.
func NewLogNotifier(logger *slog.Logger, localizer Localizer) Notifier {
	return notify.NewLogNotifier(logger, localizer)
}

// NewWebhookNotifier describes the newwebhooknotifier operation and its observable behavior.
//
// NewWebhookNotifier may return an error when the webhook URL is missing or invalid.
func NewWebhookNotifier(cfg WebhookConfig, localizer Localizer) (Notifier, error) {
	n, err := notify.NewWebhookNotifier(cfg, localizer)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// RollInState is how a StartAuth call ended. Only StatePollingStarted
// leaves a poll task running.
type RollInState = flows.RollInState

const (
	StateAuthenticated   = flows.StateAuthenticated
	StateHandshakeFailed = flows.StateHandshakeFailed
	StateStorageFailed   = flows.StateStorageFailed
	StatePollingStarted  = flows.StatePollingStarted
	StateRateLimited     = flows.StateRateLimited
	StateNotReady        = flows.StateNotReady
)

// Outcome is the terminal state of one poll task.
type Outcome = poll.Outcome

const (
	OutcomeSucceeded = poll.OutcomeSucceeded
	OutcomeCancelled = poll.OutcomeCancelled
	OutcomeExhausted = poll.OutcomeExhausted
	OutcomeFailed    = poll.OutcomeFailed
)

// RollInResult describes the synchronous part of StartAuth. A poll task
// started by the call keeps running after it returns.
type RollInResult struct {
	State     RollInState
	Profile   *Profile
	PromptRef string
	TaskID    string
}

// AuthStatus is the result of CheckSession.
type AuthStatus struct {
	Authenticated bool
	Profile       *Profile
	PollActive    bool
}
