package notify

import "context"

// MessageKind names a user-facing message. It doubles as the catalog key.
type MessageKind string

const (
	KindQRPrompt       MessageKind = "start"
	KindClaimButton    MessageKind = "link_button"
	KindWelcomeBack    MessageKind = "welcome_back"
	KindSessionActive  MessageKind = "mono_token_active"
	KindAccountsButton MessageKind = "accounts_button"
	KindLogoutButton   MessageKind = "logout_button"
	KindRollInError    MessageKind = "roll_error"
	KindStorageError   MessageKind = "update_mono_token_error"
	KindTokenExpired   MessageKind = "token_expired"
	KindTryAgain       MessageKind = "try_again"
	KindLogout         MessageKind = "logout"
	KindUnknownError   MessageKind = "unknown_error"
	KindRateLimited    MessageKind = "rate_limited"
	KindAccounts       MessageKind = "accounts"
	KindNotAuthorized  MessageKind = "not_authorized"
)

// Callback actions carried by inline buttons.
const (
	ActionNewToken = "new_token"
	ActionAccounts = "accounts_button"
	ActionLogout   = "logout_session"
)

// Button is an inline action attached to a message. Exactly one of URL and
// Action is set.
type Button struct {
	Label  MessageKind `json:"label"`
	URL    string      `json:"url,omitempty"`
	Action string      `json:"action,omitempty"`
}

// Message is a localizable outbound message. Args fill the catalog
// template in order.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Locale    string      `json:"locale,omitempty"`
	Args      []string    `json:"args,omitempty"`
	Image     []byte      `json:"image,omitempty"`
	Buttons   []Button    `json:"buttons,omitempty"`
	Protected bool        `json:"protected,omitempty"`
}

// Notifier delivers messages to a user's chat. Notify returns an opaque
// reference usable with Delete. Delete of an unknown reference is not an
// error worth surfacing; callers only log it.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg Message) (string, error)
	Delete(ctx context.Context, userID, ref string) error
}

// Localizer renders a message kind for a locale.
type Localizer interface {
	Text(locale string, kind MessageKind, args ...string) string
}
