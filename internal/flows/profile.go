package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/provider"
)

var errNotReady = errors.New("flows: dependencies not wired")

// ProfileRequest asks for the holder's accounts. Notify sends the rendered
// account list (or a not-authorized message) to the user.
type ProfileRequest struct {
	UserID string
	Locale string
	Notify bool
}

type ProfileResult struct {
	Profile *provider.Profile
	// NoSession is set when the user has no valid session.
	NoSession bool
	Err       error
}

// RunProfile returns the holder profile behind the user's session. A token
// the provider rejects is cleared, exactly as on roll-in.
func RunProfile(ctx context.Context, req ProfileRequest, deps Deps) ProfileResult {
	deps = deps.withDefaults()
	if deps.Sessions == nil || deps.Provider == nil {
		return ProfileResult{Err: errNotReady}
	}

	existing := RunCheckExisting(ctx, req.UserID, deps)
	if existing.State != Authenticated {
		if req.Notify && deps.Notifier != nil {
			deps.send(ctx, req.UserID, notify.Message{Kind: notify.KindNotAuthorized, Locale: req.Locale})
		}
		return ProfileResult{NoSession: true, Err: existing.Err}
	}

	if req.Notify && deps.Notifier != nil {
		deps.send(ctx, req.UserID, notify.Message{
			Kind:    notify.KindAccounts,
			Locale:  req.Locale,
			Args:    []string{FormatAccounts(existing.Profile)},
			Buttons: []notify.Button{{Label: notify.KindLogoutButton, Action: notify.ActionLogout}},
		})
	}
	return ProfileResult{Profile: existing.Profile}
}

// FormatAccounts renders one line per account:
//
//	UAH black •1234: 1500.50 (limit 0.00)
func FormatAccounts(p *provider.Profile) string {
	if p == nil || len(p.Accounts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		var b strings.Builder
		b.WriteString(a.Currency)
		if a.Type != "" {
			b.WriteString(" " + a.Type)
		}
		if len(a.MaskedPan) > 0 {
			pan := a.MaskedPan[0]
			if len(pan) > 4 {
				pan = pan[len(pan)-4:]
			}
			b.WriteString(" •" + pan)
		}
		fmt.Fprintf(&b, ": %.2f", a.Balance)
		if a.CreditLimit > 0 {
			fmt.Fprintf(&b, " (limit %.2f)", a.CreditLimit)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}
