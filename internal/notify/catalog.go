package notify

import (
	"fmt"
	"strings"
)

const DefaultLocale = "en"

// Catalog is an in-memory Localizer keyed by locale then kind. Templates use
// %s verbs filled from Message.Args.
type Catalog struct {
	fallback string
	entries  map[string]map[MessageKind]string
}

// NewCatalog returns the built-in en/uk catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		fallback: DefaultLocale,
		entries: map[string]map[MessageKind]string{
			"en": {
				KindQRPrompt:       "Scan the QR code or open the link to connect your account.",
				KindClaimButton:    "Open link",
				KindWelcomeBack:    "Welcome back, %s!",
				KindSessionActive:  "Account connected. Hello, %s!",
				KindAccountsButton: "Accounts",
				KindLogoutButton:   "Log out",
				KindRollInError:    "Could not start authorization. Please try again later.",
				KindStorageError:   "Could not save your authorization. Please try again.",
				KindTokenExpired:   "The authorization link has expired.",
				KindTryAgain:       "Try again",
				KindLogout:         "You have been logged out.",
				KindUnknownError:   "Something went wrong. Please try again.",
				KindRateLimited:    "Too many requests. Please wait a moment.",
				KindAccounts:       "%s",
				KindNotAuthorized:  "You are not logged in. Send /start to connect your account.",
			},
			"uk": {
				KindQRPrompt:       "Відскануйте QR-код або відкрийте посилання, щоб підключити рахунок.",
				KindClaimButton:    "Відкрити посилання",
				KindWelcomeBack:    "З поверненням, %s!",
				KindSessionActive:  "Рахунок підключено. Вітаю, %s!",
				KindAccountsButton: "Рахунки",
				KindLogoutButton:   "Вийти",
				KindRollInError:    "Не вдалося почати авторизацію. Спробуйте пізніше.",
				KindStorageError:   "Не вдалося зберегти авторизацію. Спробуйте ще раз.",
				KindTokenExpired:   "Термін дії посилання минув.",
				KindTryAgain:       "Спробувати ще",
				KindLogout:         "Ви вийшли із системи.",
				KindUnknownError:   "Щось пішло не так. Спробуйте ще раз.",
				KindRateLimited:    "Забагато запитів. Зачекайте трохи.",
				KindAccounts:       "%s",
				KindNotAuthorized:  "Ви не авторизовані. Надішліть /start, щоб підключити рахунок.",
			},
		},
	}
}

// Locales lists the locales the catalog carries.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.entries))
	for l := range c.entries {
		out = append(out, l)
	}
	return out
}

// Text renders kind for locale. Region suffixes ("uk-UA") are ignored,
// unknown locales fall back to English and unknown kinds render as the
// kind itself.
func (c *Catalog) Text(locale string, kind MessageKind, args ...string) string {
	tmpl, ok := c.lookup(normalizeLocale(locale), kind)
	if !ok {
		tmpl, ok = c.lookup(c.fallback, kind)
	}
	if !ok {
		return string(kind)
	}
	if len(args) == 0 || !strings.Contains(tmpl, "%") {
		return tmpl
	}
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return fmt.Sprintf(tmpl, vals...)
}

func (c *Catalog) lookup(locale string, kind MessageKind) (string, bool) {
	m, ok := c.entries[locale]
	if !ok {
		return "", false
	}
	tmpl, ok := m[kind]
	return tmpl, ok
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}
