package notify

import "testing"

func TestCatalogRendersLocaleAndArgs(t *testing.T) {
	c := NewCatalog()

	if got := c.Text("uk-UA", KindWelcomeBack, "Тарас"); got != "З поверненням, Тарас!" {
		t.Fatalf("unexpected uk text %q", got)
	}
	if got := c.Text("en", KindSessionActive, "Taras"); got != "Account connected. Hello, Taras!" {
		t.Fatalf("unexpected en text %q", got)
	}
}

func TestCatalogFallbacks(t *testing.T) {
	c := NewCatalog()

	if got := c.Text("de", KindLogout); got != "You have been logged out." {
		t.Fatalf("unknown locale must fall back to en, got %q", got)
	}
	if got := c.Text("", KindTryAgain); got != "Try again" {
		t.Fatalf("empty locale must fall back to en, got %q", got)
	}
	if got := c.Text("en", MessageKind("nope")); got != "nope" {
		t.Fatalf("unknown kind must render as itself, got %q", got)
	}
}

func TestCatalogLocalesComplete(t *testing.T) {
	c := NewCatalog()
	en := c.entries[DefaultLocale]
	for _, locale := range c.Locales() {
		for kind := range en {
			if _, ok := c.entries[locale][kind]; !ok {
				t.Errorf("locale %s missing %s", locale, kind)
			}
		}
	}
}
