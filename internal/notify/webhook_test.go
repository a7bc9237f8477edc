package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifyRendersAndReturnsRef(t *testing.T) {
	var got webhookMessage
	var secret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		secret = r.Header.Get("X-Webhook-Secret")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message_id":"42"}`))
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: "s3"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ref, err := n.Notify(context.Background(), "u1", Message{
		Kind:    KindSessionActive,
		Locale:  "en",
		Args:    []string{"Taras"},
		Buttons: []Button{{Label: KindLogoutButton, Action: ActionLogout}},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if ref != "42" || secret != "s3" {
		t.Fatalf("ref=%q secret=%q", ref, secret)
	}
	if got.Text != "Account connected. Hello, Taras!" || got.UserID != "u1" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if len(got.Buttons) != 1 || got.Buttons[0].Text != "Log out" || got.Buttons[0].Action != ActionLogout {
		t.Fatalf("unexpected buttons %+v", got.Buttons)
	}
}

func TestWebhookFailuresWrapSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/messages" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL + "/"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := n.Notify(context.Background(), "u1", Message{Kind: KindLogout}); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("empty message id: expected ErrDeliveryFailed, got %v", err)
	}
	if err := n.Delete(context.Background(), "u1", "42"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("delete: expected ErrDeliveryFailed, got %v", err)
	}
}

func TestNewWebhookRequiresURL(t *testing.T) {
	if _, err := NewWebhookNotifier(WebhookConfig{}, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestRecorderCapturesAndFails(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	ref, err := r.Notify(ctx, "u1", Message{Kind: KindQRPrompt})
	if err != nil || ref != "m1" {
		t.Fatalf("ref=%q err=%v", ref, err)
	}
	boom := errors.New("boom")
	r.FailOn(KindLogout, boom)
	if _, err := r.Notify(ctx, "u1", Message{Kind: KindLogout}); !errors.Is(err, boom) {
		t.Fatalf("expected configured failure, got %v", err)
	}
	_ = r.Delete(ctx, "u1", ref)

	if r.Count("u1", KindQRPrompt) != 1 || len(r.Sent("u2")) != 0 {
		t.Fatalf("unexpected capture %+v", r.Sent(""))
	}
	if d := r.Deleted(); len(d) != 1 || d[0] != "m1" {
		t.Fatalf("unexpected deletions %v", d)
	}
}
