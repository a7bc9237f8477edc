package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDeliveryFailed wraps any webhook transport or status failure.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// WebhookConfig configures the chat gateway webhook.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// WebhookNotifier posts rendered messages to a chat gateway as JSON.
//
//	POST {URL}/messages        -> {"message_id": "..."}
//	POST {URL}/messages/delete
type WebhookNotifier struct {
	url        string
	secret     string
	timeout    time.Duration
	httpClient *http.Client
	localizer  Localizer
}

type webhookButton struct {
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	Action string `json:"action,omitempty"`
}

type webhookMessage struct {
	UserID    string          `json:"user_id"`
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text"`
	Image     []byte          `json:"image,omitempty"`
	Buttons   []webhookButton `json:"buttons,omitempty"`
	Protected bool            `json:"protected,omitempty"`
}

type webhookDelete struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

type webhookResponse struct {
	MessageID string `json:"message_id"`
}

func NewWebhookNotifier(cfg WebhookConfig, localizer Localizer) (*WebhookNotifier, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("webhook url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if localizer == nil {
		localizer = NewCatalog()
	}
	return &WebhookNotifier{
		url:        base,
		secret:     cfg.Secret,
		timeout:    timeout,
		httpClient: client,
		localizer:  localizer,
	}, nil
}

func (n *WebhookNotifier) Notify(ctx context.Context, userID string, msg Message) (string, error) {
	body := webhookMessage{
		UserID:    userID,
		Kind:      msg.Kind,
		Text:      n.localizer.Text(msg.Locale, msg.Kind, msg.Args...),
		Image:     msg.Image,
		Protected: msg.Protected,
	}
	for _, b := range msg.Buttons {
		body.Buttons = append(body.Buttons, webhookButton{
			Text:   n.localizer.Text(msg.Locale, b.Label),
			URL:    b.URL,
			Action: b.Action,
		})
	}

	var resp webhookResponse
	if err := n.post(ctx, "/messages", body, &resp); err != nil {
		return "", err
	}
	if resp.MessageID == "" {
		return "", fmt.Errorf("%w: empty message id", ErrDeliveryFailed)
	}
	return resp.MessageID, nil
}

func (n *WebhookNotifier) Delete(ctx context.Context, userID, ref string) error {
	return n.post(ctx, "/messages/delete", webhookDelete{UserID: userID, MessageID: ref}, nil)
}

func (n *WebhookNotifier) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Webhook-Secret", n.secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrDeliveryFailed, err)
	}
	return nil
}
