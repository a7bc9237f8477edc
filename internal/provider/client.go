package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrHandshakeUnavailable = errors.New("provider handshake unavailable")
	ErrExchangePending      = errors.New("provider handshake not completed")
	ErrProfileUnavailable   = errors.New("provider profile unavailable")
	ErrProtoUnavailable     = errors.New("provider protocol descriptor unavailable")
)

const (
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 4 << 20
)

// Config configures the provider HTTP client.
type Config struct {
	BaseURL    string
	Origin     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the remote auth provider. Every call is bounded by
// Config.Timeout and reports failure through a single sentinel per call.
type Client struct {
	baseURL    string
	origin     string
	timeout    time.Duration
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("provider base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("provider base url invalid: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    base,
		origin:     strings.TrimRight(cfg.Origin, "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

type rollInResponse struct {
	Token     string `json:"token"`
	RequestID string `json:"requestId"`
	URL       string `json:"url"`
	QR        string `json:"qr"`
}

type exchangeResponse struct {
	Token json.RawMessage `json:"token"`
	Error string          `json:"error"`
}

// InitiateHandshake requests a new roll-in handshake.
func (c *Client) InitiateHandshake(ctx context.Context) (*Handshake, error) {
	var body rollInResponse
	if err := c.do(ctx, http.MethodGet, "/roll-in", nil, nil, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeUnavailable, err)
	}
	if body.Token == "" || body.URL == "" {
		return nil, fmt.Errorf("%w: incomplete handshake response", ErrHandshakeUnavailable)
	}
	return &Handshake{
		Token:     body.Token,
		RequestID: body.RequestID,
		ClaimURL:  body.URL,
		QR:        []byte(body.QR),
	}, nil
}

// Exchange trades a handshake token for a session token. ErrExchangePending
// is the normal answer until the user completes the roll-in; declines,
// timeouts and transport errors are reported the same way.
func (c *Client) Exchange(ctx context.Context, handshakeToken string) (string, error) {
	if handshakeToken == "" {
		return "", fmt.Errorf("%w: empty handshake token", ErrExchangePending)
	}
	form := url.Values{}
	form.Set("token", handshakeToken)

	var body exchangeResponse
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	if err := c.do(ctx, http.MethodPost, "/exchange-token", strings.NewReader(form.Encode()), headers, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangePending, err)
	}

	var token string
	if err := json.Unmarshal(body.Token, &token); err != nil || token == "" {
		// The provider answers {"token": false, "error": ...} while pending.
		return "", fmt.Errorf("%w: %s", ErrExchangePending, body.Error)
	}
	return token, nil
}

// Profile fetches the account holder profile. Any failure means the session
// token can no longer be trusted.
func (c *Client) Profile(ctx context.Context, sessionToken string) (*Profile, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: empty session token", ErrProfileUnavailable)
	}
	var body clientInfoResponse
	headers := map[string]string{"X-Token": sessionToken}
	if err := c.do(ctx, http.MethodGet, "/client-info", nil, headers, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	return body.profile(), nil
}

// CheckProto returns the provider's protocol descriptor.
func (c *Client) CheckProto(ctx context.Context) (*ProtoInfo, error) {
	var info ProtoInfo
	if err := c.do(ctx, http.MethodGet, "/check-proto", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtoUnavailable, err)
	}
	return &info, nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body io.Reader,
	headers map[string]string,
	out any,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Referer", c.origin+"/")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %v", path, err)
	}
	return nil
}
