package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	rollAuth "github.com/MrEthical07/rollAuth"
	"github.com/MrEthical07/rollAuth/middleware"
)

// Engine is the subset of *rollAuth.Engine the transport drives.
type Engine interface {
	StartAuth(ctx context.Context, userID, locale string) (rollAuth.RollInResult, error)
	NewToken(ctx context.Context, userID, locale string) (rollAuth.RollInResult, error)
	Logout(ctx context.Context, userID, locale string) error
	CheckSession(ctx context.Context, userID string) (rollAuth.AuthStatus, error)
	Profile(ctx context.Context, userID, locale string) (*rollAuth.Profile, error)
	CheckProto(ctx context.Context) (*rollAuth.ProtoInfo, error)
}

// Options wires the transport. Verifier is required; Metrics, when set, is
// mounted unauthenticated at /metrics.
type Options struct {
	Verifier middleware.Verifier
	Owners   []string
	Metrics  http.Handler
	Logger   *slog.Logger
}

type handler struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler returns the HTTP surface for inbound chat events:
//
//	POST /v1/start_auth
//	POST /v1/new_token
//	POST /v1/logout
//	GET  /v1/session
//	GET  /v1/profile
//	GET  /v1/check_proto   (owners only)
//	GET  /healthz
func NewHandler(engine Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{engine: engine, logger: logger}
	guard := middleware.Guard(opts.Verifier)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/start_auth", guard(http.HandlerFunc(h.startAuth)))
	mux.Handle("POST /v1/new_token", guard(http.HandlerFunc(h.newToken)))
	mux.Handle("POST /v1/logout", guard(http.HandlerFunc(h.logout)))
	mux.Handle("GET /v1/session", guard(http.HandlerFunc(h.session)))
	mux.Handle("GET /v1/profile", guard(http.HandlerFunc(h.profile)))
	mux.Handle("GET /v1/check_proto", guard(middleware.RequireOwner(opts.Owners)(http.HandlerFunc(h.checkProto))))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return middleware.RequestContext(mux)
}

type eventRequest struct {
	Locale string `json:"locale"`
}

type rollInResponse struct {
	State      string          `json:"state"`
	TaskID     string          `json:"task_id,omitempty"`
	MessageRef string          `json:"message_ref,omitempty"`
	Profile    *profileSummary `json:"profile,omitempty"`
}

type sessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	PollActive    bool            `json:"poll_active"`
	Profile       *profileSummary `json:"profile,omitempty"`
}

type profileSummary struct {
	ClientID  string           `json:"client_id"`
	Name      string           `json:"name"`
	FirstName string           `json:"first_name"`
	Accounts  []accountSummary `json:"accounts,omitempty"`
}

type accountSummary struct {
	ID          string  `json:"id"`
	Currency    string  `json:"currency"`
	Type        string  `json:"type,omitempty"`
	Balance     float64 `json:"balance"`
	CreditLimit float64 `json:"credit_limit"`
	MaskedPan   string  `json:"masked_pan,omitempty"`
}

func (h *handler) startAuth(w http.ResponseWriter, r *http.Request) {
	h.rollIn(w, r, h.engine.StartAuth)
}

func (h *handler) newToken(w http.ResponseWriter, r *http.Request) {
	h.rollIn(w, r, h.engine.NewToken)
}

func (h *handler) rollIn(
	w http.ResponseWriter,
	r *http.Request,
	start func(context.Context, string, string) (rollAuth.RollInResult, error),
) {
	user, locale, ok := h.event(w, r)
	if !ok {
		return
	}

	res, err := start(r.Context(), user, locale)
	body := rollInResponse{
		State:      stateName(res.State),
		TaskID:     res.TaskID,
		MessageRef: res.PromptRef,
		Profile:    summarize(res.Profile),
	}
	if err != nil {
		h.logger.Info("start auth rejected", "user", user, "state", body.State, "err", err)
		writeJSON(w, statusFor(err), body)
		return
	}

	status := http.StatusOK
	if res.State == rollAuth.StatePollingStarted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, body)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	user, locale, ok := h.event(w, r)
	if !ok {
		return
	}
	if err := h.engine.Logout(r.Context(), user, locale); err != nil {
		h.writeError(w, user, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.event(w, r)
	if !ok {
		return
	}
	status, err := h.engine.CheckSession(r.Context(), user)
	if err != nil {
		h.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: status.Authenticated,
		PollActive:    status.PollActive,
		Profile:       summarize(status.Profile),
	})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	user, locale, ok := h.event(w, r)
	if !ok {
		return
	}
	p, err := h.engine.Profile(r.Context(), user, locale)
	if err != nil {
		h.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(p))
}

func (h *handler) checkProto(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.CheckProto(r.Context())
	if err != nil {
		h.writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// event resolves the calling user from the verified claims. The locale comes
// from the body or query, falling back to the one in the token.
func (h *handler) event(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}

	locale := r.URL.Query().Get("locale")
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		var body eventRequest
		r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return "", "", false
		}
		if body.Locale != "" {
			locale = body.Locale
		}
	}
	if locale == "" {
		locale = claims.Locale
	}
	return claims.UserID, strings.TrimSpace(locale), true
}

func (h *handler) writeError(w http.ResponseWriter, user string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "user", user, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": errorCode(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rollAuth.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, rollAuth.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, rollAuth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, rollAuth.ErrHandshakeUnavailable),
		errors.Is(err, rollAuth.ErrProfileUnavailable),
		errors.Is(err, rollAuth.ErrProtoUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, rollAuth.ErrStoreUnavailable),
		errors.Is(err, rollAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, rollAuth.ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, rollAuth.ErrSessionNotFound):
		return "not_authorized"
	case errors.Is(err, rollAuth.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, rollAuth.ErrHandshakeUnavailable):
		return "handshake_unavailable"
	case errors.Is(err, rollAuth.ErrProfileUnavailable):
		return "profile_unavailable"
	case errors.Is(err, rollAuth.ErrProtoUnavailable):
		return "proto_unavailable"
	case errors.Is(err, rollAuth.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, rollAuth.ErrEngineNotReady):
		return "not_ready"
	default:
		return "internal_error"
	}
}

func stateName(s rollAuth.RollInState) string {
	switch s {
	case rollAuth.StateAuthenticated:
		return "authenticated"
	case rollAuth.StateHandshakeFailed:
		return "handshake_failed"
	case rollAuth.StateStorageFailed:
		return "storage_failed"
	case rollAuth.StatePollingStarted:
		return "polling_started"
	case rollAuth.StateRateLimited:
		return "rate_limited"
	case rollAuth.StateNotReady:
		return "not_ready"
	default:
		return ""
	}
}

func summarize(p *rollAuth.Profile) *profileSummary {
	if p == nil {
		return nil
	}
	out := &profileSummary{
		ClientID:  p.ClientID,
		Name:      p.Name,
		FirstName: p.FirstName(),
		Accounts:  make([]accountSummary, 0, len(p.Accounts)),
	}
	for _, a := range p.Accounts {
		acc := accountSummary{
			ID:          a.ID,
			Currency:    a.Currency,
			Type:        a.Type,
			Balance:     a.Balance,
			CreditLimit: a.CreditLimit,
		}
		if len(a.MaskedPan) > 0 {
			acc.MaskedPan = a.MaskedPan[0]
		}
		out.Accounts = append(out.Accounts, acc)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
