// Package providertest runs an in-process fake of the remote auth provider
// for tests, the demo binary and the soak tool.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Server is a scriptable fake provider. Handshake tokens are issued as
// h1, h2, ...; a handshake completes on the exchange call configured with
// CompleteAfter and then yields session token "s-<handshake>".
type Server struct {
	srv *httptest.Server

	mu             sync.Mutex
	seq            int
	rollInFails    bool
	exchangeDelay  time.Duration
	defaultAfter   int
	completeAfter  map[string]int
	exchangeCalls  map[string]int
	sessionTokens  map[string]string
	invalid        map[string]bool
	holderName     string
	rollInRequests int
}

// New starts the fake. defaultAfter is the exchange attempt on which every
// handshake completes; 0 means never.
func New(defaultAfter int) *Server {
	s := &Server{
		defaultAfter:  defaultAfter,
		completeAfter: make(map[string]int),
		exchangeCalls: make(map[string]int),
		sessionTokens: make(map[string]string),
		invalid:       make(map[string]bool),
		holderName:    "Shevchenko Taras",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /roll-in", s.handleRollIn)
	mux.HandleFunc("POST /exchange-token", s.handleExchange)
	mux.HandleFunc("GET /client-info", s.handleClientInfo)
	mux.HandleFunc("GET /check-proto", s.handleCheckProto)
	s.srv = httptest.NewServer(mux)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

func (s *Server) Close() { s.srv.Close() }

// CompleteAfter makes handshake complete on its n-th exchange call.
func (s *Server) CompleteAfter(handshake string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeAfter[handshake] = n
}

// SetSessionToken overrides the session token issued for handshake.
func (s *Server) SetSessionToken(handshake, session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTokens[handshake] = session
}

func (s *Server) FailRollIn(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollInFails = fail
}

// ExchangeDelay slows every exchange call by d.
func (s *Server) ExchangeDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchangeDelay = d
}

// Invalidate makes client-info reject session.
func (s *Server) Invalidate(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid[session] = true
}

func (s *Server) SetHolderName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holderName = name
}

func (s *Server) ExchangeCalls(handshake string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeCalls[handshake]
}

func (s *Server) RollInRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollInRequests
}

func (s *Server) handleRollIn(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.rollInRequests++
	if s.rollInFails {
		s.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.seq++
	token := "h" + strconv.Itoa(s.seq)
	s.mu.Unlock()

	writeJSON(w, map[string]string{
		"token":     token,
		"requestId": "req-" + token,
		"url":       s.srv.URL + "/claim/" + token,
		"qr":        "qr-" + token,
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	handshake := r.PostForm.Get("token")

	s.mu.Lock()
	delay := s.exchangeDelay
	s.exchangeCalls[handshake]++
	calls := s.exchangeCalls[handshake]
	after, ok := s.completeAfter[handshake]
	if !ok {
		after = s.defaultAfter
	}
	session, ok := s.sessionTokens[handshake]
	if !ok {
		session = "s-" + handshake
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if after <= 0 || calls < after {
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"token": false, "error": "pending"})
		return
	}
	writeJSON(w, map[string]any{"token": session})
}

func (s *Server) handleClientInfo(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get("X-Token")

	s.mu.Lock()
	invalid := s.invalid[session]
	name := s.holderName
	s.mu.Unlock()

	if session == "" || invalid {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"clientId":    "c-" + session,
		"name":        name,
		"webHookUrl":  "",
		"permissions": "psf",
		"accounts": []map[string]any{
			{
				"id":           "acc-1",
				"sendId":       "send-1",
				"currencyCode": 980,
				"cashbackType": "UAH",
				"balance":      123456,
				"creditLimit":  0,
				"maskedPan":    []string{"537541******1234"},
				"type":         "black",
				"iban":         "UA000000000000000000000000000",
			},
		},
	})
}

func (s *Server) handleCheckProto(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"proto":          map[string]int{"version": 1, "patch": 0},
		"implementation": map[string]string{"name": "providertest", "author": "rollAuth", "homepage": s.srv.URL},
		"server":         map[string]any{"push": map[string]string{"api": "", "cert": "", "name": ""}},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	_ = json.NewEncoder(w).Encode(v)
}
