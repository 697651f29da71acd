package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vku/taskchat/internal/auth"
	"github.com/vku/taskchat/internal/models"
)

// Pinger is the optional health probe a store can provide.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides the HTTP API for taskchat.
type Server struct {
	verifier *auth.Verifier
	service  *Service
	pinger   Pinger
	addr     string
	server   *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(verifier *auth.Verifier, service *Service, pinger Pinger, addr string) *Server {
	return &Server{
		verifier: verifier,
		service:  service,
		pinger:   pinger,
		addr:     addr,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/assistant/converse", s.handleConverse)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	log.Printf("Starting taskchat gateway on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type converseRequest struct {
	History []models.Turn `json:"history"`
}

type converseResponse struct {
	IsJSONArray bool        `json:"isJsonArray"`
	Reply       interface{} `json:"reply"`
}

func (s *Server) handleConverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": credentialMessage(err)})
		return
	}

	var req converseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	reqID := uuid.NewString()
	log.Printf("[converse] req=%s user=%d (%s) turns=%d", reqID, claims.UserID, claims.Username, len(req.History))

	result, err := s.service.Converse(r.Context(), claims, req.History)
	if err != nil {
		// Total backend exhaustion: report the last failure to the caller.
		log.Printf("[converse] req=%s exhausted: %v", reqID, err)
		writeJSON(w, http.StatusOK, map[string]string{"errors": err.Error()})
		return
	}

	if result.IsStructured {
		log.Printf("[converse] req=%s structured reply, %d tasks", reqID, len(result.Tasks))
		writeJSON(w, http.StatusOK, converseResponse{IsJSONArray: true, Reply: result.Tasks})
		return
	}
	log.Printf("[converse] req=%s text reply", reqID)
	writeJSON(w, http.StatusOK, converseResponse{IsJSONArray: false, Reply: result.Reply})
}

// authenticate extracts and verifies the bearer credential.
func (s *Server) authenticate(r *http.Request) (*models.Claims, error) {
	raw, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return s.verifier.Verify(raw)
}

// credentialMessage maps a credential failure to the caller-facing message.
func credentialMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "Missing token"
	case errors.Is(err, auth.ErrExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

type healthResponse struct {
	OK   bool   `json:"ok"`
	DB   string `json:"db"`
	Time string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{OK: true, DB: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			resp.OK = false
			resp.DB = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}
