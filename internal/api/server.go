package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// maxBodyBytes bounds request bodies on every endpoint
const maxBodyBytes = 1 << 20

// ARCHITECTURAL DISCOVERY: HTTP API layer is a pure translation between JSON
// requests and lifecycle operations; no state lives here
type Server struct {
	sessions interfaces.SessionManager
	journal  interfaces.Journal // nil when the journal is disabled
	probe    SystemProbe
	router   *http.ServeMux
	logger   *slog.Logger
}

// NewServer wires the HTTP surface. journal may be nil.
func NewServer(sessions interfaces.SessionManager, journal interfaces.Journal, probe SystemProbe, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if probe == nil {
		probe = NewProcessProbe()
	}
	s := &Server{
		sessions: sessions,
		journal:  journal,
		probe:    probe,
		router:   http.NewServeMux(),
		logger:   logger.With("component", "api"),
	}

	s.setupRoutes()
	return s
}

// CORS and JSON middleware applied to every route
func (s *Server) setupRoutes() {
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessions))))
	s.router.Handle("/api/sessions/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessionByID))))
	s.router.Handle("/api/status", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStatus))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleSessions serves POST /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.registerSession(w, r)
}

// handleSessionByID serves /api/sessions/{id}[/complete|/history]
// FUNCTIONAL DISCOVERY: Ids are opaque and may contain "/"; the path is split
// while still escaped so "tenant%2F42" stays one segment
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/sessions/")
	rawID, action, _ := strings.Cut(path, "/")
	sessionID, err := url.PathUnescape(rawID)
	if err != nil {
		s.sendError(w, "invalid session id encoding", http.StatusBadRequest)
		return
	}
	if sessionID == "" {
		s.sendError(w, types.ErrMissingSessionID.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getSession(w, r, sessionID)
	case action == "complete" && r.Method == http.MethodPost:
		s.completeSession(w, r, sessionID)
	case action == "history" && r.Method == http.MethodGet:
		s.sessionHistory(w, r, sessionID)
	case action != "" && action != "complete" && action != "history":
		s.sendError(w, "not found", http.StatusNotFound)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// RegisterResponse is returned by POST /api/sessions
type RegisterResponse struct {
	Success       bool   `json:"success"`
	ID            string `json:"id"`
	ObserverCount int    `json:"observerCount"`
}

// SessionResponse is returned by GET /api/sessions/{id}
type SessionResponse struct {
	Success bool           `json:"success"`
	Session *types.Session `json:"session"`
}

// HistoryResponse is returned by GET /api/sessions/{id}/history
type HistoryResponse struct {
	Success bool                  `json:"success"`
	Events  []*types.JournalEntry `json:"events"`
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	Success       bool             `json:"success"`
	StoreSize     int              `json:"storeSize"`
	WaitingCount  int              `json:"waitingCount"`
	ObserverCount int              `json:"observerCount"`
	Waiting       []*types.Session `json:"waiting"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status        string     `json:"status"`
	Timestamp     time.Time  `json:"timestamp"`
	StoreSize     int        `json:"storeSize"`
	WaitingCount  int        `json:"waitingCount"`
	ObserverCount int        `json:"observerCount"`
	Journal       string     `json:"journal"`
	System        SystemInfo `json:"system"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// registerSession takes {id, ...fields}; everything except id is kept as an
// opaque attribute
func (s *Server) registerSession(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var id string
	if raw, present := body["id"]; present && raw != nil {
		str, ok := raw.(string)
		if !ok {
			s.sendError(w, types.ErrSessionIDNotString.Error(), http.StatusBadRequest)
			return
		}
		id = str
	}
	delete(body, "id")

	result, err := s.sessions.Register(r.Context(), types.RegisterRequest{
		ID:         id,
		Attributes: body,
		RemoteAddr: clientAddress(r),
	})
	if err != nil {
		if errors.Is(err, types.ErrMissingSessionID) || errors.Is(err, types.ErrSessionIDTooLong) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("register failed", "session_id", id, "error", err)
		s.sendError(w, "failed to register session", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, RegisterResponse{
		Success:       true,
		ID:            result.ID,
		ObserverCount: result.ObserverCount,
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	record, err := s.sessions.Lookup(r.Context(), sessionID)
	if err != nil {
		s.sendLookupError(w, sessionID, err)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Success: true, Session: record})
}

// completeSession takes {redirectTarget, ...overrides}
func (s *Server) completeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	req := types.CompleteRequest{Overrides: body}
	if target, ok := body["redirectTarget"]; ok {
		if str, isString := target.(string); isString {
			req.RedirectTarget = str
		} else if target != nil {
			req.RedirectTarget = fmt.Sprint(target)
		}
		delete(body, "redirectTarget")
	}

	if _, err := s.sessions.Complete(r.Context(), sessionID, req); err != nil {
		s.sendLookupError(w, sessionID, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request, sessionID string) {
	events, err := s.sessions.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJournalDisabled) {
			s.sendError(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("history failed", "session_id", sessionID, "error", err)
		s.sendError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*types.JournalEntry{}
	}
	s.sendJSON(w, http.StatusOK, HistoryResponse{Success: true, Events: events})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.sessions.Snapshot(r.Context())
	s.sendJSON(w, http.StatusOK, StatusResponse{
		Success:       true,
		StoreSize:     snapshot.StoreSize,
		WaitingCount:  snapshot.WaitingCount,
		ObserverCount: snapshot.ObserverCount,
		Waiting:       nonNil(snapshot.Waiting),
	})
}

// healthCheck reports store counts, journal state and the process probe.
// FUNCTIONAL DISCOVERY: Only an enabled but unreachable journal degrades
// health; the relay itself keeps serving
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "OK"
	code := http.StatusOK
	journalStatus := "disabled"
	if s.journal != nil {
		journalStatus = "healthy"
		if err := s.journal.HealthCheck(ctx); err != nil {
			status = "DEGRADED"
			code = http.StatusServiceUnavailable
			journalStatus = fmt.Sprintf("error: %v", err)
		}
	}

	snapshot := s.sessions.Snapshot(ctx)
	s.sendJSON(w, code, HealthResponse{
		Status:        status,
		Timestamp:     time.Now(),
		StoreSize:     snapshot.StoreSize,
		WaitingCount:  snapshot.WaitingCount,
		ObserverCount: snapshot.ObserverCount,
		Journal:       journalStatus,
		System:        s.probe.Sample(ctx),
	})
}

func (s *Server) sendLookupError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, interfaces.ErrSessionNotFound) {
		s.sendError(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error("session operation failed", "session_id", sessionID, "error", err)
	s.sendError(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{Success: false, Error: message})
}

// CORS middleware; any origin may call the API
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON object; an empty body decodes to an empty object
func decodeBody(w http.ResponseWriter, r *http.Request, v *map[string]any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			*v = map[string]any{}
			return nil
		}
		return err
	}
	if *v == nil {
		*v = map[string]any{}
	}
	return nil
}

// clientAddress prefers the first X-Forwarded-For hop over the socket peer
func clientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func nonNil(sessions []*types.Session) []*types.Session {
	if sessions == nil {
		return []*types.Session{}
	}
	return sessions
}
