package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campushub/internal/session"
	"campushub/pkg/interfaces"
	"campushub/pkg/types"
)

// StatsProvider exposes connection and room counts without coupling the API
// layer to the registry implementation.
type StatsProvider interface {
	Stats() map[string]int
}

// Server is the REST surface for collaborators: session lifecycle, the
// announcement audit trail, and operational health. No business logic lives
// here, only HTTP handling and JSON serialization.
type Server struct {
	sessions  interfaces.SessionStore
	dbManager interfaces.DatabaseManager
	stats     StatsProvider
	router    *http.ServeMux
}

// NewServer wires the REST routes.
func NewServer(sessions interfaces.SessionStore, dbManager interfaces.DatabaseManager, stats StatsProvider) *Server {
	s := &Server{
		sessions:  sessions,
		dbManager: dbManager,
		stats:     stats,
		router:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessions))))
	s.router.Handle("/api/sessions/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessionByID))))
	s.router.Handle("/api/announcements", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listAnnouncements))))
	s.router.Handle("/api/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStats))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mux returns the underlying router so transports can attach their own
// routes to the same server.
func (s *Server) Mux() *http.ServeMux {
	return s.router
}

type CreateSessionRequest struct {
	CreatedBy string `json:"created_by"`
	Language  string `json:"language"`
}

type SessionResponse struct {
	Session *types.ChatSession `json:"session"`
}

type ListSessionsResponse struct {
	Sessions []*types.ChatSession `json:"sessions"`
}

type ListAnnouncementsResponse struct {
	Announcements []*types.AnnouncementRecord `json:"announcements"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createSession(w, r)
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID := strings.Split(path, "/")[0]
	if sessionID == "" {
		s.sendError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getSession(w, r, sessionID)
	case http.MethodDelete:
		s.endSession(w, r, sessionID)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createSession handles POST /api/sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.CreatedBy == "" {
		s.sendError(w, "created_by is required", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.CreateSession(r.Context(), req.CreatedBy, req.Language)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCreatedBy) || errors.Is(err, session.ErrInvalidLanguage) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
		} else {
			s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(SessionResponse{Session: sess})
}

// getSession handles GET /api/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			s.sendError(w, "Session not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get session", http.StatusInternalServerError)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(SessionResponse{Session: sess})
}

// endSession handles DELETE /api/sessions/{id}.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	err := s.sessions.EndSession(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrSessionNotFound):
			s.sendError(w, "Session not found", http.StatusNotFound)
		case errors.Is(err, session.ErrSessionAlreadyEnded):
			s.sendError(w, "Session already ended", http.StatusBadRequest)
		default:
			s.sendError(w, "Failed to end session", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Session ended successfully"})
}

// listSessions handles GET /api/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListActiveSessions(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*types.ChatSession{}
	}

	_ = json.NewEncoder(w).Encode(ListSessionsResponse{Sessions: sessions})
}

// listAnnouncements handles GET /api/announcements, returning the most
// recent audit entries.
func (s *Server) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			s.sendError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
	}

	records, err := s.dbManager.ListAnnouncements(r.Context(), limit)
	if err != nil {
		s.sendError(w, "Failed to list announcements", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.AnnouncementRecord{}
	}

	_ = json.NewEncoder(w).Encode(ListAnnouncementsResponse{Announcements: records})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_ = json.NewEncoder(w).Encode(s.stats.Stats())
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.dbManager.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.stats.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows all origins; dashboards run on a separate dev origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
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
