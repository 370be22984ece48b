// Package server exposes the conversation engine over HTTP: REST endpoints
// for session management and a websocket endpoint for the chat itself.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oncoline/chemochat-go/internal/engine"
	"github.com/oncoline/chemochat-go/internal/store"
)

// Server routes HTTP and websocket traffic to the engine.
type Server struct {
	engine   *engine.Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server over the given engine.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced by the reverse proxy
			},
		},
	}
}

// Handler returns the routed handler with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, s.engine.Stats().Snapshot())
	})

	mux.HandleFunc("GET /chat/session/today", s.handleSessionToday)
	mux.HandleFunc("POST /chat/session/new", s.handleSessionNew)
	mux.HandleFunc("GET /chat/{id}/full", s.handleSessionFull)
	mux.HandleFunc("GET /chat/{id}/state", s.handleSessionState)
	mux.HandleFunc("DELETE /chat/{id}", s.handleSessionDelete)
	mux.HandleFunc("GET /chat/{id}/ws", s.handleWebsocket)

	return LoggingMiddleware(s.logger)(mux)
}

// sessionResponse is the body returned by the session resolution endpoints.
type sessionResponse struct {
	Session  wireSession   `json:"session"`
	Messages []wireMessage `json:"messages"`
	IsNew    bool          `json:"is_new"`
}

func (s *Server) handleSessionToday(w http.ResponseWriter, r *http.Request) {
	patientID, ok := s.patientID(w, r.URL.Query().Get("patient_id"))
	if !ok {
		return
	}
	timezone := r.URL.Query().Get("timezone")

	sess, msgs, isNew, err := s.engine.ResolveToday(r.Context(), patientID, timezone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{
		Session:  toWireSession(sess),
		Messages: toWireMessages(msgs),
		IsNew:    isNew,
	})
}

func (s *Server) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PatientID string `json:"patient_id"`
		Timezone  string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	patientID, ok := s.patientID(w, body.PatientID)
	if !ok {
		return
	}

	sess, msgs, isNew, err := s.engine.ForceNew(r.Context(), patientID, body.Timezone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sessionResponse{
		Session:  toWireSession(sess),
		Messages: toWireMessages(msgs),
		IsNew:    isNew,
	})
}

func (s *Server) handleSessionFull(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	patientID, ok := s.patientID(w, r.URL.Query().Get("patient_id"))
	if !ok {
		return
	}

	sess, msgs, err := s.engine.FullSession(r.Context(), sessionID, patientID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{
		Session:  toWireSession(sess),
		Messages: toWireMessages(msgs),
	})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	ack, err := s.engine.Acknowledge(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_state": string(ack.SessionState),
	})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	patientID, ok := s.patientID(w, r.URL.Query().Get("patient_id"))
	if !ok {
		return
	}

	if err := s.engine.Delete(r.Context(), sessionID, patientID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) patientID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
