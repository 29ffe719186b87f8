package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/liteclaw/internal/agent"
	"github.com/nextlevelbuilder/liteclaw/internal/router"
)

const chatTurnTimeout = 10 * time.Minute

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "api_" + uuid.NewString()[:8]
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTurnTimeout)
	defer cancel()

	if err := s.history.EnsureSession(ctx, req.SessionID, ""); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	runReq := agent.RunRequest{
		SessionID: req.SessionID,
		Platform:  "api",
		Message:   req.Message,
	}

	if req.Stream {
		s.streamChat(ctx, w, runReq)
		return
	}

	res, err := s.engine.Run(ctx, runReq, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: res.Text, SessionID: req.SessionID})
}

// streamChat writes engine events as a chunked plain-text stream: text
// fragments verbatim, status lines on their own line.
func (s *Server) streamChat(ctx context.Context, w http.ResponseWriter, req agent.RunRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	_, err := s.engine.Run(ctx, req, func(ev agent.Event) {
		switch ev.Type {
		case agent.EventChunk:
			fmt.Fprint(w, ev.Text)
		case agent.EventStatus:
			fmt.Fprintf(w, "\n%s\n", ev.Text)
		}
		flusher.Flush()
	})
	if err != nil {
		fmt.Fprintf(w, "\n>>> [Error]: %v\n", err)
		flusher.Flush()
	}
}

type sessionCreateRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "session_" + uuid.NewString()[:8]
	}

	status := "created"
	sessions, err := s.history.ListSessions(r.Context())
	if err == nil {
		for _, sess := range sessions {
			if sess.ID == req.SessionID {
				status = "exists"
				break
			}
		}
	}
	if err := s.history.EnsureSession(r.Context(), req.SessionID, ""); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": req.SessionID, "status": status})
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.history.ListSessions(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	type sessionInfo struct {
		SessionID string    `json:"session_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo{SessionID: sess.ID, CreatedAt: sess.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	var in router.Inbound
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	outcome := s.router.Handle(r.Context(), in)
	writeJSON(w, http.StatusOK, outcome)
}

type cronCreateRequest struct {
	Name          string `json:"name"`
	ScheduleType  string `json:"schedule_type"`
	ScheduleValue string `json:"schedule_value"`
	Task          string `json:"task"`
}

func (s *Server) handleCronCreate(w http.ResponseWriter, r *http.Request) {
	var req cronCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	job, err := s.scheduler.Create(r.Context(), req.Name, req.ScheduleType, req.ScheduleValue, req.Task)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleCronList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.scheduler.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleCronDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scheduler.Delete(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleCronWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scheduler.Trigger(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "id": id})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
