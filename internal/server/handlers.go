package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/54b3r/tbrag-go/internal/agent"
	"github.com/54b3r/tbrag-go/internal/logging"
	"github.com/54b3r/tbrag-go/internal/rag"
	"github.com/54b3r/tbrag-go/internal/store"
)

// maxBodyBytes caps request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

// handleChat handles POST /api/v1/chat. The answer is produced within
// cfg.ChatTimeout; a deadline hit still yields an in-band reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, "validation error", err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	ans := s.answerer.Answer(ctx, agent.QueryContext{
		Query:         req.Message,
		SelectedText:  req.SelectedText,
		Language:      req.Language,
		ContextWindow: req.ContextWindow,
	})

	outcome := "ok"
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = "timeout"
	case ans.Degraded:
		outcome = "degraded"
	}
	s.metrics.observeChat(outcome, time.Since(start))
	log.Info("chat: answered",
		slog.String("session_id", req.SessionID),
		slog.String("outcome", outcome),
		slog.Int("sources", len(ans.Sources)),
	)

	s.persistTurn(r.Context(), req.SessionID, req.Message, ans.Text)

	sources := ans.Sources
	if sources == nil {
		sources = []agent.Source{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  ans.Text,
		SessionID: req.SessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sources:   sources,
	})
}

// persistTurn stores the question and answer. Failures are logged only.
func (s *Server) persistTurn(ctx context.Context, sessionID, question, answer string) {
	if s.sessions == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := s.sessions.Append(ctx, sessionID, store.RoleUser, question); err != nil {
		log.Warn("sessions: failed to persist user message", slog.Any("error", err))
		return
	}
	if err := s.sessions.Append(ctx, sessionID, store.RoleAssistant, answer); err != nil {
		log.Warn("sessions: failed to persist assistant message", slog.Any("error", err))
	}
}

// handleUpload handles POST /api/v1/chat/upload-textbook-content. The body
// is JSON; when it is empty the content, title and section query parameters
// are used instead. The content is stored as a single document.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req uploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		q := r.URL.Query()
		req = uploadRequest{Content: q.Get("content"), Title: q.Get("title"), Section: q.Get("section")}
	}

	content := sanitize(req.Content)
	if isBlank(content) {
		writeError(w, http.StatusBadRequest, "validation error", "content is required")
		return
	}
	if s.ingester == nil {
		writeError(w, http.StatusInternalServerError, "Failed to upload content to RAG system", "ingestion is not configured")
		return
	}

	doc := rag.Document{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: map[string]string{
			"title":      sanitize(req.Title),
			"section":    sanitize(req.Section),
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := s.ingester.Add(r.Context(), []rag.Document{doc}); err != nil {
		log.Error("upload: failed to add document", slog.String("doc_id", doc.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to upload content to RAG system", err.Error())
		return
	}

	log.Info("upload: document stored", slog.String("doc_id", doc.ID))
	writeJSON(w, http.StatusOK, uploadResponse{Message: "Content uploaded successfully", DocID: doc.ID})
}

// handleSession handles GET /api/v1/chat/sessions/{sessionID}.
// An optional ?limit=n returns only the n most recent messages.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !validSessionID(id) {
		writeError(w, http.StatusBadRequest, "validation error", "session_id must be a UUID")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "validation error", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session not found", "session persistence is disabled")
		return
	}

	sess, err := s.sessions.Session(r.Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found", "")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("sessions: lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load session", err.Error())
		return
	}
	if limit > 0 {
		msgs, err := s.sessions.Recent(r.Context(), id, limit)
		if err != nil {
			logging.FromContext(r.Context()).Error("sessions: recent lookup failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to load session", err.Error())
			return
		}
		sess.Messages = msgs
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleChatHealth handles GET /api/v1/chat/health.
func (s *Server) handleChatHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "chat"})
}

// handleHealth handles GET /health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "RAG Chatbot API is running"})
}

// decodeJSON reads a size-limited JSON body into v. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard {error, detail} body.
func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}
