package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/stream"
	"github.com/eternnoir/mediascribe/pkg/task"
)

type submitRequest struct {
	URL string `json:"url"`
}

// handleSubmitTask accepts a URL, enqueues it via the worker pool, and
// streams its progress back on the same response as Server-Sent Events
// until the task reaches a terminal status. Errors detected before
// streaming begins (malformed body, empty url, submission refused) are
// returned as a plain 400/500 JSON body instead.
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url must not be empty")
		return
	}

	t := s.pool.Submit(req.URL)
	if t == nil {
		writeError(w, http.StatusInternalServerError, "task could not be accepted: duplicate url, full queue, or shutting down")
		return
	}

	s.streamTask(w, r, t)
}

// handleGetTask returns a single snapshot of task state.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	t, ok := s.registry.Get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// handleStreamTask re-attaches to an already-submitted task's progress
// stream, for clients that reconnect after a dropped connection. The
// initial submission in handleSubmitTask streams inline on POST /tasks
// itself; this endpoint exists only for reconnection.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	t, ok := s.registry.Get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.streamTask(w, r, t)
}

// streamTask upgrades the connection to Server-Sent Events and relays
// coalesced progress events from pkg/stream until the task reaches a
// terminal state or the client disconnects.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request, t *task.Task) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan stream.Event, 8)
	go stream.Watch(ctx, t, events)

	log := logger.WithComponent("httpapi").WithField("task_id", t.ID)
	for ev := range events {
		if err := stream.WriteSSE(w, ev); err != nil {
			log.Warn().Err(err).Msg("sse client disconnected")
			return
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
