package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/model"
)

// handleEvents streams a user's channel as server-sent events. The session
// lives as long as the request.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := chi.URLParam(r, "userID")
	session := s.opts.Hub.Subscribe(userID, s.opts.SessionBuffer)
	defer session.Close()
	logging.InfoContext(r.Context(), "event stream opened",
		logging.KeyUserID, userID,
		"session", session.ID,
		"sessions", s.opts.Hub.SessionCount(userID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: 5000\n: connected %s\n\n", session.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-session.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				logging.WarnContext(r.Context(), "event write failed",
					logging.KeyUserID, userID,
					logging.KeyError, err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e model.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
