package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"corredo/internal/log"
)

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newViewResponse(s.svc.View()))
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newBudgetResponse(s.svc.Budget()))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAnalyticsResponse(s.svc.Analytics()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemsResponse(items))
}

// handleEvents streams the view as server-sent events: one "view" event
// right away and another after every change. Views a slow client missed
// are dropped in favour of the latest one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}
	logger := log.FromContext(r.Context())

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	views := s.svc.Watch(ctx)
	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Event stream closed", "events_sent", sent)
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			data, err := json.Marshal(newViewResponse(v))
			if err != nil {
				logger.Error("Failed to encode view", log.FieldError, err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: view\ndata: %s\n\n", v.Version, data); err != nil {
				return
			}
			flusher.Flush()
			sent++
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
