package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"corredo/internal/core"
)

// The filter is held by the service and shared by every client of this
// process.

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFilterResponse(s.svc.Filter()))
}

// handleToggleLabel decodes the name itself: chi routes on the raw path
// when it is set, so "a%2Fb" arrives still escaped.
func (s *Server) handleToggleLabel(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, badRequest("invalid label name: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, newFilterResponse(s.svc.ToggleLabel(name)))
}

func (s *Server) handleClearLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFilterResponse(s.svc.ClearLabels()))
}

func (s *Server) handleSetFilterMode(w http.ResponseWriter, r *http.Request) {
	var req filterModeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	mode, err := core.ParseFilterMode(req.Mode)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, newFilterResponse(s.svc.SetFilterMode(mode)))
}

func (s *Server) handleSetShowPurchased(w http.ResponseWriter, r *http.Request) {
	var req showPurchasedRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Show == nil {
		writeError(w, r, badRequest("missing field show"))
		return
	}
	writeJSON(w, http.StatusOK, newFilterResponse(s.svc.SetShowPurchased(*req.Show)))
}
