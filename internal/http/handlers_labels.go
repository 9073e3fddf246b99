package http

import (
	"fmt"
	"net/http"

	"corredo/internal/core"
	"corredo/internal/log"
	"corredo/internal/storage"
)

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newLabelsResponse(s.svc.View().Labels))
}

// handleCreateLabel picks a palette color when none is given.
func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	var l core.Label
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Color != nil {
		l.Color = *req.Color
	}

	op, err := s.svc.AddLabel(l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := wait(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("Label created", log.FieldLabelID, id, log.FieldLabelName, l.Name)
	w.Header().Set("Location", fmt.Sprintf("/api/labels/%d", id))
	s.respondLabel(w, r, http.StatusCreated, id)
}

// handleUpdateLabel renames or recolors a label. A rename carries over to
// every item using it.
func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req labelRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	l, ok := s.svc.Label(id)
	if !ok {
		writeError(w, r, fmt.Errorf("label %d: %w", id, storage.ErrNotFound))
		return
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Color != nil {
		l.Color = *req.Color
	}

	op, err := s.svc.UpdateLabel(l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := wait(r, op); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondLabel(w, r, http.StatusOK, id)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := wait(r, s.svc.DeleteLabel(id)); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("Label deleted", log.FieldLabelID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondLabel(w http.ResponseWriter, r *http.Request, status int, id int64) {
	l, ok := s.svc.Label(id)
	if !ok {
		writeError(w, r, fmt.Errorf("label %d: %w", id, storage.ErrNotFound))
		return
	}
	writeJSON(w, status, labelResponse{ID: l.ID, Name: l.Name, Color: l.Color})
}
