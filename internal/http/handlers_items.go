package http

import (
	"fmt"
	"net/http"
	"strconv"

	"corredo/internal/core"
	"corredo/internal/log"
	"corredo/internal/services"
	"corredo/internal/storage"
)

// handleListItems returns the filtered items, or every item with ?all=true.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		writeJSON(w, http.StatusOK, newItemsResponse(s.svc.AllItems()))
		return
	}
	writeJSON(w, http.StatusOK, newItemsResponse(s.svc.View().Items))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondItem(w, r, http.StatusOK, id)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := req.apply(core.ShoppingItem{Quantity: 1})
	if err != nil {
		writeError(w, r, err)
		return
	}

	op, err := s.svc.AddItem(it)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := wait(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("Item created", log.FieldItemID, id, log.FieldItemName, it.Name)
	w.Header().Set("Location", fmt.Sprintf("/api/items/%d", id))
	s.respondItem(w, r, http.StatusCreated, id)
}

// handleUpdateItem edits name, quantity, estimated price and labels. The
// purchase state is changed only through the purchase routes.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.svc.Item(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	it, err := req.apply(current)
	if err != nil {
		writeError(w, r, err)
		return
	}

	op, err := s.svc.UpdateItem(it)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := wait(r, op); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondItem(w, r, http.StatusOK, id)
}

// handleDeleteItem honours ?version= for an optimistic delete.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var op *services.Op
	if version > 0 {
		op = s.svc.DeleteItemRecord(core.ShoppingItem{ID: id, Version: version})
	} else {
		op = s.svc.DeleteItem(id)
	}
	if _, err := wait(r, op); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("Item deleted", log.FieldItemID, id)
	w.WriteHeader(http.StatusNoContent)
}

// handleMarkPurchased takes an optional body with the actual unit price;
// without one the estimated price is used.
func (s *Server) handleMarkPurchased(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	actual, err := money(req.ActualPriceCents, req.ActualPrice, "actual_price")
	if err != nil {
		writeError(w, r, err)
		return
	}
	op, err := s.svc.MarkPurchased(id, actual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.finishTransition(w, r, id, op)
}

func (s *Server) handleMarkUnpurchased(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.finishTransition(w, r, id, s.svc.MarkUnpurchased(id))
}

// finishTransition waits for a purchase transition. The store ignores
// unknown ids, which is reported as 404.
func (s *Server) finishTransition(w http.ResponseWriter, r *http.Request, id int64, op *services.Op) {
	done, err := wait(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if done == 0 {
		writeError(w, r, fmt.Errorf("item %d: %w", id, storage.ErrNotFound))
		return
	}
	s.respondItem(w, r, http.StatusOK, id)
}

// respondItem writes the stored item, read back after a mutation so the
// response carries the new version.
func (s *Server) respondItem(w http.ResponseWriter, r *http.Request, status int, id int64) {
	it, err := s.svc.Item(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, newItemResponse(it))
}
