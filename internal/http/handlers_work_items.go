// Package httpx provides the HTTP surface of the analysis delivery
// coordinator.
package httpx

import (
	"net/http"

	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
	"github.com/boudydegeer/product-analysis-sub000/internal/service"
)

// WorkItemHandlers provides HTTP handlers for work item lifecycle operations.
type WorkItemHandlers struct {
	Svc *service.WorkItemService
}

// Create handles HTTP requests to register a new work item.
func (h *WorkItemHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWorkItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	item, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, item)
}

// Trigger handles HTTP requests to start the external analysis for an item.
func (h *WorkItemHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.Trigger(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, item)
}

// GetStatus handles HTTP requests for the current status of an item.
func (h *WorkItemHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// GetResult handles HTTP requests for the persisted result of an item.
func (h *WorkItemHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	record, err := h.Svc.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
