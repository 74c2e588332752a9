package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// AllocationHandler handles shelf allocation endpoints
type AllocationHandler struct {
	assignments *service.AssignmentService
	logger      *logger.Logger
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(assignments *service.AssignmentService, log *logger.Logger) *AllocationHandler {
	return &AllocationHandler{
		assignments: assignments,
		logger:      log,
	}
}

// Assign places part of a batch on a shelf
func (h *AllocationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID  string `json:"batch_id" validate:"required,uuid"`
		ShelfID  string `json:"shelf_id" validate:"required,uuid"`
		Quantity int    `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.assignments.AssignBatchToShelf(r.Context(), service.AssignInput{
		BatchID:     req.BatchID,
		ShelfID:     req.ShelfID,
		Quantity:    req.Quantity,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Move shifts quantity from one shelf to another
func (h *AllocationHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID     string `json:"batch_id" validate:"required,uuid"`
		FromShelfID string `json:"from_shelf_id" validate:"required,uuid"`
		ToShelfID   string `json:"to_shelf_id" validate:"required,uuid"`
		Quantity    int    `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.assignments.MoveAllocation(r.Context(), service.MoveInput{
		BatchID:     req.BatchID,
		FromShelfID: req.FromShelfID,
		ToShelfID:   req.ToShelfID,
		Quantity:    req.Quantity,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Remove takes quantity off a shelf back to unassigned
func (h *AllocationHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID  string `json:"batch_id" validate:"required,uuid"`
		ShelfID  string `json:"shelf_id" validate:"required,uuid"`
		Quantity int    `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.assignments.RemoveAllocation(r.Context(), service.RemoveInput{
		BatchID:     req.BatchID,
		ShelfID:     req.ShelfID,
		Quantity:    req.Quantity,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// ListByBatch lists where a batch currently sits
func (h *AllocationHandler) ListByBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	allocs, err := h.assignments.ListBatchAllocations(r.Context(), batchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, allocs)
}
