package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// AuditHandler handles reconciliation endpoints
type AuditHandler struct {
	auditor *service.Auditor
	logger  *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditor *service.Auditor, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		auditor: auditor,
		logger:  log,
	}
}

// Audit runs a full reconciliation pass over all shelves
func (h *AuditHandler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.Audit(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// AuditShelf runs reconciliation for a single shelf
func (h *AuditHandler) AuditShelf(w http.ResponseWriter, r *http.Request) {
	shelfID := chi.URLParam(r, "shelfID")

	report, err := h.auditor.AuditShelf(r.Context(), shelfID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Repair sets a shelf's stored occupancy to its computed sum
func (h *AuditHandler) Repair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShelfID string `json:"shelf_id" validate:"required,uuid"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.auditor.RepairShelf(r.Context(), req.ShelfID, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
