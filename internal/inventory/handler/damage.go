package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// DamageHandler handles damage workflow endpoints
type DamageHandler struct {
	damage *service.DamageService
	logger *logger.Logger
}

// NewDamageHandler creates a new damage handler
func NewDamageHandler(damage *service.DamageService, log *logger.Logger) *DamageHandler {
	return &DamageHandler{
		damage: damage,
		logger: log,
	}
}

// Report files a damage report against a batch
func (h *DamageHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID  string  `json:"batch_id" validate:"required,uuid"`
		ShelfID  *string `json:"shelf_id" validate:"omitempty,uuid"`
		Quantity int     `json:"quantity" validate:"required,gt=0"`
		Reason   string  `json:"reason" validate:"required,min=3"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.damage.ReportDamage(r.Context(), service.ReportDamageInput{
		BatchID:    req.BatchID,
		ShelfID:    req.ShelfID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		ReportedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// Review moves a report to the reviewed state
func (h *DamageHandler) Review(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.damage.MarkReviewed(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Resolve applies a damage report to stock
func (h *DamageHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Resolution string `json:"resolution" validate:"required,oneof=expired damaged other"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.damage.ResolveDamage(r.Context(), service.ResolveDamageInput{
		RecordID:   id,
		Resolution: req.Resolution,
		ResolvedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Get gets a damage record
func (h *DamageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.damage.GetDamagedRecord(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// List lists damage records, optionally filtered by status
func (h *DamageHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	recs, total, err := h.damage.ListDamagedRecords(r.Context(), status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, recs, paginationMeta(page, perPage, total))
}
