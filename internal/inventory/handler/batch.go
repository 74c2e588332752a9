package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// BatchHandler handles batch and stock receipt endpoints
type BatchHandler struct {
	store  *service.BatchStore
	logger *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(store *service.BatchStore, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		store:  store,
		logger: log,
	}
}

// Create registers a stock receipt for a product
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req struct {
		Quantity   int    `json:"quantity" validate:"required,gt=0"`
		ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
		Source     string `json:"source" validate:"omitempty,oneof=receipt manual migration"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	var expiry *time.Time
	if req.ExpiryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			httputil.Error(w, errors.BadRequest("expiry_date must be YYYY-MM-DD"))
			return
		}
		expiry = &parsed
	}

	batch, err := h.store.CreateBatch(r.Context(), service.CreateBatchInput{
		ProductID:   productID,
		Quantity:    req.Quantity,
		ExpiryDate:  expiry,
		Source:      req.Source,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// ListByProduct lists a product's batches in FEFO order
func (h *BatchHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	onlyActive := r.URL.Query().Get("include_exhausted") != "true"

	batches, err := h.store.ListBatchesForProduct(r.Context(), productID, onlyActive)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.store.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Decrement takes quantity directly out of a batch
func (h *BatchHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req struct {
		Quantity int    `json:"quantity" validate:"required,gt=0"`
		Reason   string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.store.DecrementBatch(r.Context(), service.DecrementBatchInput{
		BatchID:     batchID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Expiring lists active batches expiring within the requested window
func (h *BatchHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	withinDays, _ := strconv.Atoi(r.URL.Query().Get("within_days"))

	batches, err := h.store.GetExpiringBatches(r.Context(), withinDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
