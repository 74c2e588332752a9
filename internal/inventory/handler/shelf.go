package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// ShelfHandler handles shelf read endpoints
type ShelfHandler struct {
	shelfRepo   *repository.ShelfRepository
	capacity    *service.CapacityTracker
	assignments *service.AssignmentService
	logger      *logger.Logger
}

// NewShelfHandler creates a new shelf handler
func NewShelfHandler(
	shelfRepo *repository.ShelfRepository,
	capacity *service.CapacityTracker,
	assignments *service.AssignmentService,
	log *logger.Logger,
) *ShelfHandler {
	return &ShelfHandler{
		shelfRepo:   shelfRepo,
		capacity:    capacity,
		assignments: assignments,
		logger:      log,
	}
}

// List lists active shelves
func (h *ShelfHandler) List(w http.ResponseWriter, r *http.Request) {
	shelves, err := h.shelfRepo.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, shelves)
}

// Occupancy returns a shelf's capacity accounting
func (h *ShelfHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	occupancy, err := h.capacity.GetOccupancy(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, occupancy)
}

// Contents lists the allocations sitting on a shelf
func (h *ShelfHandler) Contents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	allocs, err := h.assignments.ListShelfContents(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, allocs)
}
