package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// ConsumptionHandler handles FEFO consumption endpoints
type ConsumptionHandler struct {
	planner *service.ConsumptionPlanner
	logger  *logger.Logger
}

// NewConsumptionHandler creates a new consumption handler
func NewConsumptionHandler(planner *service.ConsumptionPlanner, log *logger.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{
		planner: planner,
		logger:  log,
	}
}

// Consume executes a consumption in FEFO order
func (h *ConsumptionHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id" validate:"required,uuid"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
		Reference string `json:"reference"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.planner.Consume(r.Context(), service.ConsumeInput{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Preview computes the plan a consume would execute, without writing
func (h *ConsumptionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))

	result, err := h.planner.Preview(r.Context(), productID, quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
