package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/logger"
	"github.com/storeflow/storeflow-backend/pkg/messaging"
)

// ConsumptionPlanner consumes product stock across batches in
// first-expired-first-out order. Consumption is all-or-nothing: a request
// the active batches cannot cover fails without touching anything.
type ConsumptionPlanner struct {
	productRepo  *repository.ProductRepository
	batchRepo    *repository.BatchRepository
	movementRepo *repository.MovementRepository
	capacity     *CapacityTracker
	publisher    *events.InventoryEventPublisher
	db           *database.DB
	logger       *logger.Logger
}

// NewConsumptionPlanner creates a new consumption planner
func NewConsumptionPlanner(
	productRepo *repository.ProductRepository,
	batchRepo *repository.BatchRepository,
	movementRepo *repository.MovementRepository,
	capacity *CapacityTracker,
	publisher *events.InventoryEventPublisher,
	db *database.DB,
	log *logger.Logger,
) *ConsumptionPlanner {
	return &ConsumptionPlanner{
		productRepo:  productRepo,
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		capacity:     capacity,
		publisher:    publisher,
		db:           db,
		logger:       log,
	}
}

// ConsumeInput is the input for a consumption request
type ConsumeInput struct {
	ProductID   string
	Quantity    int
	Reference   string
	PerformedBy string
}

// PlannedPortion is one batch's share of a consumption plan
type PlannedPortion struct {
	BatchID    string `json:"batch_id"`
	Quantity   int    `json:"quantity"`
	BatchTotal int    `json:"batch_total"`
}

// ConsumptionResult is the executed plan
type ConsumptionResult struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Plan      []PlannedPortion `json:"plan"`
}

// planConsumption splits needed across batches in the order given, taking
// each batch down to zero before touching the next. Callers pass batches in
// FEFO order. Assumes the caller has already checked the total is sufficient.
func planConsumption(batches []*repository.Batch, needed int) []PlannedPortion {
	var plan []PlannedPortion
	remaining := needed
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.Quantity <= 0 {
			continue
		}

		take := b.Quantity
		if take > remaining {
			take = remaining
		}

		plan = append(plan, PlannedPortion{
			BatchID:    b.ID,
			Quantity:   take,
			BatchTotal: b.Quantity,
		})
		remaining -= take
	}
	return plan
}

// sumQuantities totals the quantity across batches
func sumQuantities(batches []*repository.Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}

// Consume takes quantity out of a product's batches in FEFO order, draining
// shelf allocations as batches shrink. Runs in one transaction: the pre-flight
// sum check and the decrements see the same locked rows.
func (s *ConsumptionPlanner) Consume(ctx context.Context, input ConsumeInput) (*ConsumptionResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("consumption quantity must be positive")
	}

	var result *ConsumptionResult
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, txErr := s.productRepo.GetForUpdate(ctx, tx, input.ProductID); txErr != nil {
			return txErr
		}

		batches, txErr := s.batchRepo.ListByProductForUpdate(ctx, tx, input.ProductID)
		if txErr != nil {
			return txErr
		}

		available := sumQuantities(batches)
		if available < input.Quantity {
			return errors.InsufficientStock(input.ProductID, available, input.Quantity)
		}

		var reference *string
		if input.Reference != "" {
			reference = &input.Reference
		}

		plan := planConsumption(batches, input.Quantity)
		byID := make(map[string]*repository.Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}

		for _, portion := range plan {
			batch := byID[portion.BatchID]
			newQuantity := batch.Quantity - portion.Quantity

			if txErr := s.batchRepo.SetQuantity(ctx, tx, batch.ID, newQuantity); txErr != nil {
				return txErr
			}
			if _, txErr := s.capacity.ReleaseBatchInTx(ctx, tx, batch.ID, portion.Quantity); txErr != nil {
				return txErr
			}
			if newQuantity == 0 && batch.ShelfID != nil {
				if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, nil); txErr != nil {
					return txErr
				}
			}

			if txErr := s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
				ProductID:        input.ProductID,
				BatchID:          &portion.BatchID,
				MovementType:     repository.MovementConsumption,
				Quantity:         portion.Quantity,
				PreviousQuantity: batch.Quantity,
				NewQuantity:      newQuantity,
				Reference:        reference,
				PerformedBy:      input.PerformedBy,
			}); txErr != nil {
				return txErr
			}
		}

		if txErr := s.productRepo.AddTotalStock(ctx, tx, input.ProductID, -input.Quantity); txErr != nil {
			return txErr
		}

		result = &ConsumptionResult{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			Plan:      plan,
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("product_id", input.ProductID).
		Int("quantity", input.Quantity).
		Int("batches", len(result.Plan)).
		Msg("stock consumed")

	portions := make([]messaging.ConsumedPortion, len(result.Plan))
	for i, p := range result.Plan {
		portions[i] = messaging.ConsumedPortion{BatchID: p.BatchID, Quantity: p.Quantity}
	}
	s.publisher.PublishStockConsumed(ctx, input.ProductID, input.Quantity, portions, input.Reference)

	return result, nil
}

// Preview computes the plan a consume of the given quantity would execute,
// without locks or writes. The answer can go stale immediately; it is a hint
// for operators, not a reservation.
func (s *ConsumptionPlanner) Preview(ctx context.Context, productID string, quantity int) (*ConsumptionResult, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("consumption quantity must be positive")
	}

	batches, err := s.batchRepo.ListByProduct(ctx, productID, true)
	if err != nil {
		return nil, err
	}

	available := sumQuantities(batches)
	if available < quantity {
		return nil, errors.InsufficientStock(productID, available, quantity)
	}

	return &ConsumptionResult{
		ProductID: productID,
		Quantity:  quantity,
		Plan:      planConsumption(batches, quantity),
	}, nil
}
