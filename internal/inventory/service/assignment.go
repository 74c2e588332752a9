package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// AssignmentService places batches on shelves. The one-shelf-per-batch rule
// lives here and nowhere else: a batch with remaining quantity on one shelf
// cannot be assigned to a second one, it has to be moved.
type AssignmentService struct {
	batchRepo    *repository.BatchRepository
	shelfRepo    *repository.ShelfRepository
	allocRepo    *repository.AllocationRepository
	movementRepo *repository.MovementRepository
	capacity     *CapacityTracker
	publisher    *events.InventoryEventPublisher
	db           *database.DB
	logger       *logger.Logger
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(
	batchRepo *repository.BatchRepository,
	shelfRepo *repository.ShelfRepository,
	allocRepo *repository.AllocationRepository,
	movementRepo *repository.MovementRepository,
	capacity *CapacityTracker,
	publisher *events.InventoryEventPublisher,
	db *database.DB,
	log *logger.Logger,
) *AssignmentService {
	return &AssignmentService{
		batchRepo:    batchRepo,
		shelfRepo:    shelfRepo,
		allocRepo:    allocRepo,
		movementRepo: movementRepo,
		capacity:     capacity,
		publisher:    publisher,
		db:           db,
		logger:       log,
	}
}

// AssignInput is the input for assigning a batch to a shelf
type AssignInput struct {
	BatchID     string
	ShelfID     string
	Quantity    int
	PerformedBy string
}

// MoveInput is the input for moving quantity between shelves
type MoveInput struct {
	BatchID     string
	FromShelfID string
	ToShelfID   string
	Quantity    int
	PerformedBy string
}

// RemoveInput is the input for taking quantity off a shelf
type RemoveInput struct {
	BatchID     string
	ShelfID     string
	Quantity    int
	PerformedBy string
}

// AllocationResult describes an allocation after a mutation
type AllocationResult struct {
	BatchID        string `json:"batch_id"`
	ShelfID        string `json:"shelf_id"`
	Quantity       int    `json:"quantity"`
	ShelfOccupancy int    `json:"shelf_occupancy"`
}

// AssignBatchToShelf reserves shelf capacity for part of a batch. Locks the
// batch row first, then the shelf, so the lock order matches every other
// writer.
func (s *AssignmentService) AssignBatchToShelf(ctx context.Context, input AssignInput) (*AllocationResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("allocation quantity must be positive")
	}

	var result *AllocationResult
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		batch, txErr := s.batchRepo.GetForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}

		allocs, txErr := s.allocRepo.ListByBatchForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}

		allocated := 0
		onTarget := 0
		for _, a := range allocs {
			allocated += a.Quantity
			if a.ShelfID == input.ShelfID {
				onTarget = a.Quantity
			} else {
				return errors.AlreadyAssignedElsewhere(batch.ID, a.ShelfID)
			}
		}

		unassigned := batch.Quantity - allocated
		if input.Quantity > unassigned {
			return errors.InsufficientQuantity(batch.ID, unassigned, input.Quantity)
		}

		shelf, txErr := s.capacity.ReserveInTx(ctx, tx, input.ShelfID, input.Quantity)
		if txErr != nil {
			return txErr
		}
		if txErr := s.allocRepo.AddQuantity(ctx, tx, batch.ID, input.ShelfID, input.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, &input.ShelfID); txErr != nil {
			return txErr
		}

		if txErr := s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        batch.ProductID,
			BatchID:          &batch.ID,
			ShelfID:          &input.ShelfID,
			MovementType:     repository.MovementAllocation,
			Quantity:         input.Quantity,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      batch.Quantity,
			PerformedBy:      input.PerformedBy,
		}); txErr != nil {
			return txErr
		}

		result = &AllocationResult{
			BatchID:        batch.ID,
			ShelfID:        shelf.ID,
			Quantity:       onTarget + input.Quantity,
			ShelfOccupancy: shelf.CurrentQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("batch_id", input.BatchID).
		Str("shelf_id", input.ShelfID).
		Int("quantity", input.Quantity).
		Msg("batch assigned to shelf")

	s.publisher.PublishAllocationCreated(ctx, input.BatchID, input.ShelfID, input.Quantity, result.ShelfOccupancy)

	return result, nil
}

// MoveAllocation shifts quantity from one shelf to another in a single
// transaction. Both shelves are locked up front in ascending ID order; if
// either leg fails the whole move rolls back, so observers only ever see the
// before or the after state.
func (s *AssignmentService) MoveAllocation(ctx context.Context, input MoveInput) (*AllocationResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("move quantity must be positive")
	}
	if input.FromShelfID == input.ToShelfID {
		return nil, errors.BadRequest("source and destination shelf are the same")
	}

	var result *AllocationResult
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		batch, txErr := s.batchRepo.GetForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}

		shelves, txErr := s.shelfRepo.GetManyForUpdate(ctx, tx, []string{input.FromShelfID, input.ToShelfID})
		if txErr != nil {
			return txErr
		}

		alloc, txErr := s.allocRepo.GetForUpdate(ctx, tx, batch.ID, input.FromShelfID)
		if txErr != nil {
			return txErr
		}
		onSource := 0
		if alloc != nil {
			onSource = alloc.Quantity
		}
		if input.Quantity > onSource {
			return errors.InsufficientQuantity(batch.ID, onSource, input.Quantity)
		}

		if txErr := s.capacity.ReleaseLocked(ctx, tx, shelves[input.FromShelfID], input.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.capacity.ReserveLocked(ctx, tx, shelves[input.ToShelfID], input.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.allocRepo.AddQuantity(ctx, tx, batch.ID, input.FromShelfID, -input.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.allocRepo.AddQuantity(ctx, tx, batch.ID, input.ToShelfID, input.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, &input.ToShelfID); txErr != nil {
			return txErr
		}

		if txErr := s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        batch.ProductID,
			BatchID:          &batch.ID,
			ShelfID:          &input.ToShelfID,
			MovementType:     repository.MovementMove,
			Quantity:         input.Quantity,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      batch.Quantity,
			PerformedBy:      input.PerformedBy,
		}); txErr != nil {
			return txErr
		}

		result = &AllocationResult{
			BatchID:        batch.ID,
			ShelfID:        input.ToShelfID,
			Quantity:       input.Quantity,
			ShelfOccupancy: shelves[input.ToShelfID].CurrentQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("batch_id", input.BatchID).
		Str("from_shelf", input.FromShelfID).
		Str("to_shelf", input.ToShelfID).
		Int("quantity", input.Quantity).
		Msg("allocation moved")

	s.publisher.PublishAllocationMoved(ctx, input.BatchID, input.FromShelfID, input.ToShelfID, input.Quantity)

	return result, nil
}

// RemoveAllocation takes quantity off a shelf without consuming it. The stock
// goes back to unassigned; the batch quantity is untouched.
func (s *AssignmentService) RemoveAllocation(ctx context.Context, input RemoveInput) (*AllocationResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("removal quantity must be positive")
	}

	var result *AllocationResult
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		batch, txErr := s.batchRepo.GetForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}

		alloc, txErr := s.allocRepo.GetForUpdate(ctx, tx, batch.ID, input.ShelfID)
		if txErr != nil {
			return txErr
		}
		onShelf := 0
		if alloc != nil {
			onShelf = alloc.Quantity
		}
		if input.Quantity > onShelf {
			return errors.InsufficientQuantity(batch.ID, onShelf, input.Quantity)
		}

		shelf, txErr := s.capacity.ReleaseInTx(ctx, tx, input.ShelfID, input.Quantity)
		if txErr != nil {
			return txErr
		}
		if txErr := s.allocRepo.AddQuantity(ctx, tx, batch.ID, input.ShelfID, -input.Quantity); txErr != nil {
			return txErr
		}
		if onShelf == input.Quantity && batch.ShelfID != nil && *batch.ShelfID == input.ShelfID {
			if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, nil); txErr != nil {
				return txErr
			}
		}

		if txErr := s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        batch.ProductID,
			BatchID:          &batch.ID,
			ShelfID:          &input.ShelfID,
			MovementType:     repository.MovementDeallocation,
			Quantity:         input.Quantity,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      batch.Quantity,
			PerformedBy:      input.PerformedBy,
		}); txErr != nil {
			return txErr
		}

		result = &AllocationResult{
			BatchID:        batch.ID,
			ShelfID:        input.ShelfID,
			Quantity:       onShelf - input.Quantity,
			ShelfOccupancy: shelf.CurrentQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("batch_id", input.BatchID).
		Str("shelf_id", input.ShelfID).
		Int("quantity", input.Quantity).
		Msg("allocation removed")

	s.publisher.PublishAllocationRemoved(ctx, input.BatchID, input.ShelfID, input.Quantity)

	return result, nil
}

// ListShelfContents lists the allocations sitting on a shelf
func (s *AssignmentService) ListShelfContents(ctx context.Context, shelfID string) ([]*repository.ShelfAllocation, error) {
	if _, err := s.shelfRepo.GetByID(ctx, shelfID); err != nil {
		return nil, err
	}
	return s.allocRepo.ListByShelf(ctx, shelfID)
}

// ListBatchAllocations lists where a batch currently sits
func (s *AssignmentService) ListBatchAllocations(ctx context.Context, batchID string) ([]*repository.ShelfAllocation, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.allocRepo.ListByBatch(ctx, batchID)
}
