package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// BatchStore owns batch quantities and the product total stock counter.
// The two are only ever mutated together, inside one transaction.
type BatchStore struct {
	productRepo  *repository.ProductRepository
	batchRepo    *repository.BatchRepository
	movementRepo *repository.MovementRepository
	capacity     *CapacityTracker
	publisher    *events.InventoryEventPublisher
	db           *database.DB
	logger       *logger.Logger
}

// NewBatchStore creates a new batch store
func NewBatchStore(
	productRepo *repository.ProductRepository,
	batchRepo *repository.BatchRepository,
	movementRepo *repository.MovementRepository,
	capacity *CapacityTracker,
	publisher *events.InventoryEventPublisher,
	db *database.DB,
	log *logger.Logger,
) *BatchStore {
	return &BatchStore{
		productRepo:  productRepo,
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		capacity:     capacity,
		publisher:    publisher,
		db:           db,
		logger:       log,
	}
}

// CreateBatchInput is the input for a stock receipt
type CreateBatchInput struct {
	ProductID   string
	Quantity    int
	ExpiryDate  *time.Time
	Source      string
	PerformedBy string
}

// DecrementBatchInput is the input for a direct batch decrement
type DecrementBatchInput struct {
	BatchID     string
	Quantity    int
	Reason      string
	PerformedBy string
}

// CreateBatch registers a received lot and raises the product's total stock
func (s *BatchStore) CreateBatch(ctx context.Context, input CreateBatchInput) (*repository.Batch, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("batch quantity must be positive")
	}
	if input.Source == "" {
		input.Source = repository.BatchSourceReceipt
	}

	batch := &repository.Batch{
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		ExpiryDate: input.ExpiryDate,
		Source:     input.Source,
		IsActive:   true,
	}

	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.productRepo.GetForUpdate(ctx, tx, input.ProductID); err != nil {
			return err
		}
		if err := s.batchRepo.Create(ctx, tx, batch); err != nil {
			return err
		}
		if err := s.productRepo.AddTotalStock(ctx, tx, input.ProductID, input.Quantity); err != nil {
			return err
		}

		return s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        input.ProductID,
			BatchID:          &batch.ID,
			MovementType:     repository.MovementReceipt,
			Quantity:         input.Quantity,
			PreviousQuantity: 0,
			NewQuantity:      input.Quantity,
			PerformedBy:      input.PerformedBy,
		})
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("product_id", batch.ProductID).
		Int("quantity", batch.Quantity).
		Msg("batch created")

	s.publisher.PublishStockReceived(ctx, batch)

	return batch, nil
}

// DecrementBatch takes quantity out of a single batch, draining its shelf
// allocations along the way. Used for manual corrections outside the
// consumption flow.
func (s *BatchStore) DecrementBatch(ctx context.Context, input DecrementBatchInput) (*repository.Batch, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("decrement amount must be positive")
	}

	// Resolve the owning product up front; a batch never changes product, so
	// the unlocked read is safe and lets the transaction lock product before
	// batch, the same order consumption uses.
	ref, err := s.batchRepo.GetByID(ctx, input.BatchID)
	if err != nil {
		return nil, err
	}

	var batch *repository.Batch
	err = s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, txErr := s.productRepo.GetForUpdate(ctx, tx, ref.ProductID); txErr != nil {
			return txErr
		}

		var txErr error
		batch, txErr = s.batchRepo.GetForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}
		if input.Quantity > batch.Quantity {
			return errors.InsufficientQuantity(batch.ID, batch.Quantity, input.Quantity)
		}

		newQuantity := batch.Quantity - input.Quantity
		if txErr := s.batchRepo.SetQuantity(ctx, tx, batch.ID, newQuantity); txErr != nil {
			return txErr
		}
		if _, txErr := s.capacity.ReleaseBatchInTx(ctx, tx, batch.ID, input.Quantity); txErr != nil {
			return txErr
		}
		if newQuantity == 0 && batch.ShelfID != nil {
			if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, nil); txErr != nil {
				return txErr
			}
			batch.ShelfID = nil
		}
		if txErr := s.productRepo.AddTotalStock(ctx, tx, batch.ProductID, -input.Quantity); txErr != nil {
			return txErr
		}

		var reference *string
		if input.Reason != "" {
			reference = &input.Reason
		}
		if txErr := s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        batch.ProductID,
			BatchID:          &batch.ID,
			MovementType:     repository.MovementConsumption,
			Quantity:         input.Quantity,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      newQuantity,
			Reference:        reference,
			PerformedBy:      input.PerformedBy,
		}); txErr != nil {
			return txErr
		}

		batch.Quantity = newQuantity
		batch.IsActive = newQuantity > 0
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Int("quantity", input.Quantity).
		Int("remaining", batch.Quantity).
		Msg("batch decremented")

	return batch, nil
}

// GetBatch gets a batch by ID
func (s *BatchStore) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatchesForProduct lists a product's batches in first-expired-first-out order
func (s *BatchStore) ListBatchesForProduct(ctx context.Context, productID string, onlyActive bool) ([]*repository.Batch, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListByProduct(ctx, productID, onlyActive)
}

// GetExpiringBatches lists active batches expiring within the given window
func (s *BatchStore) GetExpiringBatches(ctx context.Context, withinDays int) ([]*repository.Batch, error) {
	if withinDays <= 0 {
		withinDays = 7
	}
	return s.batchRepo.GetExpiring(ctx, withinDays)
}

// ProductWithBatches is the enriched product read view
type ProductWithBatches struct {
	*repository.Product
	Batches       []*repository.Batch `json:"batches"`
	ActiveStock   int                 `json:"active_stock"`
	NearestExpiry *time.Time          `json:"nearest_expiry,omitempty"`
	StockStatus   string              `json:"stock_status"`
}

// GetProduct gets a product with its active batches and derived stock status
func (s *BatchStore) GetProduct(ctx context.Context, id string) (*ProductWithBatches, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListByProduct(ctx, id, true)
	if err != nil {
		return nil, err
	}

	return s.enrichProduct(product, batches), nil
}

// ListProducts lists products with pagination
func (s *BatchStore) ListProducts(ctx context.Context, page, perPage int, category string) ([]*repository.Product, int64, error) {
	return s.productRepo.List(ctx, page, perPage, category)
}

// ListMovements lists the movement journal for a product, newest first
func (s *BatchStore) ListMovements(ctx context.Context, productID string, page, perPage int) ([]*repository.StockMovement, int64, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.movementRepo.ListByProduct(ctx, productID, page, perPage)
}

func (s *BatchStore) enrichProduct(product *repository.Product, batches []*repository.Batch) *ProductWithBatches {
	view := &ProductWithBatches{
		Product: product,
		Batches: batches,
	}

	var nearest *time.Time
	for _, b := range batches {
		view.ActiveStock += b.Quantity
		if b.Quantity > 0 && b.ExpiryDate != nil {
			if nearest == nil || b.ExpiryDate.Before(*nearest) {
				nearest = b.ExpiryDate
			}
		}
	}
	view.NearestExpiry = nearest

	switch {
	case view.ActiveStock == 0:
		view.StockStatus = "out_of_stock"
	case nearest != nil && nearest.Before(time.Now()):
		view.StockStatus = "expired_stock"
	case nearest != nil && time.Until(*nearest) <= 7*24*time.Hour:
		view.StockStatus = "expiring"
	default:
		view.StockStatus = "in_stock"
	}

	return view
}
