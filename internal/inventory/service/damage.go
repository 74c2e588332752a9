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

// DamageService runs the damage workflow: report, review, resolve. Reporting
// never touches stock; the decrement happens exactly once, at resolution,
// guarded by the inventory_adjusted flag.
type DamageService struct {
	batchRepo    *repository.BatchRepository
	productRepo  *repository.ProductRepository
	damageRepo   *repository.DamageRepository
	movementRepo *repository.MovementRepository
	capacity     *CapacityTracker
	publisher    *events.InventoryEventPublisher
	db           *database.DB
	logger       *logger.Logger
}

// NewDamageService creates a new damage service
func NewDamageService(
	batchRepo *repository.BatchRepository,
	productRepo *repository.ProductRepository,
	damageRepo *repository.DamageRepository,
	movementRepo *repository.MovementRepository,
	capacity *CapacityTracker,
	publisher *events.InventoryEventPublisher,
	db *database.DB,
	log *logger.Logger,
) *DamageService {
	return &DamageService{
		batchRepo:    batchRepo,
		productRepo:  productRepo,
		damageRepo:   damageRepo,
		movementRepo: movementRepo,
		capacity:     capacity,
		publisher:    publisher,
		db:           db,
		logger:       log,
	}
}

// ReportDamageInput is the input for filing a damage report
type ReportDamageInput struct {
	BatchID    string
	ShelfID    *string
	Quantity   int
	Reason     string
	ReportedBy string
}

// ResolveDamageInput is the input for resolving a damage report
type ResolveDamageInput struct {
	RecordID   string
	Resolution string
	ResolvedBy string
}

// ReportDamage files a damage report against a batch. The reported quantity
// must fit inside the batch quantity minus damage already pending, so the sum
// of open reports can always be applied later.
func (s *DamageService) ReportDamage(ctx context.Context, input ReportDamageInput) (*repository.DamagedRecord, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("damage quantity must be positive")
	}

	rec := &repository.DamagedRecord{
		BatchID:    input.BatchID,
		ShelfID:    input.ShelfID,
		Quantity:   input.Quantity,
		Reason:     input.Reason,
		Status:     repository.DamageStatusReported,
		ReportedBy: input.ReportedBy,
	}

	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		batch, txErr := s.batchRepo.GetForUpdate(ctx, tx, input.BatchID)
		if txErr != nil {
			return txErr
		}

		pending, txErr := s.damageRepo.SumPendingByBatch(ctx, tx, batch.ID)
		if txErr != nil {
			return txErr
		}

		reportable := batch.Quantity - pending
		if input.Quantity > reportable {
			return errors.InsufficientQuantity(batch.ID, reportable, input.Quantity)
		}

		rec.ProductID = batch.ProductID
		return s.damageRepo.Create(ctx, tx, rec)
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.logger.Info().
		Str("record_id", rec.ID).
		Str("batch_id", rec.BatchID).
		Int("quantity", rec.Quantity).
		Str("reason", rec.Reason).
		Msg("damage reported")

	s.publisher.PublishDamageReported(ctx, rec)

	return rec, nil
}

// MarkReviewed moves a reported record to reviewed
func (s *DamageService) MarkReviewed(ctx context.Context, recordID string) (*repository.DamagedRecord, error) {
	var rec *repository.DamagedRecord
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		rec, txErr = s.damageRepo.GetForUpdate(ctx, tx, recordID)
		if txErr != nil {
			return txErr
		}
		if rec.InventoryAdjusted {
			return errors.AlreadyResolved(rec.ID)
		}
		if txErr := s.damageRepo.SetStatus(ctx, tx, rec.ID, repository.DamageStatusReviewed); txErr != nil {
			return txErr
		}
		rec.Status = repository.DamageStatusReviewed
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	return rec, nil
}

// ResolveDamage applies a damage report to stock: decrements the batch,
// drains its shelf allocations, and marks the record resolved, all in one
// transaction. Resolving an already-resolved record returns it unchanged;
// the inventory_adjusted flag, read under the row lock, guarantees the
// decrement happens at most once no matter how often resolve is called.
func (s *DamageService) ResolveDamage(ctx context.Context, input ResolveDamageInput) (*repository.DamagedRecord, error) {
	var rec *repository.DamagedRecord
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		rec, txErr = s.damageRepo.GetForUpdate(ctx, tx, input.RecordID)
		if txErr != nil {
			return txErr
		}
		if rec.InventoryAdjusted {
			return nil
		}

		// Product before batch, the same lock order consumption uses.
		if _, txErr := s.productRepo.GetForUpdate(ctx, tx, rec.ProductID); txErr != nil {
			return txErr
		}

		// The batch may have been exhausted since the report was filed; lock
		// it regardless of its active flag so the shortfall is visible.
		batch, txErr := s.batchRepo.GetAnyForUpdate(ctx, tx, rec.BatchID)
		if txErr != nil {
			return txErr
		}
		if rec.Quantity > batch.Quantity {
			return errors.InsufficientQuantity(batch.ID, batch.Quantity, rec.Quantity)
		}

		newQuantity := batch.Quantity - rec.Quantity
		if txErr := s.batchRepo.SetQuantity(ctx, tx, batch.ID, newQuantity); txErr != nil {
			return txErr
		}
		if _, txErr := s.capacity.ReleaseBatchInTx(ctx, tx, batch.ID, rec.Quantity); txErr != nil {
			return txErr
		}
		if newQuantity == 0 && batch.ShelfID != nil {
			if txErr := s.batchRepo.SetShelf(ctx, tx, batch.ID, nil); txErr != nil {
				return txErr
			}
		}
		if txErr := s.productRepo.AddTotalStock(ctx, tx, batch.ProductID, -rec.Quantity); txErr != nil {
			return txErr
		}
		if txErr := s.damageRepo.MarkResolved(ctx, tx, rec.ID, input.Resolution, input.ResolvedBy); txErr != nil {
			return txErr
		}

		return s.movementRepo.Insert(ctx, tx, &repository.StockMovement{
			ProductID:        batch.ProductID,
			BatchID:          &batch.ID,
			ShelfID:          rec.ShelfID,
			MovementType:     repository.MovementDamage,
			Quantity:         rec.Quantity,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      newQuantity,
			Reference:        &rec.ID,
			PerformedBy:      input.ResolvedBy,
		})
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	if rec.InventoryAdjusted {
		s.logger.Info().Str("record_id", rec.ID).Msg("damage record already resolved, no adjustment applied")
		return rec, nil
	}

	// Re-read so the caller sees the resolved state
	rec, err = s.damageRepo.GetByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", rec.ID).
		Str("batch_id", rec.BatchID).
		Int("quantity", rec.Quantity).
		Str("resolution", input.Resolution).
		Msg("damage resolved, inventory adjusted")

	s.publisher.PublishDamageResolved(ctx, rec)

	return rec, nil
}

// GetDamagedRecord gets a damage record by ID
func (s *DamageService) GetDamagedRecord(ctx context.Context, id string) (*repository.DamagedRecord, error) {
	return s.damageRepo.GetByID(ctx, id)
}

// ListDamagedRecords lists damage records, optionally filtered by status
func (s *DamageService) ListDamagedRecords(ctx context.Context, status string, page, perPage int) ([]*repository.DamagedRecord, int64, error) {
	return s.damageRepo.List(ctx, status, page, perPage)
}
