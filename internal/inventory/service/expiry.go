package service

import (
	"context"
	"time"

	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// ExpiryScanner walks active batches nearing their expiry date and publishes
// alerts. It only reads; pulling expired stock is an operator decision taken
// through the damage workflow.
type ExpiryScanner struct {
	batchRepo   *repository.BatchRepository
	publisher   *events.InventoryEventPublisher
	warningDays int
	logger      *logger.Logger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(batchRepo *repository.BatchRepository, publisher *events.InventoryEventPublisher, warningDays int, log *logger.Logger) *ExpiryScanner {
	if warningDays <= 0 {
		warningDays = 7
	}
	return &ExpiryScanner{
		batchRepo:   batchRepo,
		publisher:   publisher,
		warningDays: warningDays,
		logger:      log,
	}
}

// Scan publishes an event for every active batch inside the warning window.
// Returns the number of batches flagged.
func (s *ExpiryScanner) Scan(ctx context.Context) (int, error) {
	batches, err := s.batchRepo.GetExpiring(ctx, s.warningDays)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, batch := range batches {
		if batch.ExpiryDate == nil {
			continue
		}

		daysUntil := int(batch.ExpiryDate.Sub(now).Hours() / 24)
		s.logger.Warn().
			Str("batch_id", batch.ID).
			Str("product_id", batch.ProductID).
			Int("days_until", daysUntil).
			Int("quantity", batch.Quantity).
			Msg("batch nearing expiry")

		s.publisher.PublishBatchExpiring(ctx, batch, *batch.ExpiryDate, daysUntil)
	}

	return len(batches), nil
}
