package events

import (
	"context"
	"time"

	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/logger"
	"github.com/storeflow/storeflow-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived publishes a stock received event
func (p *InventoryEventPublisher) PublishStockReceived(ctx context.Context, batch *repository.Batch) {
	if p == nil {
		return
	}
	data := messaging.StockReceivedEvent{
		ProductID:  batch.ProductID,
		BatchID:    batch.ID,
		Quantity:   batch.Quantity,
		ExpiryDate: batch.ExpiryDate,
		Source:     batch.Source,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish stock received event")
	}
}

// PublishStockConsumed publishes a stock consumed event with the plan
func (p *InventoryEventPublisher) PublishStockConsumed(ctx context.Context, productID string, quantity int, plan []messaging.ConsumedPortion, reference string) {
	if p == nil {
		return
	}
	data := messaging.StockConsumedEvent{
		ProductID: productID,
		Quantity:  quantity,
		Plan:      plan,
		Reference: reference,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockConsumed, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish stock consumed event")
	}
}

// PublishAllocationCreated publishes an allocation created event
func (p *InventoryEventPublisher) PublishAllocationCreated(ctx context.Context, batchID, shelfID string, quantity, occupancy int) {
	if p == nil {
		return
	}
	data := messaging.AllocationCreatedEvent{
		BatchID:   batchID,
		ShelfID:   shelfID,
		Quantity:  quantity,
		Occupancy: occupancy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAllocationCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to publish allocation created event")
	}
}

// PublishAllocationMoved publishes an allocation moved event
func (p *InventoryEventPublisher) PublishAllocationMoved(ctx context.Context, batchID, from, to string, quantity int) {
	if p == nil {
		return
	}
	data := messaging.AllocationMovedEvent{
		BatchID:     batchID,
		FromShelfID: from,
		ToShelfID:   to,
		Quantity:    quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAllocationMoved, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to publish allocation moved event")
	}
}

// PublishAllocationRemoved publishes an allocation removed event
func (p *InventoryEventPublisher) PublishAllocationRemoved(ctx context.Context, batchID, shelfID string, quantity int) {
	if p == nil {
		return
	}
	data := messaging.AllocationRemovedEvent{
		BatchID:  batchID,
		ShelfID:  shelfID,
		Quantity: quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAllocationRemoved, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to publish allocation removed event")
	}
}

// PublishDamageReported publishes a damage reported event
func (p *InventoryEventPublisher) PublishDamageReported(ctx context.Context, rec *repository.DamagedRecord) {
	if p == nil {
		return
	}
	shelfID := ""
	if rec.ShelfID != nil {
		shelfID = *rec.ShelfID
	}

	data := messaging.DamageReportedEvent{
		RecordID: rec.ID,
		BatchID:  rec.BatchID,
		ShelfID:  shelfID,
		Quantity: rec.Quantity,
		Reason:   rec.Reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDamageReported, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish damage reported event")
	}
}

// PublishDamageResolved publishes a damage resolved event
func (p *InventoryEventPublisher) PublishDamageResolved(ctx context.Context, rec *repository.DamagedRecord) {
	if p == nil {
		return
	}
	resolution := ""
	if rec.Resolution != nil {
		resolution = *rec.Resolution
	}
	resolvedBy := ""
	if rec.ResolvedBy != nil {
		resolvedBy = *rec.ResolvedBy
	}

	data := messaging.DamageResolvedEvent{
		RecordID:   rec.ID,
		BatchID:    rec.BatchID,
		Quantity:   rec.Quantity,
		Resolution: resolution,
		ResolvedBy: resolvedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDamageResolved, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish damage resolved event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *InventoryEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.Batch, expiry time.Time, daysUntil int) {
	if p == nil {
		return
	}
	data := messaging.BatchExpiringEvent{
		ProductID:  batch.ProductID,
		BatchID:    batch.ID,
		ExpiryDate: expiry,
		DaysUntil:  daysUntil,
		Quantity:   batch.Quantity,
	}

	eventType := messaging.EventBatchExpiring
	if daysUntil < 0 {
		eventType = messaging.EventBatchExpired
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch expiring event")
	}
}

// PublishDriftDetected publishes a drift detected event
func (p *InventoryEventPublisher) PublishDriftDetected(ctx context.Context, shelfID string, computed, stored, capacity int, kind string) {
	if p == nil {
		return
	}
	data := messaging.DriftDetectedEvent{
		ShelfID:  shelfID,
		Computed: computed,
		Stored:   stored,
		Capacity: capacity,
		Kind:     kind,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDriftDetected, data); err != nil {
		p.logger.Error().Err(err).Str("shelf_id", shelfID).Msg("failed to publish drift detected event")
	}
}

// PublishDriftRepaired publishes a drift repaired event
func (p *InventoryEventPublisher) PublishDriftRepaired(ctx context.Context, shelfID string, oldStored, newStored int, repairedBy string) {
	if p == nil {
		return
	}
	data := messaging.DriftRepairedEvent{
		ShelfID:    shelfID,
		OldStored:  oldStored,
		NewStored:  newStored,
		RepairedBy: repairedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDriftRepaired, data); err != nil {
		p.logger.Error().Err(err).Str("shelf_id", shelfID).Msg("failed to publish drift repaired event")
	}
}
