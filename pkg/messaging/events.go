package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockReceived = "inventory.stock.received"
	EventStockConsumed = "inventory.stock.consumed"

	// Allocation events
	EventAllocationCreated = "inventory.allocation.created"
	EventAllocationMoved   = "inventory.allocation.moved"
	EventAllocationRemoved = "inventory.allocation.removed"

	// Damage events
	EventDamageReported = "inventory.damage.reported"
	EventDamageResolved = "inventory.damage.resolved"

	// Expiry events
	EventBatchExpiring = "inventory.batch.expiring"
	EventBatchExpired  = "inventory.batch.expired"

	// Reconciliation events
	EventDriftDetected = "inventory.drift.detected"
	EventDriftRepaired = "inventory.drift.repaired"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock events

// StockReceivedEvent is published when a new batch is created from a receipt
type StockReceivedEvent struct {
	ProductID  string     `json:"product_id"`
	BatchID    string     `json:"batch_id"`
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Source     string     `json:"source"`
}

// StockConsumedEvent is published when stock is consumed via the FEFO planner
type StockConsumedEvent struct {
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Plan      []ConsumedPortion `json:"plan"`
	Reference string            `json:"reference,omitempty"`
}

// ConsumedPortion is one batch's share of a consumption plan
type ConsumedPortion struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
}

// Allocation events

// AllocationCreatedEvent is published when a batch is assigned to a shelf
type AllocationCreatedEvent struct {
	BatchID   string `json:"batch_id"`
	ShelfID   string `json:"shelf_id"`
	Quantity  int    `json:"quantity"`
	Occupancy int    `json:"occupancy"`
}

// AllocationMovedEvent is published when an allocation moves between shelves
type AllocationMovedEvent struct {
	BatchID     string `json:"batch_id"`
	FromShelfID string `json:"from_shelf_id"`
	ToShelfID   string `json:"to_shelf_id"`
	Quantity    int    `json:"quantity"`
}

// AllocationRemovedEvent is published when quantity leaves a shelf
type AllocationRemovedEvent struct {
	BatchID  string `json:"batch_id"`
	ShelfID  string `json:"shelf_id"`
	Quantity int    `json:"quantity"`
}

// Damage events

// DamageReportedEvent is published when a damage record is filed
type DamageReportedEvent struct {
	RecordID string `json:"record_id"`
	BatchID  string `json:"batch_id"`
	ShelfID  string `json:"shelf_id,omitempty"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// DamageResolvedEvent is published when a damage record is resolved and the
// inventory adjustment applied
type DamageResolvedEvent struct {
	RecordID   string `json:"record_id"`
	BatchID    string `json:"batch_id"`
	Quantity   int    `json:"quantity"`
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolved_by"`
}

// Expiry events

// BatchExpiringEvent is published when a batch is nearing expiry
type BatchExpiringEvent struct {
	ProductID  string    `json:"product_id"`
	BatchID    string    `json:"batch_id"`
	ExpiryDate time.Time `json:"expiry_date"`
	DaysUntil  int       `json:"days_until"`
	Quantity   int       `json:"quantity"`
}

// Reconciliation events

// DriftDetectedEvent is published when the auditor finds a discrepancy
// between computed allocations and stored occupancy
type DriftDetectedEvent struct {
	ShelfID  string `json:"shelf_id"`
	Computed int    `json:"computed"`
	Stored   int    `json:"stored"`
	Capacity int    `json:"capacity"`
	Kind     string `json:"kind"`
}

// DriftRepairedEvent is published when an operator repairs a discrepancy
type DriftRepairedEvent struct {
	ShelfID    string `json:"shelf_id"`
	OldStored  int    `json:"old_stored"`
	NewStored  int    `json:"new_stored"`
	RepairedBy string `json:"repaired_by"`
}
