package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
)

// Batch sources
const (
	BatchSourceReceipt   = "receipt"
	BatchSourceManual    = "manual"
	BatchSourceMigration = "migration"
)

// Batch represents a discrete lot of a product. Exhausted batches keep their
// row with quantity 0 and is_active false for the audit trail.
type Batch struct {
	ID         string     `db:"id" json:"id"`
	ProductID  string     `db:"product_id" json:"product_id"`
	Quantity   int        `db:"quantity" json:"quantity"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	ShelfID    *string    `db:"shelf_id" json:"shelf_id,omitempty"`
	Source     string     `db:"source" json:"source"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch inside the caller's transaction
func (r *BatchRepository) Create(ctx context.Context, q sqlx.ExtContext, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (id, product_id, quantity, expiry_date, shelf_id, source, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	row := q.QueryRowxContext(ctx, query,
		batch.ID, batch.ProductID, batch.Quantity, batch.ExpiryDate,
		batch.ShelfID, batch.Source, batch.IsActive,
	)
	return row.Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetForUpdate locks an active batch row for the duration of the transaction.
// Missing and exhausted batches both surface as not found.
func (r *BatchRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 AND is_active = true FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetAnyForUpdate locks a batch row regardless of its active flag. Damage
// resolution uses this so a meanwhile-exhausted batch shows up with its zero
// quantity instead of as missing.
func (r *BatchRepository) GetAnyForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByProduct lists batches for a product in FEFO order: ascending expiry
// with unknown expiries last, creation time as the tiebreak.
func (r *BatchRepository) ListByProduct(ctx context.Context, productID string, onlyActive bool) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE product_id = $1`
	if onlyActive {
		query += ` AND is_active = true`
	}
	query += ` ORDER BY expiry_date ASC NULLS LAST, created_at ASC`
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByProductForUpdate locks all active batches of a product in FEFO order.
// The consumption planner uses this so the plan and the decrements see the
// same quantities.
func (r *BatchRepository) ListByProductForUpdate(ctx context.Context, q sqlx.ExtContext, productID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE product_id = $1 AND is_active = true
		ORDER BY expiry_date ASC NULLS LAST, created_at ASC
		FOR UPDATE
	`
	if err := sqlx.SelectContext(ctx, q, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// SetQuantity writes a batch's quantity. A batch that reaches zero is marked
// exhausted but never deleted.
func (r *BatchRepository) SetQuantity(ctx context.Context, q sqlx.ExtContext, id string, quantity int) error {
	query := `UPDATE batches SET quantity = $2, is_active = ($2 > 0), updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// SetShelf updates the batch's denormalized shelf pointer. The authoritative
// batch-to-shelf mapping lives in shelf_allocations.
func (r *BatchRepository) SetShelf(ctx context.Context, q sqlx.ExtContext, id string, shelfID *string) error {
	query := `UPDATE batches SET shelf_id = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, shelfID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// GetExpiring gets active batches expiring within the given number of days
func (r *BatchRepository) GetExpiring(ctx context.Context, withinDays int) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE is_active = true AND quantity > 0
		AND expiry_date IS NOT NULL
		AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// SumActiveByProduct returns the total quantity across a product's active batches
func (r *BatchRepository) SumActiveByProduct(ctx context.Context, productID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM batches WHERE product_id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &total, query, productID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}
