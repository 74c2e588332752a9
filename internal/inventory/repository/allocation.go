package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/pkg/database"
)

// ShelfAllocation records how much of a batch occupies a given shelf.
// One row per (batch, shelf) pair; rows stay at quantity 0 after removal so
// the movement history keeps its foreign keys.
type ShelfAllocation struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	ShelfID   string    `db:"shelf_id" json:"shelf_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DuplicateAllocation is a data-integrity finding: more than one allocation
// row for the same (batch, shelf) pair. Can only come from writes that
// bypassed this service (legacy data, manual SQL).
type DuplicateAllocation struct {
	BatchID string `db:"batch_id" json:"batch_id"`
	ShelfID string `db:"shelf_id" json:"shelf_id"`
	Count   int    `db:"count" json:"count"`
}

// AllocationRepository handles shelf allocation persistence
type AllocationRepository struct {
	db *database.DB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *database.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// GetForUpdate locks the allocation row for a (batch, shelf) pair.
// Returns nil without error when no row exists yet.
func (r *AllocationRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, batchID, shelfID string) (*ShelfAllocation, error) {
	var alloc ShelfAllocation
	query := `SELECT * FROM shelf_allocations WHERE batch_id = $1 AND shelf_id = $2 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &alloc, query, batchID, shelfID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &alloc, nil
}

// ListByBatchForUpdate locks all non-empty allocation rows of a batch,
// ordered by shelf ID to match the shelf lock order.
func (r *AllocationRepository) ListByBatchForUpdate(ctx context.Context, q sqlx.ExtContext, batchID string) ([]*ShelfAllocation, error) {
	var allocs []*ShelfAllocation
	query := `
		SELECT * FROM shelf_allocations
		WHERE batch_id = $1 AND quantity > 0
		ORDER BY shelf_id
		FOR UPDATE
	`
	if err := sqlx.SelectContext(ctx, q, &allocs, query, batchID); err != nil {
		return nil, err
	}
	return allocs, nil
}

// ListByBatch lists non-empty allocations of a batch
func (r *AllocationRepository) ListByBatch(ctx context.Context, batchID string) ([]*ShelfAllocation, error) {
	var allocs []*ShelfAllocation
	query := `SELECT * FROM shelf_allocations WHERE batch_id = $1 AND quantity > 0 ORDER BY shelf_id`
	if err := r.db.SelectContext(ctx, &allocs, query, batchID); err != nil {
		return nil, err
	}
	return allocs, nil
}

// ListByShelf lists non-empty allocations on a shelf
func (r *AllocationRepository) ListByShelf(ctx context.Context, shelfID string) ([]*ShelfAllocation, error) {
	var allocs []*ShelfAllocation
	query := `SELECT * FROM shelf_allocations WHERE shelf_id = $1 AND quantity > 0 ORDER BY batch_id`
	if err := r.db.SelectContext(ctx, &allocs, query, shelfID); err != nil {
		return nil, err
	}
	return allocs, nil
}

// AddQuantity adds delta to the allocation for (batch, shelf), creating the
// row if needed. The unique constraint on (batch_id, shelf_id) makes the
// upsert race-free.
func (r *AllocationRepository) AddQuantity(ctx context.Context, q sqlx.ExtContext, batchID, shelfID string, delta int) error {
	query := `
		INSERT INTO shelf_allocations (id, batch_id, shelf_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id, shelf_id)
		DO UPDATE SET quantity = shelf_allocations.quantity + $4, updated_at = NOW()
	`
	_, err := q.ExecContext(ctx, query, uuid.New().String(), batchID, shelfID, delta)
	return err
}

// SumByShelf returns the summed allocation quantity on a shelf. Runs on the
// caller's transaction so the auditor can read it under a snapshot.
func (r *AllocationRepository) SumByShelf(ctx context.Context, q sqlx.ExtContext, shelfID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM shelf_allocations WHERE shelf_id = $1 AND quantity > 0`
	if err := sqlx.GetContext(ctx, q, &total, query, shelfID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// FindDuplicates finds (batch, shelf) pairs with more than one allocation row
func (r *AllocationRepository) FindDuplicates(ctx context.Context, q sqlx.ExtContext) ([]*DuplicateAllocation, error) {
	var dups []*DuplicateAllocation
	query := `
		SELECT batch_id, shelf_id, COUNT(*) AS count
		FROM shelf_allocations
		GROUP BY batch_id, shelf_id
		HAVING COUNT(*) > 1
	`
	if err := sqlx.SelectContext(ctx, q, &dups, query); err != nil {
		return nil, err
	}
	return dups, nil
}
