package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
)

// Shelf represents a store shelf with a fixed capacity and its denormalized
// occupancy counter. Master data is owned by shelf management; this service
// only ever touches current_quantity.
type Shelf struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Category        string    `db:"category" json:"category"`
	Capacity        int       `db:"capacity" json:"capacity"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ShelfRepository handles shelf persistence
type ShelfRepository struct {
	db *database.DB
}

// NewShelfRepository creates a new shelf repository
func NewShelfRepository(db *database.DB) *ShelfRepository {
	return &ShelfRepository{db: db}
}

// GetByID gets a shelf by ID
func (r *ShelfRepository) GetByID(ctx context.Context, id string) (*Shelf, error) {
	var shelf Shelf
	query := `SELECT * FROM shelves WHERE id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &shelf, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("shelf")
		}
		return nil, err
	}
	return &shelf, nil
}

// List lists active shelves
func (r *ShelfRepository) List(ctx context.Context) ([]*Shelf, error) {
	var shelves []*Shelf
	query := `SELECT * FROM shelves WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &shelves, query); err != nil {
		return nil, err
	}
	return shelves, nil
}

// GetForUpdate locks the shelf row for the duration of the transaction.
// All occupancy changes go through this lock, which is what serializes
// concurrent reserve/release on the same shelf.
func (r *ShelfRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*Shelf, error) {
	var shelf Shelf
	query := `SELECT * FROM shelves WHERE id = $1 AND is_active = true FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &shelf, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("shelf")
		}
		return nil, err
	}
	return &shelf, nil
}

// GetForAudit reads a shelf on the caller's transaction without locking it.
// Snapshot transactions are read only and cannot take row locks.
func (r *ShelfRepository) GetForAudit(ctx context.Context, q sqlx.ExtContext, id string) (*Shelf, error) {
	var shelf Shelf
	query := `SELECT * FROM shelves WHERE id = $1 AND is_active = true`
	if err := sqlx.GetContext(ctx, q, &shelf, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("shelf")
		}
		return nil, err
	}
	return &shelf, nil
}

// GetManyForUpdate locks several shelf rows in ascending ID order. The fixed
// order prevents lock cycles when two moves cross the same pair of shelves.
func (r *ShelfRepository) GetManyForUpdate(ctx context.Context, q sqlx.ExtContext, ids []string) (map[string]*Shelf, error) {
	query, args, err := sqlx.In(`SELECT * FROM shelves WHERE id IN (?) AND is_active = true ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var shelves []*Shelf
	if err := sqlx.SelectContext(ctx, q, &shelves, query, args...); err != nil {
		return nil, err
	}
	if len(shelves) != len(ids) {
		return nil, errors.NotFound("shelf")
	}

	byID := make(map[string]*Shelf, len(shelves))
	for _, s := range shelves {
		byID[s.ID] = s
	}
	return byID, nil
}

// SetOccupancy writes a shelf's occupancy counter. Callers compute the new
// value under the row lock taken by GetForUpdate.
func (r *ShelfRepository) SetOccupancy(ctx context.Context, q sqlx.ExtContext, id string, quantity int) error {
	query := `UPDATE shelves SET current_quantity = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("shelf")
	}

	return nil
}
