package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/pkg/database"
)

// Movement types
const (
	MovementReceipt      = "receipt"
	MovementConsumption  = "consumption"
	MovementAllocation   = "allocation"
	MovementMove         = "move"
	MovementDeallocation = "deallocation"
	MovementDamage       = "damage"
)

// StockMovement is an append-only journal entry written by every mutating
// operation, recording the before/after batch quantity for traceability.
type StockMovement struct {
	ID               string    `db:"id" json:"id"`
	ProductID        string    `db:"product_id" json:"product_id"`
	BatchID          *string   `db:"batch_id" json:"batch_id,omitempty"`
	ShelfID          *string   `db:"shelf_id" json:"shelf_id,omitempty"`
	MovementType     string    `db:"movement_type" json:"movement_type"`
	Quantity         int       `db:"quantity" json:"quantity"`
	PreviousQuantity int       `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int       `db:"new_quantity" json:"new_quantity"`
	Reference        *string   `db:"reference" json:"reference,omitempty"`
	PerformedBy      string    `db:"performed_by" json:"performed_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// MovementRepository handles the stock movement journal
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Insert appends a movement row inside the caller's transaction
func (r *MovementRepository) Insert(ctx context.Context, q sqlx.ExtContext, mv *StockMovement) error {
	if mv.ID == "" {
		mv.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (id, product_id, batch_id, shelf_id, movement_type, quantity, previous_quantity, new_quantity, reference, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	row := q.QueryRowxContext(ctx, query,
		mv.ID, mv.ProductID, mv.BatchID, mv.ShelfID, mv.MovementType,
		mv.Quantity, mv.PreviousQuantity, mv.NewQuantity, mv.Reference, mv.PerformedBy,
	)
	return row.Scan(&mv.CreatedAt)
}

// ListByProduct lists movements for a product, newest first
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string, page, perPage int) ([]*StockMovement, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_movements WHERE product_id = $1`, productID); err != nil {
		return nil, 0, err
	}

	var movements []*StockMovement
	query := `
		SELECT * FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &movements, query, productID, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}
