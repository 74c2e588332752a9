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

// Damage record statuses
const (
	DamageStatusReported = "reported"
	DamageStatusReviewed = "reviewed"
	DamageStatusResolved = "resolved"
)

// Damage resolutions
const (
	DamageResolutionExpired = "expired"
	DamageResolutionDamaged = "damaged"
	DamageResolutionOther   = "other"
)

// DamagedRecord tracks reported damage against a batch/shelf pair.
// inventory_adjusted guards the stock decrement: once true, resolving again
// is a no-op.
type DamagedRecord struct {
	ID                string     `db:"id" json:"id"`
	BatchID           string     `db:"batch_id" json:"batch_id"`
	ProductID         string     `db:"product_id" json:"product_id"`
	ShelfID           *string    `db:"shelf_id" json:"shelf_id,omitempty"`
	Quantity          int        `db:"quantity" json:"quantity"`
	Reason            string     `db:"reason" json:"reason"`
	Status            string     `db:"status" json:"status"`
	Resolution        *string    `db:"resolution" json:"resolution,omitempty"`
	InventoryAdjusted bool       `db:"inventory_adjusted" json:"inventory_adjusted"`
	ReportedBy        string     `db:"reported_by" json:"reported_by"`
	ResolvedBy        *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// DamageRepository handles damaged record persistence
type DamageRepository struct {
	db *database.DB
}

// NewDamageRepository creates a new damage repository
func NewDamageRepository(db *database.DB) *DamageRepository {
	return &DamageRepository{db: db}
}

// Create inserts a new damaged record inside the caller's transaction
func (r *DamageRepository) Create(ctx context.Context, q sqlx.ExtContext, rec *DamagedRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = DamageStatusReported
	}

	query := `
		INSERT INTO damaged_records (id, batch_id, product_id, shelf_id, quantity, reason, status, inventory_adjusted, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	row := q.QueryRowxContext(ctx, query,
		rec.ID, rec.BatchID, rec.ProductID, rec.ShelfID, rec.Quantity,
		rec.Reason, rec.Status, rec.InventoryAdjusted, rec.ReportedBy,
	)
	return row.Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID gets a damaged record by ID
func (r *DamageRepository) GetByID(ctx context.Context, id string) (*DamagedRecord, error) {
	var rec DamagedRecord
	query := `SELECT * FROM damaged_records WHERE id = $1`
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("damaged record")
		}
		return nil, err
	}
	return &rec, nil
}

// GetForUpdate locks a damaged record row for the duration of the transaction.
// The resolve path reads inventory_adjusted under this lock, which is what
// makes resolution idempotent under concurrency.
func (r *DamageRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*DamagedRecord, error) {
	var rec DamagedRecord
	query := `SELECT * FROM damaged_records WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("damaged record")
		}
		return nil, err
	}
	return &rec, nil
}

// SumPendingByBatch returns the damaged quantity reported against a batch but
// not yet applied to stock. New reports must fit inside
// batch.quantity - pending.
func (r *DamageRepository) SumPendingByBatch(ctx context.Context, q sqlx.ExtContext, batchID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM damaged_records WHERE batch_id = $1 AND inventory_adjusted = false`
	if err := sqlx.GetContext(ctx, q, &total, query, batchID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// SetStatus updates the workflow status of a record
func (r *DamageRepository) SetStatus(ctx context.Context, q sqlx.ExtContext, id, status string) error {
	query := `UPDATE damaged_records SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("damaged record")
	}

	return nil
}

// MarkResolved moves a record to its terminal state with the adjustment flag
// set. Must run in the same transaction as the batch/shelf decrements.
func (r *DamageRepository) MarkResolved(ctx context.Context, q sqlx.ExtContext, id, resolution, resolvedBy string) error {
	query := `
		UPDATE damaged_records
		SET status = $2, resolution = $3, resolved_by = $4, inventory_adjusted = true, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, id, DamageStatusResolved, resolution, resolvedBy)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("damaged record")
	}

	return nil
}

// List lists damaged records, optionally filtered by status
func (r *DamageRepository) List(ctx context.Context, status string, page, perPage int) ([]*DamagedRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM damaged_records`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM damaged_records` + where + ` ORDER BY created_at DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, (page-1)*perPage)

	var recs []*DamagedRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}
