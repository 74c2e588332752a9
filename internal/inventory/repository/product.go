package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
)

// Product represents a catalog product with its denormalized stock counter.
// Master data (name, category, unit) is owned by catalog management; this
// service only ever touches total_stock.
type Product struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Category   string    `db:"category" json:"category"`
	Unit       string    `db:"unit" json:"unit"`
	TotalStock int       `db:"total_stock" json:"total_stock"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// List lists active products with pagination
func (r *ProductRepository) List(ctx context.Context, page, perPage int, category string) ([]*Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	where := `WHERE is_active = true`
	args := []interface{}{}
	if category != "" {
		where += ` AND category = $1`
		args = append(args, category)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products `+where, args...); err != nil {
		return nil, 0, err
	}

	var products []*Product
	query := `SELECT * FROM products ` + where + ` ORDER BY name`
	if category != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, (page-1)*perPage)
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// GetForUpdate locks the product row for the duration of the transaction.
// Serializes concurrent writers of total_stock.
func (r *ProductRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1 AND is_active = true FOR UPDATE`
	if err := sqlx.GetContext(ctx, q, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// AddTotalStock adjusts the denormalized total stock counter by delta.
// Must run inside the same transaction as the batch quantity change.
func (r *ProductRepository) AddTotalStock(ctx context.Context, q sqlx.ExtContext, id string, delta int) error {
	query := `UPDATE products SET total_stock = total_stock + $2, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, delta)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}
