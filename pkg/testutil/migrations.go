package testutil

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InventoryMigrations returns the schema statements for the inventory tables.
// Constraint names matter: the error mapping in pkg/database keys on them.
func InventoryMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			unit VARCHAR(50) NOT NULL DEFAULT 'unit',
			total_stock INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT products_quantity_non_negative CHECK (total_stock >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS shelves (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL,
			current_quantity INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT shelves_capacity_positive CHECK (capacity > 0),
			CONSTRAINT shelves_quantity_non_negative CHECK (current_quantity >= 0),
			CONSTRAINT shelves_occupancy_within_capacity CHECK (current_quantity <= capacity)
		)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			expiry_date TIMESTAMPTZ,
			shelf_id UUID REFERENCES shelves(id),
			source VARCHAR(50) NOT NULL DEFAULT 'receipt',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT batches_quantity_non_negative CHECK (quantity >= 0)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_batches_product_fefo
			ON batches (product_id, expiry_date ASC NULLS LAST, created_at ASC)
			WHERE is_active = TRUE`,

		`CREATE TABLE IF NOT EXISTS shelf_allocations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			batch_id UUID NOT NULL REFERENCES batches(id),
			shelf_id UUID NOT NULL REFERENCES shelves(id),
			quantity INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT allocations_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT allocations_batch_shelf_unique UNIQUE (batch_id, shelf_id)
		)`,

		`CREATE TABLE IF NOT EXISTS damaged_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			batch_id UUID NOT NULL REFERENCES batches(id),
			product_id UUID NOT NULL REFERENCES products(id),
			shelf_id UUID REFERENCES shelves(id),
			quantity INTEGER NOT NULL,
			reason TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'reported',
			resolution VARCHAR(20),
			inventory_adjusted BOOLEAN NOT NULL DEFAULT FALSE,
			reported_by VARCHAR(255) NOT NULL DEFAULT '',
			resolved_by VARCHAR(255),
			resolved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT damaged_quantity_positive CHECK (quantity > 0),
			CONSTRAINT damaged_status_valid CHECK (status IN ('reported', 'reviewed', 'resolved'))
		)`,

		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_id UUID NOT NULL REFERENCES products(id),
			batch_id UUID REFERENCES batches(id),
			shelf_id UUID REFERENCES shelves(id),
			movement_type VARCHAR(20) NOT NULL,
			quantity INTEGER NOT NULL,
			previous_quantity INTEGER NOT NULL DEFAULT 0,
			new_quantity INTEGER NOT NULL DEFAULT 0,
			reference TEXT,
			performed_by VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_movements_product
			ON stock_movements (product_id, created_at DESC)`,
	}
}

// ApplyMigrations runs the schema statements against the given database
func ApplyMigrations(ctx context.Context, db *sqlx.DB, migrations []string) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// TruncateInventoryTables clears all inventory tables between tests
func TruncateInventoryTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE stock_movements, damaged_records, shelf_allocations, batches, shelves, products CASCADE
	`)
	return err
}
