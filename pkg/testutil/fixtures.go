package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProductFixture represents test product data
type ProductFixture struct {
	ID         string
	Name       string
	Category   string
	Unit       string
	TotalStock int
	IsActive   bool
}

// ShelfFixture represents test shelf data
type ShelfFixture struct {
	ID              string
	Name            string
	Category        string
	Capacity        int
	CurrentQuantity int
	IsActive        bool
}

// BatchFixture represents test batch data
type BatchFixture struct {
	ID         string
	ProductID  string
	Quantity   int
	ExpiryDate *time.Time
	Source     string
	IsActive   bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Product creates a product fixture
func (f *FixtureFactory) Product() ProductFixture {
	n := f.next()
	return ProductFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Product %d", n),
		Category: "grocery",
		Unit:     "unit",
		IsActive: true,
	}
}

// Shelf creates a shelf fixture with the given capacity
func (f *FixtureFactory) Shelf(capacity int) ShelfFixture {
	n := f.next()
	return ShelfFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Shelf %d", n),
		Category: "grocery",
		Capacity: capacity,
		IsActive: true,
	}
}

// Batch creates a batch fixture for the given product
func (f *FixtureFactory) Batch(productID string, quantity int, expiry *time.Time) BatchFixture {
	return BatchFixture{
		ID:         uuid.New().String(),
		ProductID:  productID,
		Quantity:   quantity,
		ExpiryDate: expiry,
		Source:     "receipt",
		IsActive:   quantity > 0,
	}
}

// ExpiryIn returns a pointer to a timestamp the given number of days from now
func ExpiryIn(days int) *time.Time {
	t := time.Now().Add(time.Duration(days) * 24 * time.Hour).UTC()
	return &t
}

// SeedProduct inserts a product fixture
func (s *IntegrationSuite) SeedProduct(t *testing.T, ctx context.Context, p ProductFixture) ProductFixture {
	t.Helper()
	s.mustExec(t, ctx, `
		INSERT INTO products (id, name, category, unit, total_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Category, p.Unit, p.TotalStock, p.IsActive)
	return p
}

// SeedShelf inserts a shelf fixture
func (s *IntegrationSuite) SeedShelf(t *testing.T, ctx context.Context, sh ShelfFixture) ShelfFixture {
	t.Helper()
	s.mustExec(t, ctx, `
		INSERT INTO shelves (id, name, category, capacity, current_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sh.ID, sh.Name, sh.Category, sh.Capacity, sh.CurrentQuantity, sh.IsActive)
	return sh
}

// SeedBatch inserts a batch fixture and bumps the product's total stock
func (s *IntegrationSuite) SeedBatch(t *testing.T, ctx context.Context, b BatchFixture) BatchFixture {
	t.Helper()
	s.mustExec(t, ctx, `
		INSERT INTO batches (id, product_id, quantity, expiry_date, source, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.ProductID, b.Quantity, b.ExpiryDate, b.Source, b.IsActive)
	s.mustExec(t, ctx, `
		UPDATE products SET total_stock = total_stock + $2 WHERE id = $1
	`, b.ProductID, b.Quantity)
	return b
}

func (s *IntegrationSuite) mustExec(t *testing.T, ctx context.Context, query string, args ...interface{}) {
	t.Helper()
	if _, err := s.RawDB.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
}

// QuantityOf reads a batch's current quantity
func (s *IntegrationSuite) QuantityOf(t *testing.T, ctx context.Context, batchID string) int {
	t.Helper()
	return s.intQuery(t, ctx, `SELECT quantity FROM batches WHERE id = $1`, batchID)
}

// OccupancyOf reads a shelf's stored occupancy
func (s *IntegrationSuite) OccupancyOf(t *testing.T, ctx context.Context, shelfID string) int {
	t.Helper()
	return s.intQuery(t, ctx, `SELECT current_quantity FROM shelves WHERE id = $1`, shelfID)
}

// TotalStockOf reads a product's denormalized stock counter
func (s *IntegrationSuite) TotalStockOf(t *testing.T, ctx context.Context, productID string) int {
	t.Helper()
	return s.intQuery(t, ctx, `SELECT total_stock FROM products WHERE id = $1`, productID)
}

func (s *IntegrationSuite) intQuery(t *testing.T, ctx context.Context, query string, args ...interface{}) int {
	t.Helper()
	var value int
	if err := sqlx.GetContext(ctx, s.RawDB, &value, query, args...); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return value
}
