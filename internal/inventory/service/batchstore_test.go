package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/logger"
	"github.com/storeflow/storeflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchStoreForMock(m *testutil.MockDB) *BatchStore {
	log := logger.New("test", "test")
	db := database.Wrap(m.DB, log)
	return NewBatchStore(
		repository.NewProductRepository(db),
		repository.NewBatchRepository(db),
		repository.NewMovementRepository(db),
		NewCapacityTracker(repository.NewShelfRepository(db), repository.NewAllocationRepository(db), db, log),
		nil,
		db,
		log,
	)
}

func productRows(id string, totalStock int) *sqlmock.Rows {
	return testutil.MockRows("id", "name", "category", "unit", "total_stock", "is_active", "created_at", "updated_at").
		AddRow(id, "Product A", "grocery", "unit", totalStock, true, time.Now(), time.Now())
}

// The mock matches expectations in order, so this test pins the lock
// sequence: product row first, batch row second, matching consumption.
func TestDecrementBatch_LocksProductBeforeBatch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 10))
	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM products").
		WillReturnRows(productRows("prod-1", 10))
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 10))
	mockDB.Mock.ExpectExec("UPDATE batches SET quantity").
		WithArgs("batch-1", 6).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelf_allocations").
		WillReturnRows(allocationRows())
	mockDB.Mock.ExpectExec("UPDATE products SET total_stock").
		WithArgs("prod-1", -4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	store := newBatchStoreForMock(mockDB)

	batch, err := store.DecrementBatch(context.Background(), DecrementBatchInput{
		BatchID:     "batch-1",
		Quantity:    4,
		Reason:      "spot correction",
		PerformedBy: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 6, batch.Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestDecrementBatch_RejectsMoreThanHeld(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 3))
	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM products").
		WillReturnRows(productRows("prod-1", 3))
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 3))
	mockDB.ExpectRollback()

	store := newBatchStoreForMock(mockDB)

	_, err := store.DecrementBatch(context.Background(), DecrementBatchInput{
		BatchID:  "batch-1",
		Quantity: 5,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}
