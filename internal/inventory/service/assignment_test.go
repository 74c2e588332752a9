package service

import (
	"context"
	"database/sql"
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

func newAssignmentsForMock(m *testutil.MockDB) *AssignmentService {
	log := logger.New("test", "test")
	db := database.Wrap(m.DB, log)
	shelfRepo := repository.NewShelfRepository(db)
	allocRepo := repository.NewAllocationRepository(db)
	return NewAssignmentService(
		repository.NewBatchRepository(db),
		shelfRepo,
		allocRepo,
		repository.NewMovementRepository(db),
		NewCapacityTracker(shelfRepo, allocRepo, db, log),
		nil,
		db,
		log,
	)
}

func activeBatchRows(id string, quantity int) *sqlmock.Rows {
	return testutil.MockRows("id", "product_id", "quantity", "expiry_date", "shelf_id", "source", "is_active", "created_at", "updated_at").
		AddRow(id, "prod-1", quantity, nil, nil, "receipt", true, time.Now(), time.Now())
}

func allocationRows() *sqlmock.Rows {
	return testutil.MockRows("id", "batch_id", "shelf_id", "quantity", "created_at", "updated_at")
}

func TestAssign_FailsWhenBatchSitsOnAnotherShelf(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 20))
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelf_allocations").
		WillReturnRows(allocationRows().AddRow("alloc-1", "batch-1", "shelf-other", 10, time.Now(), time.Now()))
	mockDB.ExpectRollback()

	svc := newAssignmentsForMock(mockDB)

	_, err := svc.AssignBatchToShelf(context.Background(), AssignInput{
		BatchID:  "batch-1",
		ShelfID:  "shelf-target",
		Quantity: 5,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyAssignedElsewhere))
	mockDB.ExpectationsWereMet(t)
}

func TestAssign_FailsWhenQuantityExceedsUnassigned(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 20))
	// 15 of the 20 already sit on the target shelf, so only 5 are unassigned
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelf_allocations").
		WillReturnRows(allocationRows().AddRow("alloc-1", "batch-1", "shelf-target", 15, time.Now(), time.Now()))
	mockDB.ExpectRollback()

	svc := newAssignmentsForMock(mockDB)

	_, err := svc.AssignBatchToShelf(context.Background(), AssignInput{
		BatchID:  "batch-1",
		ShelfID:  "shelf-target",
		Quantity: 6,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestMove_RejectsSameShelf(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newAssignmentsForMock(mockDB)

	_, err := svc.MoveAllocation(context.Background(), MoveInput{
		BatchID:     "batch-1",
		FromShelfID: "shelf-1",
		ToShelfID:   "shelf-1",
		Quantity:    5,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	mockDB.ExpectationsWereMet(t)
}

func TestRemove_FailsWhenShelfHoldsLess(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(activeBatchRows("batch-1", 20))
	// No allocation row for this pair at all
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelf_allocations").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	svc := newAssignmentsForMock(mockDB)

	_, err := svc.RemoveAllocation(context.Background(), RemoveInput{
		BatchID:  "batch-1",
		ShelfID:  "shelf-1",
		Quantity: 3,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}
