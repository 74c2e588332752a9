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

func newCapacityForMock(m *testutil.MockDB) *CapacityTracker {
	log := logger.New("test", "test")
	db := database.Wrap(m.DB, log)
	return NewCapacityTracker(
		repository.NewShelfRepository(db),
		repository.NewAllocationRepository(db),
		db,
		log,
	)
}

func shelfRows(id string, capacity, current int) *sqlmock.Rows {
	return testutil.MockRows("id", "name", "category", "capacity", "current_quantity", "is_active", "created_at", "updated_at").
		AddRow(id, "Shelf A", "grocery", capacity, current, true, time.Now(), time.Now())
}

func TestReserve_UpdatesOccupancy(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	mockDB.Mock.ExpectExec("UPDATE shelves SET current_quantity").
		WithArgs("shelf-1", 70).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	tracker := newCapacityForMock(mockDB)

	shelf, err := tracker.Reserve(context.Background(), "shelf-1", 30)

	require.NoError(t, err)
	assert.Equal(t, 70, shelf.CurrentQuantity)
	mockDB.ExpectationsWereMet(t)
}

func TestReserve_FailsWhenCapacityExceeded(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 95))
	mockDB.ExpectRollback()

	tracker := newCapacityForMock(mockDB)

	_, err := tracker.Reserve(context.Background(), "shelf-1", 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCapacityExceeded))
	mockDB.ExpectationsWereMet(t)
}

func TestRelease_FailsWhenOccupancyWouldGoNegative(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 5))
	mockDB.ExpectRollback()

	tracker := newCapacityForMock(mockDB)

	_, err := tracker.Release(context.Background(), "shelf-1", 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNegativeOccupancy))
	mockDB.ExpectationsWereMet(t)
}

func TestReserve_RejectsNonPositiveAmount(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	mockDB.ExpectRollback()

	tracker := newCapacityForMock(mockDB)

	_, err := tracker.Reserve(context.Background(), "shelf-1", -5)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestGetOccupancy_ReportsStoredAndComputed(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM shelf_allocations").
		WillReturnRows(testutil.MockRows("sum").AddRow(38))

	tracker := newCapacityForMock(mockDB)

	occ, err := tracker.GetOccupancy(context.Background(), "shelf-1")

	require.NoError(t, err)
	assert.Equal(t, 40, occ.Stored)
	assert.Equal(t, 38, occ.Computed)
	assert.Equal(t, 60, occ.Available)
	mockDB.ExpectationsWereMet(t)
}
