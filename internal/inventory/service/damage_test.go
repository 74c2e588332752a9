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

func newDamageForMock(m *testutil.MockDB) *DamageService {
	log := logger.New("test", "test")
	db := database.Wrap(m.DB, log)
	return NewDamageService(
		repository.NewBatchRepository(db),
		repository.NewProductRepository(db),
		repository.NewDamageRepository(db),
		repository.NewMovementRepository(db),
		NewCapacityTracker(repository.NewShelfRepository(db), repository.NewAllocationRepository(db), db, log),
		nil,
		db,
		log,
	)
}

func damagedRecordRows(id string, quantity int, adjusted bool, status string) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "batch_id", "product_id", "shelf_id", "quantity", "reason", "status",
		"resolution", "inventory_adjusted", "reported_by", "resolved_by", "resolved_at",
		"created_at", "updated_at",
	).AddRow(id, "batch-1", "prod-1", nil, quantity, "dropped pallet", status,
		nil, adjusted, "user-1", nil, nil, time.Now(), time.Now())
}

func TestResolveDamage_AlreadyAdjustedIsNoOp(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	// The record is already adjusted: the transaction commits without touching
	// batches, shelves, or the stock counter.
	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM damaged_records").
		WillReturnRows(damagedRecordRows("rec-1", 5, true, repository.DamageStatusResolved))
	mockDB.ExpectCommit()

	svc := newDamageForMock(mockDB)

	rec, err := svc.ResolveDamage(context.Background(), ResolveDamageInput{
		RecordID:   "rec-1",
		Resolution: repository.DamageResolutionDamaged,
		ResolvedBy: "user-2",
	})

	require.NoError(t, err)
	assert.True(t, rec.InventoryAdjusted)
	assert.Equal(t, repository.DamageStatusResolved, rec.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestReportDamage_RejectsMoreThanReportable(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(testutil.MockRows("id", "product_id", "quantity", "expiry_date", "shelf_id", "source", "is_active", "created_at", "updated_at").
			AddRow("batch-1", "prod-1", 10, nil, nil, "receipt", true, time.Now(), time.Now()))
	// 6 already pending, so only 4 of the 10 are still reportable
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM damaged_records").
		WillReturnRows(testutil.MockRows("sum").AddRow(6))
	mockDB.ExpectRollback()

	svc := newDamageForMock(mockDB)

	_, err := svc.ReportDamage(context.Background(), ReportDamageInput{
		BatchID:    "batch-1",
		Quantity:   5,
		Reason:     "water damage",
		ReportedBy: "user-1",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestReportDamage_RejectsNonPositiveQuantity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newDamageForMock(mockDB)

	_, err := svc.ReportDamage(context.Background(), ReportDamageInput{
		BatchID:  "batch-1",
		Quantity: 0,
		Reason:   "crushed",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestResolveDamage_ExhaustedBatchSurfacesShortfall(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM damaged_records").
		WillReturnRows(damagedRecordRows("rec-1", 5, false, repository.DamageStatusReviewed))
	mockDB.Mock.ExpectQuery("SELECT \\* FROM products").
		WillReturnRows(productRows("prod-1", 0))
	// The batch was fully consumed after the report was filed. The exhausted
	// row still locks, so the operator sees the shortfall, not a missing batch.
	mockDB.Mock.ExpectQuery("SELECT \\* FROM batches").
		WillReturnRows(testutil.MockRows("id", "product_id", "quantity", "expiry_date", "shelf_id", "source", "is_active", "created_at", "updated_at").
			AddRow("batch-1", "prod-1", 0, nil, nil, "receipt", false, time.Now(), time.Now()))
	mockDB.ExpectRollback()

	svc := newDamageForMock(mockDB)

	_, err := svc.ResolveDamage(context.Background(), ResolveDamageInput{
		RecordID:   "rec-1",
		Resolution: repository.DamageResolutionDamaged,
		ResolvedBy: "user-2",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestMarkReviewed_FailsOnResolvedRecord(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM damaged_records").
		WillReturnRows(damagedRecordRows("rec-1", 5, true, repository.DamageStatusResolved))
	mockDB.ExpectRollback()

	svc := newDamageForMock(mockDB)

	_, err := svc.MarkReviewed(context.Background(), "rec-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyResolved))
	mockDB.ExpectationsWereMet(t)
}
