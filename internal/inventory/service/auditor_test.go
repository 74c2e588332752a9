package service

import (
	"context"
	"testing"

	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/logger"
	"github.com/storeflow/storeflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditorForMock(m *testutil.MockDB) *Auditor {
	log := logger.New("test", "test")
	db := database.Wrap(m.DB, log)
	return NewAuditor(
		repository.NewShelfRepository(db),
		repository.NewAllocationRepository(db),
		nil,
		db,
		log,
	)
}

func TestAudit_FlagsDriftWithoutFailing(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectSnapshotBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	// Allocations only add up to 33, stored says 40.
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM shelf_allocations").
		WillReturnRows(testutil.MockRows("sum").AddRow(33))
	mockDB.Mock.ExpectQuery("SELECT batch_id, shelf_id, COUNT").
		WillReturnRows(testutil.MockRows("batch_id", "shelf_id", "count"))
	mockDB.ExpectCommit()

	auditor := newAuditorForMock(mockDB)

	report, err := auditor.Audit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.ShelvesChecked)
	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, DiscrepancyOccupancyDrift, d.Kind)
	assert.Equal(t, "shelf-1", d.ShelfID)
	assert.Equal(t, 33, d.Computed)
	assert.Equal(t, 40, d.Stored)
	mockDB.ExpectationsWereMet(t)
}

func TestAudit_FlagsOverCapacityAndDuplicates(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectSnapshotBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 100))
	// Computed exceeds capacity, so the run reports drift and over capacity.
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM shelf_allocations").
		WillReturnRows(testutil.MockRows("sum").AddRow(110))
	mockDB.Mock.ExpectQuery("SELECT batch_id, shelf_id, COUNT").
		WillReturnRows(testutil.MockRows("batch_id", "shelf_id", "count").
			AddRow("batch-9", "shelf-1", 2))
	mockDB.ExpectCommit()

	auditor := newAuditorForMock(mockDB)

	report, err := auditor.Audit(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 3)

	kinds := make([]string, 0, len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, DiscrepancyOccupancyDrift)
	assert.Contains(t, kinds, DiscrepancyOverCapacity)
	assert.Contains(t, kinds, DiscrepancyDuplicateAllocation)
	mockDB.ExpectationsWereMet(t)
}

func TestAudit_CleanShelvesProduceNoFindings(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectSnapshotBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM shelf_allocations").
		WillReturnRows(testutil.MockRows("sum").AddRow(40))
	mockDB.Mock.ExpectQuery("SELECT batch_id, shelf_id, COUNT").
		WillReturnRows(testutil.MockRows("batch_id", "shelf_id", "count"))
	mockDB.ExpectCommit()

	auditor := newAuditorForMock(mockDB)

	report, err := auditor.Audit(context.Background())

	require.NoError(t, err)
	assert.Empty(t, report.Discrepancies)
	mockDB.ExpectationsWereMet(t)
}

func TestRepairShelf_NoOpWhenConsistent(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectLockingBegin()
	mockDB.Mock.ExpectQuery("SELECT \\* FROM shelves").
		WillReturnRows(shelfRows("shelf-1", 100, 40))
	mockDB.Mock.ExpectQuery("SELECT SUM\\(quantity\\) FROM shelf_allocations").
		WillReturnRows(testutil.MockRows("sum").AddRow(40))
	mockDB.ExpectCommit()

	auditor := newAuditorForMock(mockDB)

	result, err := auditor.RepairShelf(context.Background(), "shelf-1", "user-1")

	require.NoError(t, err)
	assert.False(t, result.Repaired)
	assert.Equal(t, 40, result.OldStored)
	assert.Equal(t, 40, result.NewStored)
	mockDB.ExpectationsWereMet(t)
}
