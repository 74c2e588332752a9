package service

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to start integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

// services bundles the full service layer over the suite database.
// Events are disabled; integration tests assert against the database.
type services struct {
	batches     *BatchStore
	assignments *AssignmentService
	planner     *ConsumptionPlanner
	damage      *DamageService
	auditor     *Auditor
	capacity    *CapacityTracker
}

func newServices(s *testutil.IntegrationSuite) *services {
	productRepo := repository.NewProductRepository(s.DB)
	batchRepo := repository.NewBatchRepository(s.DB)
	shelfRepo := repository.NewShelfRepository(s.DB)
	allocRepo := repository.NewAllocationRepository(s.DB)
	movementRepo := repository.NewMovementRepository(s.DB)
	damageRepo := repository.NewDamageRepository(s.DB)

	capacity := NewCapacityTracker(shelfRepo, allocRepo, s.DB, s.Logger)

	return &services{
		batches:     NewBatchStore(productRepo, batchRepo, movementRepo, capacity, nil, s.DB, s.Logger),
		assignments: NewAssignmentService(batchRepo, shelfRepo, allocRepo, movementRepo, capacity, nil, s.DB, s.Logger),
		planner:     NewConsumptionPlanner(productRepo, batchRepo, movementRepo, capacity, nil, s.DB, s.Logger),
		damage:      NewDamageService(batchRepo, productRepo, damageRepo, movementRepo, capacity, nil, s.DB, s.Logger),
		auditor:     NewAuditor(shelfRepo, allocRepo, nil, s.DB, s.Logger),
		capacity:    capacity,
	}
}

func TestIntegrationReceiveAssignConsumeFlow(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	shelf := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(100))

	// Two receipts, the older expiry arrives second so ordering is not
	// insertion order.
	later, err := svcs.batches.CreateBatch(ctx, CreateBatchInput{
		ProductID:   product.ID,
		Quantity:    30,
		ExpiryDate:  testutil.ExpiryIn(30),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	sooner, err := svcs.batches.CreateBatch(ctx, CreateBatchInput{
		ProductID:   product.ID,
		Quantity:    10,
		ExpiryDate:  testutil.ExpiryIn(2),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 40, suite.TotalStockOf(t, ctx, product.ID))

	// Put the soon-to-expire batch on the shelf.
	alloc, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
		BatchID:     sooner.ID,
		ShelfID:     shelf.ID,
		Quantity:    10,
		PerformedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, alloc.ShelfOccupancy)
	assert.Equal(t, 10, suite.OccupancyOf(t, ctx, shelf.ID))

	// Consuming 25 drains the sooner batch first, then takes 15 from the
	// later one.
	result, err := svcs.planner.Consume(ctx, ConsumeInput{
		ProductID:   product.ID,
		Quantity:    25,
		Reference:   "order-1",
		PerformedBy: "tester",
	})
	require.NoError(t, err)
	require.Len(t, result.Plan, 2)
	assert.Equal(t, sooner.ID, result.Plan[0].BatchID)
	assert.Equal(t, 10, result.Plan[0].Quantity)
	assert.Equal(t, later.ID, result.Plan[1].BatchID)
	assert.Equal(t, 15, result.Plan[1].Quantity)

	assert.Equal(t, 0, suite.QuantityOf(t, ctx, sooner.ID))
	assert.Equal(t, 15, suite.QuantityOf(t, ctx, later.ID))
	assert.Equal(t, 15, suite.TotalStockOf(t, ctx, product.ID))

	// Draining the sooner batch released its shelf space.
	assert.Equal(t, 0, suite.OccupancyOf(t, ctx, shelf.ID))
}

func TestIntegrationMoveAllocationBetweenShelves(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	source := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(50))
	target := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(50))
	batch := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 20, nil))

	_, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
		BatchID: batch.ID, ShelfID: source.ID, Quantity: 20, PerformedBy: "tester",
	})
	require.NoError(t, err)

	_, err = svcs.assignments.MoveAllocation(ctx, MoveInput{
		BatchID:     batch.ID,
		FromShelfID: source.ID,
		ToShelfID:   target.ID,
		Quantity:    20,
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, suite.OccupancyOf(t, ctx, source.ID))
	assert.Equal(t, 20, suite.OccupancyOf(t, ctx, target.ID))

	contents, err := svcs.assignments.ListShelfContents(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, batch.ID, contents[0].BatchID)
}

func TestIntegrationConcurrentAssignsRespectCapacity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	shelf := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(10))
	first := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 6, nil))
	second := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 6, nil))

	// Either assignment fits on its own; together they would overflow the
	// shelf. The shelf row lock serializes the two reserves, so the loser
	// re-reads occupancy after the winner commits.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, batchID := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
				BatchID:     id,
				ShelfID:     shelf.ID,
				Quantity:    6,
				PerformedBy: "tester",
			})
			errs <- err
		}(batchID)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected assignment error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 6, suite.OccupancyOf(t, ctx, shelf.ID))
}

func TestIntegrationAssignRejectsOverCapacity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	shelf := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(10))
	batch := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 25, nil))

	_, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
		BatchID: batch.ID, ShelfID: shelf.ID, Quantity: 25, PerformedBy: "tester",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCapacityExceeded))
	assert.Equal(t, 0, suite.OccupancyOf(t, ctx, shelf.ID))
}

func TestIntegrationConsumeIsAllOrNothing(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	batch := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 8, nil))

	_, err := svcs.planner.Consume(ctx, ConsumeInput{
		ProductID: product.ID, Quantity: 12, PerformedBy: "tester",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, 8, suite.QuantityOf(t, ctx, batch.ID))
	assert.Equal(t, 8, suite.TotalStockOf(t, ctx, product.ID))
}

func TestIntegrationDamageResolveIsIdempotent(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	shelf := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(50))
	batch := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 20, nil))

	_, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
		BatchID: batch.ID, ShelfID: shelf.ID, Quantity: 20, PerformedBy: "tester",
	})
	require.NoError(t, err)

	rec, err := svcs.damage.ReportDamage(ctx, ReportDamageInput{
		BatchID:    batch.ID,
		Quantity:   5,
		Reason:     "crushed during restock",
		ReportedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.DamageStatusReported, rec.Status)

	// Reporting does not touch stock.
	assert.Equal(t, 20, suite.QuantityOf(t, ctx, batch.ID))

	resolved, err := svcs.damage.ResolveDamage(ctx, ResolveDamageInput{
		RecordID:   rec.ID,
		Resolution: repository.DamageResolutionDamaged,
		ResolvedBy: "tester",
	})
	require.NoError(t, err)
	assert.True(t, resolved.InventoryAdjusted)

	assert.Equal(t, 15, suite.QuantityOf(t, ctx, batch.ID))
	assert.Equal(t, 15, suite.OccupancyOf(t, ctx, shelf.ID))
	assert.Equal(t, 15, suite.TotalStockOf(t, ctx, product.ID))

	// A second resolve must not decrement again.
	again, err := svcs.damage.ResolveDamage(ctx, ResolveDamageInput{
		RecordID:   rec.ID,
		Resolution: repository.DamageResolutionDamaged,
		ResolvedBy: "tester",
	})
	require.NoError(t, err)
	assert.True(t, again.InventoryAdjusted)

	assert.Equal(t, 15, suite.QuantityOf(t, ctx, batch.ID))
	assert.Equal(t, 15, suite.OccupancyOf(t, ctx, shelf.ID))
	assert.Equal(t, 15, suite.TotalStockOf(t, ctx, product.ID))
}

func TestIntegrationAuditDetectsAndRepairsDrift(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)
	svcs := newServices(suite)

	product := suite.SeedProduct(t, ctx, suite.Fixtures.Product())
	shelf := suite.SeedShelf(t, ctx, suite.Fixtures.Shelf(50))
	batch := suite.SeedBatch(t, ctx, suite.Fixtures.Batch(product.ID, 20, nil))

	_, err := svcs.assignments.AssignBatchToShelf(ctx, AssignInput{
		BatchID: batch.ID, ShelfID: shelf.ID, Quantity: 20, PerformedBy: "tester",
	})
	require.NoError(t, err)

	report, err := svcs.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Discrepancies)

	// Inject drift behind the service layer's back.
	_, err = suite.RawDB.ExecContext(ctx,
		`UPDATE shelves SET current_quantity = 17 WHERE id = $1`, shelf.ID)
	require.NoError(t, err)

	report, err = svcs.auditor.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, DiscrepancyOccupancyDrift, d.Kind)
	assert.Equal(t, shelf.ID, d.ShelfID)
	assert.Equal(t, 20, d.Computed)
	assert.Equal(t, 17, d.Stored)

	repair, err := svcs.auditor.RepairShelf(ctx, shelf.ID, "tester")
	require.NoError(t, err)
	assert.True(t, repair.Repaired)
	assert.Equal(t, 17, repair.OldStored)
	assert.Equal(t, 20, repair.NewStored)
	assert.Equal(t, 20, suite.OccupancyOf(t, ctx, shelf.ID))

	report, err = svcs.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Discrepancies)
}
