package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// CapacityTracker owns shelf occupancy. Every occupancy change goes through
// it, under the shelf row lock, so occupancy can never pass capacity or drop
// below zero through this service.
type CapacityTracker struct {
	shelfRepo *repository.ShelfRepository
	allocRepo *repository.AllocationRepository
	db        *database.DB
	logger    *logger.Logger
}

// NewCapacityTracker creates a new capacity tracker
func NewCapacityTracker(
	shelfRepo *repository.ShelfRepository,
	allocRepo *repository.AllocationRepository,
	db *database.DB,
	log *logger.Logger,
) *CapacityTracker {
	return &CapacityTracker{
		shelfRepo: shelfRepo,
		allocRepo: allocRepo,
		db:        db,
		logger:    log,
	}
}

// ShelfOccupancy is the read view of a shelf's capacity accounting
type ShelfOccupancy struct {
	ShelfID   string `json:"shelf_id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Stored    int    `json:"stored"`
	Computed  int    `json:"computed"`
	Available int    `json:"available"`
}

// ReleasedPortion is one shelf's share of a batch-wide release
type ReleasedPortion struct {
	ShelfID  string `json:"shelf_id"`
	Quantity int    `json:"quantity"`
}

// GetOccupancy returns a shelf's stored counter next to the sum computed from
// its allocations. The two can differ until the auditor repairs drift.
func (s *CapacityTracker) GetOccupancy(ctx context.Context, shelfID string) (*ShelfOccupancy, error) {
	shelf, err := s.shelfRepo.GetByID(ctx, shelfID)
	if err != nil {
		return nil, err
	}

	computed, err := s.allocRepo.SumByShelf(ctx, s.db, shelfID)
	if err != nil {
		return nil, err
	}

	return &ShelfOccupancy{
		ShelfID:   shelf.ID,
		Name:      shelf.Name,
		Capacity:  shelf.Capacity,
		Stored:    shelf.CurrentQuantity,
		Computed:  computed,
		Available: shelf.Capacity - shelf.CurrentQuantity,
	}, nil
}

// Reserve adds amount to a shelf's occupancy in its own transaction
func (s *CapacityTracker) Reserve(ctx context.Context, shelfID string, amount int) (*repository.Shelf, error) {
	var shelf *repository.Shelf
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		shelf, txErr = s.ReserveInTx(ctx, tx, shelfID, amount)
		return txErr
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	return shelf, nil
}

// Release subtracts amount from a shelf's occupancy in its own transaction
func (s *CapacityTracker) Release(ctx context.Context, shelfID string, amount int) (*repository.Shelf, error) {
	var shelf *repository.Shelf
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		shelf, txErr = s.ReleaseInTx(ctx, tx, shelfID, amount)
		return txErr
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	return shelf, nil
}

// ReserveInTx locks the shelf and adds amount to its occupancy inside the
// caller's transaction. Fails with CapacityExceeded when the shelf cannot
// take the amount.
func (s *CapacityTracker) ReserveInTx(ctx context.Context, tx *sqlx.Tx, shelfID string, amount int) (*repository.Shelf, error) {
	shelf, err := s.shelfRepo.GetForUpdate(ctx, tx, shelfID)
	if err != nil {
		return nil, err
	}
	if err := s.ReserveLocked(ctx, tx, shelf, amount); err != nil {
		return nil, err
	}
	return shelf, nil
}

// ReleaseInTx locks the shelf and subtracts amount from its occupancy inside
// the caller's transaction. Fails with NegativeOccupancy when the shelf does
// not hold the amount.
func (s *CapacityTracker) ReleaseInTx(ctx context.Context, tx *sqlx.Tx, shelfID string, amount int) (*repository.Shelf, error) {
	shelf, err := s.shelfRepo.GetForUpdate(ctx, tx, shelfID)
	if err != nil {
		return nil, err
	}
	if err := s.ReleaseLocked(ctx, tx, shelf, amount); err != nil {
		return nil, err
	}
	return shelf, nil
}

// ReserveLocked applies a reserve to a shelf the caller has already locked.
// The move path locks both shelves up front in ascending ID order and then
// applies both legs through here.
func (s *CapacityTracker) ReserveLocked(ctx context.Context, q sqlx.ExtContext, shelf *repository.Shelf, amount int) error {
	if amount <= 0 {
		return errors.InvalidQuantity("reserve amount must be positive")
	}
	if shelf.CurrentQuantity+amount > shelf.Capacity {
		return errors.CapacityExceeded(shelf.ID, shelf.CurrentQuantity, shelf.Capacity, amount)
	}

	shelf.CurrentQuantity += amount
	return s.shelfRepo.SetOccupancy(ctx, q, shelf.ID, shelf.CurrentQuantity)
}

// ReleaseLocked applies a release to a shelf the caller has already locked
func (s *CapacityTracker) ReleaseLocked(ctx context.Context, q sqlx.ExtContext, shelf *repository.Shelf, amount int) error {
	if amount <= 0 {
		return errors.InvalidQuantity("release amount must be positive")
	}
	if shelf.CurrentQuantity-amount < 0 {
		return errors.NegativeOccupancy(shelf.ID, shelf.CurrentQuantity, amount)
	}

	shelf.CurrentQuantity -= amount
	return s.shelfRepo.SetOccupancy(ctx, q, shelf.ID, shelf.CurrentQuantity)
}

// ReleaseBatchInTx drains up to amount from a batch's shelf allocations,
// walking them in shelf ID order and releasing the matching occupancy.
// A batch can hold more than its shelved quantity, so draining less than
// amount is not an error; the remainder was never on a shelf.
func (s *CapacityTracker) ReleaseBatchInTx(ctx context.Context, tx *sqlx.Tx, batchID string, amount int) ([]ReleasedPortion, error) {
	allocs, err := s.allocRepo.ListByBatchForUpdate(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, nil
	}

	shelfIDs := make([]string, len(allocs))
	for i, a := range allocs {
		shelfIDs[i] = a.ShelfID
	}
	shelves, err := s.shelfRepo.GetManyForUpdate(ctx, tx, shelfIDs)
	if err != nil {
		return nil, err
	}

	var portions []ReleasedPortion
	remaining := amount
	for _, alloc := range allocs {
		if remaining == 0 {
			break
		}

		take := alloc.Quantity
		if take > remaining {
			take = remaining
		}

		if err := s.allocRepo.AddQuantity(ctx, tx, batchID, alloc.ShelfID, -take); err != nil {
			return nil, err
		}
		if err := s.ReleaseLocked(ctx, tx, shelves[alloc.ShelfID], take); err != nil {
			return nil, err
		}

		portions = append(portions, ReleasedPortion{ShelfID: alloc.ShelfID, Quantity: take})
		remaining -= take
	}

	return portions, nil
}

// mapDBError surfaces driver-level failures as AppErrors. Lock timeouts and
// serialization failures become Contention; everything already typed passes
// through unchanged.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
