package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/logger"
)

// Discrepancy kinds
const (
	DiscrepancyOccupancyDrift      = "occupancy_drift"
	DiscrepancyOverCapacity        = "over_capacity"
	DiscrepancyDuplicateAllocation = "duplicate_allocation"
)

// Auditor reconciles stored shelf occupancy against the sum of allocations.
// Discrepancies are findings, not failures: an audit run only errors when it
// cannot read, never because the data disagrees with itself.
type Auditor struct {
	shelfRepo *repository.ShelfRepository
	allocRepo *repository.AllocationRepository
	publisher *events.InventoryEventPublisher
	db        *database.DB
	logger    *logger.Logger
}

// NewAuditor creates a new auditor
func NewAuditor(
	shelfRepo *repository.ShelfRepository,
	allocRepo *repository.AllocationRepository,
	publisher *events.InventoryEventPublisher,
	db *database.DB,
	log *logger.Logger,
) *Auditor {
	return &Auditor{
		shelfRepo: shelfRepo,
		allocRepo: allocRepo,
		publisher: publisher,
		db:        db,
		logger:    log,
	}
}

// Discrepancy is a single reconciliation finding
type Discrepancy struct {
	Kind     string `json:"kind"`
	ShelfID  string `json:"shelf_id,omitempty"`
	BatchID  string `json:"batch_id,omitempty"`
	Computed int    `json:"computed"`
	Stored   int    `json:"stored"`
	Capacity int    `json:"capacity,omitempty"`
}

// AuditReport is the result of one audit run
type AuditReport struct {
	RanAt          time.Time     `json:"ran_at"`
	ShelvesChecked int           `json:"shelves_checked"`
	Discrepancies  []Discrepancy `json:"discrepancies"`
}

// RepairResult describes an occupancy repair
type RepairResult struct {
	ShelfID   string `json:"shelf_id"`
	OldStored int    `json:"old_stored"`
	NewStored int    `json:"new_stored"`
	Repaired  bool   `json:"repaired"`
}

// Audit checks every active shelf inside one repeatable-read snapshot, so a
// write landing mid-run cannot show up as false drift.
func (s *Auditor) Audit(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{RanAt: time.Now().UTC()}

	err := s.db.SnapshotTransaction(ctx, func(tx *sqlx.Tx) error {
		var shelves []*repository.Shelf
		if txErr := sqlx.SelectContext(ctx, tx, &shelves, `SELECT * FROM shelves WHERE is_active = true ORDER BY id`); txErr != nil {
			return txErr
		}
		report.ShelvesChecked = len(shelves)

		for _, shelf := range shelves {
			found, txErr := s.checkShelf(ctx, tx, shelf)
			if txErr != nil {
				return txErr
			}
			report.Discrepancies = append(report.Discrepancies, found...)
		}

		dups, txErr := s.allocRepo.FindDuplicates(ctx, tx)
		if txErr != nil {
			return txErr
		}
		for _, d := range dups {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Kind:     DiscrepancyDuplicateAllocation,
				ShelfID:  d.ShelfID,
				BatchID:  d.BatchID,
				Computed: d.Count,
				Stored:   1,
			})
		}

		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.report(ctx, report)
	return report, nil
}

// AuditShelf checks a single shelf
func (s *Auditor) AuditShelf(ctx context.Context, shelfID string) (*AuditReport, error) {
	report := &AuditReport{RanAt: time.Now().UTC(), ShelvesChecked: 1}

	err := s.db.SnapshotTransaction(ctx, func(tx *sqlx.Tx) error {
		shelf, txErr := s.shelfRepo.GetForAudit(ctx, tx, shelfID)
		if txErr != nil {
			return txErr
		}

		found, txErr := s.checkShelf(ctx, tx, shelf)
		if txErr != nil {
			return txErr
		}
		report.Discrepancies = found
		return nil
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	s.report(ctx, report)
	return report, nil
}

// checkShelf compares a shelf's stored counter against its computed sum
func (s *Auditor) checkShelf(ctx context.Context, tx *sqlx.Tx, shelf *repository.Shelf) ([]Discrepancy, error) {
	computed, err := s.allocRepo.SumByShelf(ctx, tx, shelf.ID)
	if err != nil {
		return nil, err
	}

	var found []Discrepancy
	if computed != shelf.CurrentQuantity {
		found = append(found, Discrepancy{
			Kind:     DiscrepancyOccupancyDrift,
			ShelfID:  shelf.ID,
			Computed: computed,
			Stored:   shelf.CurrentQuantity,
			Capacity: shelf.Capacity,
		})
	}
	if computed > shelf.Capacity || shelf.CurrentQuantity > shelf.Capacity {
		found = append(found, Discrepancy{
			Kind:     DiscrepancyOverCapacity,
			ShelfID:  shelf.ID,
			Computed: computed,
			Stored:   shelf.CurrentQuantity,
			Capacity: shelf.Capacity,
		})
	}
	return found, nil
}

// report logs and publishes every finding of a run
func (s *Auditor) report(ctx context.Context, report *AuditReport) {
	if len(report.Discrepancies) == 0 {
		s.logger.Debug().Int("shelves", report.ShelvesChecked).Msg("audit clean")
		return
	}

	for _, d := range report.Discrepancies {
		s.logger.Warn().
			Str("kind", d.Kind).
			Str("shelf_id", d.ShelfID).
			Int("computed", d.Computed).
			Int("stored", d.Stored).
			Msg("reconciliation discrepancy")

		s.publisher.PublishDriftDetected(ctx, d.ShelfID, d.Computed, d.Stored, d.Capacity, d.Kind)
	}
}

// RepairShelf sets a shelf's stored occupancy to the sum computed from its
// allocations. Explicit operator action: the auditor itself never writes.
func (s *Auditor) RepairShelf(ctx context.Context, shelfID, repairedBy string) (*RepairResult, error) {
	var result *RepairResult
	err := s.db.LockingTransaction(ctx, func(tx *sqlx.Tx) error {
		shelf, txErr := s.shelfRepo.GetForUpdate(ctx, tx, shelfID)
		if txErr != nil {
			return txErr
		}

		computed, txErr := s.allocRepo.SumByShelf(ctx, tx, shelfID)
		if txErr != nil {
			return txErr
		}

		result = &RepairResult{
			ShelfID:   shelfID,
			OldStored: shelf.CurrentQuantity,
			NewStored: computed,
		}
		if computed == shelf.CurrentQuantity {
			return nil
		}

		result.Repaired = true
		return s.shelfRepo.SetOccupancy(ctx, tx, shelfID, computed)
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	if !result.Repaired {
		s.logger.Info().Str("shelf_id", shelfID).Msg("shelf occupancy already consistent, nothing to repair")
		return result, nil
	}

	s.logger.Warn().
		Str("shelf_id", shelfID).
		Int("old_stored", result.OldStored).
		Int("new_stored", result.NewStored).
		Str("repaired_by", repairedBy).
		Msg("shelf occupancy repaired")

	s.publisher.PublishDriftRepaired(ctx, shelfID, result.OldStored, result.NewStored, repairedBy)

	return result, nil
}
