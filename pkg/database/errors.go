package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/storeflow/storeflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error does not wrap a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Lock wait timeout (55P03), serialization failure (40001), deadlock (40P01).
	// All three mean the operation lost a race, not that the data is bad.
	case "55P03", "40001", "40P01":
		return errors.Contention(pqErr)

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.InvalidQuantity("quantity must not be negative")

	case strings.Contains(constraint, "capacity_positive"):
		return errors.Validation(map[string]string{
			"capacity": "must be greater than zero",
		})

	case strings.Contains(constraint, "occupancy_within_capacity"):
		return errors.BadRequest("shelf occupancy would exceed capacity")

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: reported, reviewed, resolved",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_shelf"):
		return "an allocation for this batch and shelf already exists"
	case strings.Contains(constraint, "name"):
		return "a record with this name already exists"
	default:
		return "a record with these values already exists"
	}
}
