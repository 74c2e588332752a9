package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")

	// Inventory error types
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInsufficientQuantity     = errors.New("insufficient batch quantity")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrCapacityExceeded         = errors.New("shelf capacity exceeded")
	ErrNegativeOccupancy        = errors.New("shelf occupancy would go negative")
	ErrAlreadyAssignedElsewhere = errors.New("batch already assigned to another shelf")
	ErrAlreadyResolved          = errors.New("damage record already resolved")
	ErrContention               = errors.New("operation timed out waiting for a lock")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Inventory error constructors

// InvalidQuantity signals a quantity that is zero, negative, or otherwise
// outside the allowed range for the operation.
func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InsufficientQuantity signals that a single batch does not hold the
// requested amount.
func InsufficientQuantity(batchID string, have, want int) *AppError {
	return &AppError{
		Err:        ErrInsufficientQuantity,
		Code:       "INSUFFICIENT_QUANTITY",
		Message:    fmt.Sprintf("batch %s holds %d, cannot take %d", batchID, have, want),
		StatusCode: http.StatusConflict,
	}
}

// InsufficientStock signals that the sum of all active batches of a product
// cannot satisfy the requested amount.
func InsufficientStock(productID string, have, want int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("product %s has %d in stock, cannot consume %d", productID, have, want),
		StatusCode: http.StatusConflict,
	}
}

// CapacityExceeded signals that a reserve would push a shelf past its
// configured capacity.
func CapacityExceeded(shelfID string, occupancy, capacity, amount int) *AppError {
	return &AppError{
		Err:        ErrCapacityExceeded,
		Code:       "CAPACITY_EXCEEDED",
		Message:    fmt.Sprintf("shelf %s at %d/%d cannot take %d more", shelfID, occupancy, capacity, amount),
		StatusCode: http.StatusConflict,
	}
}

// NegativeOccupancy signals that a release would push a shelf's occupancy
// below zero.
func NegativeOccupancy(shelfID string, occupancy, amount int) *AppError {
	return &AppError{
		Err:        ErrNegativeOccupancy,
		Code:       "NEGATIVE_OCCUPANCY",
		Message:    fmt.Sprintf("shelf %s holds %d, cannot release %d", shelfID, occupancy, amount),
		StatusCode: http.StatusConflict,
	}
}

// AlreadyAssignedElsewhere signals a violation of the one-shelf-per-batch
// rule: the batch still has quantity on a different shelf.
func AlreadyAssignedElsewhere(batchID, shelfID string) *AppError {
	return &AppError{
		Err:        ErrAlreadyAssignedElsewhere,
		Code:       "ALREADY_ASSIGNED_ELSEWHERE",
		Message:    fmt.Sprintf("batch %s still has quantity on shelf %s; use a move instead", batchID, shelfID),
		StatusCode: http.StatusConflict,
	}
}

// AlreadyResolved signals an idempotent no-op: the damage record was resolved
// before and its inventory adjustment has already been applied.
func AlreadyResolved(recordID string) *AppError {
	return &AppError{
		Err:        ErrAlreadyResolved,
		Code:       "ALREADY_RESOLVED",
		Message:    fmt.Sprintf("damage record %s is already resolved", recordID),
		StatusCode: http.StatusConflict,
	}
}

// Contention signals a bounded lock or transaction timeout. Callers may
// retry with backoff.
func Contention(err error) *AppError {
	return &AppError{
		Err:        ErrContention,
		Code:       "CONTENTION",
		Message:    fmt.Sprintf("operation aborted under contention: %v", err),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
