package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarrySentinels(t *testing.T) {
	tests := []struct {
		err      *AppError
		sentinel error
		status   int
	}{
		{NotFound("batch"), ErrNotFound, http.StatusNotFound},
		{InvalidQuantity("must be positive"), ErrInvalidQuantity, http.StatusBadRequest},
		{InsufficientQuantity("b1", 3, 5), ErrInsufficientQuantity, http.StatusConflict},
		{InsufficientStock("p1", 3, 5), ErrInsufficientStock, http.StatusConflict},
		{CapacityExceeded("s1", 90, 100, 20), ErrCapacityExceeded, http.StatusConflict},
		{NegativeOccupancy("s1", 5, 10), ErrNegativeOccupancy, http.StatusConflict},
		{AlreadyAssignedElsewhere("b1", "s1"), ErrAlreadyAssignedElsewhere, http.StatusConflict},
		{AlreadyResolved("r1"), ErrAlreadyResolved, http.StatusConflict},
		{Contention(fmt.Errorf("lock timeout")), ErrContention, http.StatusConflict},
	}

	for _, tt := range tests {
		assert.True(t, Is(tt.err, tt.sentinel), tt.err.Code)
		assert.Equal(t, tt.status, tt.err.StatusCode, tt.err.Code)
	}
}

func TestInsufficientStockMessage(t *testing.T) {
	err := InsufficientStock("prod-1", 3, 10)

	assert.Contains(t, err.Message, "prod-1")
	assert.Contains(t, err.Message, "3")
	assert.Contains(t, err.Message, "10")
}

func TestAppErrorUnwrapsThroughWrapping(t *testing.T) {
	inner := CapacityExceeded("s1", 90, 100, 20)
	wrapped := fmt.Errorf("assign failed: %w", inner)

	assert.True(t, Is(wrapped, ErrCapacityExceeded))

	var appErr *AppError
	require.True(t, As(wrapped, &appErr))
	assert.Equal(t, "CAPACITY_EXCEEDED", appErr.Code)
}

func TestValidationCarriesDetails(t *testing.T) {
	err := Validation(map[string]string{"quantity": "must be greater than zero"})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must be greater than zero", err.Details["quantity"])
}
