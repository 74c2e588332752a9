package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/storeflow/storeflow-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError_NonPQErrorReturnsNil(t *testing.T) {
	assert.Nil(t, MapPQError(fmt.Errorf("plain error")))
	assert.Nil(t, MapPQError(nil))
}

func TestMapPQError_LockTimeoutBecomesContention(t *testing.T) {
	for _, code := range []string{"55P03", "40001", "40P01"} {
		appErr := MapPQError(&pq.Error{Code: pq.ErrorCode(code)})

		require.NotNil(t, appErr, "code %s", code)
		assert.Equal(t, "CONTENTION", appErr.Code)
		assert.True(t, errors.Is(appErr, errors.ErrContention))
	}
}

func TestMapPQError_WrappedErrorIsStillMapped(t *testing.T) {
	wrapped := fmt.Errorf("transaction failed: %w", &pq.Error{Code: "55P03"})

	appErr := MapPQError(wrapped)

	require.NotNil(t, appErr)
	assert.Equal(t, "CONTENTION", appErr.Code)
}

func TestMapPQError_CheckConstraints(t *testing.T) {
	tests := []struct {
		constraint string
		wantCode   string
	}{
		{"batches_quantity_non_negative", "INVALID_QUANTITY"},
		{"shelves_capacity_positive", "VALIDATION_ERROR"},
		{"shelves_occupancy_within_capacity", "BAD_REQUEST"},
		{"damaged_status_valid", "VALIDATION_ERROR"},
		{"something_else", "BAD_REQUEST"},
	}

	for _, tt := range tests {
		appErr := MapPQError(&pq.Error{Code: "23514", Constraint: tt.constraint})

		require.NotNil(t, appErr, tt.constraint)
		assert.Equal(t, tt.wantCode, appErr.Code, tt.constraint)
	}
}

func TestMapPQError_UniqueViolation(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23505", Constraint: "allocations_batch_shelf_unique"})

	require.NotNil(t, appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, "allocation")
}

func TestMapPQError_ForeignKeyViolation(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23503"})

	require.NotNil(t, appErr)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)
}
