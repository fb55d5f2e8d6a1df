package database_test

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarcount/cellarcount-backend/pkg/database"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"non-negative check", &pq.Error{Code: "23514", Constraint: "inventory_items_quantity_non_negative"}, "INVALID_QUANTITY"},
		{"partial unit check", &pq.Error{Code: "23514", Constraint: "count_items_partial_unit_range"}, "VALIDATION_ERROR"},
		{"duplicate count item", &pq.Error{Code: "23505", Constraint: "count_items_area_product_key"}, "CONFLICT"},
		{"missing location", &pq.Error{Code: "23503", Constraint: "inventory_counts_location_id_fkey"}, "LOCATION_NOT_FOUND"},
		{"missing product", &pq.Error{Code: "23503", Constraint: "count_items_product_id_fkey"}, "PRODUCT_NOT_FOUND"},
		{"not null", &pq.Error{Code: "23502", Column: "name"}, "VALIDATION_ERROR"},
		{"malformed uuid", &pq.Error{Code: "22P02"}, "BAD_REQUEST"},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := database.MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestMapPQError_Unmapped(t *testing.T) {
	assert.Nil(t, database.MapPQError(fmt.Errorf("plain")))
	assert.Nil(t, database.MapPQError(&pq.Error{Code: "40001"}))
}
