package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
)

func TestVariancePolicy_Significant(t *testing.T) {
	policy := service.DefaultVariancePolicy()

	tests := []struct {
		name     string
		expected string
		variance string
		want     bool
	}{
		{"exact match", "12", "0", false},
		{"one unit on ten is on both limits", "10", "-1", false},
		{"one unit on a hundred", "100", "1", false},
		{"over one unit", "100", "-1.5", true},
		{"over ten percent of a small quantity", "5", "0.6", true},
		{"half a bottle with nothing expected", "0", "0.5", true},
		{"nothing expected nothing found", "0", "0", false},
		{"high volume small drift", "400", "0.9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Significant(dec(tt.expected), dec(tt.variance)))
		})
	}
}

func TestVariancePolicy_Configurable(t *testing.T) {
	strict := service.VariancePolicy{Absolute: dec("0"), Relative: dec("0.01")}
	assert.True(t, strict.Significant(dec("400"), dec("0.25")))

	loose := service.VariancePolicy{Absolute: dec("5"), Relative: dec("0.5")}
	assert.False(t, loose.Significant(dec("10"), dec("-4")))
	assert.True(t, loose.Significant(dec("10"), dec("-6")))
}
