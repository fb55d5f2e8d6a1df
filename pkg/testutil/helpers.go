package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// DefaultTestContext creates a context with a 30-second timeout that is
// cancelled when the test ends.
func DefaultTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// SkipIfShort skips the test if running with -short flag
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// Dec parses a decimal literal and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertDecimal compares decimals numerically, so "4.5000" equals "4.5"
func AssertDecimal(t *testing.T, want string, got decimal.Decimal) bool {
	t.Helper()
	w := Dec(want)
	return assert.Truef(t, w.Equal(got), "want %s, got %s", w, got)
}
