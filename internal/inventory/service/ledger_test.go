package service_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

func TestTransfer_MovesStockAndRejectsOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, ginID, barID, "10")

	movement, err := f.ledger.Transfer(ctx, f.owner, service.TransferRequest{
		ProductID:      ginID,
		FromLocationID: barID,
		ToLocationID:   cellarID,
		Quantity:       dec("4"),
	})
	require.NoError(t, err)

	assert.Equal(t, "6", f.quantity(ginID, barID))
	assert.Equal(t, "4", f.quantity(ginID, cellarID))
	assert.Equal(t, repository.MovementTransfer, movement.Type)
	assert.Equal(t, "4", movement.Quantity.String())
	assert.Equal(t, "10", movement.QuantityBefore.String())
	assert.Equal(t, "6", movement.QuantityAfter.String())
	assert.Equal(t, f.owner.ID, movement.ActorID)

	_, err = f.ledger.Transfer(ctx, f.owner, service.TransferRequest{
		ProductID:      ginID,
		FromLocationID: barID,
		ToLocationID:   cellarID,
		Quantity:       dec("7"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "7", appErr.Details[errors.DetailRequested])
	assert.Equal(t, "6", appErr.Details[errors.DetailAvailable])
	assert.Equal(t, barID, appErr.Details[errors.DetailLocationID])

	assert.Equal(t, "6", f.quantity(ginID, barID))
	assert.Equal(t, "4", f.quantity(ginID, cellarID))

	transfers := 0
	for _, m := range f.store.Movements() {
		if m.Type == repository.MovementTransfer {
			transfers++
		}
	}
	assert.Equal(t, 1, transfers)
	assert.Len(t, f.events.transferred, 1)
}

func TestTransfer_ConservesTotalQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, tonicID, barID, "24")
	f.setLevel(t, tonicID, cellarID, "48.5")

	locations := []string{barID, cellarID, terraceID}
	total := func() decimal.Decimal {
		sum := decimal.Zero
		for _, loc := range locations {
			sum = sum.Add(f.store.Quantity(orgID, tonicID, loc))
		}
		return sum
	}
	start := total()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		from := locations[rng.Intn(len(locations))]
		to := locations[rng.Intn(len(locations))]
		if from == to {
			continue
		}
		qty := decimal.NewFromInt(int64(rng.Intn(15) + 1))

		_, err := f.ledger.Transfer(ctx, f.owner, service.TransferRequest{
			ProductID:      tonicID,
			FromLocationID: from,
			ToLocationID:   to,
			Quantity:       qty,
		})
		if err != nil {
			require.True(t, errors.Is(err, errors.ErrInsufficientStock), "unexpected error: %v", err)
		}

		assert.True(t, total().Equal(start), "total changed after transfer %d", i)
		for _, loc := range locations {
			assert.False(t, f.store.Quantity(orgID, tonicID, loc).IsNegative())
		}
	}
}

func TestTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, ginID, barID, "3")
	before := len(f.store.Movements())

	tests := []struct {
		name string
		req  service.TransferRequest
	}{
		{"zero quantity", service.TransferRequest{ProductID: ginID, FromLocationID: barID, ToLocationID: cellarID, Quantity: decimal.Zero}},
		{"negative quantity", service.TransferRequest{ProductID: ginID, FromLocationID: barID, ToLocationID: cellarID, Quantity: dec("-1")}},
		{"same location", service.TransferRequest{ProductID: ginID, FromLocationID: barID, ToLocationID: barID, Quantity: dec("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.owner, tt.req)
			assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
		})
	}

	assert.Len(t, f.store.Movements(), before)
	assert.Equal(t, "3", f.quantity(ginID, barID))
}

func TestTransfer_RequiresWriteOnBothLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, ginID, barID, "5")

	_, err := f.ledger.Transfer(ctx, f.barback, service.TransferRequest{
		ProductID:      ginID,
		FromLocationID: barID,
		ToLocationID:   cellarID,
		Quantity:       dec("1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAccessDenied))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, cellarID, appErr.Details[errors.DetailLocationID])
	assert.Equal(t, "5", f.quantity(ginID, barID))
}

func TestLedger_UnknownLocationLooksLikeForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, errMissing := f.ledger.Adjust(ctx, f.owner, service.AdjustRequest{
		ProductID: ginID, LocationID: "loc-nowhere", Delta: dec("1"),
	})
	_, errForbidden := f.ledger.Adjust(ctx, f.barback, service.AdjustRequest{
		ProductID: ginID, LocationID: cellarID, Delta: dec("1"),
	})

	assert.Equal(t, errors.CodeOf(errForbidden), errors.CodeOf(errMissing))
	assert.True(t, errors.Is(errMissing, errors.ErrAccessDenied))
}

func TestAdjust_RejectsNegativeResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, limeID, barID, "2")

	_, err := f.ledger.Adjust(ctx, f.barback, service.AdjustRequest{
		ProductID:  limeID,
		LocationID: barID,
		Delta:      dec("-3"),
		ReasonCode: "BREAKAGE",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNegativeResultingStock))
	assert.Equal(t, "2", f.quantity(limeID, barID))
}

func TestAdjust_RecordsMovementByDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		delta    string
		reason   string
		wantType repository.MovementType
		wantQty  string
		wantLeft string
	}{
		{"delivery", "12", "DELIVERY", repository.MovementAdjustmentIn, "12", "12"},
		{"comp", "-1", "COMP", repository.MovementAdjustmentOut, "1", "11"},
		{"spillage", "-0.5", service.ReasonWaste, repository.MovementWaste, "0.5", "10.5"},
		{"positive waste stays an adjustment", "0.5", service.ReasonWaste, repository.MovementAdjustmentIn, "0.5", "11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := f.ledger.Adjust(ctx, f.barback, service.AdjustRequest{
				ProductID:  ginID,
				LocationID: barID,
				Delta:      dec(tt.delta),
				ReasonCode: tt.reason,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, m.Type)
			assert.Equal(t, tt.wantQty, m.Quantity.String())
			assert.Equal(t, barID, m.FromLocationID)
			assert.Equal(t, barID, m.ToLocationID)
			require.NotNil(t, m.ReasonCode)
			assert.Equal(t, tt.reason, *m.ReasonCode)
			assert.Equal(t, tt.wantLeft, f.quantity(ginID, barID))
		})
	}
}

func TestAdjust_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Adjust(ctx, f.owner, service.AdjustRequest{ProductID: ginID, LocationID: barID, Delta: decimal.Zero})
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = f.ledger.Adjust(ctx, f.owner, service.AdjustRequest{ProductID: "prod-unknown", LocationID: barID, Delta: dec("1")})
	assert.True(t, errors.Is(err, errors.ErrProductNotFound))

	_, err = f.ledger.Adjust(ctx, nil, service.AdjustRequest{ProductID: ginID, LocationID: barID, Delta: dec("1")})
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	assert.Empty(t, f.store.Movements())
}

func TestSetLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{
		Quantity: decPtr("18"),
		Minimum:  decPtr("24"),
	})
	require.NoError(t, err)
	assert.Equal(t, "18", item.CurrentQuantity.String())
	assert.Equal(t, "24", item.MinimumQuantity.String())
	assert.False(t, item.MaximumQuantity.Valid)

	movements := f.store.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, repository.MovementAdjustmentIn, movements[0].Type)
	assert.Equal(t, service.ReasonLevelSet, *movements[0].ReasonCode)

	t.Run("same quantity records nothing", func(t *testing.T) {
		_, err := f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{Quantity: decPtr("18")})
		require.NoError(t, err)
		assert.Len(t, f.store.Movements(), 1)
	})

	t.Run("levels only keep quantity", func(t *testing.T) {
		item, err := f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{Maximum: decPtr("10")})
		require.NoError(t, err)
		assert.Equal(t, "18", item.CurrentQuantity.String())
		assert.True(t, item.MaximumQuantity.Valid)
		assert.Equal(t, "10", item.MaximumQuantity.Decimal.String())
	})

	t.Run("lower quantity records an outbound adjustment", func(t *testing.T) {
		_, err := f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{Quantity: decPtr("15")})
		require.NoError(t, err)
		movements := f.store.Movements()
		last := movements[len(movements)-1]
		assert.Equal(t, repository.MovementAdjustmentOut, last.Type)
		assert.Equal(t, "3", last.Quantity.String())
	})

	t.Run("negative values are rejected", func(t *testing.T) {
		_, err := f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{Quantity: decPtr("-1")})
		assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
		_, err = f.ledger.SetLevel(ctx, f.barback, tonicID, barID, service.LevelUpdate{Minimum: decPtr("-2")})
		assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
		assert.Equal(t, "15", f.quantity(tonicID, barID))
	})

	t.Run("below minimum listing", func(t *testing.T) {
		f.setLevel(t, ginID, barID, "30")
		low, err := f.ledger.ListBelowMinimum(ctx, f.barback, barID)
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, tonicID, low[0].ProductID)

		all, err := f.ledger.ListLevels(ctx, f.barback, barID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestGetLevel_MissingRowReadsZero(t *testing.T) {
	f := newFixture(t)

	item, err := f.ledger.GetLevel(context.Background(), f.barback, limeID, barID)
	require.NoError(t, err)
	assert.True(t, item.CurrentQuantity.IsZero())
	assert.Equal(t, limeID, item.ProductID)

	_, err = f.ledger.GetLevel(context.Background(), f.barback, limeID, cellarID)
	assert.True(t, errors.Is(err, errors.ErrAccessDenied))
}

func TestListMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, ginID, barID, "10")
	_, err := f.ledger.Transfer(ctx, f.owner, service.TransferRequest{
		ProductID: ginID, FromLocationID: barID, ToLocationID: cellarID, Quantity: dec("2"),
	})
	require.NoError(t, err)

	movements, err := f.ledger.ListMovements(ctx, f.manager, repository.MovementFilter{LocationID: cellarID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, repository.MovementTransfer, movements[0].Type)

	movements, err = f.ledger.ListMovements(ctx, f.manager, repository.MovementFilter{
		LocationID: barID,
		Type:       repository.MovementAdjustmentIn,
	})
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	_, err = f.ledger.ListMovements(ctx, f.manager, repository.MovementFilter{})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestLedger_RetriesTransientConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setLevel(t, ginID, barID, "10")

	f.store.FailSave(ginID, database.ErrTransient, database.ErrTransient)
	_, err := f.ledger.Adjust(ctx, f.owner, service.AdjustRequest{ProductID: ginID, LocationID: barID, Delta: dec("-1")})
	require.NoError(t, err)
	assert.Equal(t, "9", f.quantity(ginID, barID))

	f.store.FailSave(ginID, database.ErrTransient, database.ErrTransient, database.ErrTransient, database.ErrTransient)
	_, err = f.ledger.Adjust(ctx, f.owner, service.AdjustRequest{ProductID: ginID, LocationID: barID, Delta: dec("-1")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))
	assert.Equal(t, "CONCURRENT_MODIFICATION", errors.CodeOf(err))
	assert.Equal(t, "9", f.quantity(ginID, barID))
}
