package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// AccessGate authorizes an actor on locations before any transaction opens.
type AccessGate interface {
	Require(ctx context.Context, a *actor.Actor, level permissions.Level, locationIDs ...string) error
}

// CostSource resolves the current unit cost of a product for count snapshots.
type CostSource interface {
	UnitCost(ctx context.Context, organizationID, productID string) (decimal.Decimal, error)
}

// EventPublisher is notified after a ledger or count transaction commits.
// Publishing is best effort; the committed state is authoritative.
type EventPublisher interface {
	PublishStockTransferred(ctx context.Context, m *repository.StockMovement)
	PublishStockAdjusted(ctx context.Context, m *repository.StockMovement)
	PublishCountApproved(ctx context.Context, c *repository.InventoryCount)
	PublishCountApplied(ctx context.Context, result *ApplyResult)
}

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
