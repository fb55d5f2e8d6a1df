package repository

import (
	"context"
)

// Store opens organization-scoped transactions over the ledger and count
// tables. Every read and write of the inventory core goes through InTx.
type Store interface {
	InTx(ctx context.Context, organizationID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside one transaction. All lookups
// are implicitly scoped to the organization the transaction was opened for.
type Tx interface {
	LedgerTx
	MovementTx
	CountTx

	// LocationExists reports whether the location belongs to the
	// organization and is not deleted.
	LocationExists(ctx context.Context, locationID string) (bool, error)
}

// LedgerTx covers the inventory_items rows.
type LedgerTx interface {
	// LockInventoryItems materializes missing rows at zero and acquires an
	// exclusive lock on the (product, location) rows, in location id order.
	// The result is keyed by location id and holds every requested location.
	LockInventoryItems(ctx context.Context, productID string, locationIDs ...string) (map[string]*InventoryItem, error)

	// GetInventoryItem reads a row without locking. Returns nil, nil when the
	// row was never materialized.
	GetInventoryItem(ctx context.Context, productID, locationID string) (*InventoryItem, error)

	// SaveInventoryItem writes quantities and levels of a locked row.
	SaveInventoryItem(ctx context.Context, item *InventoryItem) error

	ListInventoryItems(ctx context.Context, filter LevelFilter) ([]InventoryItem, error)
}

// MovementTx covers the append-only movement log. There is deliberately no
// update or delete.
type MovementTx interface {
	InsertMovement(ctx context.Context, m *StockMovement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
}

// CountTx covers counts, their areas and their items.
type CountTx interface {
	InsertCount(ctx context.Context, c *InventoryCount) error
	GetCount(ctx context.Context, id string) (*InventoryCount, error)
	// LockCount reads the count and holds its row until the transaction ends.
	LockCount(ctx context.Context, id string) (*InventoryCount, error)
	UpdateCount(ctx context.Context, c *InventoryCount) error
	// DeleteCount removes the count with its areas and items.
	DeleteCount(ctx context.Context, id string) error
	ListCounts(ctx context.Context, filter CountFilter) ([]InventoryCount, error)

	InsertArea(ctx context.Context, a *CountArea) error
	GetArea(ctx context.Context, id string) (*CountArea, error)
	UpdateArea(ctx context.Context, a *CountArea) error
	// DeleteArea removes the area with its items.
	DeleteArea(ctx context.Context, id string) error
	// ListAreas returns the areas of a count in sort order.
	ListAreas(ctx context.Context, countID string) ([]CountArea, error)

	// GetCountItem returns nil, nil when the product was not yet counted in
	// the area.
	GetCountItem(ctx context.Context, areaID, productID string) (*CountItem, error)
	GetCountItemByID(ctx context.Context, id string) (*CountItem, error)
	// SaveCountItem inserts or updates by (area, product).
	SaveCountItem(ctx context.Context, item *CountItem) error
	DeleteCountItem(ctx context.Context, id string) error
	ListCountItems(ctx context.Context, countID string) ([]CountItem, error)
	// CountTotals sums item values and counts distinct products over all
	// areas of the count.
	CountTotals(ctx context.Context, countID string) (CountTotals, error)
}
