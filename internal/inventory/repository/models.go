package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// InventoryItem is the ledger row for one (organization, product, location).
// current_quantity is only written by the ledger operations and the
// reconciliation applier.
type InventoryItem struct {
	ID              string              `db:"id" json:"id"`
	OrganizationID  string              `db:"organization_id" json:"organization_id"`
	ProductID       string              `db:"product_id" json:"product_id"`
	LocationID      string              `db:"location_id" json:"location_id"`
	CurrentQuantity decimal.Decimal     `db:"current_quantity" json:"current_quantity"`
	MinimumQuantity decimal.Decimal     `db:"minimum_quantity" json:"minimum_quantity"`
	MaximumQuantity decimal.NullDecimal `db:"maximum_quantity" json:"maximum_quantity"`
	LastCountDate   *time.Time          `db:"last_count_date" json:"last_count_date,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// BelowMinimum reports whether the row is under its par level.
func (i *InventoryItem) BelowMinimum() bool {
	return i.CurrentQuantity.LessThan(i.MinimumQuantity)
}

// MovementType classifies a ledger movement
type MovementType string

const (
	MovementTransfer      MovementType = "TRANSFER"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	MovementWaste         MovementType = "WASTE"
	MovementCountApplied  MovementType = "COUNT_APPLIED"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTransfer, MovementAdjustmentIn, MovementAdjustmentOut, MovementWaste, MovementCountApplied:
		return true
	}
	return false
}

// MovementStatusCompleted is the only status the core writes; movements are
// appended inside the committing transaction.
const MovementStatusCompleted = "COMPLETED"

// StockMovement is an immutable movement log entry. Quantity is unsigned;
// QuantityBefore/QuantityAfter describe the source row (the only row for
// adjustments and count applications).
type StockMovement struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	ProductID      string          `db:"product_id" json:"product_id"`
	FromLocationID string          `db:"from_location_id" json:"from_location_id"`
	ToLocationID   string          `db:"to_location_id" json:"to_location_id"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	QuantityBefore decimal.Decimal `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `db:"quantity_after" json:"quantity_after"`
	Type           MovementType    `db:"type" json:"type"`
	Status         string          `db:"status" json:"status"`
	ReasonCode     *string         `db:"reason_code" json:"reason_code,omitempty"`
	ReferenceID    *string         `db:"reference_id" json:"reference_id,omitempty"`
	ActorID        string          `db:"actor_id" json:"actor_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// CountStatus is the lifecycle state of an inventory count
type CountStatus string

const (
	CountDraft      CountStatus = "DRAFT"
	CountInProgress CountStatus = "IN_PROGRESS"
	CountCompleted  CountStatus = "COMPLETED"
	CountApproved   CountStatus = "APPROVED"
)

// CountType distinguishes full counts from partial ones
type CountType string

const (
	CountTypeFull    CountType = "FULL"
	CountTypePartial CountType = "PARTIAL"
)

// InventoryCount is one physical counting session at a location.
// TotalValue and ItemsCounted are derived from its items.
type InventoryCount struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	LocationID     string          `db:"location_id" json:"location_id"`
	Name           string          `db:"name" json:"name"`
	Type           CountType       `db:"type" json:"type"`
	Status         CountStatus     `db:"status" json:"status"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	TotalValue     decimal.Decimal `db:"total_value" json:"total_value"`
	ItemsCounted   int             `db:"items_counted" json:"items_counted"`
	StartedAt      *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ApprovedAt     *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedByID   *string         `db:"approved_by_id" json:"approved_by_id,omitempty"`
	CreatedByID    string          `db:"created_by_id" json:"created_by_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// AreaStatus is the progress marker of a count area
type AreaStatus string

const (
	AreaPending    AreaStatus = "PENDING"
	AreaInProgress AreaStatus = "IN_PROGRESS"
	AreaCompleted  AreaStatus = "COMPLETED"
)

// Valid reports whether s is a known area status.
func (s AreaStatus) Valid() bool {
	switch s {
	case AreaPending, AreaInProgress, AreaCompleted:
		return true
	}
	return false
}

// CountArea is an ordered section of a count (bar, walk-in, cellar...).
type CountArea struct {
	ID        string     `db:"id" json:"id"`
	CountID   string     `db:"count_id" json:"count_id"`
	Name      string     `db:"name" json:"name"`
	SortOrder int        `db:"sort_order" json:"sort_order"`
	Status    AreaStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CountItem is the counted quantity of one product in one area.
// ExpectedQty and UnitCost are captured on first submission and never
// recomputed.
type CountItem struct {
	ID            string          `db:"id" json:"id"`
	CountID       string          `db:"count_id" json:"count_id"`
	AreaID        string          `db:"area_id" json:"area_id"`
	ProductID     string          `db:"product_id" json:"product_id"`
	FullUnits     int             `db:"full_units" json:"full_units"`
	PartialUnit   decimal.Decimal `db:"partial_unit" json:"partial_unit"`
	TotalQuantity decimal.Decimal `db:"total_quantity" json:"total_quantity"`
	ExpectedQty   decimal.Decimal `db:"expected_qty" json:"expected_qty"`
	Variance      decimal.Decimal `db:"variance" json:"variance"`
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalValue    decimal.Decimal `db:"total_value" json:"total_value"`
	CountedByID   string          `db:"counted_by_id" json:"counted_by_id"`
	CountedAt     time.Time       `db:"counted_at" json:"counted_at"`
}

// Recalculate refreshes the derived fields from the quantities and the
// snapshots.
func (c *CountItem) Recalculate() {
	c.TotalQuantity = decimal.NewFromInt(int64(c.FullUnits)).Add(c.PartialUnit)
	c.Variance = c.TotalQuantity.Sub(c.ExpectedQty)
	c.TotalValue = c.TotalQuantity.Mul(c.UnitCost)
}

// CountTotals are the aggregates stored on the count row.
type CountTotals struct {
	TotalValue   decimal.Decimal `db:"total_value"`
	ItemsCounted int             `db:"items_counted"`
}

// LocationAssignment grants one user flags on one location.
type LocationAssignment struct {
	UserID     string `db:"user_id" json:"user_id"`
	LocationID string `db:"location_id" json:"location_id"`
	permissions.Flags
}

// LevelFilter narrows ListInventoryItems
type LevelFilter struct {
	LocationID   string
	ProductID    string
	BelowMinimum bool
}

// MovementFilter narrows ListMovements. LocationID matches either side.
type MovementFilter struct {
	LocationID string
	ProductID  string
	Type       MovementType
	Since      *time.Time
	Limit      int
}

// CountFilter narrows ListCounts
type CountFilter struct {
	LocationID string
	Status     CountStatus
}
