package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// Reason codes written by the core itself. Callers may pass any other code.
const (
	ReasonWaste    = "WASTE"
	ReasonSale     = "SALE"
	ReasonLevelSet = "LEVEL_SET"
	ReasonCount    = "COUNT"
)

// LedgerService owns every write to inventory_items outside of count
// application. Each mutation is one transaction that locks exactly the rows
// it touches and appends one movement.
type LedgerService struct {
	store  repository.Store
	gate   AccessGate
	events EventPublisher
	retry  database.RetryPolicy
	logger *logger.Logger
}

// NewLedgerService creates a new ledger service. events may be nil.
func NewLedgerService(
	store repository.Store,
	gate AccessGate,
	events EventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		store:  store,
		gate:   gate,
		events: events,
		retry:  retry,
		logger: log.WithComponent("ledger"),
	}
}

// LevelUpdate carries the fields SetLevel writes. Nil fields keep their
// stored value (zero for a new row).
type LevelUpdate struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Minimum  *decimal.Decimal `json:"minimum_quantity"`
	Maximum  *decimal.Decimal `json:"maximum_quantity"`
}

// TransferRequest moves stock of one product between two locations.
type TransferRequest struct {
	ProductID      string          `json:"product_id" validate:"required"`
	FromLocationID string          `json:"from_location_id" validate:"required"`
	ToLocationID   string          `json:"to_location_id" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// AdjustRequest changes stock at one location by a signed delta.
type AdjustRequest struct {
	ProductID  string          `json:"product_id" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Delta      decimal.Decimal `json:"delta"`
	ReasonCode string          `json:"reason_code"`
}

// =============================================================================
// MUTATIONS
// =============================================================================

// SetLevel writes the quantity and par levels of a (product, location) row,
// creating it when missing. A changed quantity is recorded as an adjustment.
func (s *LedgerService) SetLevel(ctx context.Context, a *actor.Actor, productID, locationID string, update LevelUpdate) (*repository.InventoryItem, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	for field, value := range map[string]*decimal.Decimal{
		"quantity":         update.Quantity,
		"minimum quantity": update.Minimum,
		"maximum quantity": update.Maximum,
	} {
		if value != nil && value.IsNegative() {
			return nil, errors.InvalidQuantity(field + " must not be negative")
		}
	}
	if err := s.gate.Require(ctx, a, permissions.LevelWrite, locationID); err != nil {
		return nil, err
	}

	var (
		saved    *repository.InventoryItem
		movement *repository.StockMovement
	)
	err := database.Retry(ctx, s.retry, func() error {
		saved, movement = nil, nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			rows, err := tx.LockInventoryItems(ctx, productID, locationID)
			if err != nil {
				return err
			}
			item := rows[locationID]
			before := item.CurrentQuantity

			if update.Quantity != nil {
				item.CurrentQuantity = *update.Quantity
			}
			if update.Minimum != nil {
				item.MinimumQuantity = *update.Minimum
			}
			if update.Maximum != nil {
				item.MaximumQuantity = decimal.NewNullDecimal(*update.Maximum)
			}
			if err := tx.SaveInventoryItem(ctx, item); err != nil {
				return err
			}

			if delta := item.CurrentQuantity.Sub(before); !delta.IsZero() {
				movement = adjustmentMovement(a, item, before, delta, ReasonLevelSet)
				if err := tx.InsertMovement(ctx, movement); err != nil {
					return err
				}
			}
			saved = item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("product_id", productID).
		Str("location_id", locationID).
		Str("quantity", saved.CurrentQuantity.String()).
		Msg("stock level set")
	if movement != nil && s.events != nil {
		s.events.PublishStockAdjusted(ctx, movement)
	}
	return saved, nil
}

// Transfer moves quantity from one location to another atomically. The
// destination row is created when missing.
func (s *LedgerService) Transfer(ctx context.Context, a *actor.Actor, req TransferRequest) (*repository.StockMovement, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, errors.InvalidQuantity("transfer quantity must be positive")
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, errors.InvalidQuantity("source and destination must differ")
	}
	if err := s.gate.Require(ctx, a, permissions.LevelWrite, req.FromLocationID, req.ToLocationID); err != nil {
		return nil, err
	}

	var movement *repository.StockMovement
	err := database.Retry(ctx, s.retry, func() error {
		movement = nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			rows, err := tx.LockInventoryItems(ctx, req.ProductID, req.FromLocationID, req.ToLocationID)
			if err != nil {
				return err
			}
			source, dest := rows[req.FromLocationID], rows[req.ToLocationID]

			if source.CurrentQuantity.LessThan(req.Quantity) {
				return errors.InsufficientStock(req.ProductID, req.FromLocationID,
					req.Quantity.String(), source.CurrentQuantity.String())
			}

			before := source.CurrentQuantity
			source.CurrentQuantity = source.CurrentQuantity.Sub(req.Quantity)
			dest.CurrentQuantity = dest.CurrentQuantity.Add(req.Quantity)
			if err := tx.SaveInventoryItem(ctx, source); err != nil {
				return err
			}
			if err := tx.SaveInventoryItem(ctx, dest); err != nil {
				return err
			}

			m := &repository.StockMovement{
				ProductID:      req.ProductID,
				FromLocationID: req.FromLocationID,
				ToLocationID:   req.ToLocationID,
				Quantity:       req.Quantity,
				QuantityBefore: before,
				QuantityAfter:  source.CurrentQuantity,
				Type:           repository.MovementTransfer,
				ActorID:        a.ID,
			}
			if err := tx.InsertMovement(ctx, m); err != nil {
				return err
			}
			movement = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("product_id", req.ProductID).
		Str("from_location_id", req.FromLocationID).
		Str("to_location_id", req.ToLocationID).
		Str("quantity", req.Quantity.String()).
		Msg("stock transferred")
	if s.events != nil {
		s.events.PublishStockTransferred(ctx, movement)
	}
	return movement, nil
}

// Adjust changes stock at a location by a signed delta. A negative delta with
// the WASTE reason is recorded as waste rather than a plain adjustment.
func (s *LedgerService) Adjust(ctx context.Context, a *actor.Actor, req AdjustRequest) (*repository.StockMovement, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if req.Delta.IsZero() {
		return nil, errors.InvalidQuantity("adjustment delta must not be zero")
	}
	if err := s.gate.Require(ctx, a, permissions.LevelWrite, req.LocationID); err != nil {
		return nil, err
	}

	var movement *repository.StockMovement
	err := database.Retry(ctx, s.retry, func() error {
		movement = nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			rows, err := tx.LockInventoryItems(ctx, req.ProductID, req.LocationID)
			if err != nil {
				return err
			}
			item := rows[req.LocationID]

			before := item.CurrentQuantity
			after := before.Add(req.Delta)
			if after.IsNegative() {
				return errors.NegativeResultingStock(req.ProductID, req.LocationID,
					req.Delta.String(), before.String())
			}
			item.CurrentQuantity = after
			if err := tx.SaveInventoryItem(ctx, item); err != nil {
				return err
			}

			m := adjustmentMovement(a, item, before, req.Delta, req.ReasonCode)
			if err := tx.InsertMovement(ctx, m); err != nil {
				return err
			}
			movement = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("product_id", req.ProductID).
		Str("location_id", req.LocationID).
		Str("delta", req.Delta.String()).
		Str("reason", req.ReasonCode).
		Msg("stock adjusted")
	if s.events != nil {
		s.events.PublishStockAdjusted(ctx, movement)
	}
	return movement, nil
}

func adjustmentMovement(a *actor.Actor, item *repository.InventoryItem, before, delta decimal.Decimal, reason string) *repository.StockMovement {
	movementType := repository.MovementAdjustmentIn
	if delta.IsNegative() {
		movementType = repository.MovementAdjustmentOut
		if reason == ReasonWaste {
			movementType = repository.MovementWaste
		}
	}

	m := &repository.StockMovement{
		ProductID:      item.ProductID,
		FromLocationID: item.LocationID,
		ToLocationID:   item.LocationID,
		Quantity:       delta.Abs(),
		QuantityBefore: before,
		QuantityAfter:  item.CurrentQuantity,
		Type:           movementType,
		ActorID:        a.ID,
	}
	if reason != "" {
		m.ReasonCode = &reason
	}
	return m
}

// =============================================================================
// READS
// =============================================================================

// GetLevel returns the ledger row for a product at a location. A row that was
// never written reads as zero stock.
func (s *LedgerService) GetLevel(ctx context.Context, a *actor.Actor, productID, locationID string) (*repository.InventoryItem, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, a, permissions.LevelRead, locationID); err != nil {
		return nil, err
	}

	var item *repository.InventoryItem
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		item, err = tx.GetInventoryItem(ctx, productID, locationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = &repository.InventoryItem{
			OrganizationID:  a.OrganizationID,
			ProductID:       productID,
			LocationID:      locationID,
			CurrentQuantity: decimal.Zero,
			MinimumQuantity: decimal.Zero,
		}
	}
	return item, nil
}

// ListLevels lists the ledger rows of a location.
func (s *LedgerService) ListLevels(ctx context.Context, a *actor.Actor, locationID string) ([]repository.InventoryItem, error) {
	return s.listLevels(ctx, a, repository.LevelFilter{LocationID: locationID})
}

// ListBelowMinimum lists the rows of a location that are under par.
func (s *LedgerService) ListBelowMinimum(ctx context.Context, a *actor.Actor, locationID string) ([]repository.InventoryItem, error) {
	return s.listLevels(ctx, a, repository.LevelFilter{LocationID: locationID, BelowMinimum: true})
}

func (s *LedgerService) listLevels(ctx context.Context, a *actor.Actor, filter repository.LevelFilter) ([]repository.InventoryItem, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, a, permissions.LevelRead, filter.LocationID); err != nil {
		return nil, err
	}

	var items []repository.InventoryItem
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, err = tx.ListInventoryItems(ctx, filter)
		return err
	})
	return items, err
}

// ListMovements lists the movement log of a location, newest first.
func (s *LedgerService) ListMovements(ctx context.Context, a *actor.Actor, filter repository.MovementFilter) ([]repository.StockMovement, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if filter.LocationID == "" {
		return nil, errors.BadRequest("location_id is required")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, errors.BadRequest("unknown movement type " + string(filter.Type))
	}
	if err := s.gate.Require(ctx, a, permissions.LevelRead, filter.LocationID); err != nil {
		return nil, err
	}

	var movements []repository.StockMovement
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		movements, err = tx.ListMovements(ctx, filter)
		return err
	})
	return movements, err
}

func requireActor(a *actor.Actor) error {
	if a == nil || a.ID == "" || a.OrganizationID == "" {
		return errors.Unauthorized("authenticated actor required")
	}
	return nil
}
