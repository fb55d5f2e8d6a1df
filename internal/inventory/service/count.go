package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

var maxPartialUnit = decimal.RequireFromString("0.9")

// CountService runs physical counts from draft to approval. Every mutation of
// a count or its children holds the count row lock and re-checks the status
// inside the transaction.
type CountService struct {
	store      repository.Store
	gate       AccessGate
	costs      CostSource
	reconciler *Reconciler
	events     EventPublisher
	policy     VariancePolicy
	retry      database.RetryPolicy
	logger     *logger.Logger
	now        clock
}

// NewCountService creates a new count service. events may be nil.
func NewCountService(
	store repository.Store,
	gate AccessGate,
	costs CostSource,
	reconciler *Reconciler,
	events EventPublisher,
	policy VariancePolicy,
	retry database.RetryPolicy,
	log *logger.Logger,
) *CountService {
	return &CountService{
		store:      store,
		gate:       gate,
		costs:      costs,
		reconciler: reconciler,
		events:     events,
		policy:     policy,
		retry:      retry,
		logger:     log.WithComponent("counts"),
		now:        utcNow,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *CountService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateCountRequest opens a new count at a location. Areas, when given, are
// created in order.
type CreateCountRequest struct {
	LocationID string               `json:"location_id" validate:"required"`
	Name       string               `json:"name" validate:"required,max=200"`
	Type       repository.CountType `json:"type" validate:"omitempty,oneof=FULL PARTIAL"`
	Notes      *string              `json:"notes"`
	Areas      []string             `json:"areas" validate:"dive,required"`
}

// StatusUpdate requests a lifecycle change. CompletedAt is only read when
// completing.
type StatusUpdate struct {
	Status      repository.CountStatus `json:"status" validate:"required"`
	CompletedAt *time.Time             `json:"completed_at"`
}

// AreaRequest adds an area. A nil SortOrder appends it after the last area.
type AreaRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	SortOrder *int   `json:"sort_order" validate:"omitempty,min=0"`
}

// AreaUpdate changes the given fields of an area.
type AreaUpdate struct {
	Name      *string                `json:"name" validate:"omitempty,max=200"`
	SortOrder *int                   `json:"sort_order" validate:"omitempty,min=0"`
	Status    *repository.AreaStatus `json:"status"`
}

// SubmitItemRequest records the counted quantity of a product in an area.
type SubmitItemRequest struct {
	ProductID   string          `json:"product_id" validate:"required"`
	FullUnits   int             `json:"full_units" validate:"min=0"`
	PartialUnit decimal.Decimal `json:"partial_unit"`
}

// CountDetail is a count with its areas and items.
type CountDetail struct {
	repository.InventoryCount
	Areas []repository.CountArea `json:"areas"`
	Items []repository.CountItem `json:"items"`
}

// ApprovalResult is the committed approval and the ledger application that
// followed it.
type ApprovalResult struct {
	Count *repository.InventoryCount `json:"count"`
	Apply *ApplyResult               `json:"apply,omitempty"`
}

// =============================================================================
// COUNTS
// =============================================================================

// CreateCount creates a DRAFT count.
func (s *CountService) CreateCount(ctx context.Context, a *actor.Actor, req CreateCountRequest) (*CountDetail, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "required"})
	}
	if req.Type == "" {
		req.Type = repository.CountTypeFull
	}
	if req.Type != repository.CountTypeFull && req.Type != repository.CountTypePartial {
		return nil, errors.Validation(map[string]string{"type": "must be FULL or PARTIAL"})
	}
	if err := s.gate.Require(ctx, a, permissions.LevelWrite, req.LocationID); err != nil {
		return nil, err
	}

	var detail *CountDetail
	err := database.Retry(ctx, s.retry, func() error {
		detail = nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			exists, err := tx.LocationExists(ctx, req.LocationID)
			if err != nil {
				return err
			}
			if !exists {
				return errors.LocationNotFound(req.LocationID)
			}

			count := &repository.InventoryCount{
				LocationID:  req.LocationID,
				Name:        req.Name,
				Type:        req.Type,
				Status:      repository.CountDraft,
				Notes:       req.Notes,
				TotalValue:  decimal.Zero,
				CreatedByID: a.ID,
			}
			if err := tx.InsertCount(ctx, count); err != nil {
				return err
			}

			areas := make([]repository.CountArea, 0, len(req.Areas))
			for i, name := range req.Areas {
				area := &repository.CountArea{
					CountID:   count.ID,
					Name:      strings.TrimSpace(name),
					SortOrder: i,
					Status:    repository.AreaPending,
				}
				if err := tx.InsertArea(ctx, area); err != nil {
					return err
				}
				areas = append(areas, *area)
			}

			detail = &CountDetail{InventoryCount: *count, Areas: areas, Items: []repository.CountItem{}}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("count_id", detail.ID).
		Str("location_id", detail.LocationID).
		Msg("count created")
	return detail, nil
}

// GetCount returns a count with its areas and items.
func (s *CountService) GetCount(ctx context.Context, a *actor.Actor, countID string) (*CountDetail, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}

	var detail CountDetail
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		count, err := tx.GetCount(ctx, countID)
		if err != nil {
			return err
		}
		detail.InventoryCount = *count
		if detail.Areas, err = tx.ListAreas(ctx, countID); err != nil {
			return err
		}
		detail.Items, err = tx.ListCountItems(ctx, countID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, a, permissions.LevelRead, detail.LocationID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListCounts lists the counts of a location, newest first.
func (s *CountService) ListCounts(ctx context.Context, a *actor.Actor, filter repository.CountFilter) ([]repository.InventoryCount, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if filter.LocationID == "" {
		return nil, errors.BadRequest("location_id is required")
	}
	if err := s.gate.Require(ctx, a, permissions.LevelRead, filter.LocationID); err != nil {
		return nil, err
	}

	var counts []repository.InventoryCount
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		counts, err = tx.ListCounts(ctx, filter)
		return err
	})
	return counts, err
}

// UpdateCountStatus starts, completes or reopens a count. Approval has its
// own operation because it writes to the ledger.
func (s *CountService) UpdateCountStatus(ctx context.Context, a *actor.Actor, countID string, update StatusUpdate) (*repository.InventoryCount, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	switch update.Status {
	case repository.CountApproved:
		return nil, errors.BadRequest("counts are approved through the approve operation")
	case repository.CountDraft, repository.CountInProgress, repository.CountCompleted:
	default:
		return nil, errors.Validation(map[string]string{"status": "unknown count status"})
	}

	now := s.now()
	if update.CompletedAt != nil && update.CompletedAt.After(now) {
		return nil, errors.InvalidTimestamp("completion time must not be in the future")
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelWrite); err != nil {
		return nil, err
	}

	var updated *repository.InventoryCount
	err := database.Retry(ctx, s.retry, func() error {
		updated = nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			count, err := tx.LockCount(ctx, countID)
			if err != nil {
				return err
			}
			if err := transition(count.ID, count.Status, update.Status); err != nil {
				return err
			}

			switch update.Status {
			case repository.CountInProgress:
				if count.StartedAt == nil {
					count.StartedAt = &now
				}
				count.CompletedAt = nil
			case repository.CountCompleted:
				completedAt := now
				if update.CompletedAt != nil {
					completedAt = update.CompletedAt.UTC()
				}
				count.CompletedAt = &completedAt
				if count.StartedAt == nil || count.StartedAt.After(completedAt) {
					count.StartedAt = &completedAt
				}
			}
			count.Status = update.Status

			if err := tx.UpdateCount(ctx, count); err != nil {
				return err
			}
			updated = count
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("count_id", countID).
		Str("status", string(updated.Status)).
		Msg("count status updated")
	return updated, nil
}

// ApproveCount locks a completed count and applies it to the ledger. The
// approval commits before the application starts; an application error is
// returned together with the committed count.
func (s *CountService) ApproveCount(ctx context.Context, a *actor.Actor, countID string) (*ApprovalResult, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelManage); err != nil {
		return nil, err
	}

	var approved *repository.InventoryCount
	err := database.Retry(ctx, s.retry, func() error {
		approved = nil
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			count, err := tx.LockCount(ctx, countID)
			if err != nil {
				return err
			}
			if err := transition(count.ID, count.Status, repository.CountApproved); err != nil {
				return err
			}

			now := s.now()
			approver := a.ID
			count.Status = repository.CountApproved
			count.ApprovedAt = &now
			count.ApprovedByID = &approver
			if err := tx.UpdateCount(ctx, count); err != nil {
				return err
			}
			approved = count
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("count_id", countID).
		Msg("count approved")
	if s.events != nil {
		s.events.PublishCountApproved(ctx, approved)
	}

	result := &ApprovalResult{Count: approved}
	result.Apply, err = s.reconciler.apply(ctx, a, countID, nil)
	return result, err
}

// DeleteCount removes a DRAFT count with its areas.
func (s *CountService) DeleteCount(ctx context.Context, a *actor.Actor, countID string) error {
	if err := requireActor(a); err != nil {
		return err
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelWrite); err != nil {
		return err
	}

	err := database.Retry(ctx, s.retry, func() error {
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			count, err := tx.LockCount(ctx, countID)
			if err != nil {
				return err
			}
			if err := ensureMutable(count); err != nil {
				return err
			}
			if count.Status != repository.CountDraft {
				return errors.InvalidTransition(string(count.Status), "DELETED")
			}
			return tx.DeleteCount(ctx, countID)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("actor_id", a.ID).
		Str("count_id", countID).
		Msg("count deleted")
	return nil
}

// =============================================================================
// AREAS
// =============================================================================

// AddArea appends an area to a count.
func (s *CountService) AddArea(ctx context.Context, a *actor.Actor, countID string, req AreaRequest) (*repository.CountArea, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "required"})
	}
	if req.SortOrder != nil && *req.SortOrder < 0 {
		return nil, errors.Validation(map[string]string{"sort_order": "must not be negative"})
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelWrite); err != nil {
		return nil, err
	}

	var area *repository.CountArea
	err := s.mutateCount(ctx, a, countID, func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
		order := 0
		if req.SortOrder != nil {
			order = *req.SortOrder
		} else {
			existing, err := tx.ListAreas(ctx, count.ID)
			if err != nil {
				return err
			}
			for _, other := range existing {
				if other.SortOrder >= order {
					order = other.SortOrder + 1
				}
			}
		}

		area = &repository.CountArea{
			CountID:   count.ID,
			Name:      req.Name,
			SortOrder: order,
			Status:    repository.AreaPending,
		}
		return tx.InsertArea(ctx, area)
	})
	if err != nil {
		return nil, err
	}
	return area, nil
}

// UpdateArea renames, reorders or re-flags an area.
func (s *CountService) UpdateArea(ctx context.Context, a *actor.Actor, areaID string, update AreaUpdate) (*repository.CountArea, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, errors.Validation(map[string]string{"status": "unknown area status"})
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, errors.Validation(map[string]string{"name": "must not be empty"})
	}
	if update.SortOrder != nil && *update.SortOrder < 0 {
		return nil, errors.Validation(map[string]string{"sort_order": "must not be negative"})
	}
	area, err := s.authorizeArea(ctx, a, areaID, permissions.LevelWrite)
	if err != nil {
		return nil, err
	}

	var updated *repository.CountArea
	err = s.mutateCount(ctx, a, area.CountID, func(ctx context.Context, tx repository.Tx, _ *repository.InventoryCount) error {
		current, err := tx.GetArea(ctx, areaID)
		if err != nil {
			return err
		}
		if update.Name != nil {
			current.Name = strings.TrimSpace(*update.Name)
		}
		if update.SortOrder != nil {
			current.SortOrder = *update.SortOrder
		}
		if update.Status != nil {
			current.Status = *update.Status
		}
		if err := tx.UpdateArea(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteArea removes an area with its items and refreshes the count totals.
func (s *CountService) DeleteArea(ctx context.Context, a *actor.Actor, areaID string) error {
	if err := requireActor(a); err != nil {
		return err
	}
	area, err := s.authorizeArea(ctx, a, areaID, permissions.LevelWrite)
	if err != nil {
		return err
	}

	return s.mutateCount(ctx, a, area.CountID, func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
		if err := tx.DeleteArea(ctx, areaID); err != nil {
			return err
		}
		return refreshTotals(ctx, tx, count)
	})
}

// ReorderAreas assigns sort orders from the position of each area in
// areaIDs. The list must name every area of the count exactly once.
func (s *CountService) ReorderAreas(ctx context.Context, a *actor.Actor, countID string, areaIDs []string) ([]repository.CountArea, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelWrite); err != nil {
		return nil, err
	}

	var areas []repository.CountArea
	err := s.mutateCount(ctx, a, countID, func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
		existing, err := tx.ListAreas(ctx, count.ID)
		if err != nil {
			return err
		}
		byID := make(map[string]repository.CountArea, len(existing))
		for _, area := range existing {
			byID[area.ID] = area
		}
		if len(areaIDs) != len(existing) {
			return errors.BadRequest("area order must list every area of the count")
		}

		seen := make(map[string]bool, len(areaIDs))
		for i, id := range areaIDs {
			area, ok := byID[id]
			if !ok || seen[id] {
				return errors.BadRequest("area order must list every area of the count exactly once")
			}
			seen[id] = true
			if area.SortOrder == i {
				continue
			}
			area.SortOrder = i
			if err := tx.UpdateArea(ctx, &area); err != nil {
				return err
			}
		}

		areas, err = tx.ListAreas(ctx, count.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return areas, nil
}

// ListAreas lists the areas of a count in sort order.
func (s *CountService) ListAreas(ctx context.Context, a *actor.Actor, countID string) ([]repository.CountArea, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if _, err := s.authorizeCount(ctx, a, countID, permissions.LevelRead); err != nil {
		return nil, err
	}

	var areas []repository.CountArea
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		areas, err = tx.ListAreas(ctx, countID)
		return err
	})
	return areas, err
}

// =============================================================================
// ITEMS
// =============================================================================

// SubmitItem records or corrects the counted quantity of a product in an
// area. The expected quantity and unit cost are captured on the first
// submission only; later submissions recompute the derived fields against
// those snapshots.
func (s *CountService) SubmitItem(ctx context.Context, a *actor.Actor, areaID string, req SubmitItemRequest) (*repository.CountItem, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if req.ProductID == "" {
		return nil, errors.Validation(map[string]string{"product_id": "required"})
	}
	if req.FullUnits < 0 {
		return nil, errors.InvalidQuantity("full units must not be negative")
	}
	if req.PartialUnit.IsNegative() || req.PartialUnit.GreaterThan(maxPartialUnit) {
		return nil, errors.InvalidQuantity("partial unit must be between 0 and 0.9")
	}
	area, err := s.authorizeArea(ctx, a, areaID, permissions.LevelWrite)
	if err != nil {
		return nil, err
	}

	// The cost source may need its own pool connection, so it is read before
	// the count row is locked. Its error only matters for a first submission.
	cost, costErr := s.costs.UnitCost(ctx, a.OrganizationID, req.ProductID)

	var saved *repository.CountItem
	err = s.mutateCount(ctx, a, area.CountID, func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
		current, err := tx.GetArea(ctx, areaID)
		if err != nil {
			return err
		}
		existing, err := tx.GetCountItem(ctx, areaID, req.ProductID)
		if err != nil {
			return err
		}

		now := s.now()
		item := &repository.CountItem{
			CountID:     count.ID,
			AreaID:      areaID,
			ProductID:   req.ProductID,
			FullUnits:   req.FullUnits,
			PartialUnit: req.PartialUnit,
			CountedByID: a.ID,
			CountedAt:   now,
		}
		if existing != nil {
			item.ID = existing.ID
			item.ExpectedQty = existing.ExpectedQty
			item.UnitCost = existing.UnitCost
		} else {
			if costErr != nil {
				return costErr
			}
			if item.ExpectedQty, err = snapshotExpected(ctx, tx, count, req.ProductID); err != nil {
				return err
			}
			item.UnitCost = cost
		}
		item.Recalculate()
		if err := tx.SaveCountItem(ctx, item); err != nil {
			return err
		}

		if count.Status == repository.CountDraft {
			if err := transition(count.ID, count.Status, repository.CountInProgress); err != nil {
				return err
			}
			count.Status = repository.CountInProgress
			if count.StartedAt == nil {
				count.StartedAt = &now
			}
		}
		if current.Status == repository.AreaPending {
			current.Status = repository.AreaInProgress
			if err := tx.UpdateArea(ctx, current); err != nil {
				return err
			}
		}

		saved = item
		return refreshTotals(ctx, tx, count)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("actor_id", a.ID).
		Str("count_id", area.CountID).
		Str("area_id", areaID).
		Str("product_id", req.ProductID).
		Str("quantity", saved.TotalQuantity.String()).
		Msg("count item submitted")
	return saved, nil
}

// DeleteItem removes a counted line and refreshes the count totals.
func (s *CountService) DeleteItem(ctx context.Context, a *actor.Actor, itemID string) error {
	if err := requireActor(a); err != nil {
		return err
	}

	var item *repository.CountItem
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		item, err = tx.GetCountItemByID(ctx, itemID)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := s.authorizeCount(ctx, a, item.CountID, permissions.LevelWrite); err != nil {
		return err
	}

	return s.mutateCount(ctx, a, item.CountID, func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
		if err := tx.DeleteCountItem(ctx, itemID); err != nil {
			return err
		}
		return refreshTotals(ctx, tx, count)
	})
}

// CountReport builds the variance report of a count.
func (s *CountService) CountReport(ctx context.Context, a *actor.Actor, countID string) (*CountReport, error) {
	detail, err := s.GetCount(ctx, a, countID)
	if err != nil {
		return nil, err
	}
	return buildReport(detail.InventoryCount, detail.Areas, detail.Items, s.policy), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// snapshotExpected reads the ledger quantity a first submission records as
// expected. A missing ledger row expects zero.
func snapshotExpected(ctx context.Context, tx repository.Tx, count *repository.InventoryCount, productID string) (decimal.Decimal, error) {
	row, err := tx.GetInventoryItem(ctx, productID, count.LocationID)
	if err != nil {
		return decimal.Zero, err
	}
	if row == nil {
		return decimal.Zero, nil
	}
	return row.CurrentQuantity, nil
}

// authorizeCount resolves the location of a count and checks the actor on
// it before any locking transaction opens.
func (s *CountService) authorizeCount(ctx context.Context, a *actor.Actor, countID string, level permissions.Level) (*repository.InventoryCount, error) {
	var count *repository.InventoryCount
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		count, err = tx.GetCount(ctx, countID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, a, level, count.LocationID); err != nil {
		return nil, err
	}
	return count, nil
}

func (s *CountService) authorizeArea(ctx context.Context, a *actor.Actor, areaID string, level permissions.Level) (*repository.CountArea, error) {
	var (
		area  *repository.CountArea
		count *repository.InventoryCount
	)
	err := s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if area, err = tx.GetArea(ctx, areaID); err != nil {
			return err
		}
		count, err = tx.GetCount(ctx, area.CountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, a, level, count.LocationID); err != nil {
		return nil, err
	}
	return area, nil
}

// mutateCount runs fn with the count row locked, after rejecting approved
// counts.
func (s *CountService) mutateCount(ctx context.Context, a *actor.Actor, countID string, fn func(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error) error {
	return database.Retry(ctx, s.retry, func() error {
		return s.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			count, err := tx.LockCount(ctx, countID)
			if err != nil {
				return err
			}
			if err := ensureMutable(count); err != nil {
				return err
			}
			return fn(ctx, tx, count)
		})
	})
}

// refreshTotals recomputes the count aggregates from its items and stores
// them with any pending change to the count row.
func refreshTotals(ctx context.Context, tx repository.Tx, count *repository.InventoryCount) error {
	totals, err := tx.CountTotals(ctx, count.ID)
	if err != nil {
		return err
	}
	count.TotalValue = totals.TotalValue
	count.ItemsCounted = totals.ItemsCounted
	return tx.UpdateCount(ctx, count)
}
