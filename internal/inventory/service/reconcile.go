package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// Reconciler overwrites ledger quantities with the results of an approved
// count. Each product is written in its own transaction so one bad row does
// not revert the rest; failures are reported for a targeted re-apply.
type Reconciler struct {
	store  repository.Store
	gate   AccessGate
	events EventPublisher
	retry  database.RetryPolicy
	logger *logger.Logger
}

// NewReconciler creates a reconciliation applier. events may be nil.
func NewReconciler(
	store repository.Store,
	gate AccessGate,
	events EventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		store:  store,
		gate:   gate,
		events: events,
		retry:  retry,
		logger: log.WithComponent("reconciler"),
	}
}

// ProductApplication is one product written to the ledger.
type ProductApplication struct {
	ProductID string          `json:"product_id"`
	Previous  decimal.Decimal `json:"previous_quantity"`
	Quantity  decimal.Decimal `json:"quantity"`
	Changed   bool            `json:"changed"`
}

// ProductFailure is one product whose ledger write did not commit.
type ProductFailure struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error"`
}

// ApplyResult reports the outcome of applying a count to the ledger.
type ApplyResult struct {
	CountID        string               `json:"count_id"`
	OrganizationID string               `json:"organization_id"`
	LocationID     string               `json:"location_id"`
	Applied        []ProductApplication `json:"applied"`
	Failed         []ProductFailure     `json:"failed"`
}

// Complete reports whether every product was applied.
func (r *ApplyResult) Complete() bool {
	return len(r.Failed) == 0
}

// FailedProductIDs lists the products to pass to Reapply.
func (r *ApplyResult) FailedProductIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ProductID)
	}
	return ids
}

// Reapply runs the applier again for an approved count. When productIDs is
// not empty only those products are written. Re-running is safe because the
// ledger is set, not incremented.
func (r *Reconciler) Reapply(ctx context.Context, a *actor.Actor, countID string, productIDs []string) (*ApplyResult, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}

	var count *repository.InventoryCount
	err := r.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		count, err = tx.GetCount(ctx, countID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.gate.Require(ctx, a, permissions.LevelManage, count.LocationID); err != nil {
		return nil, err
	}

	return r.apply(ctx, a, countID, productIDs)
}

func (r *Reconciler) apply(ctx context.Context, a *actor.Actor, countID string, productIDs []string) (*ApplyResult, error) {
	var (
		count *repository.InventoryCount
		items []repository.CountItem
	)
	err := r.store.InTx(ctx, a.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if count, err = tx.GetCount(ctx, countID); err != nil {
			return err
		}
		if count.Status != repository.CountApproved {
			return errors.CountNotApproved(countID)
		}
		exists, err := tx.LocationExists(ctx, count.LocationID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.LocationNotFound(count.LocationID)
		}
		items, err = tx.ListCountItems(ctx, countID)
		return err
	})
	if err != nil {
		return nil, err
	}

	totals := aggregateByProduct(items)
	products := make([]string, 0, len(totals))
	if len(productIDs) > 0 {
		for _, id := range productIDs {
			if _, ok := totals[id]; ok {
				products = append(products, id)
			}
		}
	} else {
		for id := range totals {
			products = append(products, id)
		}
	}
	sort.Strings(products)

	result := &ApplyResult{
		CountID:        count.ID,
		OrganizationID: count.OrganizationID,
		LocationID:     count.LocationID,
		Applied:        []ProductApplication{},
		Failed:         []ProductFailure{},
	}
	for _, productID := range products {
		applied, err := r.applyProduct(ctx, a, count, productID, totals[productID])
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("count_id", count.ID).
				Str("product_id", productID).
				Msg("count application failed for product")
			result.Failed = append(result.Failed, ProductFailure{
				ProductID: productID,
				Code:      errors.CodeOf(err),
				Error:     err.Error(),
			})
			continue
		}
		result.Applied = append(result.Applied, *applied)
	}

	r.logger.Info().
		Str("count_id", count.ID).
		Str("location_id", count.LocationID).
		Int("applied", len(result.Applied)).
		Int("failed", len(result.Failed)).
		Msg("count applied to ledger")
	if r.events != nil {
		r.events.PublishCountApplied(ctx, result)
	}
	return result, nil
}

// applyProduct sets one product's ledger row to the counted quantity in its
// own transaction. LastCountDate is the count's approval time rather than the
// apply time, so applying the same count again leaves the row unchanged.
func (r *Reconciler) applyProduct(ctx context.Context, a *actor.Actor, count *repository.InventoryCount, productID string, quantity decimal.Decimal) (*ProductApplication, error) {
	var applied *ProductApplication
	err := database.Retry(ctx, r.retry, func() error {
		applied = nil
		return r.store.InTx(ctx, count.OrganizationID, func(ctx context.Context, tx repository.Tx) error {
			rows, err := tx.LockInventoryItems(ctx, productID, count.LocationID)
			if err != nil {
				return err
			}
			item := rows[count.LocationID]
			previous := item.CurrentQuantity

			item.CurrentQuantity = quantity
			item.LastCountDate = count.ApprovedAt
			if err := tx.SaveInventoryItem(ctx, item); err != nil {
				return err
			}

			changed := !previous.Equal(quantity)
			if changed {
				reason, reference := ReasonCount, count.ID
				if err := tx.InsertMovement(ctx, &repository.StockMovement{
					ProductID:      productID,
					FromLocationID: count.LocationID,
					ToLocationID:   count.LocationID,
					Quantity:       quantity.Sub(previous).Abs(),
					QuantityBefore: previous,
					QuantityAfter:  quantity,
					Type:           repository.MovementCountApplied,
					ReasonCode:     &reason,
					ReferenceID:    &reference,
					ActorID:        a.ID,
				}); err != nil {
					return err
				}
			}

			applied = &ProductApplication{
				ProductID: productID,
				Previous:  previous,
				Quantity:  quantity,
				Changed:   changed,
			}
			return nil
		})
	})
	return applied, err
}

// aggregateByProduct sums counted quantities per product over every area.
func aggregateByProduct(items []repository.CountItem) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, item := range items {
		totals[item.ProductID] = totals[item.ProductID].Add(item.TotalQuantity)
	}
	return totals
}
