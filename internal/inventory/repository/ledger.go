package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

const inventoryItemColumns = `id, organization_id, product_id, location_id, current_quantity,
	minimum_quantity, maximum_quantity, last_count_date, created_at, updated_at`

// LockInventoryItems materializes and locks the (product, location) rows.
//
// Missing rows are inserted at zero first so that two transactions creating
// the same destination row serialize on the unique key instead of failing.
// Locks are then taken in location id order; a transfer A->B and one B->A for
// the same product cannot deadlock.
func (t *pgTx) LockInventoryItems(ctx context.Context, productID string, locationIDs ...string) (map[string]*InventoryItem, error) {
	ids := uniqueSorted(locationIDs)
	if len(ids) == 0 {
		return map[string]*InventoryItem{}, nil
	}

	insert := `
		INSERT INTO inventory_items (id, organization_id, product_id, location_id)
		SELECT gen_random_uuid(), $1::uuid, $2::uuid, loc FROM unnest($3::uuid[]) AS loc
		ON CONFLICT (organization_id, product_id, location_id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, insert, t.orgID, productID, pq.Array(ids)); err != nil {
		err = mapErr(err)
		// the foreign key error does not carry the offending value
		if errors.Is(err, errors.ErrProductNotFound) {
			return nil, errors.ProductNotFound(productID)
		}
		return nil, err
	}

	query := `SELECT ` + inventoryItemColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND product_id = $2 AND location_id = ANY($3::uuid[])
		ORDER BY location_id
		FOR UPDATE`

	var rows []InventoryItem
	if err := t.tx.SelectContext(ctx, &rows, query, t.orgID, productID, pq.Array(ids)); err != nil {
		return nil, mapErr(err)
	}

	result := make(map[string]*InventoryItem, len(rows))
	for i := range rows {
		result[rows[i].LocationID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return nil, fmt.Errorf("inventory row for product %s at location %s was not materialized", productID, id)
		}
	}
	return result, nil
}

// GetInventoryItem reads a ledger row without locking it
func (t *pgTx) GetInventoryItem(ctx context.Context, productID, locationID string) (*InventoryItem, error) {
	query := `SELECT ` + inventoryItemColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND product_id = $2 AND location_id = $3`

	var item InventoryItem
	err := t.tx.GetContext(ctx, &item, query, t.orgID, productID, locationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &item, nil
}

// SaveInventoryItem persists quantity, levels and last count date
func (t *pgTx) SaveInventoryItem(ctx context.Context, item *InventoryItem) error {
	query := `
		UPDATE inventory_items
		SET current_quantity = $3, minimum_quantity = $4, maximum_quantity = $5,
			last_count_date = $6, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		item.ID, t.orgID, item.CurrentQuantity, item.MinimumQuantity, item.MaximumQuantity, item.LastCountDate,
	).Scan(&item.UpdatedAt)
	return mapErr(err)
}

// ListInventoryItems lists ledger rows matching the filter
func (t *pgTx) ListInventoryItems(ctx context.Context, filter LevelFilter) ([]InventoryItem, error) {
	conds := []string{"organization_id = $1"}
	args := []interface{}{t.orgID}

	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conds = append(conds, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.BelowMinimum {
		conds = append(conds, "current_quantity < minimum_quantity")
	}

	query := `SELECT ` + inventoryItemColumns + `
		FROM inventory_items
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY location_id, product_id`

	items := []InventoryItem{}
	if err := t.tx.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
