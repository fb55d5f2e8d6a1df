package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

const countColumns = `id, organization_id, location_id, name, type, status, notes, total_value, items_counted,
	started_at, completed_at, approved_at, approved_by_id, created_by_id, created_at, updated_at`

const areaColumns = `a.id, a.count_id, a.name, a.sort_order, a.status, a.created_at, a.updated_at`

const countItemColumns = `i.id, i.count_id, i.area_id, i.product_id, i.full_units, i.partial_unit, i.total_quantity,
	i.expected_qty, i.variance, i.unit_cost, i.total_value, i.counted_by_id, i.counted_at`

// =============================================================================
// COUNTS
// =============================================================================

// InsertCount creates a new count
func (t *pgTx) InsertCount(ctx context.Context, c *InventoryCount) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.OrganizationID = t.orgID

	query := `
		INSERT INTO inventory_counts (
			id, organization_id, location_id, name, type, status, notes, total_value, items_counted, created_by_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		c.ID, c.OrganizationID, c.LocationID, c.Name, c.Type, c.Status, c.Notes, c.TotalValue, c.ItemsCounted, c.CreatedByID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapErr(err)
}

// GetCount gets a count by ID
func (t *pgTx) GetCount(ctx context.Context, id string) (*InventoryCount, error) {
	return t.getCount(ctx, id, false)
}

// LockCount gets a count by ID and holds its row lock until the transaction ends
func (t *pgTx) LockCount(ctx context.Context, id string) (*InventoryCount, error) {
	return t.getCount(ctx, id, true)
}

func (t *pgTx) getCount(ctx context.Context, id string, lock bool) (*InventoryCount, error) {
	query := `SELECT ` + countColumns + ` FROM inventory_counts WHERE id = $1 AND organization_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}

	var c InventoryCount
	err := t.tx.GetContext(ctx, &c, query, id, t.orgID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory count")
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// UpdateCount persists the mutable fields of a count
func (t *pgTx) UpdateCount(ctx context.Context, c *InventoryCount) error {
	query := `
		UPDATE inventory_counts
		SET name = $3, type = $4, status = $5, notes = $6, total_value = $7, items_counted = $8,
			started_at = $9, completed_at = $10, approved_at = $11, approved_by_id = $12, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		c.ID, t.orgID, c.Name, c.Type, c.Status, c.Notes, c.TotalValue, c.ItemsCounted,
		c.StartedAt, c.CompletedAt, c.ApprovedAt, c.ApprovedByID,
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("inventory count")
	}
	return mapErr(err)
}

// DeleteCount deletes a count; areas and items go with it (ON DELETE CASCADE)
func (t *pgTx) DeleteCount(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM inventory_counts WHERE id = $1 AND organization_id = $2`, id, t.orgID)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("inventory count")
	}
	return nil
}

// ListCounts lists counts newest first
func (t *pgTx) ListCounts(ctx context.Context, filter CountFilter) ([]InventoryCount, error) {
	conds := []string{"organization_id = $1"}
	args := []interface{}{t.orgID}

	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conds = append(conds, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + countColumns + `
		FROM inventory_counts
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC`

	counts := []InventoryCount{}
	if err := t.tx.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return counts, nil
}

// =============================================================================
// AREAS
// =============================================================================

// InsertArea creates a new area
func (t *pgTx) InsertArea(ctx context.Context, a *CountArea) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO count_areas (id, count_id, name, sort_order, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query, a.ID, a.CountID, a.Name, a.SortOrder, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

// GetArea gets an area by ID
func (t *pgTx) GetArea(ctx context.Context, id string) (*CountArea, error) {
	query := `SELECT ` + areaColumns + `
		FROM count_areas a
		JOIN inventory_counts c ON c.id = a.count_id
		WHERE a.id = $1 AND c.organization_id = $2`

	var a CountArea
	err := t.tx.GetContext(ctx, &a, query, id, t.orgID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("count area")
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// UpdateArea updates an area
func (t *pgTx) UpdateArea(ctx context.Context, a *CountArea) error {
	query := `
		UPDATE count_areas
		SET name = $2, sort_order = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query, a.ID, a.Name, a.SortOrder, a.Status).Scan(&a.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("count area")
	}
	return mapErr(err)
}

// DeleteArea deletes an area and its items
func (t *pgTx) DeleteArea(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM count_areas WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("count area")
	}
	return nil
}

// ListAreas lists the areas of a count in traversal order
func (t *pgTx) ListAreas(ctx context.Context, countID string) ([]CountArea, error) {
	query := `SELECT ` + areaColumns + `
		FROM count_areas a
		WHERE a.count_id = $1
		ORDER BY a.sort_order, a.created_at`

	areas := []CountArea{}
	if err := t.tx.SelectContext(ctx, &areas, query, countID); err != nil {
		return nil, mapErr(err)
	}
	return areas, nil
}

// =============================================================================
// ITEMS
// =============================================================================

// GetCountItem gets the item for a product in an area
func (t *pgTx) GetCountItem(ctx context.Context, areaID, productID string) (*CountItem, error) {
	query := `SELECT ` + countItemColumns + ` FROM count_items i WHERE i.area_id = $1 AND i.product_id = $2`

	var item CountItem
	err := t.tx.GetContext(ctx, &item, query, areaID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &item, nil
}

// GetCountItemByID gets an item by ID
func (t *pgTx) GetCountItemByID(ctx context.Context, id string) (*CountItem, error) {
	query := `SELECT ` + countItemColumns + `
		FROM count_items i
		JOIN inventory_counts c ON c.id = i.count_id
		WHERE i.id = $1 AND c.organization_id = $2`

	var item CountItem
	err := t.tx.GetContext(ctx, &item, query, id, t.orgID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("count item")
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &item, nil
}

// SaveCountItem upserts by (area, product). The expected quantity and unit
// cost snapshots are never overwritten by the update branch.
func (t *pgTx) SaveCountItem(ctx context.Context, item *CountItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO count_items (
			id, count_id, area_id, product_id, full_units, partial_unit, total_quantity,
			expected_qty, variance, unit_cost, total_value, counted_by_id, counted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (area_id, product_id) DO UPDATE SET
			full_units = EXCLUDED.full_units,
			partial_unit = EXCLUDED.partial_unit,
			total_quantity = EXCLUDED.total_quantity,
			variance = EXCLUDED.total_quantity - count_items.expected_qty,
			total_value = EXCLUDED.total_quantity * count_items.unit_cost,
			counted_by_id = EXCLUDED.counted_by_id,
			counted_at = EXCLUDED.counted_at
		RETURNING id
	`
	err := t.tx.QueryRowxContext(ctx, query,
		item.ID, item.CountID, item.AreaID, item.ProductID, item.FullUnits, item.PartialUnit, item.TotalQuantity,
		item.ExpectedQty, item.Variance, item.UnitCost, item.TotalValue, item.CountedByID, item.CountedAt,
	).Scan(&item.ID)
	return mapErr(err)
}

// DeleteCountItem deletes an item
func (t *pgTx) DeleteCountItem(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM count_items WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("count item")
	}
	return nil
}

// ListCountItems lists every item of a count in area order
func (t *pgTx) ListCountItems(ctx context.Context, countID string) ([]CountItem, error) {
	query := `SELECT ` + countItemColumns + `
		FROM count_items i
		JOIN count_areas a ON a.id = i.area_id
		WHERE i.count_id = $1
		ORDER BY a.sort_order, a.created_at, i.product_id`

	items := []CountItem{}
	if err := t.tx.SelectContext(ctx, &items, query, countID); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

// CountTotals aggregates value and distinct products over all areas
func (t *pgTx) CountTotals(ctx context.Context, countID string) (CountTotals, error) {
	query := `
		SELECT COALESCE(SUM(total_value), 0) AS total_value, COUNT(DISTINCT product_id) AS items_counted
		FROM count_items
		WHERE count_id = $1
	`
	var totals CountTotals
	if err := t.tx.GetContext(ctx, &totals, query, countID); err != nil {
		return CountTotals{}, mapErr(err)
	}
	return totals, nil
}
