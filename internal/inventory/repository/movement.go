package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const movementColumns = `id, organization_id, product_id, from_location_id, to_location_id, quantity,
	quantity_before, quantity_after, type, status, reason_code, reference_id, actor_id, created_at`

// InsertMovement appends one entry to the movement log
func (t *pgTx) InsertMovement(ctx context.Context, m *StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MovementStatusCompleted
	}
	m.OrganizationID = t.orgID

	query := `
		INSERT INTO stock_movements (
			id, organization_id, product_id, from_location_id, to_location_id, quantity,
			quantity_before, quantity_after, type, status, reason_code, reference_id, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		m.ID, m.OrganizationID, m.ProductID, m.FromLocationID, m.ToLocationID, m.Quantity,
		m.QuantityBefore, m.QuantityAfter, m.Type, m.Status, m.ReasonCode, m.ReferenceID, m.ActorID,
	).Scan(&m.CreatedAt)
	return mapErr(err)
}

// ListMovements lists movements newest first
func (t *pgTx) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	conds := []string{"organization_id = $1"}
	args := []interface{}{t.orgID}

	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conds = append(conds, fmt.Sprintf("(from_location_id = $%d OR to_location_id = $%d)", len(args), len(args)))
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC, id
		LIMIT $` + fmt.Sprint(len(args))

	movements := []StockMovement{}
	if err := t.tx.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return movements, nil
}
