package testutil

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// TestOrganization is an organization seeded for a single test. Tests share
// one schema and are isolated by organization id.
type TestOrganization struct {
	ID string
	db *sqlx.DB
}

// NewTestOrganization returns a fresh organization with no rows yet
func NewTestOrganization(db *sqlx.DB) *TestOrganization {
	return &TestOrganization{ID: uuid.New().String(), db: db}
}

// AddLocation inserts a live location and returns its id
func (o *TestOrganization) AddLocation(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	_, err := o.db.ExecContext(ctx,
		`INSERT INTO locations (id, organization_id, name) VALUES ($1, $2, $3)`,
		id, o.ID, name)
	if err != nil {
		return "", fmt.Errorf("failed to insert location %q: %w", name, err)
	}
	return id, nil
}

// DeleteLocation soft-deletes a location
func (o *TestOrganization) DeleteLocation(ctx context.Context, id string) error {
	_, err := o.db.ExecContext(ctx,
		`UPDATE locations SET deleted_at = NOW() WHERE id = $1 AND organization_id = $2`,
		id, o.ID)
	return err
}

// AddProduct inserts a catalog product and returns its id
func (o *TestOrganization) AddProduct(ctx context.Context, name string, unitCost decimal.Decimal) (string, error) {
	id := uuid.New().String()
	_, err := o.db.ExecContext(ctx,
		`INSERT INTO products (id, organization_id, name, unit_cost) VALUES ($1, $2, $3, $4)`,
		id, o.ID, name, unitCost)
	if err != nil {
		return "", fmt.Errorf("failed to insert product %q: %w", name, err)
	}
	return id, nil
}

// Assign grants a user the flags on a location
func (o *TestOrganization) Assign(ctx context.Context, userID, locationID string, flags permissions.Flags) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO location_assignments (user_id, location_id, can_read, can_write, can_manage)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, location_id) DO UPDATE
		SET can_read = EXCLUDED.can_read, can_write = EXCLUDED.can_write, can_manage = EXCLUDED.can_manage`,
		userID, locationID, flags.CanRead, flags.CanWrite, flags.CanManage)
	return err
}

// Cleanup removes every row of the organization
func (o *TestOrganization) Cleanup(ctx context.Context) error {
	statements := []string{
		`DELETE FROM inventory_counts WHERE organization_id = $1`,
		`DELETE FROM stock_movements WHERE organization_id = $1`,
		`DELETE FROM inventory_items WHERE organization_id = $1`,
		`DELETE FROM location_assignments WHERE location_id IN (SELECT id FROM locations WHERE organization_id = $1)`,
		`DELETE FROM products WHERE organization_id = $1`,
		`DELETE FROM locations WHERE organization_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := o.db.ExecContext(ctx, stmt, o.ID); err != nil {
			return fmt.Errorf("failed to clean up organization %s: %w", o.ID, err)
		}
	}
	return nil
}
