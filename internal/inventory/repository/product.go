package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

// ProductRepository reads unit costs from the product catalog
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// UnitCost returns the current unit cost of a product
func (r *ProductRepository) UnitCost(ctx context.Context, organizationID, productID string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := r.db.GetContext(ctx, &cost,
		`SELECT unit_cost FROM products WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`,
		productID, organizationID)
	if err == sql.ErrNoRows {
		return decimal.Zero, errors.ProductNotFound(productID)
	}
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return cost, nil
}
