package repository

import (
	"context"

	"github.com/cellarcount/cellarcount-backend/pkg/database"
)

// LocationExists checks that a location belongs to the organization and is not deleted
func (t *pgTx) LocationExists(ctx context.Context, locationID string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL)`,
		locationID, t.orgID)
	if err != nil {
		return false, mapErr(err)
	}
	return exists, nil
}

// LocationRepository reads locations and per-user assignments for the access
// gate. It runs outside ledger transactions.
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// ListLocationIDs lists every live location of an organization
func (r *LocationRepository) ListLocationIDs(ctx context.Context, organizationID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM locations WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY id`,
		organizationID)
	if err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

// ListAssignments lists a user's assignments on live locations of the organization
func (r *LocationRepository) ListAssignments(ctx context.Context, organizationID, userID string) ([]LocationAssignment, error) {
	query := `
		SELECT la.user_id, la.location_id, la.can_read, la.can_write, la.can_manage
		FROM location_assignments la
		JOIN locations l ON l.id = la.location_id
		WHERE la.user_id = $1 AND l.organization_id = $2 AND l.deleted_at IS NULL
		ORDER BY la.location_id
	`
	assignments := []LocationAssignment{}
	if err := r.db.SelectContext(ctx, &assignments, query, userID, organizationID); err != nil {
		return nil, mapErr(err)
	}
	return assignments, nil
}
