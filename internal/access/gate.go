// Package access decides which locations an actor may read, write or manage.
//
// Elevated roles see every live location of their organization. Every other
// role is limited to its explicit assignments, whose read/write/manage flags
// are independent. A location that does not exist is reported exactly like
// one the actor is not allowed to touch.
package access

import (
	"context"
	"fmt"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// Directory supplies locations and assignments. Implemented by
// repository.LocationRepository and the in-memory store.
type Directory interface {
	ListLocationIDs(ctx context.Context, organizationID string) ([]string, error)
	ListAssignments(ctx context.Context, organizationID, userID string) ([]repository.LocationAssignment, error)
}

// Gate is the access gate
type Gate struct {
	dir    Directory
	roles  *permissions.RoleTable
	logger *logger.Logger
}

// NewGate creates a new access gate
func NewGate(dir Directory, roles *permissions.RoleTable, log *logger.Logger) *Gate {
	return &Gate{
		dir:    dir,
		roles:  roles,
		logger: log.WithComponent("access-gate"),
	}
}

// AccessibleLocationIDs returns every location the actor holds at least one
// flag on, or every live location of the organization for elevated roles.
func (g *Gate) AccessibleLocationIDs(ctx context.Context, a *actor.Actor) ([]string, error) {
	if a == nil || a.OrganizationID == "" {
		return []string{}, nil
	}

	if g.roles.IsElevated(a.Role) {
		return g.dir.ListLocationIDs(ctx, a.OrganizationID)
	}

	assignments, err := g.dir.ListAssignments(ctx, a.OrganizationID, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list location assignments: %w", err)
	}

	ids := make([]string, 0, len(assignments))
	for _, as := range assignments {
		if as.Any() {
			ids = append(ids, as.LocationID)
		}
	}
	return ids, nil
}

// CanAccess reports whether the actor holds level on the location.
func (g *Gate) CanAccess(ctx context.Context, a *actor.Actor, locationID string, level permissions.Level) (bool, error) {
	if a == nil || a.OrganizationID == "" || locationID == "" || !level.Valid() {
		return false, nil
	}

	if g.roles.IsElevated(a.Role) {
		ids, err := g.dir.ListLocationIDs(ctx, a.OrganizationID)
		if err != nil {
			return false, fmt.Errorf("failed to list locations: %w", err)
		}
		for _, id := range ids {
			if id == locationID {
				return true, nil
			}
		}
		return false, nil
	}

	assignments, err := g.dir.ListAssignments(ctx, a.OrganizationID, a.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list location assignments: %w", err)
	}
	for _, as := range assignments {
		if as.LocationID == locationID {
			return as.Allows(level), nil
		}
	}
	return false, nil
}

// Require fails with AccessDenied unless the actor holds level on every
// location.
func (g *Gate) Require(ctx context.Context, a *actor.Actor, level permissions.Level, locationIDs ...string) error {
	for _, locationID := range locationIDs {
		ok, err := g.CanAccess(ctx, a, locationID, level)
		if err != nil {
			return err
		}
		if !ok {
			g.logger.Debug().
				Str("actor_id", actorID(a)).
				Str("location_id", locationID).
				Str("level", string(level)).
				Msg("location access denied")
			return errors.AccessDenied(locationID)
		}
	}
	return nil
}

func actorID(a *actor.Actor) string {
	if a == nil {
		return ""
	}
	return a.ID
}
