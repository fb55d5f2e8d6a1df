// Package actor identifies the user or system performing an action.
//
// The actor is resolved upstream (bearer token or broker message) and is
// consumed here as an opaque id + role + organization.
package actor

import (
	"context"
	"fmt"
)

// SystemID is the id recorded on movements written by integrations.
const SystemID = "00000000-0000-0000-0000-000000000000"

// RoleSystem is the role carried by the system actor.
const RoleSystem = "system"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is used for display only
	Name string `json:"name,omitempty"`

	// OrganizationID scopes every ledger and count read or write
	OrganizationID string `json:"organization_id"`

	// Role decides whether assignments are consulted or the actor sees
	// every location of the organization
	Role string `json:"role"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.ID, a.Role)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor returns the actor used by integrations such as POS depletion.
func SystemActor(organizationID string) *Actor {
	return &Actor{
		ID:             SystemID,
		Name:           "System",
		OrganizationID: organizationID,
		Role:           RoleSystem,
	}
}
