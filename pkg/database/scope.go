package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithOrganization runs fn in a transaction scoped to one organization.
//
// app.current_organization is set transaction-locally so row level security
// policies of the form
//
//	USING (organization_id = current_setting('app.current_organization')::uuid)
//
// apply. set_config(..., true) is the parameterizable form of SET LOCAL, the
// value is cleared on commit or rollback even on pooled connections.
func (db *DB) WithOrganization(ctx context.Context, organizationID string, fn func(*sqlx.Tx) error) error {
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_organization', $1, true)`, organizationID); err != nil {
			return fmt.Errorf("failed to set app.current_organization: %w", err)
		}
		return fn(tx)
	})
}
