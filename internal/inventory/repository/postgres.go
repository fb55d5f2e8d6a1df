package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cellarcount/cellarcount-backend/pkg/database"
)

// PostgresStore is the Store backed by PostgreSQL.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx runs fn in one organization-scoped transaction.
// ORGANIZATION-ISOLATED: app.current_organization is set for RLS and every
// statement also filters on organization_id.
func (s *PostgresStore) InTx(ctx context.Context, organizationID string, fn func(ctx context.Context, tx Tx) error) error {
	return s.db.WithOrganization(ctx, organizationID, func(tx *sqlx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, orgID: organizationID})
	})
}

type pgTx struct {
	tx    *sqlx.Tx
	orgID string
}

// mapErr turns constraint violations into AppErrors and leaves everything
// else, including retryable conflicts, untouched.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
