package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"

	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

// PostgreSQL error codes the inventory store reacts to.
const (
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeInvalidText          = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// ErrTransient marks a failure that is safe to retry as a whole transaction.
// Stores that are not backed by PostgreSQL wrap their conflicts with it.
var ErrTransient = stderrors.New("transient transaction conflict")

// IsTransient reports whether err aborted a transaction for reasons that a
// retry of the same transaction can resolve.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrTransient) {
		return true
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}
	return false
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		switch {
		case strings.Contains(pqErr.Constraint, "location"):
			return errors.LocationNotFound("")
		case strings.Contains(pqErr.Constraint, "product"):
			return errors.ProductNotFound("")
		}
		return errors.BadRequest("referenced record does not exist")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case codeInvalidText:
		return errors.BadRequest("malformed identifier or value")

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names of the inventory schema.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.InvalidQuantity("quantity must not be negative")
	case strings.Contains(constraint, "movement_quantity_positive"):
		return errors.InvalidQuantity("movement quantity must be positive")
	case strings.Contains(constraint, "partial_unit_range"):
		return errors.Validation(map[string]string{
			"partial_unit": "must be between 0 and 0.9",
		})
	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "unknown status",
		})
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "count_items_area_product"):
		return "the product was already counted in this area"
	case strings.Contains(pqErr.Constraint, "inventory_items_org_product_location"):
		return "a stock level for this product and location already exists"
	default:
		return "a record with these values already exists"
	}
}
