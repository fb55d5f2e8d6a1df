package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Inventory error types
var (
	ErrAccessDenied           = errors.New("access denied")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrNegativeResultingStock = errors.New("negative resulting stock")
	ErrCountLocked            = errors.New("count locked")
	ErrCountNotApproved       = errors.New("count not approved")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidTimestamp       = errors.New("invalid timestamp")
	ErrLocationNotFound       = errors.New("location not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Detail keys shared by inventory errors
const (
	DetailProductID  = "product_id"
	DetailLocationID = "location_id"
	DetailCountID    = "count_id"
	DetailRequested  = "requested"
	DetailAvailable  = "available"
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key, value string) *AppError {
	return e.WithDetails(map[string]string{key: value})
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// =============================================================================
// INVENTORY ERRORS
// =============================================================================

// AccessDenied is returned by the access gate. It never says whether the
// location exists.
func AccessDenied(locationID string) *AppError {
	return &AppError{
		Err:        ErrAccessDenied,
		Code:       "ACCESS_DENIED",
		Message:    "access to location denied",
		StatusCode: http.StatusForbidden,
		Details:    map[string]string{DetailLocationID: locationID},
	}
}

func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InsufficientStock reports a transfer that exceeds the source balance.
func InsufficientStock(productID, locationID, requested, available string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: requested %s, available %s", requested, available),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			DetailProductID:  productID,
			DetailLocationID: locationID,
			DetailRequested:  requested,
			DetailAvailable:  available,
		},
	}
}

// NegativeResultingStock reports an adjustment that would drive stock below zero.
func NegativeResultingStock(productID, locationID, delta, available string) *AppError {
	return &AppError{
		Err:        ErrNegativeResultingStock,
		Code:       "NEGATIVE_RESULTING_STOCK",
		Message:    fmt.Sprintf("adjustment of %s would leave negative stock (available %s)", delta, available),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			DetailProductID:  productID,
			DetailLocationID: locationID,
			DetailRequested:  delta,
			DetailAvailable:  available,
		},
	}
}

func CountLocked(countID string) *AppError {
	return &AppError{
		Err:        ErrCountLocked,
		Code:       "COUNT_LOCKED",
		Message:    "count is approved and can no longer be changed",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{DetailCountID: countID},
	}
}

func CountNotApproved(countID string) *AppError {
	return &AppError{
		Err:        ErrCountNotApproved,
		Code:       "COUNT_NOT_APPROVED",
		Message:    "count must be approved before it can be applied",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{DetailCountID: countID},
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("cannot move count from %s to %s", from, to),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"from": from, "to": to},
	}
}

func InvalidTimestamp(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidTimestamp,
		Code:       "INVALID_TIMESTAMP",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func LocationNotFound(locationID string) *AppError {
	return &AppError{
		Err:        ErrLocationNotFound,
		Code:       "LOCATION_NOT_FOUND",
		Message:    "location not found",
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{DetailLocationID: locationID},
	}
}

func ProductNotFound(productID string) *AppError {
	return &AppError{
		Err:        ErrProductNotFound,
		Code:       "PRODUCT_NOT_FOUND",
		Message:    "product not found",
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{DetailProductID: productID},
	}
}

// ConcurrentModification is surfaced once the bounded transaction retries
// are exhausted.
func ConcurrentModification(cause error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrConcurrentModification, cause),
		Code:       "CONCURRENT_MODIFICATION",
		Message:    "the record was modified concurrently, retry the operation",
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
