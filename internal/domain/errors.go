package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyOrder means no purchasable line items could be resolved.
	ErrEmptyOrder = errors.New("empty order")
	// ErrDuplicateOrderCode is returned when a generated order code is already taken.
	ErrDuplicateOrderCode = errors.New("duplicate order code")
)

// ValidationError rejects a malformed checkout request before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type StockErrorCode string

const (
	// StockOutOfStock is raised by the batch stock verification.
	StockOutOfStock StockErrorCode = "OUT_OF_STOCK"
	// StockRaceOutOfStock is raised when the conditional decrement matched no row.
	StockRaceOutOfStock StockErrorCode = "RACE_OUT_OF_STOCK"
)

// StockError aborts a checkout transaction for lack of inventory. It is a
// user-retryable condition, not an internal failure.
type StockError struct {
	Code      StockErrorCode
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	if e.Code == StockRaceOutOfStock {
		return fmt.Sprintf("%s: product %s requested %d", e.Code, e.ProductID, e.Requested)
	}
	return fmt.Sprintf("%s: product %s requested %d available %d", e.Code, e.ProductID, e.Requested, e.Available)
}

// IsStockError reports whether err carries a StockError.
func IsStockError(err error) bool {
	var se *StockError
	return errors.As(err, &se)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
