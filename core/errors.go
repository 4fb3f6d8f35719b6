/*
errors.go - Centralized error taxonomy for the ledger & fulfillment engine

PURPOSE:
  Every operation in the engine reports failures through one of five
  categories. Callers (the HTTP boundary, the scheduler, tests) branch on
  the category with errors.Is and never on message text.

ERROR CATEGORIES:
  1. ErrValidation - missing/malformed input, no state change
  2. ErrRejected   - business rule rejection (insufficient stock, disabled
                     product, duplicate subscription...), no partial state
  3. ErrConflict   - lost an optimistic race or conflicting state
                     (already converted, already paid)
  4. ErrNotFound   - unknown id
  5. ErrStorage    - persistence unavailable, fatal to the request

  ErrDuplicate is the storage-level signal for a unique constraint
  violation. Services translate it into one of the categories above.

USAGE:
    if errors.Is(err, core.ErrConflict) {
        // retry the whole order
    }

    var rej *core.RejectionError
    if errors.As(err, &rej) && rej.Code == core.CodeInsufficientStock {
        fmt.Println(*rej.Available)
    }

SEE ALSO:
  - api/errors.go: category -> HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrRejected   = errors.New("rejected by business rule")
	ErrConflict   = errors.New("conflicting state")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")

	// ErrDuplicate is returned by stores when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// Rejection codes carried by RejectionError and ConflictError.
const (
	CodeUnavailable           = "unavailable"
	CodeOutOfStock            = "out_of_stock"
	CodeInsufficientStock     = "insufficient_stock"
	CodeStockChanged          = "stock_changed"
	CodeNoCustomer            = "no_customer"
	CodeAlreadyConverted      = "already_converted"
	CodeAlreadyPaid           = "already_paid"
	CodeOrderCancelled        = "order_cancelled"
	CodeDuplicateSubscription = "duplicate_subscription"
	CodeDuplicatePhone        = "duplicate_phone"
	CodeCustomerDeleted       = "customer_deleted"
	CodeDuplicateEntry        = "duplicate_entry"
	CodeDuplicateBarcode      = "duplicate_barcode"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RejectionError is a business rule rejection with a human-readable reason.
type RejectionError struct {
	Code   string
	Reason string

	// Available is set for insufficient stock rejections.
	Available *int
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Unwrap() error { return ErrRejected }

// Reject builds a RejectionError.
func Reject(code, format string, args ...any) error {
	return &RejectionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports state that changed underneath the caller or that
// already reflects the requested transition.
type ConflictError struct {
	Code      string
	Reason    string
	Retryable bool
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// StorageError wraps an underlying persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError unless it is nil or already categorized.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Categorized(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Categorized reports whether err already belongs to one of the taxonomy categories.
func Categorized(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStorage)
}

// IsRetryable returns true if the caller may retry the whole operation.
func IsRetryable(err error) bool {
	var c *ConflictError
	return errors.As(err, &c) && c.Retryable
}

// IsClientError returns true if the error is due to the caller's input or
// the current business state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
