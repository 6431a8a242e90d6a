/*
Package apierr centralizes the error taxonomy shared by every service.

Domain packages wrap these sentinels with additional context; the HTTP
layer uses the Is* helpers to pick a status code instead of switching on
concrete types.
*/
package apierr

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced item, user, or order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnderflow is returned when a subtraction would take a quantity below zero.
	ErrUnderflow = errors.New("quantity cannot be reduced below zero")

	// ErrNetworkError is returned when an inter-service HTTP call fails or times out.
	ErrNetworkError = errors.New("network error calling peer service")

	// ErrStoreError is returned when the local store fails to persist a write.
	ErrStoreError = errors.New("store error")

	// ErrConflict marks a conflicting write. No service here produces it for
	// its own writes; internal/transport maps a peer's 409 or "conflict"
	// code to it.
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS - carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "item", "user", "order"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnderflowError reports the quantity that would have gone negative.
type UnderflowError struct {
	EntityID string
	Current  int64
	Delta    int64
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("stock cannot get reduced below zero: %s has %d, requested %d", e.EntityID, e.Current, e.Delta)
}

func (e *UnderflowError) Unwrap() error { return ErrUnderflow }

// NetworkError names the peer and hop that failed.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return ErrNetworkError }

// StoreError wraps the underlying database failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStoreError }

// ConflictError names the key that already exists.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s already recorded", e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// HELPERS
// =============================================================================

// IsNotFound returns true if err indicates a missing resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if err is due to invalid client input or state
// the client could reasonably have avoided (underflow, conflict).
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnderflow) || errors.Is(err, ErrConflict)
}

// IsNetworkError returns true if err originated from a failed peer call.
func IsNetworkError(err error) bool { return errors.Is(err, ErrNetworkError) }

// StatusCode maps err to the HTTP status the handler layer should return.
func StatusCode(err error) int {
	switch {
	case IsNotFound(err):
		return 404
	case errors.Is(err, ErrUnderflow):
		return 400
	case errors.Is(err, ErrConflict):
		return 409
	case IsNetworkError(err):
		return 502
	case errors.Is(err, ErrStoreError):
		return 500
	default:
		return 500
	}
}
