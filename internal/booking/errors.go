// Package booking implements the inventory-safe booking and payment
// lifecycle: reserving ticket capacity, guarding against duplicate active
// bookings, running payments through a gateway and moving bookings between
// pending, confirmed and cancelled.  Every operation that changes a ticket
// counter or a booking status runs as one transaction on the Store.
package booking

import (
	"errors"
	"fmt"
)

// Expected business outcomes.  Handlers translate these into HTTP status
// codes; anything else is an internal error.
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrDuplicateActive         = errors.New("active booking already exists for this ticket")
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrPaymentAttemptsExceeded = errors.New("payment attempt limit reached")
	ErrReferenceExhausted      = errors.New("could not generate a unique booking reference")
)

// ErrInvalidTransition is the parent of every refused state change.
var ErrInvalidTransition = errors.New("invalid booking state transition")

var (
	ErrAlreadyConfirmed      = fmt.Errorf("%w: booking already confirmed", ErrInvalidTransition)
	ErrAlreadyCancelled      = fmt.Errorf("%w: booking already cancelled", ErrInvalidTransition)
	ErrCannotCancelConfirmed = fmt.Errorf("%w: confirmed booking cannot be cancelled", ErrInvalidTransition)
)

// InventoryError reports how many units were available when a reservation
// was refused.  It matches ErrInsufficientInventory.
type InventoryError struct {
	Available int
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: %d available", e.Available)
}

func (e *InventoryError) Is(target error) bool { return target == ErrInsufficientInventory }

// Unique constraints the store reports through UniqueViolation.
const (
	ConstraintActiveBooking = "uq_bookings_active"
	ConstraintReference     = "uq_bookings_reference"
)

// UniqueViolation is returned by a Tx when an insert collides with a
// unique constraint.  Constraint holds one of the Constraint* names, or
// the raw key name for constraints the core does not know about.
type UniqueViolation struct {
	Constraint string
	Err        error
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique violation on %s: %v", e.Constraint, e.Err)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }
