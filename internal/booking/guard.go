package booking

import (
	"context"
	"errors"
	"fmt"
)

// ActiveBookingChecker is the read the guard needs.
type ActiveBookingChecker interface {
	HasActiveBooking(ctx context.Context, userID, ticketID uint64) (bool, error)
}

// Guard is the fast-path duplicate check run before a booking transaction.
// It is advisory: two concurrent requests can both pass it, and the
// storage unique key on active bookings decides between them.
type Guard struct {
	checker ActiveBookingChecker
}

func NewGuard(c ActiveBookingChecker) Guard { return Guard{checker: c} }

// Check returns ErrDuplicateActive when the customer already holds a
// pending or confirmed booking for the ticket.
func (g Guard) Check(ctx context.Context, userID, ticketID uint64) error {
	exists, err := g.checker.HasActiveBooking(ctx, userID, ticketID)
	if err != nil {
		return fmt.Errorf("check active booking: %w", err)
	}
	if exists {
		return ErrDuplicateActive
	}
	return nil
}

// mapInsertError translates a storage unique violation on the active
// booking key into ErrDuplicateActive.  It reports retry=true for a
// booking reference collision.
func mapInsertError(err error) (retry bool, mapped error) {
	var uv *UniqueViolation
	if !errors.As(err, &uv) {
		return false, err
	}
	switch uv.Constraint {
	case ConstraintReference:
		return true, err
	case ConstraintActiveBooking:
		return false, ErrDuplicateActive
	}
	return false, err
}
