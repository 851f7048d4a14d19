package booking

import (
	"fmt"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// DefaultCancelReason is recorded when a customer cancels without a reason.
const DefaultCancelReason = "Cancelled by customer"

// CheckPayable reports whether a payment may be attempted for b.
func CheckPayable(b *model.Booking) error {
	switch b.Status {
	case model.BookingPending:
		return nil
	case model.BookingConfirmed:
		return ErrAlreadyConfirmed
	case model.BookingCancelled:
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("booking %d: %w", b.ID, model.ErrUnknownValue)
}

// CheckCancellable reports whether b may be cancelled by its customer.
// Confirmed bookings are a dead end on this path.
func CheckCancellable(b *model.Booking) error {
	switch b.Status {
	case model.BookingPending:
		return nil
	case model.BookingConfirmed:
		return ErrCannotCancelConfirmed
	case model.BookingCancelled:
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("booking %d: %w", b.ID, model.ErrUnknownValue)
}

// Confirm moves a pending booking to confirmed.
func Confirm(b *model.Booking, now time.Time) error {
	if err := CheckPayable(b); err != nil {
		return err
	}
	b.Status = model.BookingConfirmed
	b.ConfirmedAt = &now
	return nil
}

// Cancel moves a pending booking to cancelled.  The caller releases the
// inventory in the same transaction.
func Cancel(b *model.Booking, reason string, now time.Time) error {
	if err := CheckCancellable(b); err != nil {
		return err
	}
	if reason == "" {
		reason = DefaultCancelReason
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &now
	b.CancellationReason = &reason
	return nil
}
