package booking

import (
	"context"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Store is the persistence boundary of the booking core.  Reads outside a
// transaction are advisory; every write goes through WithTx.
type Store interface {
	// WithTx runs fn inside one transaction.  The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	HasActiveBooking(ctx context.Context, userID, ticketID uint64) (bool, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	GetPayment(ctx context.Context, id uint64) (*model.Payment, error)
	ListPayments(ctx context.Context, bookingID uint64) ([]model.Payment, error)
}

// Tx is the set of row operations available inside a transaction.
// Lookups return ErrNotFound when the row does not exist.
type Tx interface {
	// LockTicket reads a ticket row and holds an exclusive lock on it until
	// the transaction ends.  Soft-deleted tickets are returned as is.
	LockTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	// AdjustSold adds delta to quantity_sold.  It must refuse, with
	// ErrInsufficientInventory, any change that would leave the counter
	// outside [0, quantity].
	AdjustSold(ctx context.Context, ticketID uint64, delta int) error

	// InsertBooking stores b and fills its ID and timestamps.  A collision
	// on a unique key is reported as *UniqueViolation.
	InsertBooking(ctx context.Context, b *model.Booking) error
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, b *model.Booking) error

	CountPayments(ctx context.Context, bookingID uint64) (int, error)
	InsertPayment(ctx context.Context, p *model.Payment) error
}
