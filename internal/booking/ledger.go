package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Ledger moves a ticket's sold counter.  Both operations must run on the
// Tx that also writes the booking they belong to.
type Ledger struct{}

// Reserve locks the ticket row, checks availability against the locked
// values and increments quantity_sold by qty.  It returns the ticket as it
// is after the increment.
func (Ledger) Reserve(ctx context.Context, tx Tx, ticketID uint64, qty int) (*model.Ticket, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	t, err := tx.LockTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if avail := t.Available(); qty > avail {
		return nil, &InventoryError{Available: avail}
	}
	if err := tx.AdjustSold(ctx, ticketID, qty); err != nil {
		return nil, fmt.Errorf("reserve %d on ticket %d: %w", qty, ticketID, err)
	}
	t.QuantitySold += qty
	return t, nil
}

// Release gives qty units back to the ticket.
func (Ledger) Release(ctx context.Context, tx Tx, ticketID uint64, qty int) error {
	if err := tx.AdjustSold(ctx, ticketID, -qty); err != nil {
		return fmt.Errorf("release %d on ticket %d: %w", qty, ticketID, err)
	}
	return nil
}
