package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticket is a purchasable allotment of capacity for an event at a fixed
// price.  QuantitySold is the running reservation counter and only moves
// together with a booking write; 0 ≤ QuantitySold ≤ Quantity.
type Ticket struct {
	ID           uint64          `db:"id"`            // tickets.id
	EventID      uint64          `db:"event_id"`      // tickets.event_id
	Type         TicketType      `db:"type"`          // tickets.type
	Price        decimal.Decimal `db:"price"`         // tickets.price DECIMAL(12,2)
	Quantity     int             `db:"quantity"`      // tickets.quantity
	QuantitySold int             `db:"quantity_sold"` // tickets.quantity_sold
	CreatedAt    time.Time       `db:"created_at"`    // tickets.created_at
	UpdatedAt    time.Time       `db:"updated_at"`    // tickets.updated_at
	DeletedAt    *time.Time      `db:"deleted_at"`    // tickets.deleted_at (nullable)
}

// Available returns the capacity not yet reserved.
func (t Ticket) Available() int {
	if n := t.Quantity - t.QuantitySold; n > 0 {
		return n
	}
	return 0
}
