package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking records a customer's claim on some quantity of a ticket.
// TotalAmount is a snapshot of price × quantity taken at creation and is
// never recomputed from the live ticket price.
//
// Fields:
//
//	ID                 - primary key identifier.
//	UserID             - customer who made the booking.
//	TicketID           - ticket being reserved.
//	Quantity           - number of tickets (≥ 1).
//	TotalAmount        - amount due, two decimal places.
//	Status             - pending, confirmed or cancelled.
//	Reference          - unique human readable reference (BK-YYYY-XXXXXX).
//	ConfirmedAt        - set when a payment succeeds.
//	CancelledAt        - set on cancellation.
//	CancellationReason - free text supplied on cancellation.
type Booking struct {
	ID                 uint64          `db:"id"`                  // bookings.id
	UserID             uint64          `db:"user_id"`             // bookings.user_id
	TicketID           uint64          `db:"ticket_id"`           // bookings.ticket_id
	Quantity           int             `db:"quantity"`            // bookings.quantity
	TotalAmount        decimal.Decimal `db:"total_amount"`        // bookings.total_amount
	Status             BookingStatus   `db:"status"`              // bookings.status
	Reference          string          `db:"booking_reference"`   // bookings.booking_reference
	ConfirmedAt        *time.Time      `db:"confirmed_at"`        // bookings.confirmed_at (nullable)
	CancelledAt        *time.Time      `db:"cancelled_at"`        // bookings.cancelled_at (nullable)
	CancellationReason *string         `db:"cancellation_reason"` // bookings.cancellation_reason (nullable)
	CreatedAt          time.Time       `db:"created_at"`          // bookings.created_at
	UpdatedAt          time.Time       `db:"updated_at"`          // bookings.updated_at
}

// BookingDetail is a booking joined with the ticket and event it refers
// to, used by listing endpoints.
type BookingDetail struct {
	Booking
	TicketType    TicketType `db:"ticket_type"`
	EventID       uint64     `db:"event_id"`
	EventTitle    string     `db:"event_title"`
	EventDate     time.Time  `db:"event_date"`
	EventLocation string     `db:"event_location"`
	CustomerName  string     `db:"customer_name"`
	CustomerEmail string     `db:"customer_email"`
}
