// Package queue defines the booking messages exchanged over RabbitMQ and
// the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// BookingConfirmedEvent is published when a payment confirms a booking.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64 `json:"booking_id"`
	Reference     string `json:"booking_reference"`
	UserID        uint64 `json:"user_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	EventID       uint64 `json:"event_id"`
	EventTitle    string `json:"event_title"`
	EventDate     string `json:"event_date"`
	EventLocation string `json:"event_location"`
	TicketType    string `json:"ticket_type"`
	Quantity      int    `json:"quantity"`
	TotalAmount   string `json:"total_amount"`
	ConfirmedAt   string `json:"confirmed_at"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewBookingConfirmedEvent flattens a confirmed booking into its message.
func NewBookingConfirmedEvent(d model.BookingDetail, correlationID string) BookingConfirmedEvent {
	confirmed := ""
	if d.ConfirmedAt != nil {
		confirmed = d.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return BookingConfirmedEvent{
		BookingID:     d.ID,
		Reference:     d.Reference,
		UserID:        d.UserID,
		CustomerName:  d.CustomerName,
		CustomerEmail: d.CustomerEmail,
		EventID:       d.EventID,
		EventTitle:    d.EventTitle,
		EventDate:     d.EventDate.UTC().Format(time.RFC3339),
		EventLocation: d.EventLocation,
		TicketType:    string(d.TicketType),
		Quantity:      d.Quantity,
		TotalAmount:   d.TotalAmount.StringFixed(2),
		ConfirmedAt:   confirmed,
		CorrelationID: correlationID,
	}
}
