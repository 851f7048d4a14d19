package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrUnknownValue is returned when a string does not name a member of one of
// the closed enumerations below.  Callers at the HTTP and storage
// boundaries should wrap it into a 400 or an internal error respectively.
var ErrUnknownValue = errors.New("unknown enum value")

// scanString normalises the driver representations of an ENUM/VARCHAR
// column into a Go string.
func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("%w: NULL", ErrUnknownValue)
	}
	return "", fmt.Errorf("%w: unsupported type %T", ErrUnknownValue, src)
}

func unknown(kind, v string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownValue, kind, v)
}

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleCustomer  Role = "customer"
)

// ParseRole accepts only the three known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleOrganizer, RoleCustomer:
		return r, nil
	}
	return "", unknown("role", s)
}

func (r *Role) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*r, err = ParseRole(s)
	return err
}

func (r Role) Value() (driver.Value, error) { return string(r), nil }

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

func ParseEventStatus(s string) (EventStatus, error) {
	switch st := EventStatus(s); st {
	case EventDraft, EventPublished, EventCancelled:
		return st, nil
	}
	return "", unknown("event status", s)
}

func (s *EventStatus) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseEventStatus(v)
	return err
}

func (s EventStatus) Value() (driver.Value, error) { return string(s), nil }

// TicketType is the tier of a ticket offering.
type TicketType string

const (
	TicketVIP       TicketType = "VIP"
	TicketStandard  TicketType = "Standard"
	TicketEconomy   TicketType = "Economy"
	TicketEarlyBird TicketType = "Early Bird"
)

func ParseTicketType(s string) (TicketType, error) {
	switch t := TicketType(s); t {
	case TicketVIP, TicketStandard, TicketEconomy, TicketEarlyBird:
		return t, nil
	}
	return "", unknown("ticket type", s)
}

func (t *TicketType) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	*t, err = ParseTicketType(v)
	return err
}

func (t TicketType) Value() (driver.Value, error) { return string(t), nil }

// BookingStatus is the lifecycle state of a booking.  Pending is the only
// non-terminal state.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return st, nil
	}
	return "", unknown("booking status", s)
}

// Active reports whether the status occupies the (user, ticket) slot.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (s *BookingStatus) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseBookingStatus(v)
	return err
}

func (s BookingStatus) Value() (driver.Value, error) { return string(s), nil }

// PaymentStatus is the outcome recorded for a payment attempt.  Refunded is
// reserved for a refund flow that does not exist yet.
type PaymentStatus string

const (
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentSuccess, PaymentFailed, PaymentRefunded:
		return st, nil
	}
	return "", unknown("payment status", s)
}

func (s *PaymentStatus) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParsePaymentStatus(v)
	return err
}

func (s PaymentStatus) Value() (driver.Value, error) { return string(s), nil }
