package booking

import "github.com/iliyamo/event-ticketing/internal/model"

// Identity is the authenticated caller as supplied by the auth layer.
type Identity struct {
	UserID uint64
	Role   model.Role
}

// Action names an operation guarded by the policy.
type Action int

const (
	ActionCreateBooking Action = iota
	ActionViewBooking
	ActionCancelBooking
	ActionPayBooking
	ActionViewPayment
	ActionListAllBookings
	ActionManageEvent
	ActionManageTicket
)

// Policy is the single place that decides who may act on what.  ownerID
// is the user that owns the resource: the customer of a booking or
// payment, the organizer that created an event or its tickets.  It is
// ignored for actions that are not ownership scoped.
type Policy struct{}

// Authorize returns ErrForbidden when id may not perform action.
func (Policy) Authorize(id Identity, action Action, ownerID uint64) error {
	if allowed(id, action, ownerID) {
		return nil
	}
	return ErrForbidden
}

func allowed(id Identity, action Action, ownerID uint64) bool {
	owns := id.UserID != 0 && id.UserID == ownerID
	switch action {
	case ActionCreateBooking:
		return id.Role == model.RoleCustomer
	case ActionViewBooking, ActionCancelBooking, ActionPayBooking, ActionViewPayment:
		switch id.Role {
		case model.RoleAdmin:
			return true
		case model.RoleCustomer:
			return owns
		}
		return false
	case ActionListAllBookings:
		return id.Role == model.RoleAdmin
	case ActionManageEvent, ActionManageTicket:
		switch id.Role {
		case model.RoleAdmin:
			return true
		case model.RoleOrganizer:
			return owns
		}
		return false
	}
	return false
}
