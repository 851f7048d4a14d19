package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// Invalidator drops cached responses stored under the given scopes.
type Invalidator interface {
	Invalidate(ctx context.Context, scopes ...string) error
}

// ScopeEventList is the cache scope of the public event listing.
const ScopeEventList = "events:list"

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...string) error { return nil }

func invalidate(ctx context.Context, inv Invalidator, scopes ...string) {
	if err := inv.Invalidate(ctx, scopes...); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache invalidation failed")
	}
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// identity returns the authenticated caller set by middleware.JWTAuth.
func identity(c echo.Context) (booking.Identity, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return booking.Identity{}, false
	}
	role, ok := middleware.Role(c)
	if !ok {
		return booking.Identity{}, false
	}
	return booking.Identity{UserID: id, Role: role}, true
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return errorJSON(c, http.StatusUnauthorized, "unauthorized")
}

// respond writes err using HTTPStatus and Message.  Internal errors are
// logged and hidden from the client.
func respond(c echo.Context, err error) error {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
	}
	return errorJSON(c, status, Message(err))
}

// badInput is a request validation failure.
type badInput string

func (e badInput) Error() string { return string(e) }

// HTTPStatus maps an error from any layer to its response status.
func HTTPStatus(err error) int {
	var bad badInput
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &bad), errors.Is(err, model.ErrUnknownValue):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidQuantity),
		errors.Is(err, booking.ErrInsufficientInventory),
		errors.Is(err, booking.ErrDuplicateActive),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrPaymentAttemptsExceeded),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrQuantityBelowSold):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Message returns the client facing text for err.
func Message(err error) string {
	var (
		inv *booking.InventoryError
		bad badInput
	)
	switch {
	case errors.As(err, &bad):
		return string(bad)
	case errors.As(err, &inv):
		if inv.Available == 0 {
			return "Sorry, this ticket is sold out."
		}
		return fmt.Sprintf("Only %d tickets available.", inv.Available)
	case errors.Is(err, booking.ErrInsufficientInventory):
		return "Not enough tickets available."
	case errors.Is(err, booking.ErrDuplicateActive):
		return "You already have an active booking for this ticket."
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return "Booking is already cancelled."
	case errors.Is(err, booking.ErrCannotCancelConfirmed):
		return "Confirmed bookings cannot be cancelled. Please contact support."
	case errors.Is(err, booking.ErrAlreadyConfirmed):
		return "Booking is already confirmed."
	case errors.Is(err, booking.ErrInvalidTransition):
		return "Booking cannot change to that status."
	case errors.Is(err, booking.ErrPaymentAttemptsExceeded):
		return "Payment attempt limit reached for this booking."
	case errors.Is(err, booking.ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, repository.ErrConflict):
		return "Cannot delete ticket with active bookings."
	case errors.Is(err, repository.ErrQuantityBelowSold):
		return "Quantity cannot be lower than tickets already sold."
	case errors.Is(err, repository.ErrEmailExists):
		return "email already exists"
	case errors.Is(err, booking.ErrNotFound):
		return "Resource not found."
	case errors.Is(err, booking.ErrForbidden):
		return "Forbidden."
	case errors.Is(err, model.ErrUnknownValue):
		return err.Error()
	}
	return "internal server error"
}

// pageMeta describes one page of a listing.
type pageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

func newPageMeta(page, perPage, total int) pageMeta {
	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	return pageMeta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}

// pagination reads ?page and ?per_page, using defPerPage when per_page is
// absent.
func pagination(c echo.Context, defPerPage int) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, err := strconv.Atoi(c.QueryParam("per_page"))
	if err != nil {
		perPage = defPerPage
	}
	return repository.NormalizePage(page, perPage)
}

// parseTime accepts RFC 3339, "2006-01-02 15:04:05" and "2006-01-02".
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// ----- response DTOs -----

type userResp struct {
	ID    uint64     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Phone *string    `json:"phone,omitempty"`
	Role  model.Role `json:"role"`
}

func toUserResp(u *model.User) userResp {
	return userResp{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

type ticketResp struct {
	ID           uint64           `json:"id"`
	EventID      uint64           `json:"event_id"`
	Type         model.TicketType `json:"type"`
	Price        string           `json:"price"`
	Quantity     int              `json:"quantity"`
	QuantitySold int              `json:"quantity_sold"`
	Available    int              `json:"available"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toTicketResp(t model.Ticket) ticketResp {
	return ticketResp{
		ID:           t.ID,
		EventID:      t.EventID,
		Type:         t.Type,
		Price:        t.Price.StringFixed(2),
		Quantity:     t.Quantity,
		QuantitySold: t.QuantitySold,
		Available:    t.Available(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type personResp struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type eventResp struct {
	ID           uint64            `json:"id"`
	Title        string            `json:"title"`
	Description  *string           `json:"description"`
	Date         time.Time         `json:"date"`
	Location     string            `json:"location"`
	Status       model.EventStatus `json:"status"`
	CreatedBy    uint64            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Organizer    *personResp       `json:"organizer,omitempty"`
	TicketsCount *int              `json:"tickets_count,omitempty"`
	Tickets      []ticketResp      `json:"tickets,omitempty"`
}

func toEventResp(e model.Event) eventResp {
	return eventResp{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		Status:      e.Status,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toEventSummaryResp(s model.EventSummary) eventResp {
	r := toEventResp(s.Event)
	r.Organizer = &personResp{ID: s.CreatedBy, Name: s.OrganizerName, Email: s.OrganizerEmail}
	count := s.TicketsCount
	r.TicketsCount = &count
	return r
}

type bookingResp struct {
	ID                 uint64              `json:"id"`
	UserID             uint64              `json:"user_id"`
	TicketID           uint64              `json:"ticket_id"`
	Quantity           int                 `json:"quantity"`
	TotalAmount        string              `json:"total_amount"`
	Status             model.BookingStatus `json:"status"`
	Reference          string              `json:"booking_reference"`
	ConfirmedAt        *time.Time          `json:"confirmed_at"`
	CancelledAt        *time.Time          `json:"cancelled_at"`
	CancellationReason *string             `json:"cancellation_reason"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:                 b.ID,
		UserID:             b.UserID,
		TicketID:           b.TicketID,
		Quantity:           b.Quantity,
		TotalAmount:        b.TotalAmount.StringFixed(2),
		Status:             b.Status,
		Reference:          b.Reference,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

type bookingDetailResp struct {
	bookingResp
	Ticket struct {
		ID   uint64           `json:"id"`
		Type model.TicketType `json:"type"`
	} `json:"ticket"`
	Event struct {
		ID       uint64    `json:"id"`
		Title    string    `json:"title"`
		Date     time.Time `json:"date"`
		Location string    `json:"location"`
	} `json:"event"`
	Customer *personResp   `json:"customer,omitempty"`
	Payments []paymentResp `json:"payments,omitempty"`
}

// toBookingDetailResp renders d; the customer block is included for admin
// listings only.
func toBookingDetailResp(d model.BookingDetail, withCustomer bool) bookingDetailResp {
	r := bookingDetailResp{bookingResp: toBookingResp(d.Booking)}
	r.Ticket.ID = d.TicketID
	r.Ticket.Type = d.TicketType
	r.Event.ID = d.EventID
	r.Event.Title = d.EventTitle
	r.Event.Date = d.EventDate
	r.Event.Location = d.EventLocation
	if withCustomer {
		r.Customer = &personResp{ID: d.UserID, Name: d.CustomerName, Email: d.CustomerEmail}
	}
	return r
}

type paymentResp struct {
	ID              uint64                `json:"id"`
	BookingID       uint64                `json:"booking_id"`
	Amount          string                `json:"amount"`
	Status          model.PaymentStatus   `json:"status"`
	PaymentMethod   string                `json:"payment_method"`
	TransactionID   string                `json:"transaction_id"`
	GatewayResponse model.GatewayResponse `json:"gateway_response"`
	PaidAt          *time.Time            `json:"paid_at"`
	RefundedAt      *time.Time            `json:"refunded_at"`
	CreatedAt       time.Time             `json:"created_at"`
}

func toPaymentResp(p model.Payment) paymentResp {
	return paymentResp{
		ID:              p.ID,
		BookingID:       p.BookingID,
		Amount:          p.Amount.StringFixed(2),
		Status:          p.Status,
		PaymentMethod:   p.PaymentMethod,
		TransactionID:   p.TransactionID,
		GatewayResponse: p.GatewayResponse,
		PaidAt:          p.PaidAt,
		RefundedAt:      p.RefundedAt,
		CreatedAt:       p.CreatedAt,
	}
}
