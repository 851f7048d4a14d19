package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketHandler manages the ticket offerings of an event.
type TicketHandler struct {
	Events  EventStore
	Tickets TicketStore
	Cache   Invalidator
	Policy  booking.Policy
}

// NewTicketHandler wires the handler.  cache may be nil.
func NewTicketHandler(events EventStore, tickets TicketStore, cache Invalidator) *TicketHandler {
	if events == nil || tickets == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &TicketHandler{Events: events, Tickets: tickets, Cache: cache}
}

type ticketReq struct {
	Type     *string          `json:"type"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

func (req ticketReq) apply(t *model.Ticket, create bool) error {
	if create && (req.Type == nil || req.Price == nil || req.Quantity == nil) {
		return badInput("type, price and quantity are required")
	}
	if req.Type != nil {
		tt, err := model.ParseTicketType(strings.TrimSpace(*req.Type))
		if err != nil {
			return err
		}
		t.Type = tt
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return badInput("price must not be negative")
		}
		t.Price = req.Price.Round(2)
	}
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return badInput("quantity must be at least 1")
		}
		t.Quantity = *req.Quantity
	}
	return nil
}

// Create handles POST /v1/events/:id/tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req ticketReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionManageTicket, e.CreatedBy); err != nil {
		return errorJSON(c, http.StatusForbidden, "Forbidden. You can only add tickets to your own events.")
	}
	t := &model.Ticket{EventID: eventID}
	if err := req.apply(t, true); err != nil {
		return respond(c, err)
	}
	if err := h.Tickets.Create(ctx, t); err != nil {
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Ticket created successfully.",
		"data":    toTicketResp(*t),
	})
}

// Update handles PUT /v1/tickets/:id.  The quantity may not drop below what
// has already been sold.
func (h *TicketHandler) Update(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req ticketReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	owner, err := h.Tickets.EventOwner(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionManageTicket, owner); err != nil {
		return errorJSON(c, http.StatusForbidden, "Forbidden. You can only update tickets for your own events.")
	}
	t, err := h.Tickets.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := req.apply(t, false); err != nil {
		return respond(c, err)
	}
	if err := h.Tickets.Update(ctx, t); err != nil {
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Ticket updated successfully.",
		"data":    toTicketResp(*t),
	})
}

// Delete handles DELETE /v1/tickets/:id.  Tickets with pending or
// confirmed bookings cannot be deleted.
func (h *TicketHandler) Delete(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	owner, err := h.Tickets.EventOwner(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionManageTicket, owner); err != nil {
		return errorJSON(c, http.StatusForbidden, "Forbidden. You can only delete tickets for your own events.")
	}
	if err := h.Tickets.Delete(ctx, id); err != nil {
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusOK, echo.Map{"message": "Ticket deleted successfully."})
}
