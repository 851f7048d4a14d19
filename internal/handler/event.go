package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventStore is the event persistence used by EventHandler.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	GetWithOrganizer(ctx context.Context, id uint64) (*model.EventSummary, error)
	Update(ctx context.Context, e *model.Event) error
	SoftDelete(ctx context.Context, id uint64) error
	ListPublished(ctx context.Context, f repository.EventFilter) ([]model.EventSummary, int, error)
}

// TicketStore is the ticket persistence used by the event and ticket
// handlers.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
	Update(ctx context.Context, t *model.Ticket) error
	Delete(ctx context.Context, id uint64) error
	EventOwner(ctx context.Context, ticketID uint64) (uint64, error)
}

// EventHandler serves the public event catalogue and the organizer
// endpoints that manage it.
type EventHandler struct {
	Events  EventStore
	Tickets TicketStore
	Cache   Invalidator
	Policy  booking.Policy
	now     func() time.Time
}

// NewEventHandler wires the handler.  cache may be nil.
func NewEventHandler(events EventStore, tickets TicketStore, cache Invalidator) *EventHandler {
	if events == nil || tickets == nil {
		panic("nil repository passed to NewEventHandler")
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &EventHandler{Events: events, Tickets: tickets, Cache: cache, now: time.Now}
}

type eventReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Location    *string `json:"location"`
	Status      *string `json:"status"`
}

// apply validates req and copies the supplied fields onto e.  create
// requires title, date and location.
func (req eventReq) apply(e *model.Event, create bool, now time.Time) error {
	if create && (req.Title == nil || req.Date == nil || req.Location == nil) {
		return badInput("title, date and location are required")
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" || len(t) > 255 {
			return badInput("title must be 1-255 characters")
		}
		e.Title = t
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d == "" {
			e.Description = nil
		} else {
			e.Description = &d
		}
	}
	if req.Date != nil {
		d, err := parseTime(*req.Date)
		if err != nil {
			return badInput("invalid date format")
		}
		if !d.After(now) {
			return badInput("date must be in the future")
		}
		e.Date = d
	}
	if req.Location != nil {
		l := strings.TrimSpace(*req.Location)
		if l == "" || len(l) > 255 {
			return badInput("location must be 1-255 characters")
		}
		e.Location = l
	}
	if req.Status != nil {
		st, err := model.ParseEventStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		if err != nil {
			return err
		}
		e.Status = st
	}
	return nil
}

// List handles GET /v1/events: published events with optional search,
// location and date range filters, paginated and ordered by date.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.EventFilter{
		Search:   c.QueryParam("search"),
		Location: c.QueryParam("location"),
	}
	for name, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		if raw := c.QueryParam(name); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				return errorJSON(c, http.StatusBadRequest, "invalid "+name)
			}
			*dst = &t
		}
	}
	f.Page, f.PerPage = pagination(c, 10)

	ctx, cancel := withTimeout(c)
	defer cancel()

	events, total, err := h.Events.ListPublished(ctx, f)
	if err != nil {
		return respond(c, err)
	}
	out := make([]eventResp, 0, len(events))
	for _, e := range events {
		out = append(out, toEventSummaryResp(e))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": out,
		"meta": newPageMeta(f.Page, f.PerPage, total),
	})
}

// Get handles GET /v1/events/:id and includes the event's tickets with
// their live availability.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	e, err := h.Events.GetWithOrganizer(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	tickets, err := h.Tickets.ListByEvent(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	resp := toEventSummaryResp(*e)
	resp.Tickets = make([]ticketResp, 0, len(tickets))
	for _, t := range tickets {
		// sold-out tiers are not offered
		if t.Available() > 0 {
			resp.Tickets = append(resp.Tickets, toTicketResp(t))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": resp})
}

// Create handles POST /v1/events.  The caller becomes the organizer.
func (h *EventHandler) Create(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	e := &model.Event{CreatedBy: caller.UserID, Status: model.EventPublished}
	if err := req.apply(e, true, h.now()); err != nil {
		return respond(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Events.Create(ctx, e); err != nil {
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Event created successfully.",
		"data":    toEventResp(*e),
	})
}

// Update handles PUT /v1/events/:id.  Only the organizer that created the
// event, or an admin, may change it.
func (h *EventHandler) Update(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionManageEvent, e.CreatedBy); err != nil {
		return errorJSON(c, http.StatusForbidden, "Forbidden. You can only update your own events.")
	}
	if err := req.apply(e, false, h.now()); err != nil {
		return respond(c, err)
	}
	if err := h.Events.Update(ctx, e); err != nil {
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Event updated successfully.",
		"data":    toEventResp(*e),
	})
}

// Delete handles DELETE /v1/events/:id as a soft delete of the event and
// its tickets.  Events with pending or confirmed bookings are kept.
func (h *EventHandler) Delete(c echo.Context) error {
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

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionManageEvent, e.CreatedBy); err != nil {
		return errorJSON(c, http.StatusForbidden, "Forbidden. You can only delete your own events.")
	}
	if err := h.Events.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return errorJSON(c, http.StatusUnprocessableEntity, "Cannot delete event with active bookings.")
		}
		return respond(c, err)
	}
	invalidate(ctx, h.Cache, ScopeEventList)
	return c.JSON(http.StatusOK, echo.Map{"message": "Event deleted successfully."})
}
