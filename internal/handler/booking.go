package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// BookingLister serves the read side of bookings.
type BookingLister interface {
	List(ctx context.Context, f repository.BookingFilter) ([]model.BookingDetail, int, error)
	GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error)
}

// BookingHandler exposes the booking lifecycle to customers and admins.
type BookingHandler struct {
	Svc      *booking.Service
	Bookings BookingLister
	Policy   booking.Policy
}

func NewBookingHandler(svc *booking.Service, bookings BookingLister) *BookingHandler {
	if svc == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc, Bookings: bookings}
}

type createBookingReq struct {
	Quantity int `json:"quantity"`
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

// Create handles POST /v1/tickets/:id/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	ticketID, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := h.Policy.Authorize(caller, booking.ActionCreateBooking, caller.UserID); err != nil {
		return respond(c, err)
	}

	b, err := h.Svc.CreateBooking(c.Request().Context(), caller.UserID, ticketID, req.Quantity)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Booking created successfully. Please proceed to payment.",
		"data":    toBookingResp(*b),
	})
}

// List handles GET /v1/bookings: the caller's own bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	f := repository.BookingFilter{UserID: caller.UserID}
	return h.list(c, f, 10, false)
}

// AdminList handles GET /v1/admin/bookings.  ?user_id narrows the list to
// one customer.
func (h *BookingHandler) AdminList(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Policy.Authorize(caller, booking.ActionListAllBookings, 0); err != nil {
		return respond(c, err)
	}
	var f repository.BookingFilter
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid user_id")
		}
		f.UserID = id
	}
	return h.list(c, f, 15, true)
}

func (h *BookingHandler) list(c echo.Context, f repository.BookingFilter, defPerPage int, withCustomer bool) error {
	if raw := c.QueryParam("status"); raw != "" {
		st, err := model.ParseBookingStatus(strings.ToLower(raw))
		if err != nil {
			return respond(c, err)
		}
		f.Status = st
	}
	f.Page, f.PerPage = pagination(c, defPerPage)

	ctx, cancel := withTimeout(c)
	defer cancel()

	rows, total, err := h.Bookings.List(ctx, f)
	if err != nil {
		return respond(c, err)
	}
	out := make([]bookingDetailResp, 0, len(rows))
	for _, d := range rows {
		out = append(out, toBookingDetailResp(d, withCustomer))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": out,
		"meta": newPageMeta(f.Page, f.PerPage, total),
	})
}

// Get handles GET /v1/bookings/:id with the booking's payment attempts.
func (h *BookingHandler) Get(c echo.Context) error {
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

	d, err := h.Bookings.GetDetail(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionViewBooking, d.UserID); err != nil {
		return respond(c, err)
	}
	payments, err := h.Svc.ListPayments(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	resp := toBookingDetailResp(*d, caller.Role == model.RoleAdmin)
	resp.Payments = make([]paymentResp, 0, len(payments))
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": resp})
}

// Cancel handles PUT /v1/bookings/:id/cancel.  Only pending bookings can
// be cancelled; their tickets return to the pool.
func (h *BookingHandler) Cancel(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req cancelBookingReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	b, err := h.Svc.GetBooking(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionCancelBooking, b.UserID); err != nil {
		return respond(c, err)
	}
	cancelled, err := h.Svc.CancelBooking(ctx, id, req.Reason)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Booking cancelled successfully.",
		"data":    toBookingResp(*cancelled),
	})
}
