package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/booking"
)

// PaymentHandler runs and shows payment attempts.
type PaymentHandler struct {
	Svc    *booking.Service
	Policy booking.Policy
}

func NewPaymentHandler(svc *booking.Service) *PaymentHandler {
	if svc == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Svc: svc}
}

// Pay handles POST /v1/bookings/:id/payment.  An approved payment confirms
// the booking and answers 200; a decline answers 422 and leaves the
// booking pending.  The payment record is returned in both cases.
func (h *PaymentHandler) Pay(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	b, err := h.Svc.GetBooking(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionPayBooking, b.UserID); err != nil {
		return respond(c, err)
	}
	res, err := h.Svc.ProcessPayment(ctx, id)
	switch {
	case errors.Is(err, booking.ErrAlreadyConfirmed):
		return errorJSON(c, http.StatusUnprocessableEntity, "This booking has already been paid.")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return errorJSON(c, http.StatusUnprocessableEntity, "Cannot pay for a cancelled booking.")
	case err != nil:
		return respond(c, err)
	}
	data := echo.Map{
		"booking": toBookingResp(*res.Booking),
		"payment": toPaymentResp(*res.Payment),
	}
	if !res.Success {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": res.Message, "data": data})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": res.Message, "data": data})
}

// Get handles GET /v1/payments/:id.  Customers see payments of their own
// bookings only.
func (h *PaymentHandler) Get(c echo.Context) error {
	caller, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	p, err := h.Svc.GetPayment(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	b, err := h.Svc.GetBooking(ctx, p.BookingID)
	if err != nil {
		return respond(c, err)
	}
	if err := h.Policy.Authorize(caller, booking.ActionViewPayment, b.UserID); err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toPaymentResp(*p)})
}
