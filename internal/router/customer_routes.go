package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterCustomer registers the booking lifecycle under /v1.  Only
// customers create and list their bookings.  Detail, cancel and payment
// routes are also open to admins; the handlers enforce ownership for
// customers.  limit guards the writes and may be nil.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, limit, auth echo.MiddlewareFunc) {
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	own := e.Group(
		"/v1",
		auth,
		middleware.RequireRole(model.RoleCustomer),
	)
	own.POST("/tickets/:id/bookings", b.Create, limit)
	own.GET("/bookings", b.List)

	g := e.Group(
		"/v1",
		auth,
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/cancel", b.Cancel, limit)
	g.POST("/bookings/:id/payment", p.Pay, limit)
	g.GET("/payments/:id", p.Get)
}

// RegisterAdmin registers the admin booking overview.
func RegisterAdmin(e *echo.Echo, b *handler.BookingHandler, auth echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		auth,
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/bookings", b.AdminList)
}
