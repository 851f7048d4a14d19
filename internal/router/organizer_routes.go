package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterOrganizer registers event and ticket management under /v1.
// Organizers manage their own events; admins manage any.  Ownership is
// checked by the handlers.
func RegisterOrganizer(e *echo.Echo, ev *handler.EventHandler, tk *handler.TicketHandler, auth echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		auth,
		middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin),
	)
	g.POST("/events", ev.Create)
	g.PUT("/events/:id", ev.Update)
	g.DELETE("/events/:id", ev.Delete)

	g.POST("/events/:id/tickets", tk.Create)
	g.PUT("/tickets/:id", tk.Update)
	g.DELETE("/tickets/:id", tk.Delete)
}
