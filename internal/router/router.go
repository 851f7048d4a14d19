package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Events   *handler.EventHandler
	Tickets  *handler.TicketHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler

	// BookingLimit rate limits booking and payment writes per customer.
	BookingLimit echo.MiddlewareFunc
	// Revocations refuses tokens ended by logout; nil skips the check.
	Revocations middleware.RevocationChecker
}

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(monitoring.Handler()))
}

// RegisterAuth registers the register and login endpoints under /v1/auth
// and the profile and logout endpoints behind auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout, auth)

	e.GET("/v1/me", a.Me, auth)
}

// RegisterPublic registers the unauthenticated catalogue.  The event list
// is served through the response cache; event detail is not cached so
// ticket availability is always live.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler, cache *middleware.ResponseCache) {
	e.GET("/v1/events", h.List, cache.Middleware(handler.ScopeEventList))
	e.GET("/v1/events/:id", h.Get)
}

// Register wires every route group.
func Register(e *echo.Echo, h Handlers, cache *middleware.ResponseCache, jwtSecret string) {
	auth := middleware.JWTAuthWithRevocations(jwtSecret, h.Revocations)
	RegisterRoutes(e, h)
	RegisterAuth(e, h.Auth, auth)
	RegisterPublic(e, h.Events, cache)
	RegisterOrganizer(e, h.Events, h.Tickets, auth)
	RegisterCustomer(e, h.Bookings, h.Payments, h.BookingLimit, auth)
	RegisterAdmin(e, h.Bookings, auth)
}
