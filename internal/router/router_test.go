package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const secret = "router-secret"

func newServer() *echo.Echo {
	e := echo.New()
	Register(e, Handlers{
		Health:   &handler.HealthHandler{},
		Auth:     &handler.AuthHandler{},
		Events:   &handler.EventHandler{},
		Tickets:  &handler.TicketHandler{},
		Bookings: &handler.BookingHandler{},
		Payments: &handler.PaymentHandler{},
	}, middleware.NewResponseCache(config.CacheConfig{}, nil), secret)
	return e
}

func TestRoutesAreRegistered(t *testing.T) {
	e := newServer()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/logout",
		"GET /v1/me",
		"GET /v1/events",
		"GET /v1/events/:id",
		"POST /v1/events",
		"PUT /v1/events/:id",
		"DELETE /v1/events/:id",
		"POST /v1/events/:id/tickets",
		"PUT /v1/tickets/:id",
		"DELETE /v1/tickets/:id",
		"POST /v1/tickets/:id/bookings",
		"GET /v1/bookings",
		"GET /v1/bookings/:id",
		"PUT /v1/bookings/:id/cancel",
		"POST /v1/bookings/:id/payment",
		"GET /v1/payments/:id",
		"GET /v1/admin/bookings",
	} {
		assert.True(t, got[want], want)
	}
}

func TestRoleGates(t *testing.T) {
	e := newServer()
	cases := []struct {
		method, path string
		role         model.Role
	}{
		{http.MethodPost, "/v1/events", model.RoleCustomer},
		{http.MethodDelete, "/v1/tickets/1", model.RoleCustomer},
		{http.MethodPost, "/v1/tickets/1/bookings", model.RoleOrganizer},
		{http.MethodGet, "/v1/bookings", model.RoleAdmin},
		{http.MethodPost, "/v1/bookings/1/payment", model.RoleOrganizer},
		{http.MethodGet, "/v1/admin/bookings", model.RoleCustomer},
	}
	for _, tc := range cases {
		tok, err := utils.NewAccessToken(secret, 7, tc.role, 5)
		require.NoError(t, err)
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as %s", tc.method, tc.path, tc.role)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type revokeAll struct{}

func (revokeAll) IsRevoked(context.Context, string) (bool, error) { return true, nil }

func TestRevokedTokensAreRefusedOnEveryGroup(t *testing.T) {
	e := echo.New()
	Register(e, Handlers{
		Health:      &handler.HealthHandler{},
		Auth:        &handler.AuthHandler{},
		Events:      &handler.EventHandler{},
		Tickets:     &handler.TicketHandler{},
		Bookings:    &handler.BookingHandler{},
		Payments:    &handler.PaymentHandler{},
		Revocations: revokeAll{},
	}, middleware.NewResponseCache(config.CacheConfig{}, nil), secret)

	cases := []struct {
		method, path string
		role         model.Role
	}{
		{http.MethodGet, "/v1/me", model.RoleCustomer},
		{http.MethodPost, "/v1/auth/logout", model.RoleCustomer},
		{http.MethodPost, "/v1/events", model.RoleOrganizer},
		{http.MethodGet, "/v1/bookings", model.RoleCustomer},
		{http.MethodGet, "/v1/admin/bookings", model.RoleAdmin},
	}
	for _, tc := range cases {
		tok, err := utils.NewAccessToken(secret, 7, tc.role, 5)
		require.NoError(t, err)
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}
