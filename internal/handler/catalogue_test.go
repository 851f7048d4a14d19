package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[uint64]*model.User
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, other := range f.users {
		if other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = uint64(len(f.users) + 1)
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, booking.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeTokens struct{ revoked map[string]uint64 }

func (f *fakeTokens) Revoke(_ context.Context, userID uint64, tokenID string, _ time.Time) error {
	f.revoked[tokenID] = userID
	return nil
}

func (f *fakeTokens) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := f.revoked[tokenID]
	return ok, nil
}

func TestRegisterLoginMe(t *testing.T) {
	users := &fakeUsers{users: map[uint64]*model.User{}}
	tokens := &fakeTokens{revoked: map[string]uint64{}}
	h := NewAuthHandler(config.Config{JWTSecret: testSecret, AccessTTLMin: 5, BcryptCost: 4}, users, tokens)
	e := echo.New()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	auth := middleware.JWTAuthWithRevocations(testSecret, tokens)
	e.GET("/v1/me", h.Me, auth)
	e.POST("/v1/auth/logout", h.Logout, auth)

	code, body := call(t, e, http.MethodPost, "/v1/auth/register", "",
		`{"name":"Ada","email":" Ada@Example.com ","password":"secret123","role":"organizer"}`)
	require.Equal(t, http.StatusCreated, code, body)
	registered := dataOf(t, body)["access"].(map[string]any)["token"].(string)
	user := dataOf(t, body)["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "organizer", user["role"])
	assert.NotContains(t, user, "password_hash")

	code, body = call(t, e, http.MethodPost, "/v1/auth/register", "",
		`{"name":"Ada","email":"ada@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, code, body)

	code, _ = call(t, e, http.MethodPost, "/v1/auth/register", "",
		`{"name":"Eve","email":"eve@example.com","password":"secret123","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, e, http.MethodPost, "/v1/auth/register", "",
		`{"name":"Eve","email":"eve@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password must be at least 8 characters", body["error"])

	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":"ada@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":"nobody@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":"ADA@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, code, body)
	token := dataOf(t, body)["access"].(map[string]any)["token"].(string)

	code, body = call(t, e, http.MethodGet, "/v1/me", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ada", dataOf(t, body)["name"])

	code, _ = call(t, e, http.MethodPost, "/v1/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = call(t, e, http.MethodPost, "/v1/auth/logout", token, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Logged out successfully.", body["message"])
	assert.Len(t, tokens.revoked, 1)

	code, body = call(t, e, http.MethodGet, "/v1/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token revoked", body["error"])
	code, _ = call(t, e, http.MethodPost, "/v1/auth/logout", token, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	// only the token that logged out is revoked
	code, _ = call(t, e, http.MethodGet, "/v1/me", registered, "")
	assert.Equal(t, http.StatusOK, code)
}

type fakeEvents struct {
	events    map[uint64]*model.Event
	deleteErr error
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	e.ID = uint64(len(f.events) + 1)
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	e, ok := f.events[id]
	if !ok || e.DeletedAt != nil {
		return nil, booking.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) GetWithOrganizer(ctx context.Context, id uint64) (*model.EventSummary, error) {
	e, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.EventSummary{Event: *e, OrganizerName: "Org", OrganizerEmail: "org@example.com"}, nil
}

func (f *fakeEvents) Update(_ context.Context, e *model.Event) error {
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeEvents) SoftDelete(_ context.Context, id uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	now := time.Now()
	f.events[id].DeletedAt = &now
	return nil
}

func (f *fakeEvents) ListPublished(_ context.Context, flt repository.EventFilter) ([]model.EventSummary, int, error) {
	out := []model.EventSummary{}
	for id := uint64(1); id <= uint64(len(f.events)); id++ {
		e := f.events[id]
		if e.DeletedAt != nil || e.Status != model.EventPublished {
			continue
		}
		if flt.Search != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(flt.Search)) {
			continue
		}
		out = append(out, model.EventSummary{Event: *e, OrganizerName: "Org", OrganizerEmail: "org@example.com"})
	}
	return out, len(out), nil
}

type fakeTickets struct {
	tickets   map[uint64]*model.Ticket
	events    *fakeEvents
	deleteErr error
}

func (f *fakeTickets) Create(_ context.Context, t *model.Ticket) error {
	t.ID = uint64(len(f.tickets) + 1)
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) ListByEvent(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	out := []model.Ticket{}
	for id := uint64(1); id <= uint64(len(f.tickets)); id++ {
		if t := f.tickets[id]; t.EventID == eventID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTickets) Update(_ context.Context, t *model.Ticket) error {
	if t.Quantity < f.tickets[t.ID].QuantitySold {
		return repository.ErrQuantityBelowSold
	}
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTickets) Delete(context.Context, uint64) error { return f.deleteErr }

func (f *fakeTickets) EventOwner(ctx context.Context, ticketID uint64) (uint64, error) {
	t, err := f.GetByID(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	return f.events.events[t.EventID].CreatedBy, nil
}

type recordingCache struct{ scopes []string }

func (r *recordingCache) Invalidate(_ context.Context, scopes ...string) error {
	r.scopes = append(r.scopes, scopes...)
	return nil
}

type catalogueAPI struct {
	e       *echo.Echo
	events  *fakeEvents
	tickets *fakeTickets
	cache   *recordingCache
}

func newCatalogueAPI(t *testing.T) catalogueAPI {
	t.Helper()
	events := &fakeEvents{events: map[uint64]*model.Event{}}
	tickets := &fakeTickets{tickets: map[uint64]*model.Ticket{}, events: events}
	cache := &recordingCache{}
	eh := NewEventHandler(events, tickets, cache)
	eh.now = func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }
	th := NewTicketHandler(events, tickets, cache)

	e := echo.New()
	e.GET("/v1/events", eh.List)
	e.GET("/v1/events/:id", eh.Get)
	g := e.Group("/v1", middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	g.POST("/events", eh.Create)
	g.PUT("/events/:id", eh.Update)
	g.DELETE("/events/:id", eh.Delete)
	g.POST("/events/:id/tickets", th.Create)
	g.PUT("/tickets/:id", th.Update)
	g.DELETE("/tickets/:id", th.Delete)
	return catalogueAPI{e: e, events: events, tickets: tickets, cache: cache}
}

func TestEventLifecycle(t *testing.T) {
	api := newCatalogueAPI(t)
	owner := tokenFor(t, orgID, model.RoleOrganizer)
	other := tokenFor(t, orgID+1, model.RoleOrganizer)

	code, body := call(t, api.e, http.MethodPost, "/v1/events", owner,
		`{"title":"Jazz Night","date":"2026-05-01T20:00:00Z","location":"Blue Hall"}`)
	require.Equal(t, http.StatusCreated, code, body)
	id := uint64(dataOf(t, body)["id"].(float64))
	assert.Equal(t, "published", dataOf(t, body)["status"])
	assert.Equal(t, []string{ScopeEventList}, api.cache.scopes)

	code, _ = call(t, api.e, http.MethodPost, "/v1/events", owner,
		`{"title":"Past","date":"2020-01-01","location":"Hall"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, api.e, http.MethodPost, "/v1/events", tokenFor(t, customerA, model.RoleCustomer),
		`{"title":"Nope","date":"2026-05-01","location":"Hall"}`)
	assert.Equal(t, http.StatusForbidden, code)

	path := fmt.Sprintf("/v1/events/%d", id)
	code, body = call(t, api.e, http.MethodPut, path, other, `{"title":"Hijack"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden. You can only update your own events.", body["error"])

	code, body = call(t, api.e, http.MethodPut, path, tokenFor(t, adminID, model.RoleAdmin), `{"title":"Jazz Night II","status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = call(t, api.e, http.MethodPut, path, owner, `{"title":"Jazz Night II"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Jazz Night II", dataOf(t, body)["title"])

	code, body = call(t, api.e, http.MethodGet, "/v1/events?search=jazz", "", "")
	require.Equal(t, http.StatusOK, code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Org", rows[0].(map[string]any)["organizer"].(map[string]any)["name"])
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["last_page"])

	code, _ = call(t, api.e, http.MethodGet, "/v1/events?date_from=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	api.events.deleteErr = repository.ErrConflict
	code, body = call(t, api.e, http.MethodDelete, path, owner, "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Cannot delete event with active bookings.", body["error"])
	code, _ = call(t, api.e, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, api.cache.scopes, 2)

	api.events.deleteErr = nil
	code, _ = call(t, api.e, http.MethodDelete, path, owner, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, api.e, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Len(t, api.cache.scopes, 3)
}

func TestTicketManagement(t *testing.T) {
	api := newCatalogueAPI(t)
	owner := tokenFor(t, orgID, model.RoleOrganizer)
	require.NoError(t, api.events.Create(context.Background(), &model.Event{
		Title: "Rock Fest", Location: "Arena", Status: model.EventPublished, CreatedBy: orgID,
		Date: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
	}))

	code, body := call(t, api.e, http.MethodPost, "/v1/events/1/tickets", owner,
		`{"type":"Early Bird","price":"19.5","quantity":100}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "19.50", dataOf(t, body)["price"])
	assert.Equal(t, float64(100), dataOf(t, body)["available"])

	code, _ = call(t, api.e, http.MethodPost, "/v1/events/1/tickets", owner, `{"type":"Balcony","price":10,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, api.e, http.MethodPost, "/v1/events/1/tickets", tokenFor(t, orgID+1, model.RoleOrganizer),
		`{"type":"VIP","price":10,"quantity":1}`)
	assert.Equal(t, http.StatusForbidden, code)

	api.tickets.tickets[1].QuantitySold = 40
	code, body = call(t, api.e, http.MethodPut, "/v1/tickets/1", owner, `{"quantity":30}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Quantity cannot be lower than tickets already sold.", body["error"])

	code, body = call(t, api.e, http.MethodPut, "/v1/tickets/1", owner, `{"quantity":40,"price":25}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(0), dataOf(t, body)["available"])
	assert.Equal(t, "25.00", dataOf(t, body)["price"])

	require.NoError(t, api.tickets.Create(context.Background(), &model.Ticket{
		EventID: 1, Type: model.TicketStandard, Price: decimal.RequireFromString("30"), Quantity: 50, QuantitySold: 10,
	}))
	code, body = call(t, api.e, http.MethodGet, "/v1/events/1", "", "")
	require.Equal(t, http.StatusOK, code)
	detail := dataOf(t, body)
	listed := detail["tickets"].([]any)
	require.Len(t, listed, 1)
	assert.Equal(t, "Standard", listed[0].(map[string]any)["type"])
	assert.Equal(t, float64(40), listed[0].(map[string]any)["available"])
	assert.Equal(t, "org@example.com", detail["organizer"].(map[string]any)["email"])

	api.tickets.deleteErr = repository.ErrConflict
	code, body = call(t, api.e, http.MethodDelete, "/v1/tickets/1", owner, "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Cannot delete ticket with active bookings.", body["error"])

	api.tickets.deleteErr = nil
	code, _ = call(t, api.e, http.MethodDelete, "/v1/tickets/1", owner, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, api.e, http.MethodDelete, "/v1/tickets/99", owner, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTPStatusAndMessage(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&booking.InventoryError{Available: 0}, http.StatusUnprocessableEntity, "Sorry, this ticket is sold out."},
		{fmt.Errorf("reserve: %w", &booking.InventoryError{Available: 3}), http.StatusUnprocessableEntity, "Only 3 tickets available."},
		{booking.ErrAlreadyConfirmed, http.StatusUnprocessableEntity, "Booking is already confirmed."},
		{booking.ErrPaymentAttemptsExceeded, http.StatusUnprocessableEntity, "Payment attempt limit reached for this booking."},
		{booking.ErrNotFound, http.StatusNotFound, "Resource not found."},
		{booking.ErrForbidden, http.StatusForbidden, "Forbidden."},
		{badInput("title is required"), http.StatusBadRequest, "title is required"},
		{fmt.Errorf("%w: role %q", model.ErrUnknownValue, "root"), http.StatusBadRequest, `unknown enum value: role "root"`},
		{booking.ErrReferenceExhausted, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.msg, Message(tc.err), tc.err.Error())
	}
}

func TestPageMeta(t *testing.T) {
	assert.Equal(t, pageMeta{CurrentPage: 1, PerPage: 10, Total: 0, LastPage: 1}, newPageMeta(1, 10, 0))
	assert.Equal(t, 3, newPageMeta(2, 10, 21).LastPage)
}

func TestTicketReqRoundsPrice(t *testing.T) {
	price := decimal.RequireFromString("10.005")
	var tk model.Ticket
	require.NoError(t, ticketReq{Price: &price}.apply(&tk, false))
	assert.Equal(t, "10.01", tk.Price.StringFixed(2))
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e := echo.New()
	healthy := NewHealthHandler(pingFunc(func(context.Context) error { return nil }))
	down := NewHealthHandler(pingFunc(func(context.Context) error { return context.DeadlineExceeded }))
	e.GET("/healthz", healthy.Health)
	e.GET("/down", down.Health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/down", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
