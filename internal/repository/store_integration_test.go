package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

var (
	db     *sqlx.DB
	dbErr  error
	dbOnce sync.Once
)

// getDb connects to MYSQL_TEST_DSN once per test binary and skips the
// test when it is not set.
func getDb(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	dbOnce.Do(func() {
		db, dbErr = database.OpenDSN(dsn)
		if dbErr == nil {
			dbErr = database.Migrate(context.Background(), db)
		}
	})
	require.NoError(t, dbErr)
	return db
}

type seed struct {
	organizer *model.User
	event     *model.Event
	ticket    *model.Ticket
}

func seedTicket(t *testing.T, db *sqlx.DB, quantity int) seed {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepo(db)

	org := &model.User{Name: "Org", Email: shortuuid.New() + "@example.com", PasswordHash: "x", Role: model.RoleOrganizer}
	require.NoError(t, users.Create(ctx, org))

	ev := &model.Event{Title: "Concert " + shortuuid.New(), Date: time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second), Location: "Hall A", CreatedBy: org.ID}
	require.NoError(t, repository.NewEventRepo(db).Create(ctx, ev))

	tk := &model.Ticket{EventID: ev.ID, Type: model.TicketStandard, Price: decimal.RequireFromString("25.50"), Quantity: quantity}
	require.NoError(t, repository.NewTicketRepo(db).Create(ctx, tk))
	return seed{organizer: org, event: ev, ticket: tk}
}

func newCustomer(t *testing.T, db *sqlx.DB) uint64 {
	t.Helper()
	u := &model.User{Name: "Customer", Email: shortuuid.New() + "@example.com", PasswordHash: "x", Role: model.RoleCustomer}
	require.NoError(t, repository.NewUserRepo(db).Create(context.Background(), u))
	return u.ID
}

func TestStoreBookingLifecycle(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 10)
	customer := newCustomer(t, db)
	svc := booking.NewService(repository.NewStore(db), booking.NewSimulator(1), booking.Config{MaxPaymentAttempts: 5})
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, customer, s.ticket.ID, 4)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("102.00").Equal(b.TotalAmount))

	_, err = svc.CreateBooking(ctx, customer, s.ticket.ID, 1)
	assert.ErrorIs(t, err, booking.ErrDuplicateActive)

	res, err := svc.ProcessPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.BookingConfirmed, res.Booking.Status)

	payments, err := svc.ListPayments(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "00", payments[0].GatewayResponse.Code)

	detail, err := repository.NewBookingRepo(db).GetDetail(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, s.event.Title, detail.EventTitle)
	assert.Equal(t, model.TicketStandard, detail.TicketType)
	assert.Equal(t, detail.UpdatedAt, res.Booking.UpdatedAt)
	assert.False(t, res.Booking.UpdatedAt.Before(b.UpdatedAt))
	require.NotNil(t, res.Booking.ConfirmedAt)
	assert.Equal(t, *detail.ConfirmedAt, *res.Booking.ConfirmedAt)

	tk, err := repository.NewTicketRepo(db).GetByID(ctx, s.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, tk.QuantitySold)

	assert.ErrorIs(t, repository.NewTicketRepo(db).Delete(ctx, s.ticket.ID), repository.ErrConflict)
}

func TestStoreActiveSlotAllowsRebookingAfterCancel(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 10)
	customer := newCustomer(t, db)
	svc := booking.NewService(repository.NewStore(db), booking.NewSimulator(0), booking.Config{})
	ctx := context.Background()

	for i := range 3 {
		b, err := svc.CreateBooking(ctx, customer, s.ticket.ID, 1)
		require.NoError(t, err, "round %d", i)
		_, err = svc.CancelBooking(ctx, b.ID, "")
		require.NoError(t, err, "round %d", i)
	}
	tk, err := repository.NewTicketRepo(db).GetByID(ctx, s.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tk.QuantitySold)
}

func TestStoreConcurrentBookingsNeverOversell(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 5)
	svc := booking.NewService(repository.NewStore(db), booking.NewSimulator(1), booking.Config{})

	customers := make([]uint64, 20)
	for i := range customers {
		customers[i] = newCustomer(t, db)
	}

	var ok atomic.Int32
	var g errgroup.Group
	for _, c := range customers {
		g.Go(func() error {
			_, err := svc.CreateBooking(context.Background(), c, s.ticket.ID, 1)
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, booking.ErrInsufficientInventory) {
				return nil
			}
			return fmt.Errorf("customer %d: %w", c, err)
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(5), ok.Load())

	tk, err := repository.NewTicketRepo(db).GetByID(context.Background(), s.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, tk.QuantitySold)
}

func TestStoreUniqueKeyBackstop(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 10)
	customer := newCustomer(t, db)
	store := repository.NewStore(db)
	ctx := context.Background()

	insert := func(ref string) error {
		return store.WithTx(ctx, func(ctx context.Context, tx booking.Tx) error {
			return tx.InsertBooking(ctx, &model.Booking{
				UserID: customer, TicketID: s.ticket.ID, Quantity: 1,
				TotalAmount: decimal.NewFromInt(1), Status: model.BookingPending, Reference: ref,
			})
		})
	}
	require.NoError(t, insert("BK-T-"+shortuuid.New()[:10]))

	var uv *booking.UniqueViolation
	require.ErrorAs(t, insert("BK-T-"+shortuuid.New()[:10]), &uv)
	assert.Equal(t, booking.ConstraintActiveBooking, uv.Constraint)
}

func TestEventListingFilters(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 1)
	repo := repository.NewEventRepo(db)

	events, total, err := repo.ListPublished(context.Background(), repository.EventFilter{Search: s.event.Title, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, s.event.ID, events[0].ID)

	require.NoError(t, repo.SoftDelete(context.Background(), s.event.ID))
	_, total, err = repo.ListPublished(context.Background(), repository.EventFilter{Search: s.event.Title})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestEventListingDateBoundsCoverWholeDay(t *testing.T) {
	db := getDb(t)
	s := seedTicket(t, db, 1)
	repo := repository.NewEventRepo(db)
	ctx := context.Background()

	s.event.Date = time.Date(2031, 3, 14, 19, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, s.event))

	day := time.Date(2031, 3, 14, 0, 0, 0, 0, time.UTC)
	_, total, err := repo.ListPublished(ctx, repository.EventFilter{Search: s.event.Title, DateFrom: &day, DateTo: &day})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	before := day.AddDate(0, 0, -1)
	_, total, err = repo.ListPublished(ctx, repository.EventFilter{Search: s.event.Title, DateTo: &before})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestEventDeleteRefusedWithActiveBookings(t *testing.T) {
	db := getDb(t)
	svc := booking.NewService(repository.NewStore(db), booking.NewSimulator(1), booking.Config{})
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	ctx := context.Background()

	pending := seedTicket(t, db, 10)
	b, err := svc.CreateBooking(ctx, newCustomer(t, db), pending.ticket.ID, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, events.SoftDelete(ctx, pending.event.ID), repository.ErrConflict)
	_, err = events.GetByID(ctx, pending.event.ID)
	require.NoError(t, err)
	_, err = tickets.GetByID(ctx, pending.ticket.ID)
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, b.ID, "")
	require.NoError(t, err)
	require.NoError(t, events.SoftDelete(ctx, pending.event.ID))
	_, err = tickets.GetByID(ctx, pending.ticket.ID)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.ErrorIs(t, events.SoftDelete(ctx, pending.event.ID), booking.ErrNotFound)

	confirmed := seedTicket(t, db, 10)
	b, err = svc.CreateBooking(ctx, newCustomer(t, db), confirmed.ticket.ID, 1)
	require.NoError(t, err)
	_, err = svc.ProcessPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, events.SoftDelete(ctx, confirmed.event.ID), repository.ErrConflict)
	tk, err := tickets.GetByID(ctx, confirmed.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tk.QuantitySold)
}

func TestTokenRevocation(t *testing.T) {
	db := getDb(t)
	tokens := repository.NewTokenRepo(db)
	user := newCustomer(t, db)
	ctx := context.Background()
	id, other := uuid.NewString(), uuid.NewString()

	require.NoError(t, tokens.Revoke(ctx, user, id, time.Now().Add(time.Hour)))
	require.NoError(t, tokens.Revoke(ctx, user, id, time.Now().Add(time.Hour)))

	revoked, err := tokens.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = tokens.IsRevoked(ctx, other)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, tokens.Revoke(ctx, user, other, time.Now().Add(-time.Minute)))
	revoked, err = tokens.IsRevoked(ctx, other)
	require.NoError(t, err)
	assert.False(t, revoked, "expired rows are purged")
}
