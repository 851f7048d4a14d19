package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// BookingRepo serves the read side of bookings: customer and admin
// listings joined with ticket and event data.  Writes go through Store.
type BookingRepo struct {
	db *sqlx.DB
}

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingFilter narrows a booking listing.  A zero UserID lists every
// customer's bookings.
type BookingFilter struct {
	UserID  uint64
	Status  model.BookingStatus
	Page    int
	PerPage int
}

const bookingDetailSelect = `SELECT
		b.id, b.user_id, b.ticket_id, b.quantity, b.total_amount, b.status, b.booking_reference,
		b.confirmed_at, b.cancelled_at, b.cancellation_reason, b.created_at, b.updated_at,
		t.type     AS ticket_type,
		e.id       AS event_id,
		e.title    AS event_title,
		e.date     AS event_date,
		e.location AS event_location,
		u.name     AS customer_name,
		u.email    AS customer_email
	FROM bookings b
	JOIN tickets t ON t.id = b.ticket_id
	JOIN events  e ON e.id = t.event_id
	JOIN users   u ON u.id = b.user_id`

// List returns one page of bookings, newest first, and the total count.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) ([]model.BookingDetail, int, error) {
	where := []string{}
	args := []any{}
	if f.UserID != 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, f.Status)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings b WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	page, perPage := NormalizePage(f.Page, f.PerPage)
	out := []model.BookingDetail{}
	err := r.db.SelectContext(ctx, &out,
		bookingDetailSelect+` WHERE `+cond+` ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetDetail returns a single booking with its ticket and event.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	var d model.BookingDetail
	if err := r.db.GetContext(ctx, &d, bookingDetailSelect+` WHERE b.id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

const MaxPerPage = 100

// NormalizePage clamps pagination input.  perPage defaults to 10.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}
