package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/model"
)

const (
	ticketColumns = `id, event_id, type, price, quantity, quantity_sold, created_at, updated_at, deleted_at`

	bookingColumns = `id, user_id, ticket_id, quantity, total_amount, status, booking_reference,
		confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

	paymentColumns = `id, booking_id, amount, status, payment_method, transaction_id, gateway_response,
		paid_at, refunded_at, created_at, updated_at`
)

// Store is the MySQL implementation of booking.Store.  Row locks are
// taken with SELECT ... FOR UPDATE and held until the transaction ends.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// WithTx begins a transaction, runs fn and commits when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) HasActiveBooking(ctx context.Context, userID, ticketID uint64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE user_id = ? AND ticket_id = ? AND status IN ('pending','confirmed'))`,
		userID, ticketID)
	return exists, err
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	var p model.Payment
	if err := s.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, bookingID uint64) ([]model.Payment, error) {
	out := []model.Payment{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY id`, bookingID)
	return out, err
}

type storeTx struct {
	tx *sqlx.Tx
}

func (t *storeTx) LockTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var tk model.Ticket
	if err := t.tx.GetContext(ctx, &tk, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &tk, nil
}

// AdjustSold applies delta only when the result stays within
// [0, quantity].  Zero affected rows means the bound would be crossed.
func (t *storeTx) AdjustSold(ctx context.Context, ticketID uint64, delta int) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE tickets SET quantity_sold = quantity_sold + ?
		 WHERE id = ? AND quantity_sold + ? >= 0 AND quantity_sold + ? <= quantity`,
		delta, ticketID, delta, delta)
	if err != nil {
		return fmt.Errorf("adjust sold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrInsufficientInventory
	}
	return nil
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := t.tx.NamedExecContext(ctx,
		`INSERT INTO bookings (user_id, ticket_id, quantity, total_amount, status, booking_reference)
		 VALUES (:user_id, :ticket_id, :quantity, :total_amount, :status, :booking_reference)`, b)
	if err != nil {
		return uniqueViolation(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return t.tx.GetContext(ctx, b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

func (t *storeTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := t.tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (t *storeTx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	_, err := t.tx.NamedExecContext(ctx,
		`UPDATE bookings SET status = :status, confirmed_at = :confirmed_at,
		        cancelled_at = :cancelled_at, cancellation_reason = :cancellation_reason
		 WHERE id = :id`, b)
	if err != nil {
		return uniqueViolation(err)
	}
	// reload so updated_at reflects the ON UPDATE value
	return t.tx.GetContext(ctx, b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, b.ID)
}

func (t *storeTx) CountPayments(ctx context.Context, bookingID uint64) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM payments WHERE booking_id = ?`, bookingID)
	return n, err
}

func (t *storeTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	res, err := t.tx.NamedExecContext(ctx,
		`INSERT INTO payments (booking_id, amount, status, payment_method, transaction_id, gateway_response, paid_at)
		 VALUES (:booking_id, :amount, :status, :payment_method, :transaction_id, :gateway_response, :paid_at)`, p)
	if err != nil {
		return uniqueViolation(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return t.tx.GetContext(ctx, p, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}
