package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketRepo manages ticket definitions.  quantity_sold is never written
// here; only the booking Store moves it.
type TicketRepo struct {
	db *sqlx.DB
}

func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// Create inserts t for its event and populates ID and defaults.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO tickets (event_id, type, price, quantity) VALUES (:event_id, :type, :price, :quantity)`, t)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return r.db.GetContext(ctx, t, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
}

// GetByID returns a non-deleted ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := r.db.GetContext(ctx, &t,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND deleted_at IS NULL`, id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListByEvent returns the non-deleted tickets of an event.
func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? AND deleted_at IS NULL ORDER BY price DESC, id`, eventID)
	return out, err
}

// Update changes type, price and quantity.  The row is locked so the
// quantity check sees the same quantity_sold the booking path does.
func (r *TicketRepo) Update(ctx context.Context, t *model.Ticket) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur model.Ticket
	if err := tx.GetContext(ctx, &cur,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, t.ID); err != nil {
		return notFound(err)
	}
	if t.Quantity < cur.QuantitySold {
		return ErrQuantityBelowSold
	}
	if _, err := tx.NamedExecContext(ctx,
		`UPDATE tickets SET type = :type, price = :price, quantity = :quantity WHERE id = :id`, t); err != nil {
		return err
	}
	if err := tx.GetContext(ctx, t, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, t.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete soft-deletes a ticket.  It returns ErrConflict while the ticket
// has pending or confirmed bookings.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	if err := tx.GetContext(ctx, &locked,
		`SELECT id FROM tickets WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, id); err != nil {
		return notFound(err)
	}
	var active int
	if err := tx.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM bookings WHERE ticket_id = ? AND status IN ('pending','confirmed')`, id); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET deleted_at = UTC_TIMESTAMP() WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// EventOwner returns created_by of the event a ticket belongs to.
func (r *TicketRepo) EventOwner(ctx context.Context, ticketID uint64) (uint64, error) {
	var owner uint64
	err := r.db.GetContext(ctx, &owner,
		`SELECT e.created_by FROM tickets t JOIN events e ON e.id = t.event_id
		 WHERE t.id = ? AND t.deleted_at IS NULL`, ticketID)
	if err != nil {
		return 0, notFound(err)
	}
	return owner, nil
}
