package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const eventColumns = `id, title, description, date, location, status, created_by, created_at, updated_at, deleted_at`

const summarySelect = `SELECT e.id, e.title, e.description, e.date, e.location, e.status, e.created_by,
        e.created_at, e.updated_at, e.deleted_at,
        u.name  AS organizer_name,
        u.email AS organizer_email,
        (SELECT COUNT(*) FROM tickets t WHERE t.event_id = e.id AND t.deleted_at IS NULL) AS tickets_count
 FROM events e
 JOIN users u ON u.id = e.created_by`

// EventRepo manages persistence for events.  Deleted events are hidden
// from every read.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EventFilter defines filters and pagination for the public listing.
// Search matches the title, Location is a substring match.
type EventFilter struct {
	Search   string
	Location string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PerPage  int
}

// Create inserts e and populates its ID and DB defaults.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	if e.Status == "" {
		e.Status = model.EventPublished
	}
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO events (title, description, date, location, status, created_by)
		 VALUES (:title, :description, :date, :location, :status, :created_by)`, e)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return r.db.GetContext(ctx, e, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
}

// GetByID returns a non-deleted event.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	if err := r.db.GetContext(ctx, &e,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND deleted_at IS NULL`, id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// GetWithOrganizer loads a live event together with its organizer's name
// and email.
func (r *EventRepo) GetWithOrganizer(ctx context.Context, id uint64) (*model.EventSummary, error) {
	var e model.EventSummary
	if err := r.db.GetContext(ctx, &e, summarySelect+` WHERE e.id = ? AND e.deleted_at IS NULL`, id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// Update writes the mutable columns of e.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE events SET title = :title, description = :description, date = :date,
		        location = :location, status = :status
		 WHERE id = :id AND deleted_at IS NULL`, e)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		// MySQL reports 0 for an unchanged row, so confirm it exists.
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
	}
	return r.db.GetContext(ctx, e, `SELECT `+eventColumns+` FROM events WHERE id = ?`, e.ID)
}

// SoftDelete marks the event and its tickets as deleted.  The event and
// ticket rows are locked first; while any ticket has pending or confirmed
// bookings nothing is deleted and ErrConflict is returned.
func (r *EventRepo) SoftDelete(ctx context.Context, id uint64) error {
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
		`SELECT id FROM events WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, id); err != nil {
		return notFound(err)
	}
	ticketIDs := []uint64{}
	if err := tx.SelectContext(ctx, &ticketIDs,
		`SELECT id FROM tickets WHERE event_id = ? AND deleted_at IS NULL ORDER BY id FOR UPDATE`, id); err != nil {
		return err
	}
	if len(ticketIDs) > 0 {
		q, args, err := sqlx.In(
			`SELECT COUNT(*) FROM bookings WHERE ticket_id IN (?) AND status IN ('pending','confirmed')`, ticketIDs)
		if err != nil {
			return err
		}
		var active int
		if err := tx.GetContext(ctx, &active, tx.Rebind(q), args...); err != nil {
			return err
		}
		if active > 0 {
			return ErrConflict
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE events SET deleted_at = UTC_TIMESTAMP() WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets SET deleted_at = UTC_TIMESTAMP() WHERE event_id = ? AND deleted_at IS NULL`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// conditions renders the WHERE clause of the public listing.  Date bounds
// compare calendar days so that date_to includes events later that day.
func (f EventFilter) conditions() (string, []any) {
	where := []string{"e.deleted_at IS NULL", "e.status = 'published'"}
	args := []any{}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "LOWER(e.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		where = append(where, "LOWER(e.location) LIKE ?")
		args = append(args, "%"+strings.ToLower(l)+"%")
	}
	if f.DateFrom != nil {
		where = append(where, "DATE(e.date) >= ?")
		args = append(args, f.DateFrom.UTC().Format(time.DateOnly))
	}
	if f.DateTo != nil {
		where = append(where, "DATE(e.date) <= ?")
		args = append(args, f.DateTo.UTC().Format(time.DateOnly))
	}
	return strings.Join(where, " AND "), args
}

// ListPublished returns one page of published events ordered by date and
// the total number of matches.
func (r *EventRepo) ListPublished(ctx context.Context, f EventFilter) ([]model.EventSummary, int, error) {
	cond, args := f.conditions()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events e WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	page, perPage := NormalizePage(f.Page, f.PerPage)
	out := []model.EventSummary{}
	err := r.db.SelectContext(ctx, &out,
		summarySelect+` WHERE `+cond+`
		 ORDER BY e.date ASC, e.id ASC
		 LIMIT ? OFFSET ?`,
		append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
