package model

import "time"

// Event is a scheduled happening published by an organizer.  Tickets
// belong to an event.  Only published events are visible in the public
// listing.
//
// Fields:
//
//	ID          - primary key identifier.
//	Title       - event title, searchable.
//	Description - optional long description.
//	Date        - when the event takes place.
//	Location    - free text venue, filterable.
//	Status      - draft, published or cancelled.
//	CreatedBy   - organizer (users.id) who owns the event.
//	DeletedAt   - soft delete marker.
type Event struct {
	ID          uint64      `db:"id"`          // events.id
	Title       string      `db:"title"`       // events.title
	Description *string     `db:"description"` // events.description (nullable)
	Date        time.Time   `db:"date"`        // events.date
	Location    string      `db:"location"`    // events.location
	Status      EventStatus `db:"status"`      // events.status
	CreatedBy   uint64      `db:"created_by"`  // events.created_by
	CreatedAt   time.Time   `db:"created_at"`  // events.created_at
	UpdatedAt   time.Time   `db:"updated_at"`  // events.updated_at
	DeletedAt   *time.Time  `db:"deleted_at"`  // events.deleted_at (nullable)
}

// EventSummary is an event row as shown in the public listing, with its
// organizer and the number of ticket types on sale.
type EventSummary struct {
	Event
	OrganizerName  string `db:"organizer_name"`
	OrganizerEmail string `db:"organizer_email"`
	TicketsCount   int    `db:"tickets_count"`
}
