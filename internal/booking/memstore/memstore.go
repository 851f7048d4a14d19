// Package memstore is an in-memory booking.Store.  Transactions are
// serialized by a single mutex and rolled back by restoring a snapshot,
// so it keeps the same atomicity and unique-key behaviour as the MySQL
// store.  It backs the service and handler tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/model"
)

type state struct {
	tickets  map[uint64]model.Ticket
	bookings map[uint64]model.Booking
	payments map[uint64]model.Payment
	seq      uint64
}

func (s state) clone() state {
	return state{
		tickets:  maps.Clone(s.tickets),
		bookings: maps.Clone(s.bookings),
		payments: maps.Clone(s.payments),
		seq:      s.seq,
	}
}

// Store implements booking.Store.  The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	data state
	now  func() time.Time
}

func New() *Store {
	return &Store{
		data: state{
			tickets:  map[uint64]model.Ticket{},
			bookings: map[uint64]model.Booking{},
			payments: map[uint64]model.Payment{},
		},
		now: time.Now,
	}
}

func (s *Store) nextID() uint64 {
	s.data.seq++
	return s.data.seq
}

// PutTicket stores t, assigning an ID when t.ID is zero, and returns the ID.
func (s *Store) PutTicket(t model.Ticket) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.data.tickets[t.ID] = t
	return t.ID
}

// PutBooking stores b as is, assigning an ID when b.ID is zero.  Unique
// keys are not checked.
func (s *Store) PutBooking(b model.Booking) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID()
	}
	s.data.bookings[b.ID] = b
	return b.ID
}

// Ticket returns a copy of the ticket with the given id.
func (s *Store) Ticket(id uint64) (model.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tickets[id]
	return t, ok
}

// Bookings returns every stored booking ordered by ID.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.data.bookings, func(b model.Booking) uint64 { return b.ID })
}

// Payments returns every stored payment ordered by ID.
func (s *Store) Payments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.data.payments, func(p model.Payment) uint64 { return p.ID })
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) HasActiveBooking(_ context.Context, userID, ticketID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBooking(userID, ticketID, 0), nil
}

func (s *Store) activeBooking(userID, ticketID, exceptID uint64) bool {
	for _, b := range s.data.bookings {
		if b.ID != exceptID && b.UserID == userID && b.TicketID == ticketID && b.Status.Active() {
			return true
		}
	}
	return false
}

func (s *Store) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return &b, nil
}

func (s *Store) GetPayment(_ context.Context, id uint64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.payments[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, bookingID uint64) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Payment{}
	for _, p := range sortedValues(s.data.payments, func(p model.Payment) uint64 { return p.ID }) {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

// tx runs with Store.mu held by WithTx.
type tx struct {
	s *Store
}

func (t *tx) LockTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	tk, ok := t.s.data.tickets[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return &tk, nil
}

func (t *tx) AdjustSold(_ context.Context, ticketID uint64, delta int) error {
	tk, ok := t.s.data.tickets[ticketID]
	if !ok {
		return booking.ErrNotFound
	}
	sold := tk.QuantitySold + delta
	if sold < 0 || sold > tk.Quantity {
		return booking.ErrInsufficientInventory
	}
	tk.QuantitySold = sold
	tk.UpdatedAt = t.s.now()
	t.s.data.tickets[ticketID] = tk
	return nil
}

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	for _, other := range t.s.data.bookings {
		if other.Reference == b.Reference {
			return &booking.UniqueViolation{
				Constraint: booking.ConstraintReference,
				Err:        fmt.Errorf("duplicate booking reference %q", b.Reference),
			}
		}
	}
	if b.Status.Active() && t.s.activeBooking(b.UserID, b.TicketID, 0) {
		return &booking.UniqueViolation{
			Constraint: booking.ConstraintActiveBooking,
			Err:        fmt.Errorf("active booking exists for user %d ticket %d", b.UserID, b.TicketID),
		}
	}
	now := t.s.now()
	b.ID = t.s.nextID()
	b.CreatedAt, b.UpdatedAt = now, now
	t.s.data.bookings[b.ID] = *b
	return nil
}

func (t *tx) LockBooking(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.s.data.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return &b, nil
}

func (t *tx) UpdateBookingStatus(_ context.Context, b *model.Booking) error {
	cur, ok := t.s.data.bookings[b.ID]
	if !ok {
		return booking.ErrNotFound
	}
	if b.Status.Active() && t.s.activeBooking(cur.UserID, cur.TicketID, cur.ID) {
		return &booking.UniqueViolation{Constraint: booking.ConstraintActiveBooking, Err: fmt.Errorf("booking %d", b.ID)}
	}
	cur.Status = b.Status
	cur.ConfirmedAt = b.ConfirmedAt
	cur.CancelledAt = b.CancelledAt
	cur.CancellationReason = b.CancellationReason
	cur.UpdatedAt = t.s.now()
	t.s.data.bookings[b.ID] = cur
	b.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *tx) CountPayments(_ context.Context, bookingID uint64) (int, error) {
	n := 0
	for _, p := range t.s.data.payments {
		if p.BookingID == bookingID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertPayment(_ context.Context, p *model.Payment) error {
	if _, ok := t.s.data.bookings[p.BookingID]; !ok {
		return fmt.Errorf("payment for unknown booking %d", p.BookingID)
	}
	now := t.s.now()
	p.ID = t.s.nextID()
	p.CreatedAt, p.UpdatedAt = now, now
	t.s.data.payments[p.ID] = *p
	return nil
}

func sortedValues[V any](m map[uint64]V, id func(V) uint64) []V {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b V) int { return cmp.Compare(id(a), id(b)) })
	return out
}
