package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// DeclinedMessage is returned with every declined payment.
const DeclinedMessage = "Payment declined by gateway. Please try again."

const notifyTimeout = 10 * time.Second

// Notifier is told about confirmed bookings after the confirming
// transaction has committed.  Failures are logged and never undo the
// confirmation.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b model.Booking) error
}

// Observer receives one call per core operation with its outcome label.
type Observer interface {
	BookingCreated(outcome string)
	PaymentProcessed(outcome string)
	BookingCancelled(outcome string)
}

// Config holds the tunables of the service.
type Config struct {
	// MaxPaymentAttempts caps payment attempts per booking; 0 disables the cap.
	MaxPaymentAttempts int
	// ReferenceAttempts bounds the booking reference collision retry loop.
	ReferenceAttempts int
}

// PaymentResult is returned by ProcessPayment for approvals and declines.
// Payment is always the row written for this attempt.
type PaymentResult struct {
	Success bool
	Message string
	Booking *model.Booking
	Payment *model.Payment
}

// Service composes the guard, ledger, state machine and gateway.  Every
// write it makes runs inside a single Store transaction.
type Service struct {
	store    Store
	gateway  Gateway
	notifier Notifier
	observer Observer
	refs     *ReferenceGenerator
	guard    Guard
	ledger   Ledger
	cfg      Config
	now      func() time.Time

	inflight sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

func WithReferenceGenerator(g *ReferenceGenerator) Option {
	return func(s *Service) { s.refs = g }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires the booking core.  store and gateway are required.
func NewService(store Store, gateway Gateway, cfg Config, opts ...Option) *Service {
	if store == nil || gateway == nil {
		panic("nil dependency passed to booking.NewService")
	}
	if cfg.ReferenceAttempts < 1 {
		cfg.ReferenceAttempts = 10
	}
	s := &Service{
		store:    store,
		gateway:  gateway,
		notifier: nopNotifier{},
		observer: nopObserver{},
		refs:     NewReferenceGenerator(),
		guard:    NewGuard(store),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateBooking reserves qty units of a ticket for a customer and records
// a pending booking.  Nothing is persisted on error.
func (s *Service) CreateBooking(ctx context.Context, userID, ticketID uint64, qty int) (_ *model.Booking, err error) {
	defer func() { s.observer.BookingCreated(outcomeOf(err, "created")) }()

	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if err := s.guard.Check(ctx, userID, ticketID); err != nil {
		return nil, err
	}

	var created *model.Booking
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := s.ledger.Reserve(ctx, tx, ticketID, qty)
		if err != nil {
			return err
		}
		b := &model.Booking{
			UserID:      userID,
			TicketID:    ticketID,
			Quantity:    qty,
			TotalAmount: t.Price.Mul(decimal.NewFromInt(int64(qty))),
			Status:      model.BookingPending,
		}
		if err := s.insertWithReference(ctx, tx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": created.ID,
		"reference":  created.Reference,
		"ticket_id":  ticketID,
		"quantity":   qty,
	}).Info("booking created")
	return created, nil
}

func (s *Service) insertWithReference(ctx context.Context, tx Tx, b *model.Booking) error {
	for attempt := 1; attempt <= s.cfg.ReferenceAttempts; attempt++ {
		ref, err := s.refs.Next()
		if err != nil {
			return err
		}
		b.Reference = ref
		err = tx.InsertBooking(ctx, b)
		if err == nil {
			return nil
		}
		retry, mapped := mapInsertError(err)
		if !retry {
			return mapped
		}
		logging.FromContext(ctx).WithField("attempt", attempt).Debug("booking reference collision")
	}
	return ErrReferenceExhausted
}

// ProcessPayment charges a pending booking once through the gateway.  The
// payment row and, on approval, the confirmation are written together.  A
// decline is reported through PaymentResult.Success, not as an error.
func (s *Service) ProcessPayment(ctx context.Context, bookingID uint64) (_ *PaymentResult, err error) {
	var res *PaymentResult
	defer func() {
		outcome := outcomeOf(err, "")
		if err == nil {
			outcome = string(res.Payment.Status)
		}
		s.observer.PaymentProcessed(outcome)
	}()

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := CheckPayable(b); err != nil {
			return err
		}
		if max := s.cfg.MaxPaymentAttempts; max > 0 {
			n, err := tx.CountPayments(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("count payments: %w", err)
			}
			if n >= max {
				return ErrPaymentAttemptsExceeded
			}
		}

		gr, err := s.gateway.Authorize(ctx, b.TotalAmount)
		if err != nil {
			return fmt.Errorf("authorize payment: %w", err)
		}

		now := s.now().UTC()
		p := &model.Payment{
			BookingID:       b.ID,
			Amount:          b.TotalAmount,
			Status:          model.PaymentFailed,
			PaymentMethod:   PaymentMethod,
			TransactionID:   "TXN-" + strings.ToUpper(uuid.NewString()),
			GatewayResponse: gr.Response,
		}
		res = &PaymentResult{Success: gr.Approved, Booking: b, Payment: p, Message: DeclinedMessage}
		if gr.Approved {
			p.Status = model.PaymentSuccess
			p.PaidAt = &now
			res.Message = "Payment successful. Booking confirmed!"
			if err := Confirm(b, now); err != nil {
				return err
			}
			if err := tx.UpdateBookingStatus(ctx, b); err != nil {
				return fmt.Errorf("confirm booking: %w", err)
			}
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id":     res.Booking.ID,
		"transaction_id": res.Payment.TransactionID,
		"status":         res.Payment.Status,
	})
	log.Info("payment processed")
	if res.Success {
		s.notifyConfirmed(ctx, *res.Booking)
	}
	return res, nil
}

// notifyConfirmed hands the booking to the notifier on its own goroutine
// with a context that outlives the request.
func (s *Service) notifyConfirmed(ctx context.Context, b model.Booking) {
	log := logging.FromContext(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.notifier.NotifyBookingConfirmed(ctx, b); err != nil {
			log.WithError(err).WithField("booking_id", b.ID).Warn("booking confirmation notification failed")
		}
	}()
}

// Drain waits for in-flight confirmation notifications to finish.  It
// returns ctx.Err() if ctx ends first.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelBooking cancels a pending booking and returns its units to the
// ticket.  The ticket row is locked before the booking row, the same order
// CreateBooking uses.
func (s *Service) CancelBooking(ctx context.Context, bookingID uint64, reason string) (_ *model.Booking, err error) {
	defer func() { s.observer.BookingCancelled(outcomeOf(err, "cancelled")) }()

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := CheckCancellable(current); err != nil {
		return nil, err
	}

	var cancelled *model.Booking
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockTicket(ctx, current.TicketID); err != nil {
			return err
		}
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := Cancel(b, strings.TrimSpace(reason), s.now().UTC()); err != nil {
			return err
		}
		if err := s.ledger.Release(ctx, tx, b.TicketID, b.Quantity); err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, b); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("booking_id", cancelled.ID).Info("booking cancelled")
	return cancelled, nil
}

func (s *Service) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Service) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, bookingID uint64) ([]model.Payment, error) {
	return s.store.ListPayments(ctx, bookingID)
}

// outcomeOf maps an operation error to a metric label.
func outcomeOf(err error, ok string) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, ErrDuplicateActive):
		return "duplicate_active"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPaymentAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	}
	return "error"
}

type nopNotifier struct{}

func (nopNotifier) NotifyBookingConfirmed(context.Context, model.Booking) error { return nil }

type nopObserver struct{}

func (nopObserver) BookingCreated(string)   {}
func (nopObserver) PaymentProcessed(string) {}
func (nopObserver) BookingCancelled(string) {}
