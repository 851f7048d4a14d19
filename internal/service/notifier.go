// Package service publishes booking domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/queue"
)

// ErrNotifierClosed is returned by publishes attempted after Close.
var ErrNotifierClosed = errors.New("rabbitmq: notifier closed")

// DetailLoader loads a booking joined with its ticket, event and customer.
type DetailLoader interface {
	GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error)
}

// publishFunc sends one message body to the confirmation queue.
type publishFunc func(ctx context.Context, body []byte, correlationID string) error

// AMQPNotifier publishes a BookingConfirmedEvent for every confirmed
// booking.  It keeps one channel open and re-dials after a failure.
type AMQPNotifier struct {
	cfg     config.BrokerConfig
	details DetailLoader
	publish publishFunc

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewAMQPNotifier(cfg config.BrokerConfig, details DetailLoader) *AMQPNotifier {
	if details == nil {
		panic("nil DetailLoader")
	}
	n := &AMQPNotifier{cfg: cfg, details: details}
	n.publish = n.publishAMQP
	return n
}

// NotifyBookingConfirmed publishes the confirmation of booking b as a
// persistent JSON message.
func (n *AMQPNotifier) NotifyBookingConfirmed(ctx context.Context, b model.Booking) error {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": b.ID, "queue": n.cfg.Queue})

	d, err := n.details.GetDetail(ctx, b.ID)
	if err != nil {
		monitoring.TrackNotification("publish", "error")
		return fmt.Errorf("load booking %d: %w", b.ID, err)
	}
	corr := logging.CorrelationIDFromContext(ctx)
	body, err := json.Marshal(queue.NewBookingConfirmedEvent(*d, corr))
	if err != nil {
		monitoring.TrackNotification("publish", "error")
		return err
	}
	if err := n.publish(ctx, body, corr); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		monitoring.TrackNotification("publish", "error")
		return err
	}
	monitoring.TrackNotification("publish", "ok")
	log.Debug("booking confirmation published")
	return nil
}

func (n *AMQPNotifier) publishAMQP(ctx context.Context, body []byte, correlationID string) error {
	if n.cfg.URL == "" {
		return errors.New("rabbitmq: broker disabled")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // store on disk
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}
	// Default exchange, routing key = queue name.
	if err := ch.PublishWithContext(ctx, "", n.cfg.Queue, false, false, pub); err != nil {
		n.reset()
		return err
	}
	return nil
}

// channel returns the open channel, dialling when there is none.  The
// caller holds n.mu.
func (n *AMQPNotifier) channel() (*amqp.Channel, error) {
	if n.closed {
		return nil, ErrNotifierClosed
	}
	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}
	n.reset()

	conn, err := amqp.Dial(n.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(n.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	n.conn, n.ch = conn, ch
	return ch, nil
}

func (n *AMQPNotifier) reset() {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
	n.conn, n.ch = nil, nil
}

// Close releases the broker connection.  Later publishes fail with
// ErrNotifierClosed instead of dialling again.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.reset()
	return nil
}
