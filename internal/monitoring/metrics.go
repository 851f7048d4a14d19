package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	paymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Payment attempts by outcome (success, failed or an error label)",
		},
		[]string{"outcome"},
	)

	bookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_notifications_total",
			Help: "Booking confirmation messages by stage and result",
		},
		[]string{"stage", "result"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Recorder feeds booking outcomes into the counters above.  It satisfies
// booking.Observer.
type Recorder struct{}

func NewRecorder() Recorder { return Recorder{} }

func (Recorder) BookingCreated(outcome string)   { bookingsCreated.WithLabelValues(outcome).Inc() }
func (Recorder) PaymentProcessed(outcome string) { paymentsProcessed.WithLabelValues(outcome).Inc() }
func (Recorder) BookingCancelled(outcome string) { bookingsCancelled.WithLabelValues(outcome).Inc() }

// TrackNotification counts a publish or consume of a booking message.
func TrackNotification(stage, result string) {
	notifications.WithLabelValues(stage, result).Inc()
}

// ObserveHTTP records the latency of one request.  route is the echo
// route pattern, not the raw path.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
