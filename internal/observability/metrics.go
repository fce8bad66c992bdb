package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	PaymentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_payment_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_ledger_inconsistency_total",
			Help: "Bookings whose seats were confirmed without a durable record",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_holds_expired_total",
			Help: "Holds released by the expiry sweep",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_outbox_lag_seconds",
			Help: "Age of the oldest outbox record forwarded in the last batch",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
