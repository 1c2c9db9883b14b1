package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubsched",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by status.",
		},
		[]string{"status"},
	)

	reservationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubsched",
			Name:      "reservation_rejected_total",
			Help:      "Count of rejected booking attempts by reason.",
		},
		[]string{"reason"},
	)

	statusTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubsched",
			Name:      "status_transition_total",
			Help:      "Count of reservation status transitions.",
		},
		[]string{"target"},
	)

	slotQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clubsched",
			Name:      "slot_queries_total",
			Help:      "Count of open-slot listings served.",
		},
	)

	bookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clubsched",
			Name:      "book_duration_seconds",
			Help:      "Latency of booking attempts including lock wait.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, reservationRejected, statusTransition, slotQueries, bookDuration)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncReservationRejected(reason string) {
	reservationRejected.WithLabelValues(reason).Inc()
}

func IncStatusTransition(target string) {
	statusTransition.WithLabelValues(target).Inc()
}

func IncSlotQueries() {
	slotQueries.Inc()
}

func ObserveBookDuration(seconds float64) {
	bookDuration.Observe(seconds)
}
