// Package metrics exposes Prometheus instrumentation for the booking service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes recorded by BookingOutcome.
const (
	OutcomeCreated          = "created"
	OutcomeReplayed         = "replayed"
	OutcomeRejectedCapacity = "rejected_capacity"
	OutcomeRejectedNotFound = "rejected_not_found"
	OutcomeCancelled        = "cancelled"
	OutcomeDeleted          = "deleted"
	OutcomeFailed           = "failed"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking lifecycle operations by outcome",
		},
		[]string{"outcome"},
	)

	ticketsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_ledger_tickets_total",
			Help: "Tickets moved through the capacity ledger",
		},
		[]string{"direction"},
	)

	invariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_invariant_violations_total",
			Help: "Ledger operations that would have left booked tickets outside [0, capacity]",
		},
		[]string{"operation"},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_rate_limited_total",
			Help: "Requests rejected by the booking rate limiter",
		},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// BookingOutcome counts one booking operation.
func BookingOutcome(outcome string) {
	bookingOperations.WithLabelValues(outcome).Inc()
}

// TicketsReserved counts tickets added to event counters.
func TicketsReserved(n int) {
	ticketsMoved.WithLabelValues("reserved").Add(float64(n))
}

// TicketsReleased counts tickets returned to event counters.
func TicketsReleased(n int) {
	ticketsMoved.WithLabelValues("released").Add(float64(n))
}

// InvariantViolation counts a data-integrity alarm raised by the ledger.
func InvariantViolation(operation string) {
	invariantViolations.WithLabelValues(operation).Inc()
}

// RateLimited counts a request turned away by the rate limiter.
func RateLimited() {
	rateLimited.Inc()
}

// ObserveHTTP records the latency of one HTTP request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
