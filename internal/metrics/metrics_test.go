package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingOperations.WithLabelValues(OutcomeCreated))
	BookingOutcome(OutcomeCreated)
	assert.Equal(t, before+1, testutil.ToFloat64(bookingOperations.WithLabelValues(OutcomeCreated)))

	reserved := testutil.ToFloat64(ticketsMoved.WithLabelValues("reserved"))
	TicketsReserved(4)
	assert.Equal(t, reserved+4, testutil.ToFloat64(ticketsMoved.WithLabelValues("reserved")))

	violations := testutil.ToFloat64(invariantViolations.WithLabelValues("release"))
	InvariantViolation("release")
	assert.Equal(t, violations+1, testutil.ToFloat64(invariantViolations.WithLabelValues("release")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/events", http.StatusOK, 15*time.Millisecond)
	RateLimited()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "booking_rate_limited_total")
}
