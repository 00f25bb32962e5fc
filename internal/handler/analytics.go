package handler

import (
	"context"
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// AnalyticsService serves the admin reports.
type AnalyticsService interface {
	Dashboard(ctx context.Context, caller model.Caller) (*model.Dashboard, error)
	EventStats(ctx context.Context, caller model.Caller, eventID string) ([]model.EventStats, error)
}

// AnalyticsHandler holds the admin report handlers.
type AnalyticsHandler struct {
	svc AnalyticsService
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(svc AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Dashboard handles GET /api/analytics/dashboard
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", d)
}

// EventStats handles GET /api/analytics/events[?eventId=]
func (h *AnalyticsHandler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.EventStats(r.Context(), callerFrom(r), r.URL.Query().Get("eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, stats)
}
