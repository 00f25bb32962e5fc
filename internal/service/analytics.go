package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

const (
	dashboardRecentBookings = 10
	dashboardUpcomingEvents = 5
	dashboardRevenueMonths  = 6
)

// AnalyticsService serves the read-only admin reports.
type AnalyticsService struct {
	stats    AnalyticsStore
	bookings BookingStore
	events   EventStore
	log      *zerolog.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(stats AnalyticsStore, bookings BookingStore, events EventStore, log *zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{stats: stats, bookings: bookings, events: events, log: log, now: time.Now}
}

// Dashboard assembles the admin overview.
func (s *AnalyticsService) Dashboard(ctx context.Context, caller model.Caller) (*model.Dashboard, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	overview, byEvent, byBooking, err := s.stats.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month()-(dashboardRevenueMonths-1), 1, 0, 0, 0, 0, time.UTC)
	revenue, err := s.stats.MonthlyRevenue(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	recent, err := s.bookings.ListRecent(ctx, dashboardRecentBookings)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	upcoming, err := s.events.ListUpcoming(ctx, now, dashboardUpcomingEvents)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	return &model.Dashboard{
		Overview:         overview,
		EventsByStatus:   byEvent,
		BookingsByStatus: byBooking,
		RecentBookings:   recent,
		UpcomingEvents:   upcoming,
		MonthlyRevenue:   revenue,
	}, nil
}

// EventStats reports per-event booking figures, for one event when eventID
// is set and for every active event otherwise. Each row is checked against
// the live bookings and drift is logged as a data-integrity alarm.
func (s *AnalyticsService) EventStats(ctx context.Context, caller model.Caller, eventID string) ([]model.EventStats, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	var stats []model.EventStats
	if eventID != "" {
		if err := parseID(eventID, "Event"); err != nil {
			return nil, err
		}
		one, err := s.stats.EventStats(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("Event not found")
			}
			return nil, fmt.Errorf("event stats: %w", err)
		}
		stats = []model.EventStats{one}
	} else {
		all, err := s.stats.AllEventStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("event stats: %w", err)
		}
		stats = all
	}

	for _, st := range stats {
		if !st.Consistent() {
			metrics.InvariantViolation("audit")
			s.log.Error().
				Str("alarm", "data_integrity").
				Str("event_id", st.ID).
				Int("booked_tickets", st.BookedTickets).
				Int("active_tickets", st.ActiveTickets).
				Msg("booked tickets drifted from live bookings")
		}
	}
	return stats, nil
}
