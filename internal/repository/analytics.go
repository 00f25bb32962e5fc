package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// AnalyticsRepository runs read-only aggregate queries.
type AnalyticsRepository struct {
	db *pgxpool.Pool
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(db *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Overview returns the dashboard counters and the status breakdowns.
func (r *AnalyticsRepository) Overview(ctx context.Context) (model.Overview, map[string]int, map[string]int, error) {
	var (
		o                      model.Overview
		activeEvents, inactive int
		pending, confirmed     int
		cancelled              int
	)
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM events WHERE is_active),
			(SELECT COUNT(*) FROM events WHERE NOT is_active),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COUNT(*) FROM bookings WHERE status = 'pending'),
			(SELECT COUNT(*) FROM bookings WHERE status = 'confirmed'),
			(SELECT COUNT(*) FROM bookings WHERE status = 'cancelled'),
			(SELECT COALESCE(SUM(total_price), 0) FROM bookings
			  WHERE status = 'confirmed' AND payment_status = 'paid'),
			(SELECT COUNT(*) FROM users WHERE is_active)`,
	).Scan(&activeEvents, &inactive, &o.TotalBookings, &pending, &confirmed, &cancelled, &o.TotalRevenue, &o.TotalUsers)
	if err != nil {
		return model.Overview{}, nil, nil, fmt.Errorf("dashboard overview: %w", err)
	}
	o.TotalEvents = activeEvents

	events := map[string]int{"active": activeEvents, "inactive": inactive}
	bookings := map[string]int{"pending": pending, "confirmed": confirmed, "cancelled": cancelled}
	return o, events, bookings, nil
}

// MonthlyRevenue returns paid revenue grouped by calendar month since a date.
func (r *AnalyticsRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]model.MonthlyRevenue, error) {
	rows, err := r.db.Query(ctx,
		`SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int,
			SUM(total_price), COUNT(*)
		 FROM bookings
		 WHERE status = 'confirmed' AND payment_status = 'paid' AND created_at >= $1
		 GROUP BY 1, 2
		 ORDER BY 1, 2`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("monthly revenue: %w", err)
	}
	defer rows.Close()

	out := []model.MonthlyRevenue{}
	for rows.Next() {
		var m model.MonthlyRevenue
		if err := rows.Scan(&m.Year, &m.Month, &m.Revenue, &m.Count); err != nil {
			return nil, fmt.Errorf("scan monthly revenue: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const eventStatsSelect = `SELECT e.id, e.title, e.capacity, e.booked_tickets,
		COUNT(b.id),
		COUNT(b.id) FILTER (WHERE b.status = 'confirmed'),
		COUNT(b.id) FILTER (WHERE b.status = 'cancelled'),
		COALESCE(SUM(b.tickets) FILTER (WHERE b.status <> 'cancelled'), 0),
		COALESCE(SUM(b.total_price) FILTER (WHERE b.status = 'confirmed'), 0)
	FROM events e
	LEFT JOIN bookings b ON b.event_id = e.id`

func scanEventStats(row scanner) (model.EventStats, error) {
	var s model.EventStats
	var revenue decimal.Decimal
	if err := row.Scan(
		&s.ID, &s.Title, &s.Capacity, &s.BookedTickets,
		&s.TotalBookings, &s.ConfirmedBookings, &s.CancelledBookings,
		&s.ActiveTickets, &revenue,
	); err != nil {
		return model.EventStats{}, err
	}
	s.Revenue = revenue
	s.AvailableTickets = s.Capacity - s.BookedTickets
	s.AttendanceRate = decimal.NewFromInt(int64(s.BookedTickets)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.Capacity))).
		StringFixed(2)
	return s, nil
}

// EventStats returns booking statistics for one event, active or not.
func (r *AnalyticsRepository) EventStats(ctx context.Context, eventID string) (model.EventStats, error) {
	s, err := scanEventStats(r.db.QueryRow(ctx,
		eventStatsSelect+` WHERE e.id = $1 GROUP BY e.id`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EventStats{}, ErrNotFound
		}
		return model.EventStats{}, fmt.Errorf("event stats: %w", err)
	}
	return s, nil
}

// AllEventStats returns statistics for every active event ordered by date.
func (r *AnalyticsRepository) AllEventStats(ctx context.Context) ([]model.EventStats, error) {
	rows, err := r.db.Query(ctx,
		eventStatsSelect+` WHERE e.is_active GROUP BY e.id ORDER BY e.event_date ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()

	out := []model.EventStats{}
	for rows.Next() {
		s, err := scanEventStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UserStats returns booking counts and spend for one user.
func (r *AnalyticsRepository) UserStats(ctx context.Context, userID string) (model.UserStats, error) {
	var s model.UserStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(total_price) FILTER (WHERE status <> 'cancelled'), 0)
		 FROM bookings WHERE user_id = $1`,
		userID,
	).Scan(&s.TotalBookings, &s.ConfirmedBookings, &s.CancelledBookings, &s.TotalSpent)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}
