package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Overview holds the headline numbers of the admin dashboard.
type Overview struct {
	TotalEvents   int             `json:"totalEvents"`
	TotalBookings int             `json:"totalBookings"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalUsers    int             `json:"totalUsers"`
}

// MonthlyRevenue is the paid revenue of one calendar month.
type MonthlyRevenue struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

// Dashboard is the aggregate view shown to administrators.
type Dashboard struct {
	Overview         Overview         `json:"overview"`
	EventsByStatus   map[string]int   `json:"eventsByStatus"`
	BookingsByStatus map[string]int   `json:"bookingsByStatus"`
	RecentBookings   []Booking        `json:"recentBookings"`
	UpcomingEvents   []Event          `json:"upcomingEvents"`
	MonthlyRevenue   []MonthlyRevenue `json:"monthlyRevenue"`
}

// EventStats summarises bookings and revenue for one event.
type EventStats struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Capacity          int             `json:"capacity"`
	BookedTickets     int             `json:"bookedTickets"`
	AvailableTickets  int             `json:"availableTickets"`
	TotalBookings     int             `json:"totalBookings"`
	ConfirmedBookings int             `json:"confirmedBookings"`
	CancelledBookings int             `json:"cancelledBookings"`
	ActiveTickets     int             `json:"activeTickets"`
	Revenue           decimal.Decimal `json:"revenue"`
	AttendanceRate    string          `json:"attendanceRate"`
}

// Consistent reports whether the event counter matches its live bookings.
func (s EventStats) Consistent() bool {
	return s.ActiveTickets == s.BookedTickets
}

// UserStats summarises one user's booking history.
type UserStats struct {
	TotalBookings     int             `json:"totalBookings"`
	ConfirmedBookings int             `json:"confirmedBookings"`
	CancelledBookings int             `json:"cancelledBookings"`
	TotalSpent        decimal.Decimal `json:"totalSpent"`
}

// BookingNotification is published after a booking changes state.
type BookingNotification struct {
	Type       string          `json:"type"`
	BookingID  string          `json:"bookingId"`
	EventID    string          `json:"eventId"`
	UserID     string          `json:"userId"`
	Tickets    int             `json:"tickets"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	OccurredAt time.Time       `json:"occurredAt"`
}

const (
	NotificationBookingConfirmed = "booking.confirmed"
	NotificationBookingCancelled = "booking.cancelled"
	NotificationBookingDeleted   = "booking.deleted"
)
