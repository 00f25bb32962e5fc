// Package model defines the core domain types for the event booking system.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingPending is a legal stored value kept for a payment step that
	// does not exist yet; the create path never produces it.
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment state attached to a booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// User is a local account mapped from an external identity.
type User struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subjectId"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Avatar    string     `json:"avatar,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UserSummary is the slice of a user embedded into other resources.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Event represents a bookable event created by an organizer.
type Event struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Date          time.Time       `json:"date"`
	Time          string          `json:"time"`
	Location      string          `json:"location"`
	Price         decimal.Decimal `json:"price"`
	Capacity      int             `json:"capacity"`
	BookedTickets int             `json:"bookedTickets"`
	Image         string          `json:"image"`
	Category      string          `json:"category,omitempty"`
	IsActive      bool            `json:"isActive"`
	OrganizerID   string          `json:"organizerId"`
	Organizer     *UserSummary    `json:"organizer,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AvailableTickets returns the number of tickets that can still be booked.
func (e *Event) AvailableTickets() int {
	return e.Capacity - e.BookedTickets
}

// IsFull returns true when no tickets remain.
func (e *Event) IsFull() bool {
	return e.BookedTickets >= e.Capacity
}

// MarshalJSON adds the derived availableTickets field.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		AvailableTickets int `json:"availableTickets"`
	}{plain(e), e.AvailableTickets()})
}

// EventSummary is the slice of an event embedded into bookings.
type EventSummary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Date     time.Time       `json:"date"`
	Time     string          `json:"time"`
	Location string          `json:"location"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"isActive"`
}

// Booking is a user's claim on a number of tickets for one event.
// TotalPrice is computed once at creation and never recomputed.
type Booking struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	EventID       string          `json:"eventId"`
	Tickets       int             `json:"tickets"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Status        BookingStatus   `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	BookingDate   time.Time       `json:"bookingDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Event *EventSummary `json:"event,omitempty"`
	User  *UserSummary  `json:"user,omitempty"`
}

// IsCancelled reports whether the booking reached its terminal state.
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingCancelled
}

// Caller is the verified identity behind a request.
type Caller struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
