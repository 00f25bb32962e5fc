package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBookingRequest is the payload for reserving tickets.
type CreateBookingRequest struct {
	EventID string `json:"eventId" validate:"required,uuid"`
	Tickets int    `json:"tickets" validate:"required,min=1"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	Time        string          `json:"time" validate:"required,max=20"`
	Location    string          `json:"location" validate:"required,max=300"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Capacity    int             `json:"capacity" validate:"required,min=1"`
	Image       string          `json:"image" validate:"required"`
	Category    string          `json:"category" validate:"max=100"`
}

// UpdateEventRequest is the allow-list of event fields a client may patch.
// Booked tickets and the organizer are not representable here.
type UpdateEventRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,min=1"`
	Date        *time.Time       `json:"date"`
	Time        *string          `json:"time" validate:"omitempty,min=1,max=20"`
	Location    *string          `json:"location" validate:"omitempty,min=1,max=300"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Capacity    *int             `json:"capacity" validate:"omitempty,min=1"`
	Image       *string          `json:"image" validate:"omitempty,min=1"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	IsActive    *bool            `json:"isActive"`
}

// Empty reports whether the patch changes nothing.
func (r UpdateEventRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Date == nil && r.Time == nil &&
		r.Location == nil && r.Price == nil && r.Capacity == nil && r.Image == nil &&
		r.Category == nil && r.IsActive == nil
}

// RegisterRequest exchanges an identity provider token for a local account.
type RegisterRequest struct {
	IDToken string `json:"idToken" validate:"required"`
	Name    string `json:"name" validate:"max=100"`
	Avatar  string `json:"avatar" validate:"omitempty,url"`
}

// UpdateProfileRequest holds the fields a user may change on their profile.
type UpdateProfileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone  *string `json:"phone" validate:"omitempty,max=30"`
	Avatar *string `json:"avatar" validate:"omitempty,url"`
}

// UpdateUserRequest holds the fields an admin may change on any user.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *Role   `json:"role" validate:"omitempty,oneof=user admin"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	IsActive *bool   `json:"isActive"`
}

// EventFilter narrows public event listings.
type EventFilter struct {
	Search   string
	Category string
	DateFrom *time.Time
	DateTo   *time.Time
}

// BookingFilter narrows the admin booking listing.
type BookingFilter struct {
	Status  BookingStatus
	EventID string
	UserID  string
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   Role
	Search string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps the row offset far from integer overflow.
	MaxPage = 1_000_000
)

// PageRequest is a 1-indexed page selection.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit into their legal ranges.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a listing plus the size of the whole result.
type Page[T any] struct {
	Items []T
	Total int
	PageRequest
}

// Pages returns the number of pages needed for Total items.
func (p Page[T]) Pages() int {
	if p.Limit <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
