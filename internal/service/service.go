// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// Error kinds. Handlers map each one to a single HTTP status.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error is a classified failure carrying a message that is safe to return
// to clients. errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func notFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

func forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

func conflict(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Msg: msg, Err: cause}
}

func unauthenticated(msg string, cause error) error {
	return &Error{Kind: ErrUnauthenticated, Msg: msg, Err: cause}
}

// translate classifies errors coming out of the store and ledger. Anything it
// does not recognise, invariant violations included, is returned unchanged.
func translate(err error) error {
	var capErr *ledger.InsufficientCapacityError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &capErr):
		return conflict(capErr.Error(), err)
	case errors.Is(err, ledger.ErrEventNotFound):
		return notFound("Event not found")
	case errors.Is(err, ledger.ErrInvalidCount):
		return invalid("tickets must be at least 1")
	case errors.Is(err, repository.ErrBookingAlreadyCancelled):
		return conflict("Booking is already cancelled", err)
	case errors.Is(err, repository.ErrCapacityBelowBooked):
		return conflict("Capacity cannot be lower than booked tickets", err)
	case errors.Is(err, repository.ErrDuplicate):
		return conflict("Email is already in use", err)
	}
	return err
}

// CanAccess is the single authorization rule for owned resources: admins may
// act on anything, everyone else only on what they own.
func CanAccess(caller model.Caller, ownerID string) bool {
	if caller.IsAdmin() {
		return true
	}
	return caller.UserID != "" && caller.UserID == ownerID
}

func authorize(caller model.Caller, ownerID, resource string) error {
	if !CanAccess(caller, ownerID) {
		return forbidden("Not authorized to access this " + resource)
	}
	return nil
}

func requireAdmin(caller model.Caller) error {
	if !caller.IsAdmin() {
		return forbidden("Admin access required")
	}
	return nil
}

// parseID rejects malformed ids before they reach the uuid columns.
func parseID(id, resource string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(resource + " not found")
	}
	return nil
}

// EventStore is the persistence the event and booking services need.
type EventStore interface {
	Create(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, f model.EventFilter, p model.PageRequest) ([]model.Event, int, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Event, error)
	Update(ctx context.Context, id string, p model.UpdateEventRequest) (*model.Event, error)
	Deactivate(ctx context.Context, id string) error
}

// BookingStore persists bookings. Create, Cancel and Delete move tickets
// through the ledger in the same transaction as the booking write.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListRecent(ctx context.Context, limit int) ([]model.Booking, error)
	List(ctx context.Context, f model.BookingFilter, p model.PageRequest) ([]model.Booking, int, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Delete(ctx context.Context, id string) (*model.Booking, error)
}

// UserStore persists local user accounts.
type UserStore interface {
	UpsertFromIdentity(ctx context.Context, u *model.User) (*model.User, bool, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, p model.UpdateProfileRequest) (*model.User, error)
	Update(ctx context.Context, id string, p model.UpdateUserRequest) (*model.User, error)
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, f model.UserFilter, p model.PageRequest) ([]model.User, int, error)
}

// AnalyticsStore runs the aggregate read queries.
type AnalyticsStore interface {
	Overview(ctx context.Context) (model.Overview, map[string]int, map[string]int, error)
	MonthlyRevenue(ctx context.Context, since time.Time) ([]model.MonthlyRevenue, error)
	EventStats(ctx context.Context, eventID string) (model.EventStats, error)
	AllEventStats(ctx context.Context) ([]model.EventStats, error)
	UserStats(ctx context.Context, userID string) (model.UserStats, error)
}

// Notifier publishes booking lifecycle messages.
type Notifier interface {
	Publish(ctx context.Context, n model.BookingNotification) error
}
