package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/validator"
)

// idempotencyNamespace seeds the name-based booking ids derived from
// Idempotency-Key headers.
var idempotencyNamespace = uuid.MustParse("3b0f6f4e-8d55-4c1e-9a43-5d7c2f1e9b20")

const maxIdempotencyKeyLen = 255

// BookingService runs the booking lifecycle: create, cancel and delete, each
// with its capacity ledger update in one store transaction.
type BookingService struct {
	bookings BookingStore
	events   EventStore
	notifier Notifier
	log      *zerolog.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(bookings BookingStore, events EventStore, notifier Notifier, log *zerolog.Logger) *BookingService {
	return &BookingService{bookings: bookings, events: events, notifier: notifier, log: log}
}

// bookingID is random unless the client supplied an idempotency key, in which
// case retries of the same request map to the same row.
func bookingID(userID, key string) string {
	if key == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(userID+"\x00"+key)).String()
}

// CreateBooking reserves tickets for the caller. The returned bool is false
// when an earlier request with the same idempotency key already created the
// booking; nothing is reserved twice.
func (s *BookingService) CreateBooking(ctx context.Context, caller model.Caller, req model.CreateBookingRequest, idempotencyKey string) (*model.Booking, bool, error) {
	if err := validator.Validate(ctx, req); err != nil {
		return nil, false, invalid("%s", err)
	}
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return nil, false, invalid("Idempotency-Key exceeds %d characters", maxIdempotencyKeyLen)
	}

	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.BookingOutcome(metrics.OutcomeRejectedNotFound)
			return nil, false, notFound("Event not found")
		}
		return nil, false, fmt.Errorf("get event: %w", err)
	}
	if !event.IsActive {
		metrics.BookingOutcome(metrics.OutcomeRejectedNotFound)
		return nil, false, notFound("Event not found")
	}

	b := &model.Booking{
		ID:            bookingID(caller.UserID, idempotencyKey),
		UserID:        caller.UserID,
		EventID:       event.ID,
		Tickets:       req.Tickets,
		TotalPrice:    event.Price.Mul(decimal.NewFromInt(int64(req.Tickets))),
		Status:        model.BookingConfirmed,
		PaymentStatus: model.PaymentPaid,
	}

	created, err := s.bookings.Create(ctx, b)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCapacity):
			metrics.BookingOutcome(metrics.OutcomeRejectedCapacity)
			return nil, false, translate(err)
		case errors.Is(err, ledger.ErrEventNotFound):
			metrics.BookingOutcome(metrics.OutcomeRejectedNotFound)
			return nil, false, notFound("Event not found")
		case errors.Is(err, ledger.ErrInvariantViolation):
			metrics.BookingOutcome(metrics.OutcomeFailed)
			return nil, false, err
		}
		metrics.BookingOutcome(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("create booking: %w", err)
	}

	if !created {
		existing, err := s.bookings.GetByID(ctx, b.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load replayed booking: %w", err)
		}
		if existing.EventID != b.EventID || existing.Tickets != b.Tickets {
			return nil, false, conflict("Idempotency-Key was already used for a different booking", nil)
		}
		metrics.BookingOutcome(metrics.OutcomeReplayed)
		s.log.Info().Str("booking_id", existing.ID).Msg("booking replayed")
		return existing, false, nil
	}

	metrics.BookingOutcome(metrics.OutcomeCreated)
	s.log.Info().
		Str("booking_id", b.ID).
		Str("event_id", b.EventID).
		Str("user_id", b.UserID).
		Int("tickets", b.Tickets).
		Str("total_price", b.TotalPrice.StringFixed(2)).
		Msg("booking created")
	s.publish(ctx, model.NotificationBookingConfirmed, b)

	full, err := s.bookings.GetByID(ctx, b.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("booking_id", b.ID).Msg("reload created booking")
		return b, true, nil
	}
	return full, true, nil
}

// CancelBooking moves a live booking to cancelled and releases its tickets.
// Of two concurrent cancels only one releases; the other gets a conflict.
func (s *BookingService) CancelBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	b, err := s.GetBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if b.IsCancelled() {
		return nil, conflict("Booking is already cancelled", nil)
	}

	cancelled, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound("Booking not found")
		case errors.Is(err, repository.ErrBookingAlreadyCancelled):
			return nil, translate(err)
		case errors.Is(err, ledger.ErrInvariantViolation):
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	metrics.BookingOutcome(metrics.OutcomeCancelled)
	s.log.Info().Str("booking_id", id).Str("by", caller.UserID).Int("tickets", cancelled.Tickets).Msg("booking cancelled")
	s.publish(ctx, model.NotificationBookingCancelled, cancelled)
	return cancelled, nil
}

// DeleteBooking removes a booking outright. Admin only. A booking that was
// still live gives its tickets back.
func (s *BookingService) DeleteBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := parseID(id, "Booking"); err != nil {
		return nil, err
	}

	deleted, err := s.bookings.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound("Booking not found")
		case errors.Is(err, ledger.ErrInvariantViolation):
			return nil, err
		}
		return nil, fmt.Errorf("delete booking: %w", err)
	}

	metrics.BookingOutcome(metrics.OutcomeDeleted)
	s.log.Info().Str("booking_id", id).Str("by", caller.UserID).Str("status", string(deleted.Status)).Msg("booking deleted")
	s.publish(ctx, model.NotificationBookingDeleted, deleted)
	return deleted, nil
}

// GetBooking returns a booking its owner or an admin may see. Other callers
// get ErrForbidden, which reveals that the id exists.
func (s *BookingService) GetBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	if err := parseID(id, "Booking"); err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Booking not found")
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if err := authorize(caller, b.UserID, "booking"); err != nil {
		return nil, err
	}
	return b, nil
}

// ListMyBookings returns the caller's bookings, newest first.
func (s *BookingService) ListMyBookings(ctx context.Context, caller model.Caller) ([]model.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListBookings returns one page of all bookings. Admin only.
func (s *BookingService) ListBookings(ctx context.Context, caller model.Caller, f model.BookingFilter, p model.PageRequest) (model.Page[model.Booking], error) {
	if err := requireAdmin(caller); err != nil {
		return model.Page[model.Booking]{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return model.Page[model.Booking]{}, invalid("status has an invalid format")
	}
	if f.EventID != "" {
		if _, err := uuid.Parse(f.EventID); err != nil {
			return model.Page[model.Booking]{}, invalid("eventId has an invalid format")
		}
	}
	if f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			return model.Page[model.Booking]{}, invalid("userId has an invalid format")
		}
	}

	bookings, total, err := s.bookings.List(ctx, f, p)
	if err != nil {
		return model.Page[model.Booking]{}, fmt.Errorf("list bookings: %w", err)
	}
	return model.Page[model.Booking]{Items: bookings, Total: total, PageRequest: p}, nil
}

// publish is best effort: the booking is already committed, so a broker
// failure is logged and not returned.
func (s *BookingService) publish(ctx context.Context, kind string, b *model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.notifier.Publish(ctx, model.BookingNotification{
		Type:       kind,
		BookingID:  b.ID,
		EventID:    b.EventID,
		UserID:     b.UserID,
		Tickets:    b.Tickets,
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("type", kind).Str("booking_id", b.ID).Msg("publish booking notification")
	}
}
