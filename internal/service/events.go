package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/validator"
)

// EventService orchestrates event-related business operations.
type EventService struct {
	events EventStore
	log    *zerolog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, log *zerolog.Logger) *EventService {
	return &EventService{events: events, log: log}
}

// CreateEvent validates the request and stores the event with the caller
// as organizer. Only admins may create events.
func (s *EventService) CreateEvent(ctx context.Context, caller model.Caller, req model.CreateEventRequest) (*model.Event, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Category = strings.TrimSpace(req.Category)
	if err := validator.Validate(ctx, req); err != nil {
		return nil, invalid("%s", err)
	}

	event, err := s.events.Create(ctx, caller.UserID, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info().Str("event_id", event.ID).Str("organizer_id", caller.UserID).Int("capacity", event.Capacity).Msg("event created")
	return event, nil
}

// UpdateEvent applies an allow-listed patch. Capacity can not go below the
// tickets already booked; the store enforces that atomically.
func (s *EventService) UpdateEvent(ctx context.Context, caller model.Caller, id string, patch model.UpdateEventRequest) (*model.Event, error) {
	if patch.Empty() {
		return nil, invalid("no fields to update")
	}
	if err := validator.Validate(ctx, patch); err != nil {
		return nil, invalid("%s", err)
	}

	event, err := s.getEventAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, event.OrganizerID, "event"); err != nil {
		return nil, err
	}

	updated, err := s.events.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Event not found")
		}
		if errors.Is(err, repository.ErrCapacityBelowBooked) {
			return nil, translate(err)
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// DeleteEvent soft-deletes an event. Existing bookings keep pointing at it.
func (s *EventService) DeleteEvent(ctx context.Context, caller model.Caller, id string) error {
	event, err := s.getEventAny(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(caller, event.OrganizerID, "event"); err != nil {
		return err
	}

	if err := s.events.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Event not found")
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.log.Info().Str("event_id", id).Str("by", caller.UserID).Msg("event deactivated")
	return nil
}

// GetEvent returns a single active event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.getEventAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, notFound("Event not found")
	}
	return event, nil
}

func (s *EventService) getEventAny(ctx context.Context, id string) (*model.Event, error) {
	if err := parseID(id, "Event"); err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Event not found")
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents returns one page of active events ordered by date.
func (s *EventService) ListEvents(ctx context.Context, f model.EventFilter, p model.PageRequest) (model.Page[model.Event], error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return model.Page[model.Event]{}, invalid("dateFrom must not be after dateTo")
	}

	events, total, err := s.events.List(ctx, f, p)
	if err != nil {
		return model.Page[model.Event]{}, fmt.Errorf("list events: %w", err)
	}
	return model.Page[model.Event]{Items: events, Total: total, PageRequest: p}, nil
}

// ListEventsByOrganizer returns the active events of one organizer.
func (s *EventService) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	if err := parseID(organizerID, "Organizer"); err != nil {
		return nil, err
	}
	events, err := s.events.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return events, nil
}
