// Package repository implements all database queries for the event booking system.
// It uses pgx directly (no ORM); capacity changes go through the ledger package.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique column already holds the value.
var ErrDuplicate = errors.New("already exists")

// ErrCapacityBelowBooked is returned when a capacity patch would drop below
// the tickets already booked.
var ErrCapacityBelowBooked = errors.New("capacity cannot be lower than booked tickets")

// ErrBookingAlreadyCancelled is returned when cancelling a cancelled booking.
var ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")

type scanner interface {
	Scan(dest ...any) error
}

// conditions accumulates WHERE clauses with positional pgx arguments.
// Each clause uses ? for its single argument.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(c.args))))
}

func (c *conditions) addRaw(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause and args.
func (c *conditions) page(p model.PageRequest) (string, []any) {
	args := append(append([]any{}, c.args...), p.Limit, p.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventSelect = `SELECT e.id, e.title, e.description, e.event_date, e.event_time, e.location,
		e.price, e.capacity, e.booked_tickets, e.image, e.category, e.is_active,
		e.organizer_id, e.created_at, e.updated_at, u.name, u.email
	FROM events e
	JOIN users u ON u.id = e.organizer_id`

func scanEvent(row scanner) (*model.Event, error) {
	var e model.Event
	org := &model.UserSummary{}
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location,
		&e.Price, &e.Capacity, &e.BookedTickets, &e.Image, &e.Category, &e.IsActive,
		&e.OrganizerID, &e.CreatedAt, &e.UpdatedAt, &org.Name, &org.Email,
	); err != nil {
		return nil, err
	}
	org.ID = e.OrganizerID
	e.Organizer = org
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Create inserts a new event with zero booked tickets and returns it.
func (r *EventRepository) Create(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, event_date, event_time, location,
			price, capacity, booked_tickets, image, category, organizer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11)`,
		id, req.Title, req.Description, req.Date.UTC(), req.Time, req.Location,
		req.Price, req.Capacity, req.Image, req.Category, organizerID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("organizer %s: %w", organizerID, ErrNotFound)
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a single event, active or not, or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func eventConditions(f model.EventFilter) *conditions {
	c := &conditions{}
	c.addRaw("e.is_active")
	if f.Search != "" {
		c.add("(e.title ILIKE ? OR e.description ILIKE ? OR e.location ILIKE ?)", containsPattern(f.Search))
	}
	if f.Category != "" {
		c.add("e.category = ?", f.Category)
	}
	if f.DateFrom != nil {
		c.add("e.event_date >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		c.add("e.event_date <= ?", f.DateTo.UTC())
	}
	return c
}

// List returns one page of active events ordered by date, plus the total count.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter, p model.PageRequest) ([]model.Event, int, error) {
	c := eventConditions(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	limit, args := c.page(p)
	rows, err := r.db.Query(ctx, eventSelect+c.where()+` ORDER BY e.event_date ASC, e.created_at ASC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListByOrganizer returns the active events of one organizer ordered by date.
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		eventSelect+` WHERE e.organizer_id = $1 AND e.is_active ORDER BY e.event_date ASC`,
		organizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return collectEvents(rows)
}

// ListUpcoming returns the next active events starting from now.
func (r *EventRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		eventSelect+` WHERE e.is_active AND e.event_date >= $1 ORDER BY e.event_date ASC LIMIT $2`,
		from.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return collectEvents(rows)
}

// Update applies an allow-listed patch. A capacity below the currently booked
// tickets is refused inside the same statement.
func (r *EventRepository) Update(ctx context.Context, id string, p model.UpdateEventRequest) (*model.Event, error) {
	var price any
	if p.Price != nil {
		price = *p.Price
	}
	var date any
	if p.Date != nil {
		date = p.Date.UTC()
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE events SET
			title       = COALESCE($2::text, title),
			description = COALESCE($3::text, description),
			event_date  = COALESCE($4::timestamptz, event_date),
			event_time  = COALESCE($5::text, event_time),
			location    = COALESCE($6::text, location),
			price       = COALESCE($7::numeric, price),
			capacity    = COALESCE($8::int, capacity),
			image       = COALESCE($9::text, image),
			category    = COALESCE($10::text, category),
			is_active   = COALESCE($11::boolean, is_active),
			updated_at  = NOW()
		 WHERE id = $1 AND COALESCE($8::int, capacity) >= booked_tickets`,
		id, p.Title, p.Description, date, p.Time, p.Location,
		price, p.Capacity, p.Image, p.Category, p.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var booked int
		err := r.db.QueryRow(ctx, `SELECT booked_tickets FROM events WHERE id = $1`, id).Scan(&booked)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		return nil, fmt.Errorf("%w: %d tickets already booked", ErrCapacityBelowBooked, booked)
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes an event. Bookings keep referencing it.
func (r *EventRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
