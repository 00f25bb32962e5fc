// Package ledger keeps an event's booked-ticket counter in lockstep with its
// live bookings. It is the only code that writes events.booked_tickets.
//
// Both operations are a single conditional UPDATE evaluated by PostgreSQL:
//
//	UPDATE events SET booked_tickets = booked_tickets + n
//	WHERE id = $1 AND booked_tickets + n <= capacity
//
// Under READ COMMITTED a concurrent writer blocks on the row lock and then
// re-evaluates the WHERE clause against the committed row, so two requests
// can never both pass the capacity check on a stale value. A naive
// SELECT-then-UPDATE in application code would let them.
//
// The ledger never opens a transaction itself. Callers pass the pgx.Tx that
// also writes the booking row so both changes commit or roll back together.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
)

var (
	// ErrEventNotFound is returned when the event is missing, or inactive on reserve.
	ErrEventNotFound = errors.New("event not found")

	// ErrInsufficientCapacity is returned when a reservation would exceed capacity.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrInvalidCount is returned for ticket counts below one.
	ErrInvalidCount = errors.New("ticket count must be at least 1")

	// ErrInvariantViolation signals that booked tickets would leave [0, capacity].
	// It is a data-integrity failure and is never corrected silently.
	ErrInvariantViolation = errors.New("booked tickets invariant violated")
)

// boundsConstraint is the table CHECK backing the ledger's own conditions.
const boundsConstraint = "events_booked_tickets_bounds"

const (
	reserveSQL = `UPDATE events
		SET booked_tickets = booked_tickets + $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND booked_tickets + $2 <= capacity
		RETURNING booked_tickets, capacity, price`

	releaseSQL = `UPDATE events
		SET booked_tickets = booked_tickets - $2, updated_at = NOW()
		WHERE id = $1 AND booked_tickets - $2 >= 0
		RETURNING booked_tickets, capacity`

	lookupSQL = `SELECT booked_tickets, capacity, is_active FROM events WHERE id = $1`
)

// InsufficientCapacityError carries how many tickets were actually free.
type InsufficientCapacityError struct {
	EventID   string
	Requested int
	Available int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("Only %d tickets available", e.Available)
}

// Is lets callers match with errors.Is(err, ErrInsufficientCapacity).
func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// Querier is the subset of pgx.Tx the ledger needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Position is an event's counter state after a ledger operation.
type Position struct {
	EventID  string
	Booked   int
	Capacity int
	// Price is the ticket price of the row version that passed the reserve
	// condition. Release leaves it zero.
	Price decimal.Decimal
}

// Available returns the remaining tickets at this position.
func (p Position) Available() int {
	return p.Capacity - p.Booked
}

func (p Position) inBounds() bool {
	return p.Booked >= 0 && p.Booked <= p.Capacity
}

// Ledger performs reserve and release against the events table.
type Ledger struct {
	log *zerolog.Logger
}

// New constructs a Ledger.
func New(log *zerolog.Logger) *Ledger {
	return &Ledger{log: log}
}

// Reserve atomically adds n tickets to the event's booked counter, provided
// the event is active and has at least n tickets left.
func (l *Ledger) Reserve(ctx context.Context, q Querier, eventID string, n int) (Position, error) {
	if n < 1 {
		return Position{}, ErrInvalidCount
	}

	pos := Position{EventID: eventID}
	err := q.QueryRow(ctx, reserveSQL, eventID, n).Scan(&pos.Booked, &pos.Capacity, &pos.Price)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return Position{}, l.explainReserveMiss(ctx, q, eventID, n)
	case isBoundsViolation(err):
		return Position{}, l.violation("reserve", eventID, n, err)
	default:
		return Position{}, fmt.Errorf("reserve tickets: %w", err)
	}

	if !pos.inBounds() {
		return Position{}, l.violation("reserve", eventID, n, nil)
	}
	metrics.TicketsReserved(n)
	return pos, nil
}

// Release atomically returns n tickets to the event. The caller must invoke it
// exactly once per booking leaving the live set; the booking status
// transition is the token that guarantees it.
func (l *Ledger) Release(ctx context.Context, q Querier, eventID string, n int) (Position, error) {
	if n < 1 {
		return Position{}, ErrInvalidCount
	}

	pos := Position{EventID: eventID}
	err := q.QueryRow(ctx, releaseSQL, eventID, n).Scan(&pos.Booked, &pos.Capacity)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		if _, lookupErr := lookup(ctx, q, eventID); lookupErr != nil {
			return Position{}, lookupErr
		}
		// The event exists, so the counter is lower than the tickets being
		// returned.
		return Position{}, l.violation("release", eventID, n, nil)
	case isBoundsViolation(err):
		return Position{}, l.violation("release", eventID, n, err)
	default:
		return Position{}, fmt.Errorf("release tickets: %w", err)
	}

	if !pos.inBounds() {
		return Position{}, l.violation("release", eventID, n, nil)
	}
	metrics.TicketsReleased(n)
	return pos, nil
}

func (l *Ledger) explainReserveMiss(ctx context.Context, q Querier, eventID string, n int) error {
	snap, err := lookup(ctx, q, eventID)
	if err != nil {
		return err
	}
	if !snap.active {
		return ErrEventNotFound
	}
	available := snap.Available()
	if available < 0 {
		return l.violation("reserve", eventID, n, nil)
	}
	return &InsufficientCapacityError{EventID: eventID, Requested: n, Available: available}
}

type snapshot struct {
	Position
	active bool
}

func lookup(ctx context.Context, q Querier, eventID string) (snapshot, error) {
	s := snapshot{Position: Position{EventID: eventID}}
	err := q.QueryRow(ctx, lookupSQL, eventID).Scan(&s.Booked, &s.Capacity, &s.active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot{}, ErrEventNotFound
		}
		return snapshot{}, fmt.Errorf("lookup event: %w", err)
	}
	return s, nil
}

func (l *Ledger) violation(op, eventID string, n int, cause error) error {
	metrics.InvariantViolation(op)
	l.log.Error().
		Err(cause).
		Str("alarm", "data_integrity").
		Str("operation", op).
		Str("event_id", eventID).
		Int("tickets", n).
		Msg("booked tickets would leave [0, capacity]")
	if cause != nil {
		return fmt.Errorf("%w: %s %d tickets on event %s: %w", ErrInvariantViolation, op, n, eventID, cause)
	}
	return fmt.Errorf("%w: %s %d tickets on event %s", ErrInvariantViolation, op, n, eventID)
}

func isBoundsViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23514" &&
		pgErr.ConstraintName == boundsConstraint
}
