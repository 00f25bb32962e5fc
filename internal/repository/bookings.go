package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// BookingRepository handles persistence for bookings. Every write that moves
// a booking into or out of the live set runs in one transaction with the
// matching ledger operation.
type BookingRepository struct {
	db     *pgxpool.Pool
	ledger *ledger.Ledger
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool, l *ledger.Ledger) *BookingRepository {
	return &BookingRepository{db: db, ledger: l}
}

const bookingSelect = `SELECT b.id, b.user_id, b.event_id, b.tickets, b.total_price, b.status,
		b.payment_status, b.booking_date, b.created_at, b.updated_at,
		e.title, e.event_date, e.event_time, e.location, e.image, e.price, e.is_active,
		u.name, u.email
	FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN users u ON u.id = b.user_id`

func scanBooking(row scanner) (*model.Booking, error) {
	var b model.Booking
	ev := &model.EventSummary{}
	usr := &model.UserSummary{}
	if err := row.Scan(
		&b.ID, &b.UserID, &b.EventID, &b.Tickets, &b.TotalPrice, &b.Status,
		&b.PaymentStatus, &b.BookingDate, &b.CreatedAt, &b.UpdatedAt,
		&ev.Title, &ev.Date, &ev.Time, &ev.Location, &ev.Image, &ev.Price, &ev.IsActive,
		&usr.Name, &usr.Email,
	); err != nil {
		return nil, err
	}
	ev.ID = b.EventID
	usr.ID = b.UserID
	b.Event = ev
	b.User = usr
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	bookings := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Create inserts the booking and reserves its tickets in one transaction.
//
// The insert runs first with ON CONFLICT DO NOTHING so a retried request that
// reuses a deterministic booking id finds the existing row and reserves
// nothing. It returns false in that case.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO bookings (id, user_id, event_id, tickets, total_price, status, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING booking_date, created_at, updated_at`,
		b.ID, b.UserID, b.EventID, b.Tickets, b.TotalPrice, b.Status, b.PaymentStatus,
	).Scan(&b.BookingDate, &b.CreatedAt, &b.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case isForeignKeyViolation(err):
		return false, ledger.ErrEventNotFound
	case err != nil:
		return false, fmt.Errorf("insert booking: %w", err)
	}

	pos, err := r.ledger.Reserve(ctx, tx, b.EventID, b.Tickets)
	if err != nil {
		return false, err
	}

	// The total is frozen at the price of the event row the reservation
	// locked, not the one read before the transaction.
	if total := pos.Price.Mul(decimal.NewFromInt(int64(b.Tickets))); !total.Equal(b.TotalPrice) {
		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET total_price = $2 WHERE id = $1`,
			b.ID, total,
		); err != nil {
			return false, fmt.Errorf("reprice booking: %w", err)
		}
		b.TotalPrice = total
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

// GetByID returns a booking joined with its event and user summaries.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListByUser returns all bookings of one user, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		bookingSelect+` WHERE b.user_id = $1 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListRecent returns the most recent bookings across all users.
func (r *BookingRepository) ListRecent(ctx context.Context, limit int) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx, bookingSelect+` ORDER BY b.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent bookings: %w", err)
	}
	return collectBookings(rows)
}

// List returns one page of bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter, p model.PageRequest) ([]model.Booking, int, error) {
	c := &conditions{}
	if f.Status != "" {
		c.add("b.status = ?", f.Status)
	}
	if f.EventID != "" {
		c.add("b.event_id = ?", f.EventID)
	}
	if f.UserID != "" {
		c.add("b.user_id = ?", f.UserID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings b`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	limit, args := c.page(p)
	rows, err := r.db.Query(ctx, bookingSelect+c.where()+` ORDER BY b.created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// Cancel moves a booking to cancelled/refunded and releases its tickets.
//
// The status UPDATE only matches a booking that is not cancelled yet, so of
// two concurrent cancels exactly one releases capacity; the other gets
// ErrBookingAlreadyCancelled.
func (r *BookingRepository) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		eventID string
		tickets int
	)
	err = tx.QueryRow(ctx,
		`UPDATE bookings
		 SET status = $2, payment_status = $3, updated_at = NOW()
		 WHERE id = $1 AND status <> $2
		 RETURNING event_id, tickets`,
		id, model.BookingCancelled, model.PaymentRefunded,
	).Scan(&eventID, &tickets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.explainCancelMiss(ctx, tx, id)
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	if _, err := r.ledger.Release(ctx, tx, eventID, tickets); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) explainCancelMiss(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check booking: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrBookingAlreadyCancelled
}

// Delete removes a booking. A booking that was still live releases its
// tickets in the same transaction.
func (r *BookingRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status model.BookingStatus
	err = tx.QueryRow(ctx,
		`DELETE FROM bookings WHERE id = $1 RETURNING status, event_id, tickets`,
		id,
	).Scan(&status, &b.EventID, &b.Tickets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete booking: %w", err)
	}

	if status != model.BookingCancelled {
		if _, err := r.ledger.Release(ctx, tx, b.EventID, b.Tickets); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	b.Status = status
	return b, nil
}

// ActiveTickets sums the tickets of all non-cancelled bookings of an event.
// It equals the event's booked tickets whenever the ledger invariant holds.
func (r *BookingRepository) ActiveTickets(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(tickets), 0) FROM bookings WHERE event_id = $1 AND status <> $2`,
		eventID, model.BookingCancelled,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum active tickets: %w", err)
	}
	return n, nil
}
