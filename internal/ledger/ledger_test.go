package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memEvents evaluates the ledger statements the way PostgreSQL would: each
// statement runs under the row lock, so the WHERE clause sees the latest value.
type memEvents struct {
	mu     sync.Mutex
	rows   map[string]*memEvent
	failOn string
}

type memEvent struct {
	booked, capacity int
	active           bool
	price            decimal.Decimal
}

type row struct {
	vals []any
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.vals[i].(int)
		case *bool:
			*p = r.vals[i].(bool)
		case *decimal.Decimal:
			*p = r.vals[i].(decimal.Decimal)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func (m *memEvents) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn == sql {
		return row{err: &pgconn.PgError{Code: "23514", ConstraintName: boundsConstraint}}
	}

	e, ok := m.rows[args[0].(string)]
	switch sql {
	case reserveSQL:
		n := args[1].(int)
		if !ok || !e.active || e.booked+n > e.capacity {
			return row{err: pgx.ErrNoRows}
		}
		e.booked += n
		return row{vals: []any{e.booked, e.capacity, e.price}}
	case releaseSQL:
		n := args[1].(int)
		if !ok || e.booked-n < 0 {
			return row{err: pgx.ErrNoRows}
		}
		e.booked -= n
		return row{vals: []any{e.booked, e.capacity}}
	case lookupSQL:
		if !ok {
			return row{err: pgx.ErrNoRows}
		}
		return row{vals: []any{e.booked, e.capacity, e.active}}
	}
	return row{err: errors.New("unexpected statement")}
}

func newLedger() *Ledger {
	log := zerolog.New(io.Discard)
	return New(&log)
}

func TestReserve_IncrementsCounter(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {capacity: 10, active: true, price: decimal.RequireFromString("12.50")}}}

	pos, err := newLedger().Reserve(context.Background(), db, "e1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, pos.Booked)
	assert.Equal(t, 0, pos.Available())
	assert.True(t, pos.Price.Equal(decimal.RequireFromString("12.5")), pos.Price.String())
}

func TestReserve_RejectsAtBoundary(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {booked: 5, capacity: 5, active: true}}}

	_, err := newLedger().Reserve(context.Background(), db, "e1", 1)
	require.ErrorIs(t, err, ErrInsufficientCapacity)

	var capErr *InsufficientCapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 0, capErr.Available)
	assert.Equal(t, "Only 0 tickets available", capErr.Error())
	assert.Equal(t, 5, db.rows["e1"].booked)
}

func TestReserve_ReportsAvailableTickets(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {booked: 7, capacity: 10, active: true}}}

	_, err := newLedger().Reserve(context.Background(), db, "e1", 4)
	var capErr *InsufficientCapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.Available)
	assert.Equal(t, 4, capErr.Requested)
}

func TestReserve_MissingOrInactiveEvent(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"off": {capacity: 10}}}
	l := newLedger()

	_, err := l.Reserve(context.Background(), db, "missing", 1)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = l.Reserve(context.Background(), db, "off", 1)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, 0, db.rows["off"].booked)
}

func TestReserve_InvalidCount(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {capacity: 10, active: true}}}
	l := newLedger()

	_, err := l.Reserve(context.Background(), db, "e1", 0)
	assert.ErrorIs(t, err, ErrInvalidCount)
	_, err = l.Release(context.Background(), db, "e1", -2)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestReserve_CheckConstraintIsInvariantViolation(t *testing.T) {
	db := &memEvents{
		rows:   map[string]*memEvent{"e1": {capacity: 10, active: true}},
		failOn: reserveSQL,
	}

	_, err := newLedger().Reserve(context.Background(), db, "e1", 1)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRelease_RestoresCapacity(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {capacity: 10, active: true}}}
	l := newLedger()

	_, err := l.Reserve(context.Background(), db, "e1", 10)
	require.NoError(t, err)

	pos, err := l.Release(context.Background(), db, "e1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, pos.Available())
}

func TestRelease_WorksOnInactiveEvent(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {booked: 3, capacity: 10}}}

	pos, err := newLedger().Release(context.Background(), db, "e1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Booked)
}

func TestRelease_BelowZeroIsInvariantViolation(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{"e1": {booked: 2, capacity: 10, active: true}}}

	_, err := newLedger().Release(context.Background(), db, "e1", 3)
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, 2, db.rows["e1"].booked)
}

func TestRelease_MissingEvent(t *testing.T) {
	db := &memEvents{rows: map[string]*memEvent{}}

	_, err := newLedger().Release(context.Background(), db, "missing", 1)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NotErrorIs(t, err, ErrInvariantViolation)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const capacity = 25
	db := &memEvents{rows: map[string]*memEvent{"e1": {capacity: capacity, active: true}}}
	l := newLedger()

	var (
		wg       sync.WaitGroup
		ok, full atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(context.Background(), db, "e1", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientCapacity):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(capacity), ok.Load())
	assert.Equal(t, int32(100-capacity), full.Load())
	assert.Equal(t, capacity, db.rows["e1"].booked)
}
