package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

type bookingFixture struct {
	events   *fakeEvents
	bookings *fakeBookings
	notifier *recordingNotifier
	svc      *BookingService
	eventSvc *EventService
}

func newBookingFixture() *bookingFixture {
	events := newFakeEvents()
	bookings := newFakeBookings(events)
	notifier := &recordingNotifier{}
	return &bookingFixture{
		events:   events,
		bookings: bookings,
		notifier: notifier,
		svc:      NewBookingService(bookings, events, notifier, &testLog),
		eventSvc: NewEventService(events, &testLog),
	}
}

func (f *bookingFixture) book(t *testing.T, caller model.Caller, eventID string, tickets int) *model.Booking {
	t.Helper()
	b, created, err := f.svc.CreateBooking(context.Background(), caller, model.CreateBookingRequest{EventID: eventID, Tickets: tickets}, "")
	require.NoError(t, err)
	require.True(t, created)
	return b
}

func TestCreateBooking_NoOversellUnderConcurrency(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(25, 10)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.CreateBooking(context.Background(), alice, model.CreateBookingRequest{EventID: event.ID, Tickets: 1}, "")
			if err != nil {
				assert.ErrorIs(t, err, ErrConflict)
				rejected.Add(1)
				return
			}
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 25, succeeded.Load())
	assert.EqualValues(t, 75, rejected.Load())
	assert.Equal(t, 25, f.events.booked(event.ID))
	assert.Equal(t, f.events.booked(event.ID), f.bookings.activeTickets(event.ID))
}

func TestCreateBooking_FillThenCancelRestoresCapacity(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)

	b := f.book(t, alice, event.ID, 10)
	got, err := f.eventSvc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableTickets())
	assert.True(t, got.IsFull())

	_, err = f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	got, err = f.eventSvc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.AvailableTickets())
}

func TestCreateBooking_FullEventIsConflict(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(5, 5)
	f.book(t, alice, event.ID, 5)

	_, _, err := f.svc.CreateBooking(context.Background(), bob, model.CreateBookingRequest{EventID: event.ID, Tickets: 1}, "")
	require.ErrorIs(t, err, ErrConflict)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "Only 0 tickets available", svcErr.Msg)
	assert.Equal(t, 5, f.events.booked(event.ID))
}

func TestCreateBooking_FreezesTotalPrice(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(50, 20)

	b := f.book(t, alice, event.ID, 3)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(60)), "total %s", b.TotalPrice)

	newPrice := decimal.NewFromInt(50)
	_, err := f.eventSvc.UpdateEvent(ctx, admin, event.ID, model.UpdateEventRequest{Price: &newPrice})
	require.NoError(t, err)

	again, err := f.svc.GetBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.True(t, again.TotalPrice.Equal(decimal.NewFromInt(60)), "total %s", again.TotalPrice)
}

func TestCreateBooking_PricedAtReservedRow(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(50, 20)

	// A price edit lands after the service read the event but before the
	// reservation locks the row.
	f.events.onReserve = func(e *model.Event) {
		e.Price = decimal.NewFromInt(35)
	}

	b := f.book(t, alice, event.ID, 3)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(105)), "total %s", b.TotalPrice)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(5, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.CreateBookingRequest
	}{
		{"zero tickets", model.CreateBookingRequest{EventID: event.ID, Tickets: 0}},
		{"negative tickets", model.CreateBookingRequest{EventID: event.ID, Tickets: -2}},
		{"missing event", model.CreateBookingRequest{Tickets: 1}},
		{"malformed event id", model.CreateBookingRequest{EventID: "abc", Tickets: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.CreateBooking(ctx, alice, tt.req, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, f.events.booked(event.ID))

	// More tickets than remain is a capacity conflict, not bad input.
	_, _, err := f.svc.CreateBooking(ctx, alice, model.CreateBookingRequest{EventID: event.ID, Tickets: 6}, "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, f.events.booked(event.ID))
}

func TestCreateBooking_LargeOrderWithinCapacity(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(200, 5)

	b := f.book(t, alice, event.ID, 150)
	assert.Equal(t, 150, b.Tickets)
	assert.Equal(t, 150, f.events.booked(event.ID))

	_, _, err := f.svc.CreateBooking(context.Background(), bob, model.CreateBookingRequest{EventID: event.ID, Tickets: 51}, "")
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrConflict, svcErr.Kind)
	assert.Equal(t, "Only 50 tickets available", svcErr.Msg)
	assert.Equal(t, 150, f.events.booked(event.ID))
}

func TestCreateBooking_UnknownOrInactiveEvent(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	_, _, err := f.svc.CreateBooking(ctx, alice, model.CreateBookingRequest{EventID: "b0000000-0000-4000-8000-000000000009", Tickets: 1}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	event := f.events.add(10, 5)
	b := f.book(t, alice, event.ID, 2)
	require.NoError(t, f.eventSvc.DeleteEvent(ctx, admin, event.ID))

	_, _, err = f.svc.CreateBooking(ctx, bob, model.CreateBookingRequest{EventID: event.ID, Tickets: 1}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := f.eventSvc.ListEvents(ctx, model.EventFilter{}, model.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	historical, err := f.svc.GetBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	require.NotNil(t, historical.Event)
	assert.Equal(t, event.ID, historical.Event.ID)
	assert.False(t, historical.Event.IsActive)
}

func TestCreateBooking_IdempotencyKey(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)
	req := model.CreateBookingRequest{EventID: event.ID, Tickets: 2}

	first, created, err := f.svc.CreateBooking(ctx, alice, req, "retry-1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.CreateBooking(ctx, alice, req, "retry-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, f.events.booked(event.ID))

	// Another user with the same key gets their own booking.
	_, created, err = f.svc.CreateBooking(ctx, bob, req, "retry-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 4, f.events.booked(event.ID))

	_, _, err = f.svc.CreateBooking(ctx, alice, model.CreateBookingRequest{EventID: event.ID, Tickets: 3}, "retry-1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, f.events.booked(event.ID))
}

func TestCancelBooking_Twice(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)
	b := f.book(t, alice, event.ID, 4)
	f.book(t, bob, event.ID, 1)

	cancelled, err := f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 1, f.events.booked(event.ID))

	_, err = f.svc.CancelBooking(ctx, alice, b.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.events.booked(event.ID))
}

func TestCancelBooking_ConcurrentCancelsReleaseOnce(t *testing.T) {
	f := newBookingFixture()
	event := f.events.add(10, 5)
	b := f.book(t, alice, event.ID, 3)

	var (
		wg sync.WaitGroup
		ok atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CancelBooking(context.Background(), alice, b.ID); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.Equal(t, 0, f.events.booked(event.ID))
}

func TestBookingAccessPolicy(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)
	b := f.book(t, alice, event.ID, 2)

	_, err := f.svc.GetBooking(ctx, bob, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CancelBooking(ctx, bob, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 2, f.events.booked(event.ID))

	got, err := f.svc.GetBooking(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, got.UserID)

	_, err = f.svc.GetBooking(ctx, alice, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.GetBooking(ctx, alice, "b0000000-0000-4000-8000-000000000009")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBooking(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)
	live := f.book(t, alice, event.ID, 3)
	gone := f.book(t, alice, event.ID, 2)
	_, err := f.svc.CancelBooking(ctx, alice, gone.ID)
	require.NoError(t, err)
	require.Equal(t, 3, f.events.booked(event.ID))

	_, err = f.svc.DeleteBooking(ctx, alice, live.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.DeleteBooking(ctx, admin, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.events.booked(event.ID))

	_, err = f.svc.DeleteBooking(ctx, admin, live.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.events.booked(event.ID))

	_, err = f.svc.DeleteBooking(ctx, admin, live.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingNotifications(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(10, 5)

	b := f.book(t, alice, event.ID, 1)
	_, err := f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	_, err = f.svc.DeleteBooking(ctx, admin, b.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		model.NotificationBookingConfirmed,
		model.NotificationBookingCancelled,
		model.NotificationBookingDeleted,
	}, f.notifier.types())
}

func TestListBookings(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	event := f.events.add(100, 5)
	for i := 0; i < 12; i++ {
		f.book(t, alice, event.ID, 1)
	}
	f.book(t, bob, event.ID, 1)

	_, err := f.svc.ListBookings(ctx, alice, model.BookingFilter{}, model.NewPageRequest(1, 10))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ListBookings(ctx, admin, model.BookingFilter{Status: "shipped"}, model.NewPageRequest(1, 10))
	assert.ErrorIs(t, err, ErrInvalidInput)

	page, err := f.svc.ListBookings(ctx, admin, model.BookingFilter{UserID: alice.UserID}, model.NewPageRequest(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 2, page.Pages())
	assert.Len(t, page.Items, 2)

	mine, err := f.svc.ListMyBookings(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCanAccess(t *testing.T) {
	owner := alice.UserID
	assert.True(t, CanAccess(alice, owner))
	assert.True(t, CanAccess(admin, owner))
	assert.False(t, CanAccess(bob, owner))
	assert.False(t, CanAccess(model.Caller{}, ""))
}
