package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

var testLog = zerolog.New(io.Discard)

var (
	admin = model.Caller{UserID: "a0000000-0000-4000-8000-000000000001", Email: "admin@example.com", Role: model.RoleAdmin}
	alice = model.Caller{UserID: "a0000000-0000-4000-8000-000000000002", Email: "alice@example.com", Role: model.RoleUser}
	bob   = model.Caller{UserID: "a0000000-0000-4000-8000-000000000003", Email: "bob@example.com", Role: model.RoleUser}
)

// fakeEvents keeps events in memory. reserve and release follow the ledger's
// conditional update rules under one mutex.
type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*model.Event
	// onReserve runs under the lock just before the capacity check, the
	// point where the real ledger takes the row lock.
	onReserve func(e *model.Event)
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: map[string]*model.Event{}}
}

func (f *fakeEvents) add(capacity int, price int64) *model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &model.Event{
		ID:          uuid.NewString(),
		Title:       "Go meetup",
		Date:        time.Now().Add(72 * time.Hour).UTC(),
		Price:       decimal.NewFromInt(price),
		Capacity:    capacity,
		IsActive:    true,
		OrganizerID: admin.UserID,
	}
	f.events[e.ID] = e
	cp := *e
	return &cp
}

func (f *fakeEvents) booked(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id].BookedTickets
}

func (f *fakeEvents) reserve(id string, n int) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 {
		return decimal.Zero, ledger.ErrInvalidCount
	}
	e, ok := f.events[id]
	if !ok || !e.IsActive {
		return decimal.Zero, ledger.ErrEventNotFound
	}
	if f.onReserve != nil {
		f.onReserve(e)
	}
	if e.BookedTickets+n > e.Capacity {
		return decimal.Zero, &ledger.InsufficientCapacityError{EventID: id, Requested: n, Available: e.Capacity - e.BookedTickets}
	}
	e.BookedTickets += n
	return e.Price, nil
}

func (f *fakeEvents) release(id string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return ledger.ErrEventNotFound
	}
	if e.BookedTickets-n < 0 {
		return ledger.ErrInvariantViolation
	}
	e.BookedTickets -= n
	return nil
}

func (f *fakeEvents) Create(_ context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &model.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Image:       req.Image,
		Category:    req.Category,
		IsActive:    true,
		OrganizerID: organizerID,
	}
	f.events[e.ID] = e
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) sorted(keep func(*model.Event) bool) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Event{}
	for _, e := range f.events {
		if e.IsActive && keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (f *fakeEvents) List(_ context.Context, filter model.EventFilter, p model.PageRequest) ([]model.Event, int, error) {
	all := f.sorted(func(e *model.Event) bool {
		return filter.Search == "" || strings.Contains(strings.ToLower(e.Title), strings.ToLower(filter.Search))
	})
	return paginate(all, p), len(all), nil
}

func (f *fakeEvents) ListByOrganizer(_ context.Context, organizerID string) ([]model.Event, error) {
	return f.sorted(func(e *model.Event) bool { return e.OrganizerID == organizerID }), nil
}

func (f *fakeEvents) ListUpcoming(_ context.Context, from time.Time, limit int) ([]model.Event, error) {
	out := f.sorted(func(e *model.Event) bool { return !e.Date.Before(from) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEvents) Update(_ context.Context, id string, p model.UpdateEventRequest) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Capacity != nil && *p.Capacity < e.BookedTickets {
		return nil, repository.ErrCapacityBelowBooked
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.IsActive = false
	return nil
}

func paginate[T any](items []T, p model.PageRequest) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// fakeBookings pairs each booking write with the matching fake ledger call,
// the same way the repository does inside one transaction.
type fakeBookings struct {
	mu       sync.Mutex
	events   *fakeEvents
	bookings map[string]*model.Booking
	seq      int
}

func newFakeBookings(events *fakeEvents) *fakeBookings {
	return &fakeBookings{events: events, bookings: map[string]*model.Booking{}}
}

func (f *fakeBookings) joined(b *model.Booking) *model.Booking {
	cp := *b
	if e, err := f.events.GetByID(context.Background(), b.EventID); err == nil {
		cp.Event = &model.EventSummary{ID: e.ID, Title: e.Title, Date: e.Date, Price: e.Price, IsActive: e.IsActive}
	}
	return &cp
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.ID]; ok {
		return false, nil
	}
	price, err := f.events.reserve(b.EventID, b.Tickets)
	if err != nil {
		return false, err
	}
	f.seq++
	cp := *b
	cp.TotalPrice = price.Mul(decimal.NewFromInt(int64(b.Tickets)))
	cp.CreatedAt = time.Unix(int64(f.seq), 0)
	cp.BookingDate = cp.CreatedAt
	f.bookings[b.ID] = &cp
	return true, nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.joined(b), nil
}

func (f *fakeBookings) all(keep func(*model.Booking) bool) []model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Booking{}
	for _, b := range f.bookings {
		if keep(b) {
			out = append(out, *f.joined(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeBookings) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	return f.all(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (f *fakeBookings) ListRecent(_ context.Context, limit int) ([]model.Booking, error) {
	out := f.all(func(*model.Booking) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBookings) List(_ context.Context, filter model.BookingFilter, p model.PageRequest) ([]model.Booking, int, error) {
	out := f.all(func(b *model.Booking) bool {
		return (filter.Status == "" || b.Status == filter.Status) &&
			(filter.EventID == "" || b.EventID == filter.EventID) &&
			(filter.UserID == "" || b.UserID == filter.UserID)
	})
	return paginate(out, p), len(out), nil
}

func (f *fakeBookings) Cancel(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return nil, repository.ErrBookingAlreadyCancelled
	}
	if err := f.events.release(b.EventID, b.Tickets); err != nil {
		return nil, err
	}
	b.Status = model.BookingCancelled
	b.PaymentStatus = model.PaymentRefunded
	return f.joined(b), nil
}

func (f *fakeBookings) Delete(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != model.BookingCancelled {
		if err := f.events.release(b.EventID, b.Tickets); err != nil {
			return nil, err
		}
	}
	delete(f.bookings, id)
	return f.joined(b), nil
}

// activeTickets sums non-cancelled bookings of an event.
func (f *fakeBookings) activeTickets(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.EventID == eventID && b.Status != model.BookingCancelled {
			n += b.Tickets
		}
	}
	return n
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*model.User{}}
}

func (f *fakeUsers) UpsertFromIdentity(_ context.Context, u *model.User) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, existing := range f.users {
		if existing.SubjectID == u.SubjectID {
			existing.LastLogin = &now
			cp := *existing
			return &cp, false, nil
		}
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return nil, false, repository.ErrDuplicate
		}
	}
	nu := *u
	nu.ID = uuid.NewString()
	nu.IsActive = true
	nu.LastLogin = &now
	f.users[nu.ID] = &nu
	cp := nu
	return &cp, true, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, p model.UpdateProfileRequest) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, p model.UpdateUserRequest) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Email != nil {
		for _, other := range f.users {
			if other.ID != id && other.Email == *p.Email {
				return nil, repository.ErrDuplicate
			}
		}
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (f *fakeUsers) List(_ context.Context, filter model.UserFilter, p model.PageRequest) ([]model.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.users {
		if filter.Role == "" || u.Role == filter.Role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, p), len(out), nil
}

type fakeAnalytics struct {
	since     time.Time
	stats     []model.EventStats
	userStats model.UserStats
}

func (f *fakeAnalytics) Overview(context.Context) (model.Overview, map[string]int, map[string]int, error) {
	return model.Overview{TotalEvents: 2, TotalBookings: 3, TotalRevenue: decimal.NewFromInt(90), TotalUsers: 4},
		map[string]int{"active": 2, "inactive": 0},
		map[string]int{"pending": 0, "confirmed": 2, "cancelled": 1},
		nil
}

func (f *fakeAnalytics) MonthlyRevenue(_ context.Context, since time.Time) ([]model.MonthlyRevenue, error) {
	f.since = since
	return []model.MonthlyRevenue{}, nil
}

func (f *fakeAnalytics) EventStats(_ context.Context, id string) (model.EventStats, error) {
	for _, s := range f.stats {
		if s.ID == id {
			return s, nil
		}
	}
	return model.EventStats{}, repository.ErrNotFound
}

func (f *fakeAnalytics) AllEventStats(context.Context) ([]model.EventStats, error) {
	return f.stats, nil
}

func (f *fakeAnalytics) UserStats(context.Context, string) (model.UserStats, error) {
	return f.userStats, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.BookingNotification
}

func (r *recordingNotifier) Publish(_ context.Context, n model.BookingNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Type
	}
	return out
}

// fakeVerifier accepts the tokens it was given.
type fakeVerifier map[string]auth.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := f[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}
