package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// BookingService is what the booking handlers need from the service layer.
type BookingService interface {
	CreateBooking(ctx context.Context, caller model.Caller, req model.CreateBookingRequest, idempotencyKey string) (*model.Booking, bool, error)
	CancelBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error)
	DeleteBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error)
	GetBooking(ctx context.Context, caller model.Caller, id string) (*model.Booking, error)
	ListMyBookings(ctx context.Context, caller model.Caller) ([]model.Booking, error)
	ListBookings(ctx context.Context, caller model.Caller, f model.BookingFilter, p model.PageRequest) (model.Page[model.Booking], error)
}

// BookingHandler holds the HTTP handlers for bookings.
type BookingHandler struct {
	svc BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// CreateBooking handles POST /api/bookings
// A repeated request with the same Idempotency-Key returns the original
// booking with 200 instead of booking again.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	booking, created, err := h.svc.CreateBooking(r.Context(), callerFrom(r), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !created {
		writeData(w, http.StatusOK, "Booking already exists", booking)
		return
	}
	writeData(w, http.StatusCreated, "Booking created successfully", booking)
}

// MyBookings handles GET /api/bookings/my-bookings
func (h *BookingHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListMyBookings(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.GetBooking(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", booking)
}

// CancelBooking handles PUT /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.CancelBooking(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Booking cancelled successfully", booking)
}

// ListBookings handles GET /api/bookings (admin)
// Supports status, eventId, userId, page and limit.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.BookingFilter{
		Status:  model.BookingStatus(q.Get("status")),
		EventID: q.Get("eventId"),
		UserID:  q.Get("userId"),
	}

	page, err := h.svc.ListBookings(r.Context(), callerFrom(r), f, pageFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

// DeleteBooking handles DELETE /api/bookings/{id} (admin)
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteBooking(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Booking deleted successfully", nil)
}
