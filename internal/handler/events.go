package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/storage"
)

// EventService is what the event handlers need from the service layer.
type EventService interface {
	CreateEvent(ctx context.Context, caller model.Caller, req model.CreateEventRequest) (*model.Event, error)
	UpdateEvent(ctx context.Context, caller model.Caller, id string, patch model.UpdateEventRequest) (*model.Event, error)
	DeleteEvent(ctx context.Context, caller model.Caller, id string) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, f model.EventFilter, p model.PageRequest) (model.Page[model.Event], error)
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
}

// ImageStore saves uploaded event images and returns their public path.
type ImageStore interface {
	Save(r io.Reader) (string, error)
	Remove(path string) error
}

// EventHandler holds the HTTP handlers for events.
type EventHandler struct {
	svc    EventService
	images ImageStore
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService, images ImageStore) *EventHandler {
	return &EventHandler{svc: svc, images: images}
}

// ListEvents handles GET /api/events
// Supports search, category, dateFrom, dateTo, page and limit.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.EventFilter{Search: q.Get("search"), Category: q.Get("category")}

	var err error
	if f.DateFrom, err = parseDate(q.Get("dateFrom")); err != nil {
		writeError(w, http.StatusBadRequest, "dateFrom has an invalid format")
		return
	}
	if f.DateTo, err = parseDate(q.Get("dateTo")); err != nil {
		writeError(w, http.StatusBadRequest, "dateTo has an invalid format")
		return
	}
	if f.DateTo != nil && len(q.Get("dateTo")) == len(time.DateOnly) {
		end := f.DateTo.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}

	page, err := h.svc.ListEvents(r.Context(), f, pageFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", event)
}

// ListByOrganizer handles GET /api/events/organizer/{organizerId}
func (h *EventHandler) ListByOrganizer(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEventsByOrganizer(r.Context(), chi.URLParam(r, "organizerId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, events)
}

// CreateEvent handles POST /api/events
// Accepts JSON, or multipart/form-data with an image file.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	var upload string
	if isMultipart(r) {
		form, err := h.readForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upload = form.image
		if req, err = form.createRequest(); err != nil {
			h.discard(r, upload)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), callerFrom(r), req)
	if err != nil {
		h.discard(r, upload)
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Event created successfully", event)
}

// UpdateEvent handles PUT /api/events/{id}
// Only allow-listed fields can be sent; anything else is rejected.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch model.UpdateEventRequest
	var upload string
	if isMultipart(r) {
		form, err := h.readForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upload = form.image
		if patch, err = form.updateRequest(); err != nil {
			h.discard(r, upload)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), callerFrom(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.discard(r, upload)
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event updated successfully", event)
}

// DeleteEvent handles DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event deleted successfully", nil)
}

// ─── Multipart forms ──────────────────────────────────────────────────────────

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

type eventForm struct {
	values map[string]string
	image  string
}

// readForm parses the form fields and stores the image file, if any.
func (h *EventHandler) readForm(w http.ResponseWriter, r *http.Request) (*eventForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+maxJSONBody)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		return nil, errors.New("invalid multipart form")
	}

	form := &eventForm{values: map[string]string{}}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			form.values[k] = v[0]
		}
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil
	case err != nil:
		return nil, errors.New("invalid image upload")
	}
	defer file.Close()

	if h.images == nil {
		return nil, errors.New("image uploads are not enabled")
	}
	path, err := h.images.Save(file)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrNotAnImage) {
			return nil, err
		}
		return nil, errors.New("could not store image")
	}
	form.image = path
	return form, nil
}

// discard removes an image stored for a request that was then rejected.
func (h *EventHandler) discard(r *http.Request, path string) {
	if path == "" || h.images == nil {
		return
	}
	if err := h.images.Remove(path); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("image", path).Msg("could not remove rejected upload")
	}
}

func (f *eventForm) str(key string) *string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	return &v
}

func (f *eventForm) createRequest() (model.CreateEventRequest, error) {
	patch, err := f.updateRequest()
	if err != nil {
		return model.CreateEventRequest{}, err
	}
	req := model.CreateEventRequest{}
	if patch.Title != nil {
		req.Title = *patch.Title
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.Date != nil {
		req.Date = *patch.Date
	}
	if patch.Time != nil {
		req.Time = *patch.Time
	}
	if patch.Location != nil {
		req.Location = *patch.Location
	}
	if patch.Price != nil {
		req.Price = *patch.Price
	}
	if patch.Capacity != nil {
		req.Capacity = *patch.Capacity
	}
	if patch.Image != nil {
		req.Image = *patch.Image
	}
	if patch.Category != nil {
		req.Category = *patch.Category
	}
	return req, nil
}

func (f *eventForm) updateRequest() (model.UpdateEventRequest, error) {
	p := model.UpdateEventRequest{
		Title:       f.str("title"),
		Description: f.str("description"),
		Time:        f.str("time"),
		Location:    f.str("location"),
		Image:       f.str("image"),
		Category:    f.str("category"),
	}
	if f.image != "" {
		p.Image = &f.image
	}
	if v := f.str("date"); v != nil {
		d, err := parseDate(*v)
		if err != nil || d == nil {
			return p, errors.New("date has an invalid format")
		}
		p.Date = d
	}
	if v := f.str("price"); v != nil {
		price, err := decimal.NewFromString(*v)
		if err != nil {
			return p, errors.New("price must be a number")
		}
		p.Price = &price
	}
	if v := f.str("capacity"); v != nil {
		c, err := strconv.Atoi(*v)
		if err != nil {
			return p, errors.New("capacity must be an integer")
		}
		p.Capacity = &c
	}
	if v := f.str("isActive"); v != nil {
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return p, errors.New("isActive must be a boolean")
		}
		p.IsActive = &b
	}
	return p, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date")
}
