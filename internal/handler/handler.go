// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// envelope is the body of every API response.
type envelope struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
	Count       *int   `json:"count,omitempty"`
	Total       *int   `json:"total,omitempty"`
	Pages       *int   `json:"pages,omitempty"`
	CurrentPage *int   `json:"currentPage,omitempty"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	writeJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Data: items})
}

func writePage[T any](w http.ResponseWriter, p model.Page[T]) {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	count, total, pages, current := len(items), p.Total, p.Pages(), p.Page
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Data:        items,
		Count:       &count,
		Total:       &total,
		Pages:       &pages,
		CurrentPage: &current,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// writeServiceError maps a service error to its HTTP status. Unclassified
// errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		writeError(w, statusFor(svcErr.Kind), svcErr.Msg)
		return
	}

	if errors.Is(err, ledger.ErrInvariantViolation) {
		log.Error().Err(err).Str("alarm", "data_integrity").Str("path", r.URL.Path).Msg("booking invariant violated")
		writeError(w, http.StatusInternalServerError, "Booking state could not be updated consistently")
		return
	}
	if errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("request cancelled by client")
		return
	}

	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Server error")
}

func statusFor(kind error) int {
	switch kind {
	case service.ErrInvalidInput:
		return http.StatusBadRequest
	case service.ErrUnauthenticated:
		return http.StatusUnauthorized
	case service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pageFrom(r *http.Request) model.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.NewPageRequest(page, limit)
}

// TooManyRequests is the rate limiter's rejection response.
func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusTooManyRequests, "Too many booking requests, please try again later")
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health. ping reports whether the database is
// reachable.
func HealthCheck(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
