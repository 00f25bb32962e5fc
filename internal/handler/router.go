package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Services bundles the service layer behind the API.
type Services struct {
	Events    EventService
	Bookings  BookingService
	Auth      AuthService
	Users     UserService
	Analytics AnalyticsService
}

// Options configures the optional parts of the router.
type Options struct {
	FrontendURL string
	UploadDir   string
	Images      ImageStore
	Ping        func(context.Context) error
	Metrics     http.Handler
	// BookingLimit throttles POST /api/bookings. Nil disables it.
	BookingLimit func(http.Handler) http.Handler
}

// NewRouter builds the full HTTP surface.
func NewRouter(log *zerolog.Logger, svc Services, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS(opts.FrontendURL))

	r.Get("/health", HealthCheck(opts.Ping))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	events := NewEventHandler(svc.Events, opts.Images)
	bookings := NewBookingHandler(svc.Bookings)
	users := NewUserHandler(svc.Auth, svc.Users)
	analytics := NewAnalyticsHandler(svc.Analytics)

	authn := Authenticate(svc.Auth)
	limit := opts.BookingLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", users.Register)
			r.With(authn).Get("/me", users.Me)
			r.With(authn).Put("/profile", users.UpdateProfile)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.ListEvents)
			r.Get("/organizer/{organizerId}", events.ListByOrganizer)
			r.Get("/{id}", events.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(authn, RequireAdmin)
				r.Post("/", events.CreateEvent)
				r.Put("/{id}", events.UpdateEvent)
				r.Delete("/{id}", events.DeleteEvent)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(authn)
			r.With(limit).Post("/", bookings.CreateBooking)
			r.Get("/my-bookings", bookings.MyBookings)
			r.Get("/{id}", bookings.GetBooking)
			r.Put("/{id}/cancel", bookings.CancelBooking)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", bookings.ListBookings)
				r.Delete("/{id}", bookings.DeleteBooking)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn, RequireAdmin)
			r.Get("/", users.ListUsers)
			r.Get("/{id}", users.GetUser)
			r.Get("/{id}/stats", users.UserStats)
			r.Put("/{id}", users.UpdateUser)
			r.Delete("/{id}", users.DeleteUser)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Use(authn, RequireAdmin)
			r.Get("/dashboard", analytics.Dashboard)
			r.Get("/events", analytics.EventStats)
		})
	})

	return r
}
