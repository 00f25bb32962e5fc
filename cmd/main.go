// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/ledger"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/notify"
	"github.com/Shivanand-hulikatti/event-booking/internal/ratelimit"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/Shivanand-hulikatti/event-booking/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := newLogger(cfg)

	if err := run(cfg, &log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Str("service", "event-booking").Logger()
}

func run(cfg *config.Config, log *zerolog.Logger) error {
	ctx := context.Background()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("database schema is up to date")

	// ── 2. Optional infrastructure ────────────────────────────────────────
	var notifier service.Notifier = notify.Nop{}
	if cfg.RabbitMQURL != "" {
		pub, err := notify.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer pub.Close()
		notifier = pub
		log.Info().Str("exchange", cfg.RabbitMQExchange).Msg("booking notifications enabled")
	}

	var bookingLimit func(http.Handler) http.Handler
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		limiter := ratelimit.New(rdb, "bookings", cfg.BookingRateLimit, cfg.RateLimitWindow, log)
		bookingLimit = limiter.Middleware(handler.RateLimitKey, handler.TooManyRequests)
		log.Info().Int("limit", cfg.BookingRateLimit).Dur("window", cfg.RateLimitWindow).Msg("booking rate limit enabled")
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}

	images, err := storage.NewImageStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("uploads: %w", err)
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	eventRepo := repository.NewEventRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool, ledger.New(log))
	userRepo := repository.NewUserRepository(pool)
	statsRepo := repository.NewAnalyticsRepository(pool)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpire)
	services := handler.Services{
		Events:    service.NewEventService(eventRepo, log),
		Bookings:  service.NewBookingService(bookingRepo, eventRepo, notifier, log),
		Auth:      service.NewAuthService(userRepo, verifier, tokens, cfg.AdminEmails, log),
		Users:     service.NewUserService(userRepo, statsRepo, log),
		Analytics: service.NewAnalyticsService(statsRepo, bookingRepo, eventRepo, log),
	}

	router := handler.NewRouter(log, services, handler.Options{
		FrontendURL:  cfg.FrontendURL,
		UploadDir:    images.Dir(),
		Images:       images,
		Ping:         pool.Ping,
		Metrics:      metrics.Handler(),
		BookingLimit: bookingLimit,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// newVerifier prefers an RS256 public key over a shared secret.
func newVerifier(cfg *config.Config) (auth.IdentityVerifier, error) {
	if cfg.IDPPublicKey != "" {
		return auth.NewRSAIdentityVerifier(cfg.IDPPublicKey, cfg.IDPIssuer, cfg.IDPAudience)
	}
	return auth.NewHMACIdentityVerifier(cfg.IDPSecret, cfg.IDPIssuer, cfg.IDPAudience), nil
}
