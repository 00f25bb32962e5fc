// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the booking service.
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string
	FrontendURL string

	Database Database

	// Session tokens issued by this service
	JWTSecret string
	JWTExpire time.Duration

	// External identity provider
	IDPSecret    string
	IDPPublicKey string
	IDPIssuer    string
	IDPAudience  string

	// Emails promoted to admin on first sign-in
	AdminEmails []string

	// Redis backed rate limiting; disabled when RedisURL is empty
	RedisURL         string
	BookingRateLimit int
	RateLimitWindow  time.Duration

	// RabbitMQ booking notifications; disabled when RabbitMQURL is empty
	RabbitMQURL      string
	RabbitMQExchange string

	UploadDir string
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "eventbooking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 2)),
		},

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpire: getEnvAsDuration("JWT_EXPIRE", "168h"),

		IDPSecret:    getEnv("IDP_SECRET", ""),
		IDPPublicKey: getEnv("IDP_PUBLIC_KEY", ""),
		IDPIssuer:    getEnv("IDP_ISSUER", ""),
		IDPAudience:  getEnv("IDP_AUDIENCE", ""),

		AdminEmails: getEnvAsList("ADMIN_EMAILS"),

		RedisURL:         getEnv("REDIS_URL", ""),
		BookingRateLimit: getEnvAsInt("BOOKING_RATE_LIMIT", 20),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "bookings"),

		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IDPSecret == "" && c.IDPPublicKey == "" {
		return fmt.Errorf("one of IDP_SECRET or IDP_PUBLIC_KEY is required")
	}
	if c.BookingRateLimit < 1 {
		return fmt.Errorf("BOOKING_RATE_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, fallback)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
