package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App        AppSettings
	HTTP       HTTPSettings
	Auth       AuthSettings
	Log        LogSettings
	Database   DatabaseSettings
	QuickBooks QuickBooksSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthSettings configures the form login and the signed session cookie.
type AuthSettings struct {
	LoginUser     string
	LoginPassword string
	SessionSecret string
	SessionTTL    time.Duration
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// QuickBooksSettings holds the OAuth2 application credentials and API knobs
// for the connected QuickBooks Online company.
type QuickBooksSettings struct {
	Environment  string // "sandbox" or "production"
	ClientID     string
	ClientSecret string
	RedirectURI  string
	MinorVersion string
	Scopes       []string
	APITimeout   time.Duration
	TokenSkew    time.Duration // refresh this early before access token expiry
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	// This allows the application to work both with .env files (local dev)
	// and environment variables (hosted deployments)
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_informes_qbo"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			LoginUser:     getEnv("LOGIN_USER", "admin"),
			LoginPassword: strings.TrimSpace(os.Getenv("LOGIN_PASS")),
			SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_informes_qbo"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		QuickBooks: QuickBooksSettings{
			Environment:  strings.ToLower(getEnv("QBO_ENV", "sandbox")),
			ClientID:     strings.TrimSpace(os.Getenv("QBO_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("QBO_CLIENT_SECRET")),
			RedirectURI:  strings.TrimSpace(os.Getenv("QBO_REDIRECT_URI")),
			MinorVersion: getEnv("QBO_MINORVERSION", "75"),
			Scopes:       getEnvAsCSV("QBO_SCOPES", []string{"com.intuit.quickbooks.accounting"}),
			APITimeout:   getEnvAsDuration("QBO_API_TIMEOUT", 30*time.Second),
			TokenSkew:    getEnvAsDuration("QBO_TOKEN_SKEW", 60*time.Second),
		},
	}

	if cfg.QuickBooks.Environment != "sandbox" && cfg.QuickBooks.Environment != "production" {
		return cfg, errors.New("invalid config: QBO_ENV must be 'sandbox' or 'production'")
	}
	if cfg.Auth.SessionSecret == "" {
		return cfg, errors.New("invalid config: SESSION_SECRET is required")
	}
	if cfg.Auth.LoginPassword == "" {
		return cfg, errors.New("invalid config: LOGIN_PASS is required")
	}

	return cfg, nil
}

// APIBaseURL returns the QuickBooks REST base URL for the configured environment.
func (q QuickBooksSettings) APIBaseURL() string {
	if q.Environment == "production" {
		return "https://quickbooks.api.intuit.com"
	}
	return "https://sandbox-quickbooks.api.intuit.com"
}

// OAuthConfigured reports whether the OAuth application credentials are present.
func (q QuickBooksSettings) OAuthConfigured() bool {
	return q.ClientID != "" && q.ClientSecret != "" && q.RedirectURI != ""
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
