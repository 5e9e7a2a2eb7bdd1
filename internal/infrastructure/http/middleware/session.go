// Package middleware holds the HTTP middleware of the service.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aliada/ms_informes_qbo/internal/infrastructure/config"
)

const sessionCookie = "session"

// ContextKeyUser exposes the authenticated username via request context.
type ContextKeyUser struct{}

// Sessions issues and validates the signed session cookie of the web
// login. Tokens are HS256 and carry only the username and expiry.
type Sessions struct {
	cfg config.AuthSettings
	log *slog.Logger
	now func() time.Time
}

// NewSessions creates a session cookie manager.
func NewSessions(cfg config.AuthSettings, log *slog.Logger) *Sessions {
	return &Sessions{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

// Issue writes a fresh session cookie for the given user.
func (s *Sessions) Issue(w http.ResponseWriter, username string) error {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware requires a valid session cookie and redirects browsers to
// the login page otherwise.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := s.validate(r)
		if err != nil {
			s.log.Debug("session rejected", "path", r.URL.Path, "error", err)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser{}, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) validate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", errors.New("missing session cookie")
	}

	token, err := jwt.ParseWithClaims(cookie.Value, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return []byte(s.cfg.SessionSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", errors.New("invalid session token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("malformed session claims")
	}
	return claims.Subject, nil
}

// UserFromContext returns the username stored by the middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(ContextKeyUser{}).(string)
	return username, ok
}
