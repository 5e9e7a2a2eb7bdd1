package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aliada/ms_informes_qbo/internal/infrastructure/config"
	"aliada/ms_informes_qbo/internal/testutil"
)

func newSessions(t *testing.T) *Sessions {
	t.Helper()

	return NewSessions(config.AuthSettings{
		LoginUser:     "admin",
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}, testutil.NewNullLogger())
}

func protectedHandler(t *testing.T, wantUser string) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user != wantUser {
			t.Errorf("user in context = %q, %v; want %q", user, ok, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestIssueThenMiddleware_AllowsRequest(t *testing.T) {
	sessions := newSessions(t)

	rec := httptest.NewRecorder()
	if err := sessions.Issue(rec, "admin"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cookie := sessionCookieFrom(t, rec)

	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()

	sessions.Middleware(protectedHandler(t, "admin")).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.Code)
	}
}

func TestMiddleware_MissingCookieRedirectsToLogin(t *testing.T) {
	sessions := newSessions(t)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	resp := httptest.NewRecorder()

	sessions.Middleware(protectedHandler(t, "")).ServeHTTP(resp, req)

	if resp.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestMiddleware_ExpiredSessionRedirects(t *testing.T) {
	sessions := newSessions(t)

	rec := httptest.NewRecorder()
	if err := sessions.Issue(rec, "admin"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cookie := sessionCookieFrom(t, rec)

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()

	sessions.Middleware(protectedHandler(t, "")).ServeHTTP(resp, req)

	if resp.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want redirect for expired session", resp.Code)
	}
}

func TestMiddleware_TamperedTokenRedirects(t *testing.T) {
	sessions := newSessions(t)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-token"})
	resp := httptest.NewRecorder()

	sessions.Middleware(protectedHandler(t, "")).ServeHTTP(resp, req)

	if resp.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want redirect for tampered token", resp.Code)
	}
}

func TestClear_ExpiresCookie(t *testing.T) {
	sessions := newSessions(t)

	rec := httptest.NewRecorder()
	sessions.Clear(rec)

	cookie := sessionCookieFrom(t, rec)
	if cookie.MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Errorf("Value = %q, want empty", cookie.Value)
	}
}
