package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const stateCookie = "oauth_state"

// OAuthManager is the OAuth surface the connect flow needs.
type OAuthManager interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code, realmID string) error
}

// ConnectHandler drives the QuickBooks authorization-code flow.
type ConnectHandler struct {
	oauth OAuthManager
	log   *slog.Logger
}

// NewConnectHandler creates the connect handler.
func NewConnectHandler(oauth OAuthManager, log *slog.Logger) *ConnectHandler {
	return &ConnectHandler{oauth: oauth, log: log}
}

// Connect handles GET /connect: mints a state nonce and sends the
// browser to Intuit.
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusSeeOther)
}

// Callback handles GET /callback from Intuit.
func (h *ConnectHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		h.log.Warn("oauth state mismatch")
		redirectWithError(w, r, "La autorización no pudo verificarse, intente de nuevo")
		return
	}

	// The nonce is single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	if errCode := query.Get("error"); errCode != "" {
		h.log.Warn("oauth authorization denied", "error", errCode)
		redirectWithError(w, r, "QuickBooks rechazó la autorización")
		return
	}

	if err := h.oauth.Exchange(r.Context(), query.Get("code"), query.Get("realmId")); err != nil {
		h.log.Error("oauth exchange failed", "error", err)
		redirectWithError(w, r, "No fue posible conectar con QuickBooks")
		return
	}

	http.Redirect(w, r, "/reports?notice="+url.QueryEscape("Compañía conectada"), http.StatusSeeOther)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/reports?error="+url.QueryEscape(message), http.StatusSeeOther)
}
