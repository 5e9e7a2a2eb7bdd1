package web

import (
	"crypto/subtle"
	"html/template"
	"log/slog"
	"net/http"

	"aliada/ms_informes_qbo/internal/infrastructure/config"
	"aliada/ms_informes_qbo/internal/infrastructure/http/middleware"
)

// AuthHandler serves the form login backed by the single configured
// operator account.
type AuthHandler struct {
	cfg       config.AuthSettings
	sessions  *middleware.Sessions
	templates *template.Template
	log       *slog.Logger
}

// NewAuthHandler creates the login handler.
func NewAuthHandler(cfg config.AuthSettings, sessions *middleware.Sessions, log *slog.Logger) (*AuthHandler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &AuthHandler{
		cfg:       cfg,
		sessions:  sessions,
		templates: templates,
		log:       log,
	}, nil
}

type loginPage struct {
	Error string
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, "login.html", loginPage{Error: r.URL.Query().Get("error")}, h.log)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Solicitud+inválida", http.StatusSeeOther)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.LoginUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.cfg.LoginPassword)) == 1
	if !userOK || !passOK {
		h.log.Warn("login rejected", "username", username)
		http.Redirect(w, r, "/login?error=Credenciales+incorrectas", http.StatusSeeOther)
		return
	}

	if err := h.sessions.Issue(w, username); err != nil {
		h.log.Error("session issue failed", "error", err)
		http.Redirect(w, r, "/login?error=Error+interno", http.StatusSeeOther)
		return
	}

	h.log.Info("login accepted", "username", username)
	http.Redirect(w, r, "/reports", http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
