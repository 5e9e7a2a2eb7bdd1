// Package server mounts the web surface on a chi router.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"aliada/ms_informes_qbo/internal/adapters/http/health"
	"aliada/ms_informes_qbo/internal/adapters/http/web"
	infrahttp "aliada/ms_informes_qbo/internal/infrastructure/http"
	"aliada/ms_informes_qbo/internal/infrastructure/http/middleware"
)

// Server owns the HTTP listener and its routes.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
}

// Options carries the handlers and middleware the router mounts.
type Options struct {
	Addr     string
	Logger   *slog.Logger
	Sessions *middleware.Sessions
	Auth     *web.AuthHandler
	Connect  *web.ConnectHandler
	Reports  *web.ReportsHandler
	Health   *health.Handler
}

// New builds the router and the HTTP server around it.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Sessions == nil || opts.Auth == nil || opts.Connect == nil || opts.Reports == nil {
		return nil, errors.New("all handlers are required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		infrahttp.WriteError(w, http.StatusNotFound, "Recurso no encontrado", nil, opts.Logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		infrahttp.WriteError(w, http.StatusMethodNotAllowed, "Método no permitido", nil, opts.Logger)
	})

	if opts.Health != nil {
		r.Get("/health", opts.Health.Status)
	}

	r.Get("/login", opts.Auth.LoginPage)
	r.Post("/login", opts.Auth.Login)
	r.Get("/logout", opts.Auth.Logout)
	r.Post("/logout", opts.Auth.Logout)

	// Intuit redirects here without any guarantee the session survived the
	// authorization round trip; the state cookie is the check that matters.
	r.Get("/callback", opts.Connect.Callback)

	r.Group(func(r chi.Router) {
		r.Use(opts.Sessions.Middleware)

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/reports", http.StatusSeeOther)
		})
		r.Get("/connect", opts.Connect.Connect)
		r.Get("/reports", opts.Reports.ReportsPage)
		r.Post("/run-report", opts.Reports.RunReport)
		r.Get("/download/report.xlsx", opts.Reports.DownloadGeneric)
		r.Get("/download/informe43-pyg.xlsx", opts.Reports.DownloadInformePyG)
		r.Get("/download/informe43-itbms.xlsx", opts.Reports.DownloadInformeITBMS)
	})

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{log: opts.Logger, httpServer: srv}, nil
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
