package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	credpostgres "aliada/ms_informes_qbo/internal/adapters/credential/postgres"
	"aliada/ms_informes_qbo/internal/adapters/excel"
	healthhttp "aliada/ms_informes_qbo/internal/adapters/http/health"
	"aliada/ms_informes_qbo/internal/adapters/http/web"
	"aliada/ms_informes_qbo/internal/adapters/qbo"
	"aliada/ms_informes_qbo/internal/application/export"
	apphealth "aliada/ms_informes_qbo/internal/application/health"
	"aliada/ms_informes_qbo/internal/infrastructure/config"
	"aliada/ms_informes_qbo/internal/infrastructure/database"
	infrahttp "aliada/ms_informes_qbo/internal/infrastructure/http"
	"aliada/ms_informes_qbo/internal/infrastructure/http/middleware"
	"aliada/ms_informes_qbo/internal/infrastructure/http/server"
	"aliada/ms_informes_qbo/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := credpostgres.NewStore(pool, log)

	if !cfg.QuickBooks.OAuthConfigured() {
		log.Warn("QuickBooks OAuth credentials not configured, the connect flow will fail until QBO_CLIENT_ID and QBO_CLIENT_SECRET are set")
	}

	oauthManager := qbo.NewSessionManager(qbo.OAuthSettings{
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		RedirectURI:  cfg.QuickBooks.RedirectURI,
		Scopes:       cfg.QuickBooks.Scopes,
		Skew:         cfg.QuickBooks.TokenSkew,
	}, store, log)

	qboClient := qbo.NewClient(
		cfg.QuickBooks.APIBaseURL(),
		cfg.QuickBooks.MinorVersion,
		oauthManager,
		infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.QuickBooks.APITimeout}),
		log,
	)

	exports := export.NewService(qboClient, excel.NewRenderer(log), log)

	sessions := middleware.NewSessions(cfg.Auth, log)

	authHandler, err := web.NewAuthHandler(cfg.Auth, sessions, log)
	if err != nil {
		return fmt.Errorf("build auth handler: %w", err)
	}
	reportsHandler, err := web.NewReportsHandler(exports, cfg.Auth.SessionSecret, log)
	if err != nil {
		return fmt.Errorf("build reports handler: %w", err)
	}

	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, store)

	srv, err := server.New(server.Options{
		Addr:     cfg.HTTP.Address(),
		Logger:   log,
		Sessions: sessions,
		Auth:     authHandler,
		Connect:  web.NewConnectHandler(oauthManager, log),
		Reports:  reportsHandler,
		Health:   healthhttp.NewHandler(healthService),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	log.Info("Service started",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"qbo_environment", cfg.QuickBooks.Environment)

	return srv.Run(ctx)
}
