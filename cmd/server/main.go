package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"agenda-service/internal/app"
	"agenda-service/internal/auth"
	"agenda-service/internal/booking"
	"agenda-service/internal/cache"
	"agenda-service/internal/config"
	"agenda-service/internal/gcal"
	"agenda-service/internal/server"
	"agenda-service/internal/store"
	"agenda-service/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database ping failed")
	}

	kv := cache.NewMemory()
	defer kv.Close()

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	clients := gcal.NewGoogleClients(oauthCfg, cfg.ExternalTimeout)
	checker := gcal.NewChecker(clients)

	reconciler := sync.NewReconciler(st, clients, logger)
	defer reconciler.Close()

	authMgr := auth.NewManager(oauthCfg, kv, st, clients, cfg.AuthStartLimit, cfg.RefreshLead, logger)
	bookingSvc := booking.NewService(st, checker, reconciler, logger)

	if cfg.GoogleConfigured() {
		go reconciler.Run(ctx)
		go reconciler.RunMaintenance(ctx, sync.WebhookConfig{
			CallbackURL:  cfg.WebhookCallbackURL,
			PollInterval: cfg.PollInterval,
		})
	} else {
		logger.Warn().Msg("google credentials absent, calendar sync disabled")
	}

	application := &app.App{
		Store:   st,
		Booking: bookingSvc,
		Auth:    authMgr,
		Checker: checker,
		Sync:    reconciler,
		Log:     logger,
	}

	rl := auth.NewRateLimiter(10, 20)
	router := application.Router(cfg.StaticTokens, cfg.JWTSecret, rl)

	addr := ":8080"
	if cfg.Port != "" {
		addr = ":" + cfg.Port
	}
	if err := server.Run(ctx, router, addr, logger); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}
