package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	_ "time/tzdata"                            // Business-hours timezones without system zoneinfo

	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/events"
	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/linkpreview"
	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/messaging"
	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/pinger"
	postgresadapter "github.com/ericfisherdev/leadinbox/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/leadinbox/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/vault"
	httphandler "github.com/ericfisherdev/leadinbox/internal/adapter/driving/http"
	"github.com/ericfisherdev/leadinbox/internal/application"
	"github.com/ericfisherdev/leadinbox/internal/config"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
	"github.com/ericfisherdev/leadinbox/internal/security/session"
)

// stores is the set of persistence ports, backed by either SQLite or PostgreSQL.
type stores struct {
	agents       driven.WebhookAgentStore
	charges      driven.ChargeStore
	monitor      driven.MonitorStore
	rules        driven.AutoResponseStore
	hours        driven.BusinessHoursStore
	settings     driven.AutomationSettingsStore
	integrations driven.IntegrationStore
	ping         func(ctx context.Context) error
	close        func() error
}

// eventBus is the publisher wired into the services plus its lifecycle.
type eventBus interface {
	driven.EventPublisher
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"postgres", cfg.UsePostgres(),
		"keepalive_interval", cfg.KeepaliveInterval,
		"nats", cfg.NATSURL != "",
	)

	precedence, err := application.ParsePrecedence(cfg.AutomationPrecedence)
	if err != nil {
		return err
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the database and run migrations.
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Security primitives.
	secrets, err := vault.New(cfg.SecretKey)
	if err != nil {
		return err
	}
	tokens, err := session.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	// 5. Event bus. A broker outage never blocks startup.
	bus := openEventBus(cfg.NATSURL)
	defer func() {
		if closeErr := bus.Close(); closeErr != nil {
			slog.Error("error closing event bus", "error", closeErr)
		}
	}()

	// 6. Wire services.
	retry := reconnect.Options{MaxRetries: cfg.ReconnectMaxRetries, BaseDelay: cfg.ReconnectBaseDelay}
	dispatcher := application.NewDispatcher(logger, 10*time.Second)
	gateway := messaging.NewClient(cfg.GatewayTimeout)

	webhookSvc, err := application.NewWebhookService(st.agents, st.charges, secrets, bus, dispatcher, retry)
	if err != nil {
		return err
	}
	monitorSvc := application.NewMonitorService(st.monitor, secrets, pinger.New(cfg.KeepaliveTimeout), bus, dispatcher, retry)
	hoursSvc := application.NewBusinessHoursService(st.hours, retry)
	settingsSvc := application.NewSettingsService(st.settings, retry)
	credentialSvc := application.NewCredentialService(st.integrations, secrets, retry)

	scheduler := application.NewKeepaliveScheduler(monitorSvc, cfg.KeepaliveInterval)
	go scheduler.Start(ctx)

	svc := httphandler.Services{
		Webhooks:      webhookSvc,
		Monitor:       monitorSvc,
		Keepalive:     scheduler,
		AutoResponses: application.NewAutoResponseService(st.rules, retry),
		BusinessHours: hoursSvc,
		Settings:      settingsSvc,
		Automation: application.NewAutomationService(
			st.rules, hoursSvc, settingsSvc, credentialSvc, gateway, bus, dispatcher, precedence, retry,
		),
		Credentials: credentialSvc,
		Messaging:   application.NewMessagingService(gateway, credentialSvc, linkpreview.NewFetcher(cfg.PreviewTimeout, logger)),
		Health: application.NewHealthService(2*time.Second,
			application.HealthProbe{Name: "database", Check: st.ping},
			application.HealthProbe{Name: "events", Check: bus.Ping},
		),
	}
	if cfg.CronToken == "" {
		slog.Warn("LEADINBOX_CRON_TOKEN not set, cron endpoints disabled")
	}

	// 7. HTTP server.
	handler := httphandler.NewServeMux(httphandler.NewHandler(svc, tokens, cfg.CronToken, logger), logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("leadinbox started", "listen_addr", cfg.ListenAddr, "precedence", precedence)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown: stop accepting requests, then drain background tasks.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		slog.Error("background tasks did not finish", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.UsePostgres() {
		db, err := postgresadapter.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres database opened")
		return &stores{
			agents:       postgresadapter.NewWebhookAgentRepo(db),
			charges:      postgresadapter.NewChargeRepo(db),
			monitor:      postgresadapter.NewMonitorRepo(db),
			rules:        postgresadapter.NewAutoResponseRepo(db),
			hours:        postgresadapter.NewBusinessHoursRepo(db),
			settings:     postgresadapter.NewSettingsRepo(db),
			integrations: postgresadapter.NewIntegrationRepo(db),
			ping:         db.PingContext,
			close:        db.Close,
		}, nil
	}

	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	version, err := sqliteadapter.SchemaVersion(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite database opened", "path", db.Path(), "schema_version", version)
	return &stores{
		agents:       sqliteadapter.NewWebhookAgentRepo(db),
		charges:      sqliteadapter.NewChargeRepo(db),
		monitor:      sqliteadapter.NewMonitorRepo(db),
		rules:        sqliteadapter.NewAutoResponseRepo(db),
		hours:        sqliteadapter.NewBusinessHoursRepo(db),
		settings:     sqliteadapter.NewSettingsRepo(db),
		integrations: sqliteadapter.NewIntegrationRepo(db),
		ping:         db.PingContext,
		close:        db.Close,
	}, nil
}

func openEventBus(url string) eventBus {
	if url == "" {
		slog.Info("no NATS url configured, events are discarded")
		return events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(url)
	if err != nil {
		slog.Warn("NATS unavailable, events are discarded", "error", err)
		return events.NoopPublisher{}
	}
	slog.Info("connected to NATS", "url", url)
	return pub
}
