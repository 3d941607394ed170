package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/config"
	"github.com/partnergate/partnergate/internal/db"
	"github.com/partnergate/partnergate/internal/dispatch"
	"github.com/partnergate/partnergate/internal/events"
	"github.com/partnergate/partnergate/internal/handlers"
	"github.com/partnergate/partnergate/internal/logger"
	"github.com/partnergate/partnergate/internal/registry"
	"github.com/partnergate/partnergate/internal/report"
	"github.com/partnergate/partnergate/internal/schedule"
	"github.com/partnergate/partnergate/internal/server"
	"github.com/partnergate/partnergate/internal/telegram"
	"github.com/partnergate/partnergate/internal/tenant"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideLocation,
			tenant.NewStore,
			provideTelegramClient,
			provideRegistry,
			provideBackOfficeClient,
			providePendingStore,
			provideDispatcher,
			provideEventCache,
			provideEventRouter,
			provideReportGenerator,
			provideScheduleService,
			providePingHandler,
			provideWebhookHandler,
			provideEventsHandler,
			provideAdminHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startBotReconciliation,
			startScheduleService,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideLocation(cfg config.Config, log *slog.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.Schedule.Location)
	if err != nil {
		log.Warn("unknown timezone, falling back to local",
			slog.String("location", cfg.Schedule.Location),
			slog.String("error", err.Error()))
		return time.Local
	}
	return loc
}

func provideTelegramClient(cfg config.Config) telegram.Client {
	return telegram.NewBotClient(cfg.Telegram)
}

func provideRegistry(client telegram.Client, cfg config.Config) *registry.Registry {
	return registry.New(client, cfg.Server.PublicBaseURL)
}

func provideBackOfficeClient(cfg config.Config) *backoffice.Client {
	return backoffice.NewClient(cfg.BackOffice)
}

func providePendingStore() *dispatch.PendingStore {
	return dispatch.NewPendingStore(dispatch.DefaultPendingTTL)
}

func provideDispatcher(client telegram.Client, office *backoffice.Client, store *tenant.Store, pending *dispatch.PendingStore) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(client, office, &settingsSourceAdapter{store: store}, pending)
}

func provideEventCache() *events.Cache {
	return events.NewCache(events.DefaultDedupWindow)
}

func provideEventRouter(cache *events.Cache, reg *registry.Registry, office *backoffice.Client, client telegram.Client, loc *time.Location) *events.Router {
	return events.NewRouter(cache, reg, office, client, loc)
}

func provideReportGenerator(loc *time.Location) report.Generator {
	return report.NewCSVGenerator(loc)
}

func provideScheduleService(store *tenant.Store, office *backoffice.Client, client telegram.Client, reports report.Generator, loc *time.Location) *schedule.Service {
	svc := schedule.NewService(&scheduleSourceAdapter{store: store}, loc)
	svc.RegisterTask(schedule.TaskKindBalanceAlert,
		schedule.NewBalanceAlertTask(&credentialSourceAdapter{store: store}, office, client, reports))
	return svc
}

func providePingHandler(log *slog.Logger, reg *registry.Registry) *handlers.PingHandler {
	return handlers.NewPingHandler(log, reg)
}

func provideWebhookHandler(log *slog.Logger, reg *registry.Registry, dispatcher *dispatch.Dispatcher) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, reg, dispatcher)
}

func provideEventsHandler(log *slog.Logger, router *events.Router) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, router)
}

func provideAdminHandler(log *slog.Logger, reg *registry.Registry, schedules *schedule.Service) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, reg, schedules)
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler, eventsHandler *handlers.EventsHandler, adminHandler *handlers.AdminHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, webhookHandler, eventsHandler, adminHandler)
}

func runMigrations(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database migrations applied")
	return nil
}

func startBotReconciliation(lc fx.Lifecycle, log *slog.Logger, reg *registry.Registry, store *tenant.Store) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		tenants, err := store.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list active tenants: %w", err)
		}
		regs := make([]registry.Registration, 0, len(tenants))
		for _, t := range tenants {
			settings, err := store.GetSettings(ctx, t.ID)
			if err != nil {
				log.Error("tenant settings load failed",
					slog.Int64("tenant_id", t.ID),
					slog.String("error", err.Error()))
				settings.Language = "ru"
			}
			regs = append(regs, registry.Registration{
				Token:            t.TelegramToken,
				DisplayName:      t.Name,
				TenantID:         t.ID,
				IntegrationToken: t.IntegrationToken,
				Language:         settings.Language,
			})
		}
		// Registration talks to the chat platform per bot, keep it off
		// the startup path.
		go reg.Reconcile(context.Background(), regs)
		return nil
	}})
}

func startScheduleService(lc fx.Lifecycle, svc *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return svc.Start(ctx) },
		OnStop:  func(ctx context.Context) error { svc.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// scheduleSourceAdapter exposes the tenant store as the schedule
// engine's configuration source.
type scheduleSourceAdapter struct {
	store *tenant.Store
}

func (a *scheduleSourceAdapter) ListEnabled(ctx context.Context) ([]schedule.Config, error) {
	return a.store.ListScheduleConfigs(ctx)
}

func (a *scheduleSourceAdapter) Get(ctx context.Context, id int64) (schedule.Config, bool, error) {
	return a.store.GetScheduleConfig(ctx, id)
}

// credentialSourceAdapter resolves tenant credentials for scheduled
// tasks. Inactive tenants resolve as not found so their runs no-op.
type credentialSourceAdapter struct {
	store *tenant.Store
}

func (a *credentialSourceAdapter) Credentials(ctx context.Context, tenantID int64) (schedule.TenantCredentials, bool, error) {
	t, found, err := a.store.Get(ctx, tenantID)
	if err != nil || !found || !t.IsActive {
		return schedule.TenantCredentials{}, false, err
	}
	settings, err := a.store.GetSettings(ctx, tenantID)
	if err != nil {
		return schedule.TenantCredentials{}, false, err
	}
	return schedule.TenantCredentials{
		TelegramToken:    t.TelegramToken,
		IntegrationToken: t.IntegrationToken,
		Language:         settings.Language,
	}, true, nil
}

// settingsSourceAdapter exposes tenant settings to the conversation
// dispatcher.
type settingsSourceAdapter struct {
	store *tenant.Store
}

func (a *settingsSourceAdapter) TenantSettings(ctx context.Context, tenantID int64) (dispatch.TenantSettings, error) {
	settings, err := a.store.GetSettings(ctx, tenantID)
	if err != nil {
		return dispatch.TenantSettings{}, err
	}
	return dispatch.TenantSettings{
		AllowSelfRegistration: settings.AllowSelfRegistration,
		PartnerGroupID:        settings.PartnerGroupID,
		Language:              settings.Language,
	}, nil
}
