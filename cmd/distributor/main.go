// Command distributor runs the Distributor process: the HTTP API fronting
// the Issuance Engine, the operator console, and the notification worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/cache/redisqueue"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/httpserver"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify/asynqnotify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/promo-harvester/internal/app"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
	"github.com/fairyhunter13/promo-harvester/internal/issuance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Bootstrap(ctx, pool); err != nil {
		slog.Error("schema bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	codesRepo := postgres.NewCodesRepo(pool)
	usersRepo := postgres.NewUsersRepo(pool)
	warmTier := redisqueue.New(rdb)

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started",
			slog.Int("retention_days", cfg.DataRetentionDays),
			slog.Duration("interval", cfg.CleanupInterval))
	}

	rawGames, err := config.LoadGames(cfg.GamesFile)
	if err != nil {
		slog.Error("loading game catalog failed", slog.Any("error", err))
		os.Exit(1)
	}
	boostedOverride := make(map[string]bool, len(cfg.BoostedGames))
	for _, g := range cfg.BoostedGames {
		boostedOverride[g] = true
	}

	gameNames := make([]string, 0, len(rawGames))
	boostedNames := make([]string, 0, len(rawGames))
	inventories := make(map[string]*inventory.Service, len(rawGames))
	for _, g := range rawGames {
		gameNames = append(gameNames, g.Name)
		if g.Boosted || boostedOverride[g.Name] {
			boostedNames = append(boostedNames, g.Name)
		}
		inventories[g.Name] = inventory.New(codesRepo, warmTier)
	}

	engine := issuance.New(usersRepo, usersRepo, domain.DefaultLimits(), boostedNames, inventories)
	dashboard := issuance.NewDashboard(usersRepo, inventories, cfg.PopularityCoefficient)

	notifyQueue, err := asynqnotify.New(cfg.RedisURL)
	if err != nil {
		slog.Error("notification queue init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer notifyQueue.Close()

	if cfg.BotToken == "" {
		slog.Warn("BOT_TOKEN not set; notifications will be logged by the stub notifier only")
	}
	if cfg.AdminGroupChatID != "" {
		slog.Info("admin group forwarding enabled", slog.String("chat_id", cfg.AdminGroupChatID))
	}
	notifier := notify.NewStubNotifier()
	notifyWorker, err := asynqnotify.NewWorker(cfg.RedisURL, notifier, cfg.NotifyConcurrency)
	if err != nil {
		slog.Error("notification worker init failed", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := notifyWorker.Start(ctx); err != nil {
			slog.Error("notification worker stopped with error", slog.Any("error", err))
		}
	}()
	defer notifyWorker.Stop()

	correlator := notify.NewForwardCorrelator(cfg.ForwardCorrelatorCapacity)

	srv := httpserver.NewServer(cfg, engine, dashboard, usersRepo, pool, rdb)
	handler := app.BuildRouter(cfg, srv, notifyQueue, correlator, gameNames)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("distributor http server starting", slog.Int("port", cfg.Port), slog.Int("games", len(gameNames)))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
	slog.Info("distributor stopped")
}
