// Command harvester runs the Supervisor that keeps the promo-code Worker
// fleet alive against the upstream promo API, persisting minted codes into
// the durable Code Inventory.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/promoapi"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/harvester"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("harvester metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	codesRepo := postgres.NewCodesRepo(pool)

	rawGames, err := config.LoadGames(cfg.GamesFile)
	if err != nil {
		slog.Error("loading game catalog failed", slog.Any("error", err))
		os.Exit(1)
	}
	boosted := make(map[string]bool, len(cfg.BoostedGames))
	for _, g := range cfg.BoostedGames {
		boosted[g] = true
	}
	games := make([]domain.GameSpec, 0, len(rawGames))
	for _, g := range rawGames {
		games = append(games, domain.GameSpec{
			Name:      g.Name,
			AppToken:  g.AppToken,
			PromoID:   g.PromoID,
			BaseDelay: g.BaseDelay,
			Attempts:  g.Attempts,
			Copies:    g.Copies,
			Boosted:   g.Boosted || boosted[g.Name],
		})
	}

	catalog, err := harvester.NewCatalog(games)
	if err != nil {
		slog.Error("building game catalog failed", slog.Any("error", err))
		os.Exit(1)
	}

	proxyURLs, err := config.LoadProxies(cfg.ProxiesFile)
	if err != nil {
		slog.Error("loading proxy list failed", slog.Any("error", err))
		os.Exit(1)
	}
	proxies := make([]domain.ProxySpec, 0, len(proxyURLs))
	for _, u := range proxyURLs {
		proxies = append(proxies, domain.ProxySpec{URL: u})
	}
	proxyPool := harvester.NewProxyPool(proxies)

	promoClient := promoapi.New(cfg.PromoAPITimeout)

	supervisor, err := harvester.NewSupervisor(catalog, proxyPool, promoClient, codesRepo, domain.DefaultRetryConfig())
	if err != nil {
		slog.Error("building supervisor failed", slog.Any("error", err))
		os.Exit(1)
	}

	go reportWorkerMetrics(ctx, supervisor, catalog)

	slog.Info("harvester starting",
		slog.Int("games", len(games)),
		slog.Int("proxies", len(proxies)),
		slog.Int("total_workers", catalog.TotalCopies()))

	supervisor.Run(ctx)
	slog.Info("harvester stopped")
}

var allWorkerStates = []domain.WorkerState{
	domain.WorkerIdle, domain.WorkerLoggingIn, domain.WorkerEmulating,
	domain.WorkerMinting, domain.WorkerPersisting,
}

// gameFromKey recovers the game name from a Supervisor.Snapshot key of the
// form "game#copy".
func gameFromKey(key string) string {
	if i := strings.LastIndex(key, "#"); i >= 0 {
		return key[:i]
	}
	return key
}

// reportWorkerMetrics periodically publishes the Supervisor's live worker
// states as the harvester_workers_running gauge, grouped by game and state.
func reportWorkerMetrics(ctx context.Context, s *harvester.Supervisor, catalog *harvester.Catalog) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := s.Snapshot()
			for _, g := range catalog.Games() {
				byState := make(map[domain.WorkerState]int, len(allWorkerStates))
				for key, st := range snapshot {
					if gameFromKey(key) == g.Name {
						byState[st]++
					}
				}
				for _, st := range allWorkerStates {
					observability.SetWorkersRunning(g.Name, string(st), byState[st])
				}
			}
		}
	}
}
