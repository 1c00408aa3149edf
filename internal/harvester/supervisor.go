package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/pkg/jitter"
)

// Supervisor constructs the Worker fleet from a Catalog and a ProxyPool and
// keeps it alive, restarting any worker that crashes.
type Supervisor struct {
	assignments []Assignment
	promo       domain.PromoClient
	codes       domain.CodeRepository
	retry       domain.RetryConfig
	log         *slog.Logger

	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewSupervisor flattens catalog into (game, copy) pairs, binds a proxy to
// each via pool, and fails fast if Σ copies > |proxies|.
func NewSupervisor(catalog *Catalog, pool *ProxyPool, promo domain.PromoClient, codes domain.CodeRepository, retry domain.RetryConfig) (*Supervisor, error) {
	assignments, err := pool.BindAll(catalog.Flatten())
	if err != nil {
		return nil, fmt.Errorf("op=supervisor.new: %w", err)
	}
	return &Supervisor{
		assignments: assignments,
		promo:       promo,
		codes:       codes,
		retry:       retry,
		log:         slog.Default().With(slog.String("component", "supervisor")),
		workers:     make(map[string]*Worker, len(assignments)),
	}, nil
}

// Run starts every assigned Worker in parallel and blocks until ctx is
// cancelled and every Worker has released its resources.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range s.assignments {
		wg.Add(1)
		go func(a Assignment) {
			defer wg.Done()
			s.superviseOne(ctx, a)
		}(a)
	}
	wg.Wait()
}

func assignmentKey(a Assignment) string {
	return fmt.Sprintf("%s#%d", a.Game.Name, a.Copy)
}

func (s *Supervisor) superviseOne(ctx context.Context, a Assignment) {
	key := assignmentKey(a)
	for {
		if ctx.Err() != nil {
			return
		}
		w := NewWorker(a.Game, a.Proxy, s.promo, s.codes, s.retry)
		s.mu.Lock()
		s.workers[key] = w
		s.mu.Unlock()

		err := s.runGuarded(ctx, w)
		if ctx.Err() != nil {
			return
		}
		s.log.Error("worker terminated; restarting",
			slog.String("game", a.Game.Name),
			slog.Int("copy", a.Copy),
			slog.Any("error", err))
		jitter.SleepDuration(ctx, domain.SupervisorRestartCooldown)
	}
}

// runGuarded recovers a panicking Worker.Run so the Supervisor can restart
// it rather than taking down the process.
func (s *Supervisor) runGuarded(ctx context.Context, w *Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return w.Run(ctx)
}

// Snapshot returns each live Worker's current state keyed by "game#copy",
// used by the observability layer's running-workers gauge.
func (s *Supervisor) Snapshot() map[string]domain.WorkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.WorkerState, len(s.workers))
	for k, w := range s.workers {
		out[k] = w.State()
	}
	return out
}

// RunningCount returns the number of workers assigned to game, which in
// steady state equals game.Copies regardless of each worker's individual
// state.
func (s *Supervisor) RunningCount(game string) int {
	n := 0
	for _, a := range s.assignments {
		if a.Game.Name == game {
			n++
		}
	}
	return n
}
