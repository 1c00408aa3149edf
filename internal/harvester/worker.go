package harvester

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/pkg/jitter"
)

// Worker is a single promo-generation loop: it owns one proxy slot and
// drives the per-code state machine. It exposes no synchronous operations;
// its only observable effect is an Append call on its CodeRepository.
type Worker struct {
	game  domain.GameSpec
	proxy domain.ProxySpec
	promo domain.PromoClient
	codes domain.CodeRepository
	retry domain.RetryConfig

	log   *slog.Logger
	state atomic.Value // domain.WorkerState
}

// NewWorker constructs a Worker bound to (game, proxy) for its entire
// lifetime.
func NewWorker(game domain.GameSpec, proxy domain.ProxySpec, promo domain.PromoClient, codes domain.CodeRepository, retry domain.RetryConfig) *Worker {
	w := &Worker{
		game:  game,
		proxy: proxy,
		promo: promo,
		codes: codes,
		retry: retry,
		log: slog.Default().With(
			slog.String("game", game.Name),
			slog.String("proxy", proxy.URL),
		),
	}
	w.state.Store(domain.WorkerIdle)
	return w
}

// State reports the Worker's current position in the state machine, used by
// the observability layer's running-workers gauge.
func (w *Worker) State() domain.WorkerState {
	return w.state.Load().(domain.WorkerState)
}

func (w *Worker) setState(s domain.WorkerState) { w.state.Store(s) }

// Run drives cycles until ctx is cancelled. Every transient, rate-signal,
// and exhausted-attempts fault is swallowed locally: a Worker never
// propagates an error out for those cases. Run only returns when ctx is
// done (or, exceptionally, if it panics and the Supervisor restarts it).
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		token, ok := w.login(ctx)
		if !ok {
			return ctx.Err()
		}
		code, ok := w.emulateAndMint(ctx, token)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// attempts exhausted: abandon this cycle, restart from LoggingIn.
			continue
		}
		w.persist(ctx, code)
		if !w.idle(ctx) {
			return ctx.Err()
		}
	}
}

// login drives the LoggingIn state. Retries are unbounded; it only returns
// false if ctx is cancelled mid-retry.
func (w *Worker) login(ctx context.Context) (token string, ok bool) {
	w.setState(domain.WorkerLoggingIn)
	for {
		if ctx.Err() != nil {
			return "", false
		}
		clientID := domain.NewClientID()
		token, err := w.promo.LoginClient(ctx, w.game, w.proxy, clientID)
		if err == nil && token != "" {
			return token, true
		}
		w.log.Warn("login-client failed", slog.Any("error", err))
		d := w.game.BaseDelay + jitter.UniformPlus(w.retry.LoginJitterMin, w.retry.LoginJitterMax, domain.LoginFloor)
		jitter.SleepDuration(ctx, d)
	}
}

// emulateAndMint drives the Emulating and Minting states. ok is false only
// when the attempts budget is exhausted without observing
// hasCode, or ctx is cancelled.
func (w *Worker) emulateAndMint(ctx context.Context, token string) (code string, ok bool) {
	w.setState(domain.WorkerEmulating)
	eventID := uuid.New().String()
	for attempt := 0; attempt < w.game.Attempts; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		hasCode, err := w.promo.RegisterEvent(ctx, w.game, w.proxy, token, eventID)
		switch {
		case errors.Is(err, domain.ErrUpstreamTooManyRegister):
			d := w.game.BaseDelay +
				jitter.Uniform(domain.TooManyRegisterJitterMin1, domain.TooManyRegisterJitterMax1) +
				jitter.Uniform(domain.TooManyRegisterJitterMin2, domain.TooManyRegisterJitterMax2)
			observability.RecordUpstreamFault(w.game.Name, "rate_signal")
			w.log.Info("register-event rate-signaled", slog.Int("attempt", attempt), slog.Duration("sleep", d))
			jitter.SleepDuration(ctx, d)
			continue
		case err != nil:
			// transient fault (transport error, 5xx, HTML body, malformed
			// JSON): log and continue, consuming this attempt.
			observability.RecordUpstreamFault(w.game.Name, "transient")
			w.log.Debug("register-event transient fault", slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		case hasCode:
			w.setState(domain.WorkerMinting)
			return w.mint(ctx, token)
		default:
			jitter.Sleep(ctx, domain.RegisterEventJitterMin, domain.RegisterEventJitterMax)
		}
	}
	w.log.Info("register-event attempts exhausted; restarting cycle")
	return "", false
}

// mint drives the Minting state. It never gives up: once hasCode was
// observed the code is considered owed by the upstream.
func (w *Worker) mint(ctx context.Context, token string) (string, bool) {
	for {
		if ctx.Err() != nil {
			return "", false
		}
		code, err := w.promo.CreateCode(ctx, w.game, w.proxy, token)
		if err == nil && code != "" {
			return code, true
		}
		w.log.Debug("create-code failed", slog.Any("error", err))
		jitter.Sleep(ctx, domain.MintingJitterMin, domain.MintingJitterMax)
	}
}

// persist drives the Persisting state. An append failure is logged and the
// code is dropped, never retried.
func (w *Worker) persist(ctx context.Context, code string) {
	w.setState(domain.WorkerPersisting)
	if err := w.codes.Append(ctx, w.game.Name, code); err != nil {
		w.log.Error("inventory append failed; code dropped", slog.Any("error", err))
		return
	}
	observability.RecordCodeMinted(w.game.Name)
	w.log.Info("code minted")
}

// idle drives the Idle state. Returns false only if ctx is cancelled during
// the sleep.
func (w *Worker) idle(ctx context.Context) bool {
	w.setState(domain.WorkerIdle)
	jitter.SleepDuration(ctx, jitter.UniformPlus(domain.IdleJitterMin, domain.IdleJitterMax, domain.IdleFloor))
	return ctx.Err() == nil
}
