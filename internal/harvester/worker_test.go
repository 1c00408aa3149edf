package harvester_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/domain/mocks"
	"github.com/fairyhunter13/promo-harvester/internal/harvester"
)

func testGame() domain.GameSpec {
	return domain.GameSpec{
		Name:      "aaa",
		AppToken:  "app-token",
		PromoID:   "promo-id",
		BaseDelay: 0,
		Attempts:  2,
		Copies:    1,
	}
}

func testProxy() domain.ProxySpec {
	return domain.ProxySpec{URL: "http://proxy.example:8080"}
}

// TestWorker_Run_HappyCycle drives one full LoggingIn -> Emulating ->
// Minting -> Persisting -> Idle cycle and stops the worker by
// cancelling the context from within the Append call, which is the first
// point after which the worker would otherwise sleep for a real duration.
func TestWorker_Run_HappyCycle(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	promo := &mocks.MockPromoClient{}
	codes := &mocks.MockCodeRepository{}

	promo.On("LoginClient", mock.Anything, testGame(), testProxy(), mock.AnythingOfType("domain.ClientID")).
		Return("client-token", nil).Once()
	promo.On("RegisterEvent", mock.Anything, testGame(), testProxy(), "client-token", mock.AnythingOfType("string")).
		Return(true, nil).Once()
	promo.On("CreateCode", mock.Anything, testGame(), testProxy(), "client-token").
		Return("PROMO-CODE-1", nil).Once()
	codes.On("Append", mock.Anything, "aaa", "PROMO-CODE-1").
		Run(func(mock.Arguments) { cancel() }).
		Return(nil).Once()

	w := harvester.NewWorker(testGame(), testProxy(), promo, codes, domain.DefaultRetryConfig())
	err := runWithTimeout(t, w, ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.WorkerIdle, w.State())
	promo.AssertExpectations(t)
	codes.AssertExpectations(t)
}

// TestWorker_Run_LoginRetriesThenCancelled covers the unbounded LoggingIn
// retry discipline: a failed login-client call must not be
// surfaced, and the worker keeps retrying. The context is cancelled inside
// the failing call so the retry sleep (which would otherwise be
// base_delay+uniform(0.1,3)+6s) returns immediately via ctx.Done().
func TestWorker_Run_LoginRetriesThenCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	promo := &mocks.MockPromoClient{}
	codes := &mocks.MockCodeRepository{}

	promo.On("LoginClient", mock.Anything, testGame(), testProxy(), mock.AnythingOfType("domain.ClientID")).
		Run(func(mock.Arguments) { cancel() }).
		Return("", errors.New("connection refused")).Once()

	w := harvester.NewWorker(testGame(), testProxy(), promo, codes, domain.DefaultRetryConfig())
	err := runWithTimeout(t, w, ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	promo.AssertExpectations(t)
	promo.AssertNotCalled(t, "RegisterEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	codes.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

// TestWorker_Run_AttemptsExhaustedRestartsCycle: a transient
// RegisterEvent fault consumes an attempt without sleeping, and
// exhausting the attempts budget abandons the
// cycle and restarts from LoggingIn rather than surfacing an error.
func TestWorker_Run_AttemptsExhaustedRestartsCycle(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	game := testGame()
	game.Attempts = 2

	promo := &mocks.MockPromoClient{}
	codes := &mocks.MockCodeRepository{}

	promo.On("LoginClient", mock.Anything, game, testProxy(), mock.AnythingOfType("domain.ClientID")).
		Return("client-token", nil).Once()
	promo.On("RegisterEvent", mock.Anything, game, testProxy(), "client-token", mock.AnythingOfType("string")).
		Return(false, domain.ErrUpstreamTransient).Times(2)
	// Second cycle: login is retried; cancel so the worker doesn't spin
	// forever past the single cycle under test.
	promo.On("LoginClient", mock.Anything, game, testProxy(), mock.AnythingOfType("domain.ClientID")).
		Run(func(mock.Arguments) { cancel() }).
		Return("", errors.New("stop here")).Once()

	w := harvester.NewWorker(game, testProxy(), promo, codes, domain.DefaultRetryConfig())
	err := runWithTimeout(t, w, ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	promo.AssertNumberOfCalls(t, "RegisterEvent", 2)
	promo.AssertNumberOfCalls(t, "LoginClient", 2)
	codes.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

// TestWorker_Run_TooManyRegisterDoesNotSurface covers the rate-signal
// backoff: a TooManyRegister fault never
// propagates out of the worker. The context is cancelled from within the
// failing call so the extended backoff sleep short-circuits via ctx.Done()
// instead of actually waiting out the jittered delay.
func TestWorker_Run_TooManyRegisterDoesNotSurface(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	promo := &mocks.MockPromoClient{}
	codes := &mocks.MockCodeRepository{}

	promo.On("LoginClient", mock.Anything, testGame(), testProxy(), mock.AnythingOfType("domain.ClientID")).
		Return("client-token", nil).Once()
	promo.On("RegisterEvent", mock.Anything, testGame(), testProxy(), "client-token", mock.AnythingOfType("string")).
		Run(func(mock.Arguments) { cancel() }).
		Return(false, domain.ErrUpstreamTooManyRegister).Once()

	w := harvester.NewWorker(testGame(), testProxy(), promo, codes, domain.DefaultRetryConfig())
	err := runWithTimeout(t, w, ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	promo.AssertNumberOfCalls(t, "RegisterEvent", 1)
	codes.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

// TestWorker_Run_PersistFailureDropsCodeAndContinues covers the persistence
// fault policy: an Append failure is logged and the code is dropped,
// never retried; the worker proceeds to Idle instead of stalling.
func TestWorker_Run_PersistFailureDropsCodeAndContinues(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	promo := &mocks.MockPromoClient{}
	codes := &mocks.MockCodeRepository{}

	promo.On("LoginClient", mock.Anything, testGame(), testProxy(), mock.AnythingOfType("domain.ClientID")).
		Return("client-token", nil).Once()
	promo.On("RegisterEvent", mock.Anything, testGame(), testProxy(), "client-token", mock.AnythingOfType("string")).
		Return(true, nil).Once()
	promo.On("CreateCode", mock.Anything, testGame(), testProxy(), "client-token").
		Return("PROMO-CODE-1", nil).Once()
	codes.On("Append", mock.Anything, "aaa", "PROMO-CODE-1").
		Run(func(mock.Arguments) { cancel() }).
		Return(errors.New("db unavailable")).Once()

	w := harvester.NewWorker(testGame(), testProxy(), promo, codes, domain.DefaultRetryConfig())
	err := runWithTimeout(t, w, ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	codes.AssertExpectations(t)
}

// TestWorker_State_StartsIdle asserts the initial state before Run is
// called, used by the observability running-workers gauge.
func TestWorker_State_StartsIdle(t *testing.T) {
	t.Parallel()
	w := harvester.NewWorker(testGame(), testProxy(), &mocks.MockPromoClient{}, &mocks.MockCodeRepository{}, domain.DefaultRetryConfig())
	assert.Equal(t, domain.WorkerIdle, w.State())
}

// runWithTimeout is a small guard so a regression in the jitter/ctx
// plumbing fails the test instead of hanging the suite forever.
func runWithTimeout(t *testing.T, w *harvester.Worker, ctx context.Context) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("worker.Run did not return within timeout")
		return nil
	}
}
