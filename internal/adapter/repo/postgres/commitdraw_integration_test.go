//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// TestUsersRepo_CommitDraw_ConcurrentCommitsNeverDoubleSpendACode is the
// durable-tier half of the duplicate-issuance regression test: if
// two transactions race to CommitDraw the same code, removeTx's
// rows-affected check must make exactly one of them fail with
// domain.ErrConflict rather than both silently succeeding. Run with
// `go test -tags=integration`; requires a working Docker daemon.
func TestUsersRepo_CommitDraw_ConcurrentCommitsNeverDoubleSpendACode(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "promo"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := "postgres://postgres:postgres@" + host + ":" + port.Port() + "/promo?sslmode=disable"

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgres.Bootstrap(ctx, pool))

	codesRepo := postgres.NewCodesRepo(pool)
	usersRepo := postgres.NewUsersRepo(pool)

	require.NoError(t, usersRepo.UpsertUser(ctx, domain.UserRecord{UserID: "race-user", Status: domain.StatusFree}))
	require.NoError(t, codesRepo.Append(ctx, "aaa", "shared-code"))

	// A freshly upserted user has last_request_time = NULL; GetUser must map
	// that to the zero time instead of failing the scan, since the interval
	// check relies on a zero LastRequestTime to admit a user's first draw.
	fresh, err := usersRepo.GetUser(ctx, "race-user")
	require.NoError(t, err)
	require.True(t, fresh.LastRequestTime.IsZero())

	var (
		wg        sync.WaitGroup
		results   = make([]error, 2)
		successes int
		mu        sync.Mutex
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := usersRepo.CommitDraw(ctx, "race-user", map[string][]string{"aaa": {"shared-code"}})
			results[idx] = err
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent commit of the same code must succeed")

	var conflictErr error
	for _, err := range results {
		if err != nil {
			conflictErr = err
		}
	}
	require.Error(t, conflictErr)
	require.True(t, errors.Is(conflictErr, domain.ErrConflict))

	n, err := codesRepo.Count(ctx, "aaa")
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "the code must be removed exactly once, not duplicated or left behind")
}
