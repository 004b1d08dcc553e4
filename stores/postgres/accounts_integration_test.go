//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/stores/postgres"
	"github.com/panyam/quickauth/stores/storetest"
)

func TestAccountStorePostgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("quickauth_test"),
		tcpostgres.WithUsername("quickauth"),
		tcpostgres.WithPassword("quickauth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, postgres.Migrate(ctx, dsn))
	// Migrations are idempotent.
	require.NoError(t, postgres.Migrate(ctx, dsn))

	pool, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) qa.AccountStore {
		_, err := pool.Exec(ctx, `TRUNCATE accounts`)
		require.NoError(t, err)
		return postgres.NewAccountStore(pool)
	})
}
