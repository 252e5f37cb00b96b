//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/storage/postgres"
	"github.com/dlvi/student-management/internal/storage/storagetest"
)

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("students"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	suite.Run(t, &storagetest.Suite{
		NewStore: func() storage.Storage {
			pool, err := postgres.NewPool(ctx, dsn, 10)
			require.NoError(t, err)

			store, err := postgres.New(ctx, pool)
			require.NoError(t, err)

			_, err = pool.Exec(ctx, "TRUNCATE students RESTART IDENTITY")
			require.NoError(t, err)
			return store
		},
	})
}
