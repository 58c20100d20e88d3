package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testImage    = "postgres:16-alpine"
	testDatabase = "testdb"
	testUser     = "testuser"
	testPassword = "testpass"
)

// schemaTables are expected to exist once every migration is applied.
var schemaTables = []string{
	"sync_runs",
	"organization_latest_sync",
	"directory_users",
	"applications",
	"authorization_grants",
	"grant_scopes",
	"stage_tasks",
}

// startPostgres runs a throwaway Postgres container for t and returns its
// connection string. The container is removed when t finishes.
func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(tclog.TestLogger(t)),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// SetupTestDBContainer connects to an empty Postgres container.
// No migration is applied.
func SetupTestDBContainer(t *testing.T, ctx context.Context) (*pgx.Conn, func()) {
	t.Helper()

	conn, err := pgx.Connect(ctx, startPostgres(t, ctx))
	require.NoError(t, err)

	return conn, func() { _ = conn.Close(context.Background()) }
}

// SetupTestDB returns a pool on a fully migrated database. The last migration
// is rolled back and re-applied first so broken down scripts fail early.
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()
	conn, closeConn := SetupTestDBContainer(t, ctx)

	require.NoError(t, MigrateUp(ctx, conn))
	require.NoError(t, MigrateDown(ctx, conn, 1))
	require.NoError(t, MigrateUp(ctx, conn))

	for _, table := range schemaTables {
		var exists bool
		err := conn.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "table %s is missing after migration", table)
	}

	pool, err := pgxpool.New(ctx, conn.Config().ConnString())
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		closeConn()
	}
}
