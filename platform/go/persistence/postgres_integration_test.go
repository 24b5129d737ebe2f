package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a disposable server and returns its connection string plus a pool on the
// default database.
func startPostgres(ctx context.Context, t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("agencydesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	return connString, pool
}

func TestPostgresTenantDatabases(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	connString, mainPool := startPostgres(ctx, t)
	require.NoError(t, BootstrapMainSchema(ctx, mainPool))
	require.NoError(t, BootstrapMainSchema(ctx, mainPool), "bootstrap is idempotent")

	require.NoError(t, CreateDatabase(ctx, mainPool, "agency_acme"))
	require.NoError(t, CreateDatabase(ctx, mainPool, "agency_acme"), "existing database is kept")

	pools, err := NewPoolManager(PoolManagerConfig{
		BaseConnString: connString,
		MaxConns:       2,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(pools.Close)

	t.Run("missing database is reported and not cached", func(t *testing.T) {
		_, err := pools.Pool(ctx, "agency_missing")
		require.Error(t, err)
		require.True(t, IsDatabaseMissing(err), "got %v", err)
		require.NotContains(t, pools.Databases(), "agency_missing")
	})

	acme, err := pools.Pool(ctx, "agency_acme")
	require.NoError(t, err)
	again, err := pools.Pool(ctx, "agency_acme")
	require.NoError(t, err)
	require.Same(t, acme, again)

	var current string
	require.NoError(t, acme.QueryRow(ctx, `SELECT current_database()`).Scan(&current))
	require.Equal(t, "agency_acme", current)

	require.NoError(t, BootstrapTenantSchema(ctx, acme))

	t.Run("legacy users table lacks the optional columns until repaired", func(t *testing.T) {
		store := NewCredentialStore(acme)
		_, err := store.FindByEmail(ctx, "nobody@acme.test")
		require.True(t, IsUndefinedObject(err), "got %v", err)

		missing, err := MissingColumns(ctx, acme, UsersTable, OptionalUserColumns)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"last_sign_in_at", "is_active"}, missing)

		repairer := NewSchemaRepairer()
		require.NoError(t, repairer.Ensure(ctx, "agency_acme", acme, UsersTable, OptionalUserColumns))
		require.NoError(t, repairer.Ensure(ctx, "agency_acme", acme, UsersTable, OptionalUserColumns))

		missing, err = MissingColumns(ctx, acme, UsersTable, OptionalUserColumns)
		require.NoError(t, err)
		require.Empty(t, missing)

		_, err = store.FindByEmail(ctx, "nobody@acme.test")
		require.ErrorIs(t, err, ErrCredentialNotFound)
	})

	t.Run("pgcrypto verifies stored hashes", func(t *testing.T) {
		var hash string
		require.NoError(t, acme.QueryRow(ctx,
			`INSERT INTO users (email, password_hash) VALUES ('Ana@Acme.test', crypt('pw', gen_salt('bf'))) RETURNING password_hash`,
		).Scan(&hash))

		store := NewCredentialStore(acme)
		row, err := store.FindByEmail(ctx, "ana@acme.test")
		require.NoError(t, err)
		require.True(t, row.IsActive)
		require.Nil(t, row.LastSignInAt)

		ok, err := store.Crypt(ctx, "pw", hash)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.Crypt(ctx, "nope", hash)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, store.TouchLastSignIn(ctx, row.ID))
		row, err = store.FindByEmail(ctx, "ana@acme.test")
		require.NoError(t, err)
		require.NotNil(t, row.LastSignInAt)
	})

	t.Run("registry lists active agencies with a database", func(t *testing.T) {
		_, err := mainPool.Exec(ctx, `
            INSERT INTO agencies (name, database_name, is_active, created_at) VALUES
                ('Acme', 'agency_acme', TRUE, NOW() - INTERVAL '2 hours'),
                ('Closed', 'agency_closed', FALSE, NOW() - INTERVAL '1 hour'),
                ('Pending', NULL, TRUE, NOW())
        `)
		require.NoError(t, err)

		registry, err := NewTenantRegistry(mainPool)
		require.NoError(t, err)
		require.NoError(t, registry.Ping(ctx))

		tenants, err := registry.ListActiveTenants(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 1)
		require.Equal(t, "Acme", tenants[0].Name)
		require.Equal(t, "agency_acme", *tenants[0].DatabaseIdentifier)
	})
}
