package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestListActiveTenants(t *testing.T) {
	t.Parallel()

	acme, beta := uuid.New(), uuid.New()
	acmeDB, betaDB := "agency_acme", "agency_beta"

	db := &fakeQuerier{queryFn: func(sql string, args ...any) (pgx.Rows, error) {
		require.True(t, strings.Contains(sql, "is_active = TRUE AND database_name IS NOT NULL"))
		require.True(t, strings.Contains(sql, "ORDER BY created_at, id"))
		return &fakeRows{values: [][]any{
			{acme, "Acme Media", &acmeDB, true},
			{beta, "Beta Studio", &betaDB, true},
		}}, nil
	}}

	registry, err := NewTenantRegistry(db)
	require.NoError(t, err)

	tenants, err := registry.ListActiveTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	require.Equal(t, acme, tenants[0].ID)
	require.Equal(t, "agency_acme", *tenants[0].DatabaseIdentifier)
	require.Equal(t, "Beta Studio", tenants[1].Name)
}

func TestListActiveTenantsEmptyRegistry(t *testing.T) {
	t.Parallel()

	registry, err := NewTenantRegistry(&fakeQuerier{})
	require.NoError(t, err)

	tenants, err := registry.ListActiveTenants(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tenants)
	require.Empty(t, tenants)
}

func TestListActiveTenantsMainDatabaseFailure(t *testing.T) {
	t.Parallel()

	down := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	registry, err := NewTenantRegistry(&fakeQuerier{queryFn: func(string, ...any) (pgx.Rows, error) {
		return nil, down
	}})
	require.NoError(t, err)

	_, err = registry.ListActiveTenants(context.Background())
	require.ErrorIs(t, err, ErrMainDatabase)
	require.ErrorIs(t, err, down)
}

func TestListActiveTenantsIterationFailure(t *testing.T) {
	t.Parallel()

	registry, err := NewTenantRegistry(&fakeQuerier{queryFn: func(string, ...any) (pgx.Rows, error) {
		return &fakeRows{err: errors.New("conn closed")}, nil
	}})
	require.NoError(t, err)

	_, err = registry.ListActiveTenants(context.Background())
	require.ErrorIs(t, err, ErrMainDatabase)
}

func TestNewTenantRegistryRequiresDatabase(t *testing.T) {
	_, err := NewTenantRegistry(nil)
	require.Error(t, err)
}
