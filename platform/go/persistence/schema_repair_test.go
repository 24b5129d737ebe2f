package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestEnsureOptionalColumnsAddsMissing(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{queryFn: columnsQuery("id", "email", "password_hash")}

	err := EnsureOptionalColumns(context.Background(), db, UsersTable, OptionalUserColumns)
	require.NoError(t, err)
	require.Len(t, db.execs, 2)
	require.Equal(t, `ALTER TABLE "users" ADD COLUMN IF NOT EXISTS "last_sign_in_at" TIMESTAMPTZ`, db.execs[0])
	require.Equal(t, `ALTER TABLE "users" ADD COLUMN IF NOT EXISTS "is_active" BOOLEAN DEFAULT TRUE`, db.execs[1])
}

func TestEnsureOptionalColumnsIsIdempotent(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{queryFn: columnsQuery("id", "email", "password_hash", "last_sign_in_at", "IS_ACTIVE")}

	for i := 0; i < 2; i++ {
		require.NoError(t, EnsureOptionalColumns(context.Background(), db, UsersTable, OptionalUserColumns))
	}
	require.Zero(t, db.execCount())
}

func TestEnsureOptionalColumnsKeepsGoingAfterAddFailure(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{
		queryFn: columnsQuery("id", "email"),
		execFn: func(sql string, args ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, `"last_sign_in_at"`) {
				return pgconn.CommandTag{}, errors.New("tuple concurrently updated")
			}
			return pgconn.NewCommandTag("ALTER TABLE"), nil
		},
	}

	err := EnsureOptionalColumns(context.Background(), db, UsersTable, OptionalUserColumns)
	require.Error(t, err)
	require.Contains(t, err.Error(), "add column users.last_sign_in_at")
	require.Equal(t, 2, db.execCount())
}

func TestEnsureOptionalColumnsInspectFailure(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{queryFn: func(string, ...any) (pgx.Rows, error) { return nil, errors.New("permission denied") }}

	err := EnsureOptionalColumns(context.Background(), db, UsersTable, OptionalUserColumns)
	require.Error(t, err)
	require.Contains(t, err.Error(), "inspect columns of users")
	require.Zero(t, db.execCount())
}

func TestMissingColumns(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{queryFn: columnsQuery("id", "is_active")}

	missing, err := MissingColumns(context.Background(), db, UsersTable, OptionalUserColumns)
	require.NoError(t, err)
	require.Equal(t, []string{"last_sign_in_at"}, missing)
	require.Zero(t, db.execCount())
}

func TestSchemaRepairerRemembersCleanPass(t *testing.T) {
	t.Parallel()

	repairer := NewSchemaRepairer()
	db := &fakeQuerier{queryFn: columnsQuery("id", "email")}
	ctx := context.Background()

	require.NoError(t, repairer.Ensure(ctx, "agency_acme", db, UsersTable, OptionalUserColumns))
	require.NoError(t, repairer.Ensure(ctx, "agency_acme", db, UsersTable, OptionalUserColumns))
	require.Equal(t, 1, db.queryCount())
	require.Equal(t, 2, db.execCount())

	other := &fakeQuerier{queryFn: columnsQuery("id", "email", "last_sign_in_at", "is_active")}
	require.NoError(t, repairer.Ensure(ctx, "agency_beta", other, UsersTable, OptionalUserColumns))
	require.Equal(t, 1, other.queryCount())
}

func TestSchemaRepairerRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	repairer := NewSchemaRepairer()
	failing := true
	db := &fakeQuerier{
		queryFn: columnsQuery("id"),
		execFn: func(sql string, args ...any) (pgconn.CommandTag, error) {
			if failing {
				return pgconn.CommandTag{}, errors.New("lock timeout")
			}
			return pgconn.NewCommandTag("ALTER TABLE"), nil
		},
	}
	ctx := context.Background()

	require.Error(t, repairer.Ensure(ctx, "agency_acme", db, UsersTable, OptionalUserColumns))

	failing = false
	require.NoError(t, repairer.Ensure(ctx, "agency_acme", db, UsersTable, OptionalUserColumns))
	require.Equal(t, 2, db.queryCount())
}
