package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: " users ", want: "users"},
		{input: "last_sign_in_at", want: "last_sign_in_at"},
		{input: "", wantErr: true},
		{input: "Users", wantErr: true},
		{input: "users; DROP TABLE users", wantErr: true},
		{input: "1users", wantErr: true},
	}

	for _, tc := range cases {
		got, err := normalizeIdentifier("table", tc.input)
		if tc.wantErr {
			require.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.want, got)
	}
}

func TestEnsureOptionalColumnsRejectsUnsafeNames(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{}
	err := EnsureOptionalColumns(context.Background(), db, "users", []OptionalColumn{{Name: "bad-name", Type: "TEXT"}})
	require.Error(t, err)
	require.Empty(t, db.queries)
	require.Empty(t, db.execs)

	_, err = MissingColumns(context.Background(), db, `users"`, OptionalUserColumns)
	require.Error(t, err)
	require.Empty(t, db.queries)
}
