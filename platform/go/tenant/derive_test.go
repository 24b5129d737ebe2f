package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestDatabaseFilterDefaultPattern(t *testing.T) {
	f, err := NewDatabaseFilter("")
	require.NoError(t, err)

	testCases := []struct {
		name string
		id   *string
		skip bool
	}{
		{name: "absent", id: nil, skip: true},
		{name: "blank", id: ptr("  "), skip: true},
		{name: "test prefix", id: ptr("test_agency"), skip: true},
		{name: "test suffix", id: ptr("agency_acme_TEST"), skip: true},
		{name: "bare test", id: ptr("test"), skip: true},
		{name: "regular", id: ptr("agency_acme"), skip: false},
		{name: "test inside name", id: ptr("agency_contest_media"), skip: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.skip, f.Skip(tc.id))
		})
	}
}

func TestDatabaseFilterCustomPattern(t *testing.T) {
	f, err := NewDatabaseFilter(`^sandbox_`)
	require.NoError(t, err)
	require.True(t, f.Skip(ptr("sandbox_acme")))
	require.False(t, f.Skip(ptr("test_acme")))

	_, err = NewDatabaseFilter(`(`)
	require.Error(t, err)
}
