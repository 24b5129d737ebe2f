package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
		found  bool
	}{
		{name: "bearer", header: "Bearer abc.def.ghi", want: "abc.def.ghi", found: true},
		{name: "lower case scheme", header: "bearer abc", want: "abc", found: true},
		{name: "basic", header: "Basic dXNlcjpwYXNz"},
		{name: "missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			got, found := ExtractBearerToken(r)
			require.Equal(t, tc.found, found)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSessionMiddleware(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Secret: "test-secret"})
	require.NoError(t, err)

	db := "agency_acme"
	tenantID := uuid.New()
	token, _, err := iss.Issue(Subject{UserID: uuid.New(), Email: "ana@acme.test", TenantID: &tenantID, DatabaseIdentifier: &db})
	require.NoError(t, err)

	var seen *Claims
	handler := Session(iss)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		require.Equal(t, db, *seen.TenantDatabaseIdentifier)
	})

	t.Run("anonymous", func(t *testing.T) {
		seen = nil
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Nil(t, seen)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer forged")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Header().Get("WWW-Authenticate"), "invalid_token")
	})
}

func TestRequireGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	db := "agency_acme"

	testCases := []struct {
		name       string
		claims     *Claims
		guard      func(http.Handler) http.Handler
		wantStatus int
	}{
		{name: "session anonymous", guard: RequireSession, wantStatus: http.StatusUnauthorized},
		{name: "session present", claims: &Claims{UserID: "u"}, guard: RequireSession, wantStatus: http.StatusOK},
		{name: "super admin anonymous", guard: RequireSuperAdmin, wantStatus: http.StatusForbidden},
		{name: "tenant user", claims: &Claims{UserID: "u", TenantDatabaseIdentifier: &db}, guard: RequireSuperAdmin, wantStatus: http.StatusForbidden},
		{name: "super admin", claims: &Claims{UserID: "u", IsSuperAdmin: true}, guard: RequireSuperAdmin, wantStatus: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.claims != nil {
				r = r.WithContext(WithClaims(r.Context(), tc.claims))
			}
			w := httptest.NewRecorder()
			tc.guard(ok).ServeHTTP(w, r)
			require.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestIssuerTTL(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Secret: "s", TTL: time.Hour})
	require.NoError(t, err)
	require.Equal(t, time.Hour, iss.TTL())
}
