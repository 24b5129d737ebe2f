package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
)

// PoolResolver returns the pool of a tenant database.
// Implemented by persistence.PoolManager.
type PoolResolver interface {
	Pool(ctx context.Context, databaseIdentifier string) (*pgxpool.Pool, error)
}

// WithTenantRoute binds an authenticated request to its database. Tenant users get the pool of
// the database named in their token; super admins get main.
// It must run after auth.Session.
func WithTenantRoute(pools PoolResolver, main *pgxpool.Pool) func(http.Handler) http.Handler {
	if pools == nil {
		panic("tenant middleware: pool resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := platformauth.ClaimsFromContext(r.Context())
			if !ok || claims == nil {
				http.Error(w, "tenant required", http.StatusUnauthorized)
				return
			}

			if claims.IsSuperAdmin {
				ctx := tenant.WithRoute(r.Context(), tenant.Route{IsSuperAdmin: true, DB: main})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if claims.TenantDatabaseIdentifier == nil || *claims.TenantDatabaseIdentifier == "" {
				http.Error(w, "tenant required", http.StatusUnauthorized)
				return
			}

			route := tenant.Route{DatabaseIdentifier: *claims.TenantDatabaseIdentifier}
			if claims.TenantID != nil {
				tid, err := uuid.Parse(*claims.TenantID)
				if err != nil {
					http.Error(w, "invalid tenant id", http.StatusUnauthorized)
					return
				}
				route.TenantID = &tid
			}

			pool, err := pools.Pool(r.Context(), route.DatabaseIdentifier)
			if err != nil {
				if logger := platformlogging.FromRequest(r, nil); logger != nil {
					logger.Warn("tenant database unavailable", zap.String("database", route.DatabaseIdentifier), zap.Error(err))
				}
				http.Error(w, "tenant unavailable", http.StatusServiceUnavailable)
				return
			}
			route.DB = pool

			next.ServeHTTP(w, r.WithContext(tenant.WithRoute(r.Context(), route)))
		})
	}
}
