package main

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
	tenantmiddleware "github.com/zenGate-Global/agencydesk/platform/go/tenant/middleware"
)

// buildAuthMiddleware verifies self-issued session tokens. Anonymous requests pass through so the
// login route stays reachable; protected groups add auth.RequireSession.
func buildAuthMiddleware(issuer *platformauth.Issuer) func(http.Handler) http.Handler {
	return platformauth.Session(issuer)
}

func tenantRouteMiddleware(pools *persistence.PoolManager, mainPool *pgxpool.Pool) func(http.Handler) http.Handler {
	return tenantmiddleware.WithTenantRoute(pools, mainPool)
}

type tenantPingResponse struct {
	TenantID           *string `json:"tenantId"`
	DatabaseIdentifier string  `json:"databaseIdentifier,omitempty"`
	IsSuperAdmin       bool    `json:"isSuperAdmin"`
}

// tenantPingHandler checks the database the caller's token routes to.
func tenantPingHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, ok := tenant.FromContext(r.Context())
		if !ok || route.DB == nil {
			http.Error(w, "tenant route missing", http.StatusInternalServerError)
			return
		}

		if err := route.DB.Ping(r.Context()); err != nil {
			platformlogging.FromRequest(r, logger).Warn("tenant database ping failed",
				zap.String("database", route.DatabaseIdentifier),
				zap.Error(err),
			)
			http.Error(w, "tenant database unavailable", http.StatusServiceUnavailable)
			return
		}

		resp := tenantPingResponse{
			DatabaseIdentifier: route.DatabaseIdentifier,
			IsSuperAdmin:       route.IsSuperAdmin,
		}
		if route.TenantID != nil {
			id := route.TenantID.String()
			resp.TenantID = &id
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// tenantPoolsHandler lists the tenant databases with an open pool.
func tenantPoolsHandler(pools *persistence.PoolManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"databases": pools.Databases()})
	}
}
