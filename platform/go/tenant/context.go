package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Route is the database a request is bound to, resolved from the session claims.
// Super admins are routed to the main database and carry no tenant.
type Route struct {
	TenantID           *uuid.UUID
	DatabaseIdentifier string
	IsSuperAdmin       bool
	DB                 *pgxpool.Pool
}

type ctxKey string

const routeKey ctxKey = "AGENCYDESK_TENANT_ROUTE"

// WithRoute returns a derived context carrying the tenant Route.
func WithRoute(ctx context.Context, route Route) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

// FromContext extracts the tenant Route and a boolean indicating presence.
func FromContext(ctx context.Context) (Route, bool) {
	v := ctx.Value(routeKey)
	if v == nil {
		return Route{}, false
	}

	route, ok := v.(Route)
	return route, ok
}
