package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	"github.com/zenGate-Global/agencydesk/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo and tags the request logger
// with the actor. It should run after auth.Session so claims are available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		var audit requesttrace.AuditInfo
		if claims, ok := platformauth.ClaimsFromContext(r.Context()); ok && claims != nil {
			var err error
			audit, err = requesttrace.FromClaims(claims, requestID)
			if err != nil {
				if logger != nil {
					logger.Error("build audit info from claims", zap.Error(err))
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else {
			audit = requesttrace.Anonymous(requestID)
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger != nil {
			fields := []zap.Field{zap.String("actor_kind", string(audit.ActorKind))}
			if audit.UserID != nil && *audit.UserID != "" {
				fields = append(fields, zap.String("user_id", *audit.UserID))
			}
			if audit.TenantDatabase != nil {
				fields = append(fields, zap.String("database", *audit.TenantDatabase))
			}
			logger = logger.With(fields...)
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
