package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "AGENCYDESK_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser       ActorKind = "user"
	ActorKindSuperAdmin ActorKind = "super_admin"
	ActorKindAnonymous  ActorKind = "anonymous"
	ActorKindSystem     ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability and auditing.
// UserID is set for user and super_admin actors. TenantID and TenantDatabase are nil for super admins.
type AuditInfo struct {
	ActorKind      ActorKind
	UserID         *string
	TenantID       *string
	TenantDatabase *string
	RequestID      string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromClaims builds an AuditInfo from verified session claims and a request ID.
func FromClaims(claims *platformauth.Claims, requestID string) (AuditInfo, error) {
	if claims == nil {
		return AuditInfo{}, errors.New("claims are required to build audit info")
	}
	if claims.UserID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	userID := claims.UserID
	audit := AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &userID,
		RequestID: requestID,
	}
	if claims.IsSuperAdmin {
		audit.ActorKind = ActorKindSuperAdmin
		return audit, nil
	}

	audit.TenantID = claims.TenantID
	audit.TenantDatabase = claims.TenantDatabaseIdentifier
	return audit, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests such as login.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for operator and background operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
