package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/domains/auth/be/service"
	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
)

const (
	problemTypeValidation   = "https://agencydesk.app/problems/validation-error"
	problemTypeUnauthorized = "https://agencydesk.app/problems/invalid-credentials"
	problemTypeUnavailable  = "https://agencydesk.app/problems/service-unavailable"
	problemTypeInternal     = "https://agencydesk.app/problems/internal-error"

	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
)

type operation string

const (
	loginOperation   operation = "authLogin"
	sessionOperation operation = "authSession"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	User         User      `json:"user"`
	Tenant       *Tenant   `json:"tenant"`
}

type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FullName  *string  `json:"fullName,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	AvatarURL *string  `json:"avatarUrl,omitempty"`
	Roles     []string `json:"roles"`
}

type Tenant struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	DatabaseIdentifier string `json:"databaseIdentifier"`
}

// SessionClaims mirrors the token claims of the caller.
type SessionClaims struct {
	UserID                   string  `json:"user_id"`
	Email                    string  `json:"email"`
	TenantID                 *string `json:"tenant_id"`
	TenantDatabaseIdentifier *string `json:"tenant_database_identifier"`
	IsSuperAdmin             bool    `json:"is_super_admin"`
	ExpiresAt                int64   `json:"exp,omitempty"`
}

// ProblemDetails follows RFC 7807.
type ProblemDetails struct {
	Type   *string              `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail *string              `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// Handler wires the auth service to the HTTP contract.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("auth service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Login authenticates the caller and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem := h.buildProblem("Invalid request body", "request body must be a JSON object", problemTypeValidation, http.StatusBadRequest, nil)
		writeJSON(w, contentTypeProblem, http.StatusBadRequest, problem)
		return
	}

	session, err := h.svc.Authenticate(ctx, body.Email, body.Password)
	if err != nil {
		status, problem := h.problemForError(ctx, err, loginOperation)
		writeJSON(w, contentTypeProblem, status, problem)
		return
	}

	h.loggerFrom(ctx).Info("login succeeded",
		zap.String("user_id", session.Match.UserID.String()),
		zap.Bool("super_admin", session.Match.IsSuperAdmin),
		zap.String("email_domain", platformlogging.EmailDomain(session.Match.Email)),
	)

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, contentTypeJSON, http.StatusOK, toLoginResponse(session))
}

// Session echoes the verified claims of the bearer token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := platformauth.ClaimsFromContext(r.Context())
	if !ok || claims == nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		problem := h.buildProblem("Unauthorized", "a valid session token is required", problemTypeUnauthorized, http.StatusUnauthorized, nil)
		writeJSON(w, contentTypeProblem, http.StatusUnauthorized, problem)
		return
	}

	writeJSON(w, contentTypeJSON, http.StatusOK, toSessionClaims(claims))
}

func toLoginResponse(session service.Session) LoginResponse {
	match := session.Match
	user := User{
		ID:    match.UserID.String(),
		Email: match.Email,
		Roles: match.Roles,
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	if match.Profile != nil {
		user.FullName = match.Profile.FullName
		user.Phone = match.Profile.Phone
		user.AvatarURL = match.Profile.AvatarURL
	}

	resp := LoginResponse{
		AccessToken:  session.Token,
		TokenType:    "Bearer",
		ExpiresAt:    session.ExpiresAt.UTC(),
		IsSuperAdmin: match.IsSuperAdmin,
		User:         user,
	}
	if match.Tenant != nil {
		resp.Tenant = &Tenant{
			ID:                 match.Tenant.ID.String(),
			Name:               match.Tenant.Name,
			DatabaseIdentifier: match.Tenant.DatabaseIdentifier,
		}
	}
	return resp
}

func toSessionClaims(claims *platformauth.Claims) SessionClaims {
	out := SessionClaims{
		UserID:                   claims.UserID,
		Email:                    claims.Email,
		TenantID:                 claims.TenantID,
		TenantDatabaseIdentifier: claims.TenantDatabaseIdentifier,
		IsSuperAdmin:             claims.IsSuperAdmin,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return out
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) (int, ProblemDetails) {
	status, title, detail, problemType, fields := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("auth operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusUnauthorized:
		logger.Info("login rejected", fieldsForLog...)
	default:
		logger.Warn("auth request rejected", append(fieldsForLog, zap.Error(err))...)
	}

	return status, h.buildProblem(title, detail, problemType, status, fields)
}

// classifyError maps every credential failure to the same 401 body.
func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors service.FieldErrors) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problemTypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized,
			"Invalid credentials",
			"email or password is incorrect",
			problemTypeUnauthorized,
			nil
	case service.IsUnavailable(err):
		return http.StatusServiceUnavailable,
			"Service unavailable",
			"authentication is temporarily unavailable",
			problemTypeUnavailable,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problemTypeInternal,
			nil
	}
}

func (h *Handler) buildProblem(title, detail, problemType string, status int, fieldErrors service.FieldErrors) ProblemDetails {
	problem := ProblemDetails{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = &copied
	}

	return problem
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

func writeJSON(w http.ResponseWriter, contentType string, status int, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
