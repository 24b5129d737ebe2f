package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/domains/auth/be/repo"
	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
)

// Tenant is the agency a user authenticated against.
type Tenant struct {
	ID                 uuid.UUID
	Name               string
	DatabaseIdentifier string
}

// Profile is the optional display data of a user.
type Profile struct {
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// Match is a verified identity. Tenant is nil exactly when IsSuperAdmin is true.
type Match struct {
	UserID       uuid.UUID
	Email        string
	Tenant       *Tenant
	IsSuperAdmin bool
	Profile      *Profile
	Roles        []string
}

// LocatorConfig tunes the tenant scan.
type LocatorConfig struct {
	// TenantQueryTimeout bounds all work against one tenant database. Zero disables it.
	TenantQueryTimeout time.Duration
	// Databases filters out reserved test databases. Defaults to tenant.DefaultTestDatabasePattern.
	Databases *tenant.DatabaseFilter
}

// Locator finds the one database that owns an email and verifies the password there.
// Super admins in the main database are checked first; tenants are then scanned in registry
// order and the first verified match wins.
type Locator struct {
	repo    repo.Repository
	filter  *tenant.DatabaseFilter
	timeout time.Duration
	logger  *zap.Logger
}

func NewLocator(r repo.Repository, cfg LocatorConfig, logger *zap.Logger) *Locator {
	if r == nil {
		panic("auth repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	filter := cfg.Databases
	if filter == nil {
		var err error
		filter, err = tenant.NewDatabaseFilter("")
		if err != nil {
			panic(err)
		}
	}

	return &Locator{repo: r, filter: filter, timeout: cfg.TenantQueryTimeout, logger: logger}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Locate returns the verified identity for email and password. Failures are a *ValidationError,
// ErrInvalidCredentials, or an error wrapping persistence.ErrMainDatabase.
func (l *Locator) Locate(ctx context.Context, email, password string) (Match, error) {
	email = NormalizeEmail(email)
	if err := validateLogin(email, password); err != nil {
		return Match{}, err
	}

	logger := platformlogging.FromContextOr(ctx, l.logger).With(
		zap.String("email_domain", platformlogging.EmailDomain(email)),
	)

	if match, ok := l.superAdmin(ctx, logger, email, password); ok {
		logger.Info("super admin authenticated", zap.String("user_id", match.UserID.String()))
		return match, nil
	}

	tenants, err := l.repo.ListActiveTenants(ctx)
	if err != nil {
		return Match{}, err
	}

	scanned := 0
	for _, row := range tenants {
		if l.filter.Skip(row.DatabaseIdentifier) {
			continue
		}
		scanned++

		match, found, err := l.searchTenant(ctx, logger, row, email, password)
		if err != nil {
			logTenantFailure(logger, row, err)
			continue
		}
		if found {
			logger.Info("tenant user authenticated",
				zap.String("user_id", match.UserID.String()),
				zap.String("tenant_id", row.ID.String()),
				zap.String("database", match.Tenant.DatabaseIdentifier),
				zap.Int("tenants_scanned", scanned),
			)
			return match, nil
		}
	}

	logger.Info("authentication failed", zap.Int("tenants_scanned", scanned))
	return Match{}, ErrInvalidCredentials
}

func validateLogin(email, password string) error {
	fields := FieldErrors{}
	if email == "" {
		fields["email"] = append(fields["email"], "email is required")
	}
	if password == "" {
		fields["password"] = append(fields["password"], "password is required")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// superAdmin never fails the login: lookup errors mean "not a super admin".
func (l *Locator) superAdmin(ctx context.Context, logger *zap.Logger, email, password string) (Match, bool) {
	mainDB := l.repo.Main()

	row, err := mainDB.FindSuperAdmin(ctx, email)
	if err != nil {
		if !errors.Is(err, persistence.ErrCredentialNotFound) {
			logger.Warn("super admin lookup failed", zap.Error(err))
		}
		return Match{}, false
	}

	if !verifier(mainDB).Verify(ctx, password, row.PasswordHash) {
		return Match{}, false
	}

	match := Match{UserID: row.ID, Email: row.Email, IsSuperAdmin: true}
	l.complete(ctx, logger, mainDB, &match, nil)
	return match, true
}

func (l *Locator) searchTenant(ctx context.Context, logger *zap.Logger, row persistence.TenantRow, email, password string) (Match, bool, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	database := strings.TrimSpace(*row.DatabaseIdentifier)
	src, err := l.repo.Tenant(ctx, database)
	if err != nil {
		return Match{}, false, &tenantUnavailableError{database: database, op: "connect", err: err}
	}

	if err := src.EnsureUserColumns(ctx); err != nil {
		logger.Debug("schema self-repair incomplete", zap.String("database", database), zap.Error(err))
	}

	cred, err := src.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrCredentialNotFound) {
			return Match{}, false, nil
		}
		return Match{}, false, &tenantUnavailableError{database: database, op: "find user", err: err}
	}

	if cred.PasswordHash == nil || *cred.PasswordHash == "" {
		logger.Debug("user has no password hash", zap.String("database", database))
		return Match{}, false, nil
	}

	if !verifier(src).Verify(ctx, password, cred.PasswordHash) {
		return Match{}, false, nil
	}

	match := Match{
		UserID: cred.ID,
		Email:  cred.Email,
		Tenant: &Tenant{ID: row.ID, Name: row.Name, DatabaseIdentifier: database},
	}
	tenantID := row.ID
	l.complete(ctx, logger, src, &match, &tenantID)
	return match, true, nil
}

// complete loads profile and roles and stamps the sign-in time. None of it can fail the login.
func (l *Locator) complete(ctx context.Context, logger *zap.Logger, src repo.CredentialSource, match *Match, tenantID *uuid.UUID) {
	fields := []zap.Field{zap.String("database", src.Database()), zap.String("user_id", match.UserID.String())}

	profile, err := src.GetProfile(ctx, match.UserID)
	switch {
	case err != nil:
		logger.Warn("load profile failed", append(fields, zap.Error(err))...)
	case profile != nil:
		match.Profile = &Profile{FullName: profile.FullName, Phone: profile.Phone, AvatarURL: profile.AvatarURL}
	}

	match.Roles = []string{}
	roles, err := src.ListRoles(ctx, match.UserID, tenantID)
	if err != nil {
		logger.Warn("load roles failed", append(fields, zap.Error(err))...)
	}
	for _, r := range roles {
		match.Roles = append(match.Roles, r.Role)
	}

	if err := src.TouchLastSignIn(ctx, match.UserID); err != nil {
		logger.Warn("update last sign in failed", append(fields, zap.Error(err))...)
	}
}

func verifier(src repo.CredentialSource) *platformauth.Verifier {
	crypt := src.CryptStrategies()
	strategies := make([]platformauth.Strategy, 0, len(crypt)+1)
	strategies = append(strategies, crypt...)
	return platformauth.NewVerifier(append(strategies, platformauth.BcryptStrategy)...)
}

func logTenantFailure(logger *zap.Logger, row persistence.TenantRow, err error) {
	fields := []zap.Field{
		zap.String("tenant_id", row.ID.String()),
		zap.String("database", *row.DatabaseIdentifier),
		zap.Error(err),
	}
	if persistence.IsDatabaseMissing(err) {
		logger.Debug("tenant database does not exist", fields...)
		return
	}
	logger.Warn("tenant database unavailable", fields...)
}
