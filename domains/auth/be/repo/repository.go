package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
)

// CryptMode selects where crypt-format hashes are recomputed.
type CryptMode string

const (
	// CryptModeDatabase asks pgcrypto in the database that owns the hash.
	CryptModeDatabase CryptMode = "database"
	// CryptModeLocal recomputes the hash in process.
	CryptModeLocal CryptMode = "local"
)

// ParseCryptMode accepts "database" (default when empty) or "local".
func ParseCryptMode(s string) (CryptMode, error) {
	switch CryptMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CryptModeDatabase:
		return CryptModeDatabase, nil
	case CryptModeLocal:
		return CryptModeLocal, nil
	default:
		return "", fmt.Errorf("unknown password crypt mode %q", s)
	}
}

// CredentialSource is one database that may own a user's credentials: main for super admins,
// or a single agency database.
type CredentialSource interface {
	Database() string
	FindSuperAdmin(ctx context.Context, email string) (persistence.CredentialRow, error)
	FindByEmail(ctx context.Context, email string) (persistence.CredentialRow, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*persistence.ProfileRow, error)
	ListRoles(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) ([]persistence.RoleRow, error)
	TouchLastSignIn(ctx context.Context, userID uuid.UUID) error
	// EnsureUserColumns adds optional users columns the database may lack.
	EnsureUserColumns(ctx context.Context) error
	// CryptStrategies verify crypt-format hashes stored in this database, in order.
	CryptStrategies() []platformauth.Strategy
}

// Repository defines the persistence operations required by the auth service.
type Repository interface {
	ListActiveTenants(ctx context.Context) ([]persistence.TenantRow, error)
	Main() CredentialSource
	// Tenant connects to a tenant database. Connection failures are returned as is so callers can
	// tell a missing database apart with persistence.IsDatabaseMissing.
	Tenant(ctx context.Context, databaseIdentifier string) (CredentialSource, error)
}

// PoolProvider hands out tenant pools. Implemented by persistence.PoolManager.
type PoolProvider interface {
	Pool(ctx context.Context, databaseIdentifier string) (*pgxpool.Pool, error)
}

type Config struct {
	MainDatabase string
	CryptMode    CryptMode
}

type postgresRepository struct {
	registry *persistence.TenantRegistry
	main     *source
	pools    PoolProvider
	repairer *persistence.SchemaRepairer
	mode     CryptMode
}

// NewPostgresRepository constructs a repository over the main pool and the tenant pool manager.
func NewPostgresRepository(main *pgxpool.Pool, pools PoolProvider, repairer *persistence.SchemaRepairer, cfg Config) (Repository, error) {
	if main == nil {
		return nil, errors.New("main pool is required")
	}

	r, err := newRepository(main, pools, repairer, cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newRepository(main persistence.Querier, pools PoolProvider, repairer *persistence.SchemaRepairer, cfg Config) (*postgresRepository, error) {
	if pools == nil {
		return nil, errors.New("tenant pool provider is required")
	}
	if repairer == nil {
		repairer = persistence.NewSchemaRepairer()
	}
	if cfg.CryptMode == "" {
		cfg.CryptMode = CryptModeDatabase
	}
	if cfg.MainDatabase == "" {
		cfg.MainDatabase = "main"
	}

	registry, err := persistence.NewTenantRegistry(main)
	if err != nil {
		return nil, err
	}

	r := &postgresRepository{
		registry: registry,
		pools:    pools,
		repairer: repairer,
		mode:     cfg.CryptMode,
	}
	r.main = r.newSource(cfg.MainDatabase, main)
	return r, nil
}

func (r *postgresRepository) ListActiveTenants(ctx context.Context) ([]persistence.TenantRow, error) {
	return r.registry.ListActiveTenants(ctx)
}

func (r *postgresRepository) Main() CredentialSource {
	return r.main
}

func (r *postgresRepository) Tenant(ctx context.Context, databaseIdentifier string) (CredentialSource, error) {
	pool, err := r.pools.Pool(ctx, databaseIdentifier)
	if err != nil {
		return nil, err
	}
	return r.newSource(databaseIdentifier, pool), nil
}

func (r *postgresRepository) newSource(name string, db persistence.Querier) *source {
	s := &source{
		CredentialStore: persistence.NewCredentialStore(db),
		name:            name,
		db:              db,
		repairer:        r.repairer,
	}
	switch r.mode {
	case CryptModeLocal:
		s.crypt = []platformauth.Strategy{platformauth.CryptStrategy}
	default:
		// pgcrypto has no sha512crypt, so $6$ hashes fall through to the local decoder.
		s.crypt = []platformauth.Strategy{s.Crypt, platformauth.CryptStrategy}
	}
	return s
}

// source binds a CredentialStore to the database it reads.
type source struct {
	*persistence.CredentialStore
	name     string
	db       persistence.Querier
	repairer *persistence.SchemaRepairer
	crypt    []platformauth.Strategy
}

func (s *source) Database() string {
	return s.name
}

func (s *source) EnsureUserColumns(ctx context.Context) error {
	return s.repairer.Ensure(ctx, s.name, s.db, persistence.UsersTable, persistence.OptionalUserColumns)
}

func (s *source) CryptStrategies() []platformauth.Strategy {
	return s.crypt
}
