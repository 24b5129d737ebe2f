package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	UsersTable     = "users"
	ProfilesTable  = "profiles"
	UserRolesTable = "user_roles"

	// SuperAdminRole is only valid on assignments without a tenant.
	SuperAdminRole = "super_admin"
)

// CredentialRow is the authentication view of a users row.
type CredentialRow struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	PasswordHash *string    `db:"password_hash"`
	IsActive     bool       `db:"is_active"`
	LastSignInAt *time.Time `db:"last_sign_in_at"`
}

// ProfileRow is the optional profile attached to a user.
type ProfileRow struct {
	UserID    uuid.UUID `db:"user_id"`
	FullName  *string   `db:"full_name"`
	Phone     *string   `db:"phone"`
	AvatarURL *string   `db:"avatar_url"`
}

// RoleRow is a role assignment; TenantID is nil for global roles.
type RoleRow struct {
	UserID   uuid.UUID  `db:"user_id"`
	Role     string     `db:"role"`
	TenantID *uuid.UUID `db:"tenant_id"`
}

// CredentialStore runs the identity queries against one database (main or tenant).
type CredentialStore struct {
	db Querier
}

func NewCredentialStore(db Querier) *CredentialStore {
	if db == nil {
		panic("CredentialStore requires a database")
	}
	return &CredentialStore{db: db}
}

// FindSuperAdmin looks up an active user holding the global super_admin role.
// email must already be normalized to lower case.
func (s *CredentialStore) FindSuperAdmin(ctx context.Context, email string) (CredentialRow, error) {
	query := fmt.Sprintf(`
        SELECT u.id, u.email, u.password_hash, u.is_active, u.last_sign_in_at
        FROM %s u
        JOIN %s r ON r.user_id = u.id
        WHERE LOWER(u.email) = $1
          AND u.is_active = TRUE
          AND r.role = $2
          AND r.tenant_id IS NULL
        LIMIT 1
    `, UsersTable, UserRolesTable)

	return scanCredential(s.db.QueryRow(ctx, query, email, SuperAdminRole))
}

// FindByEmail looks up an active user by case-insensitive email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (CredentialRow, error) {
	query := fmt.Sprintf(`
        SELECT id, email, password_hash, is_active, last_sign_in_at
        FROM %s
        WHERE LOWER(email) = $1 AND is_active = TRUE
        LIMIT 1
    `, UsersTable)

	return scanCredential(s.db.QueryRow(ctx, query, email))
}

// GetProfile returns the user's profile, or nil when none exists.
func (s *CredentialStore) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileRow, error) {
	query := fmt.Sprintf(`
        SELECT user_id, full_name, phone, avatar_url
        FROM %s WHERE user_id = $1
    `, ProfilesTable)

	var p ProfileRow
	err := s.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.FullName, &p.Phone, &p.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// ListRoles returns the user's global assignments plus, when tenantID is set, the ones scoped to
// that tenant.
func (s *CredentialStore) ListRoles(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) ([]RoleRow, error) {
	where := "user_id = $1 AND tenant_id IS NULL"
	args := []any{userID}
	if tenantID != nil {
		where = "user_id = $1 AND (tenant_id = $2 OR tenant_id IS NULL)"
		args = append(args, *tenantID)
	}

	query := fmt.Sprintf(`
        SELECT user_id, role, tenant_id
        FROM %s
        WHERE %s
        ORDER BY role
    `, UserRolesTable, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]RoleRow, 0)
	for rows.Next() {
		var r RoleRow
		if err := rows.Scan(&r.UserID, &r.Role, &r.TenantID); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// TouchLastSignIn stamps last_sign_in_at with the database clock.
func (s *CredentialStore) TouchLastSignIn(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET last_sign_in_at = NOW() WHERE id = $1`, UsersTable), userID)
	if err != nil {
		return fmt.Errorf("update last sign in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// Crypt asks pgcrypto to recompute crypt(plaintext, storedHash) and compares it with storedHash.
func (s *CredentialStore) Crypt(ctx context.Context, plaintext, storedHash string) (bool, error) {
	var match bool
	if err := s.db.QueryRow(ctx, `SELECT crypt($1, $2) = $2`, plaintext, storedHash).Scan(&match); err != nil {
		return false, fmt.Errorf("pgcrypto crypt: %w", err)
	}
	return match, nil
}

func scanCredential(row pgx.Row) (CredentialRow, error) {
	var c CredentialRow
	if err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.IsActive, &c.LastSignInAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CredentialRow{}, ErrCredentialNotFound
		}
		return CredentialRow{}, err
	}
	return c, nil
}
