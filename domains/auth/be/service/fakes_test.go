package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zenGate-Global/agencydesk/domains/auth/be/repo"
	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
)

type fakeSource struct {
	name        string
	users       map[string]persistence.CredentialRow
	superAdmins map[string]persistence.CredentialRow
	profiles    map[uuid.UUID]*persistence.ProfileRow
	roles       []persistence.RoleRow
	crypt       platformauth.Strategy

	superErr  error
	findErr   error
	touchErr  error
	ensureErr error

	mu          sync.Mutex
	finds       int
	ensures     int
	touched     []uuid.UUID
	rolesTenant []*uuid.UUID
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:        name,
		users:       map[string]persistence.CredentialRow{},
		superAdmins: map[string]persistence.CredentialRow{},
		profiles:    map[uuid.UUID]*persistence.ProfileRow{},
	}
}

func (f *fakeSource) addUser(email string, hash *string) persistence.CredentialRow {
	row := persistence.CredentialRow{ID: uuid.New(), Email: email, PasswordHash: hash, IsActive: true}
	f.users[email] = row
	return row
}

func (f *fakeSource) addSuperAdmin(email string, hash *string) persistence.CredentialRow {
	row := persistence.CredentialRow{ID: uuid.New(), Email: email, PasswordHash: hash, IsActive: true}
	f.superAdmins[email] = row
	f.roles = append(f.roles, persistence.RoleRow{UserID: row.ID, Role: persistence.SuperAdminRole})
	return row
}

func (f *fakeSource) Database() string { return f.name }

func (f *fakeSource) FindSuperAdmin(_ context.Context, email string) (persistence.CredentialRow, error) {
	if f.superErr != nil {
		return persistence.CredentialRow{}, f.superErr
	}
	row, ok := f.superAdmins[email]
	if !ok {
		return persistence.CredentialRow{}, persistence.ErrCredentialNotFound
	}
	return row, nil
}

func (f *fakeSource) FindByEmail(_ context.Context, email string) (persistence.CredentialRow, error) {
	f.mu.Lock()
	f.finds++
	f.mu.Unlock()
	if f.findErr != nil {
		return persistence.CredentialRow{}, f.findErr
	}
	row, ok := f.users[email]
	if !ok {
		return persistence.CredentialRow{}, persistence.ErrCredentialNotFound
	}
	return row, nil
}

func (f *fakeSource) GetProfile(_ context.Context, userID uuid.UUID) (*persistence.ProfileRow, error) {
	return f.profiles[userID], nil
}

func (f *fakeSource) ListRoles(_ context.Context, userID uuid.UUID, tenantID *uuid.UUID) ([]persistence.RoleRow, error) {
	f.mu.Lock()
	f.rolesTenant = append(f.rolesTenant, tenantID)
	f.mu.Unlock()

	out := make([]persistence.RoleRow, 0)
	for _, r := range f.roles {
		if r.UserID != userID {
			continue
		}
		if r.TenantID == nil || (tenantID != nil && *r.TenantID == *tenantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) TouchLastSignIn(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID)
	return f.touchErr
}

func (f *fakeSource) EnsureUserColumns(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	return f.ensureErr
}

func (f *fakeSource) CryptStrategies() []platformauth.Strategy {
	return []platformauth.Strategy{f.crypt}
}

type fakeRepo struct {
	tenants []persistence.TenantRow
	listErr error
	main    *fakeSource
	sources map[string]*fakeSource
	// connectFn overrides Tenant for one database.
	connectFn map[string]func(ctx context.Context) error

	mu       sync.Mutex
	lists    int
	connects []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		main:      newFakeSource("main"),
		sources:   map[string]*fakeSource{},
		connectFn: map[string]func(ctx context.Context) error{},
	}
}

// addTenant registers an agency; a nil source means the database does not answer.
func (r *fakeRepo) addTenant(name, database string) (persistence.TenantRow, *fakeSource) {
	db := database
	row := persistence.TenantRow{ID: uuid.New(), Name: name, DatabaseIdentifier: &db, IsActive: true}
	r.tenants = append(r.tenants, row)
	src := newFakeSource(database)
	r.sources[database] = src
	return row, src
}

func (r *fakeRepo) ListActiveTenants(context.Context) ([]persistence.TenantRow, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]persistence.TenantRow(nil), r.tenants...), nil
}

func (r *fakeRepo) Main() repo.CredentialSource { return r.main }

func (r *fakeRepo) Tenant(ctx context.Context, database string) (repo.CredentialSource, error) {
	r.mu.Lock()
	r.connects = append(r.connects, database)
	r.mu.Unlock()

	if fn, ok := r.connectFn[database]; ok {
		if err := fn(ctx); err != nil {
			return nil, err
		}
	}
	src, ok := r.sources[database]
	if !ok {
		return nil, fmt.Errorf("no fake source for %q", database)
	}
	return src, nil
}

func (r *fakeRepo) connected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.connects...)
}
