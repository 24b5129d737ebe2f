package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AgenciesTable is the tenant registry table in the main database.
const AgenciesTable = "agencies"

// TenantRow is an agency record as read from the registry.
type TenantRow struct {
	ID                 uuid.UUID `db:"id"`
	Name               string    `db:"name"`
	DatabaseIdentifier *string   `db:"database_name"`
	IsActive           bool      `db:"is_active"`
}

// TenantRegistry reads the agency registry from the main database.
type TenantRegistry struct {
	db Querier
}

// NewTenantRegistry creates a registry; assumes the agencies table already exists.
func NewTenantRegistry(db Querier) (*TenantRegistry, error) {
	if db == nil {
		return nil, errors.New("main database is required")
	}
	return &TenantRegistry{db: db}, nil
}

// ListActiveTenants returns every active agency that has a database, in creation order.
// An empty registry yields an empty slice. Every failure wraps ErrMainDatabase.
func (r *TenantRegistry) ListActiveTenants(ctx context.Context) ([]TenantRow, error) {
	query := fmt.Sprintf(`
        SELECT id, name, database_name, is_active
        FROM %s
        WHERE is_active = TRUE AND database_name IS NOT NULL
        ORDER BY created_at, id
    `, AgenciesTable)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list tenants: %w", ErrMainDatabase, err)
	}
	defer rows.Close()

	tenants := make([]TenantRow, 0)
	for rows.Next() {
		var row TenantRow
		if err := rows.Scan(&row.ID, &row.Name, &row.DatabaseIdentifier, &row.IsActive); err != nil {
			return nil, fmt.Errorf("%w: scan tenant: %w", ErrMainDatabase, err)
		}
		tenants = append(tenants, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tenants: %w", ErrMainDatabase, err)
	}

	return tenants, nil
}

// Ping checks main database connectivity.
func (r *TenantRegistry) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: %w", ErrMainDatabase, err)
	}
	return nil
}
