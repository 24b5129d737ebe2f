package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/multierr"
)

// OptionalColumn is a column that older tenant databases may lack. Type and Default are SQL
// fragments taken from code, never from user input.
type OptionalColumn struct {
	Name    string
	Type    string
	Default string
}

// OptionalUserColumns are added to a tenant's users table on first access.
var OptionalUserColumns = []OptionalColumn{
	{Name: "last_sign_in_at", Type: "TIMESTAMPTZ"},
	{Name: "is_active", Type: "BOOLEAN", Default: "TRUE"},
}

// EnsureOptionalColumns adds any of columns missing from table using ADD COLUMN IF NOT EXISTS.
// Add failures (for example a concurrent ALTER from another process) do not stop the remaining
// columns; they come back combined so the caller can log them, and the column is assumed present.
// When every column exists no DDL is issued.
func EnsureOptionalColumns(ctx context.Context, db Querier, table string, columns []OptionalColumn) error {
	table, err := validateRepairTarget(table, columns)
	if err != nil {
		return err
	}

	existing, err := existingColumns(ctx, db, table)
	if err != nil {
		return fmt.Errorf("inspect columns of %s: %w", table, err)
	}

	var errs error
	for _, col := range columns {
		if _, ok := existing[strings.ToLower(col.Name)]; ok {
			continue
		}
		if _, err := db.Exec(ctx, addColumnSQL(table, col)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("add column %s.%s: %w", table, col.Name, err))
		}
	}

	return errs
}

// MissingColumns reports which of columns table lacks, without changing anything.
func MissingColumns(ctx context.Context, db Querier, table string, columns []OptionalColumn) ([]string, error) {
	table, err := validateRepairTarget(table, columns)
	if err != nil {
		return nil, err
	}

	existing, err := existingColumns(ctx, db, table)
	if err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", table, err)
	}

	var missing []string
	for _, col := range columns {
		if _, ok := existing[strings.ToLower(col.Name)]; !ok {
			missing = append(missing, col.Name)
		}
	}
	return missing, nil
}

func existingColumns(ctx context.Context, db Querier, table string) (map[string]struct{}, error) {
	rows, err := db.Query(ctx, `
        SELECT column_name
        FROM information_schema.columns
        WHERE table_schema = current_schema() AND table_name = $1
    `, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[strings.ToLower(name)] = struct{}{}
	}

	return existing, rows.Err()
}

func addColumnSQL(table string, col OptionalColumn) string {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{col.Name}.Sanitize(), col.Type)
	if col.Default != "" {
		stmt += " DEFAULT " + col.Default
	}
	return stmt
}

// SchemaRepairer remembers which (database, table) pairs already passed EnsureOptionalColumns so
// the information_schema lookup runs once per process and table.
type SchemaRepairer struct {
	done sync.Map
}

func NewSchemaRepairer() *SchemaRepairer {
	return &SchemaRepairer{}
}

// Ensure runs EnsureOptionalColumns unless database/table was already repaired cleanly.
func (r *SchemaRepairer) Ensure(ctx context.Context, database string, db Querier, table string, columns []OptionalColumn) error {
	key := database + "/" + table
	if _, ok := r.done.Load(key); ok {
		return nil
	}

	if err := EnsureOptionalColumns(ctx, db, table, columns); err != nil {
		return err
	}

	r.done.Store(key, struct{}{})
	return nil
}
