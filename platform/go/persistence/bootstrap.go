package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/agencydesk/database"
)

// BootstrapMainSchema applies the main database DDL (agency registry plus the super-admin identity
// tables) in a single transaction. SQL is embedded at build time so binaries stay self-contained.
// Idempotent; intended for the CLI and tests.
func BootstrapMainSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap main schema: pool is required")
	}
	return applyStatements(ctx, pool, splitStatements(sqlassets.MainSQL))
}

// BootstrapTenantSchema applies the identity DDL of one agency database.
func BootstrapTenantSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap tenant schema: pool is required")
	}
	return applyStatements(ctx, pool, splitStatements(sqlassets.TenantSQL))
}

// CreateDatabase creates the named database on the server behind pool unless it already exists.
// CREATE DATABASE cannot run inside a transaction, so it goes straight through the pool.
func CreateDatabase(ctx context.Context, pool *pgxpool.Pool, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("database name is required")
	}

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check database %q: %w", name, err)
	}
	if exists {
		return nil
	}

	if _, err := pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("create database %q: %w", name, err)
	}
	return nil
}

func applyStatements(ctx context.Context, pool *pgxpool.Pool, statements []string) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func splitStatements(script string) []string {
	raw := strings.Split(script, ";")
	statements := make([]string, 0, len(raw))
	for _, part := range raw {
		stmt := strings.TrimSpace(part)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
