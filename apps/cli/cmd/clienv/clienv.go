// Package clienv holds the flags, logger and database wiring shared by the CLI commands.
package clienv

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/requesttrace"
)

// LogLevelFlag is the persistent flag registered on the root command.
const LogLevelFlag = "log-level"

// Getenv returns the value of key, or fallback when it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Context builds the command context: a stderr logger plus a system audit identity.
func Context(cmd *cobra.Command) (context.Context, *zap.Logger, error) {
	level := "warn"
	if f := cmd.Flag(LogLevelFlag); f != nil && f.Value.String() != "" {
		level = f.Value.String()
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "agencydesk-cli",
		Level:     level,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	audit := requesttrace.System(uuid.NewString())
	logger = logger.With(zap.String("request_id", audit.RequestID), zap.String("command", cmd.CommandPath()))
	ctx = platformlogging.WithLogger(ctx, logger)
	ctx = requesttrace.IntoContext(ctx, audit)
	return ctx, logger, nil
}

// DatabaseFlags locate the main database and the tenant database server.
type DatabaseFlags struct {
	DatabaseURL       string
	TenantDatabaseURL string
	ConnectTimeout    time.Duration
	MaxConns          int32
}

// Register adds the database flags to cmd with env fallbacks.
func (f *DatabaseFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.DatabaseURL, "database-url", Getenv("DATABASE_URL", ""), "main database connection string (env DATABASE_URL)")
	cmd.Flags().StringVar(&f.TenantDatabaseURL, "tenant-database-url", Getenv("TENANT_DATABASE_URL", ""), "base connection string for tenant databases; defaults to --database-url (env TENANT_DATABASE_URL)")

	timeout, err := time.ParseDuration(Getenv("TENANT_CONNECT_TIMEOUT", "5s"))
	if err != nil {
		timeout = 5 * time.Second
	}
	cmd.Flags().DurationVar(&f.ConnectTimeout, "tenant-connect-timeout", timeout, "dial timeout per tenant database (env TENANT_CONNECT_TIMEOUT)")
	cmd.Flags().Int32Var(&f.MaxConns, "tenant-max-conns", 2, "max connections per tenant pool")
}

// Databases is the main pool plus the lazy tenant pool cache.
type Databases struct {
	Main    *pgxpool.Pool
	Tenants *persistence.PoolManager
}

// Open connects to main and prepares, without connecting, the tenant pool manager.
func (f *DatabaseFlags) Open(ctx context.Context) (*Databases, error) {
	if f.DatabaseURL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	mainPool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("init main pool: %w", err)
	}

	base := f.TenantDatabaseURL
	if base == "" {
		base = f.DatabaseURL
	}
	pools, err := persistence.NewPoolManager(persistence.PoolManagerConfig{
		BaseConnString: base,
		MaxConns:       f.MaxConns,
		ConnectTimeout: f.ConnectTimeout,
	})
	if err != nil {
		persistence.ClosePool(mainPool)
		return nil, err
	}

	return &Databases{Main: mainPool, Tenants: pools}, nil
}

// MainDatabase is the database name of the main pool.
func (d *Databases) MainDatabase() string {
	return d.Main.Config().ConnConfig.Database
}

// Close releases every pool.
func (d *Databases) Close() {
	d.Tenants.Close()
	persistence.ClosePool(d.Main)
}
