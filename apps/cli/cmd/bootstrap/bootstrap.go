package bootstrap

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/clienv"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
)

// Notes/constraints:
// - Every step is idempotent (CREATE ... IF NOT EXISTS); rerunning is safe.
// - Agency rows are not created here; insert them into agencies once the database exists.

// Command groups bootstrap helpers for the main and tenant databases.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Apply the identity schemas (main registry, tenant databases)",
	}

	cmd.AddCommand(mainCommand())
	cmd.AddCommand(tenantCommand())
	return cmd
}

func mainCommand() *cobra.Command {
	var db clienv.DatabaseFlags

	c := &cobra.Command{
		Use:   "main",
		Short: "Create the agency registry and super-admin identity tables in the main database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, logger, err := clienv.Context(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dbs, err := db.Open(ctx)
			if err != nil {
				return err
			}
			defer dbs.Close()

			if err := persistence.BootstrapMainSchema(ctx, dbs.Main); err != nil {
				return fmt.Errorf("bootstrap main schema: %w", err)
			}

			logger.Info("main schema applied", zap.String("database", dbs.MainDatabase()))
			fmt.Fprintf(cmd.OutOrStdout(), "Main schema ready in %s\n", dbs.MainDatabase())
			return nil
		},
	}

	db.Register(c)
	return c
}

func tenantCommand() *cobra.Command {
	var (
		db       clienv.DatabaseFlags
		database string
		create   bool
	)

	c := &cobra.Command{
		Use:   "tenant",
		Short: "Apply the identity schema to one agency database",
		RunE: func(cmd *cobra.Command, args []string) error {
			database = strings.TrimSpace(database)
			if database == "" {
				return fmt.Errorf("--database is required")
			}

			ctx, logger, err := clienv.Context(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dbs, err := db.Open(ctx)
			if err != nil {
				return err
			}
			defer dbs.Close()

			if create {
				if err := persistence.CreateDatabase(ctx, dbs.Main, database); err != nil {
					return err
				}
			}

			pool, err := dbs.Tenants.Pool(ctx, database)
			if err != nil {
				return err
			}

			if err := persistence.BootstrapTenantSchema(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap tenant schema: %w", err)
			}
			if err := persistence.EnsureOptionalColumns(ctx, pool, persistence.UsersTable, persistence.OptionalUserColumns); err != nil {
				return fmt.Errorf("add optional columns: %w", err)
			}

			logger.Info("tenant schema applied", zap.String("database", database))
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant schema ready in %s\n", database)
			return nil
		},
	}

	db.Register(c)
	c.Flags().StringVar(&database, "database", "", "tenant database identifier")
	c.Flags().BoolVar(&create, "create", false, "create the database first when it does not exist")
	return c
}
