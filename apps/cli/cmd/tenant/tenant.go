package tenantcmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/clienv"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (list, schema repair)",
	}

	cmd.AddCommand(listCommand())
	cmd.AddCommand(repairSchemaCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var db clienv.DatabaseFlags

	c := &cobra.Command{
		Use:   "list",
		Short: "List active agencies in login scan order",
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

			tenants, err := listTenants(ctx, dbs)
			if err != nil {
				return err
			}

			filter, err := tenant.NewDatabaseFilter(clienv.Getenv("TEST_DATABASE_PATTERN", ""))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDATABASE\tSCANNED")
			for _, t := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", t.ID, t.Name, deref(t.DatabaseIdentifier), !filter.Skip(t.DatabaseIdentifier))
			}
			return w.Flush()
		},
	}

	db.Register(c)
	return c
}

func repairSchemaCommand() *cobra.Command {
	var (
		db          clienv.DatabaseFlags
		database    string
		dryRun      bool
		includeTest bool
	)

	c := &cobra.Command{
		Use:   "repair-schema",
		Short: "Add missing optional user columns to one or every non-test tenant database",
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

			targets := []string{strings.TrimSpace(database)}
			if targets[0] == "" {
				tenants, err := listTenants(ctx, dbs)
				if err != nil {
					return err
				}
				filter, err := tenant.NewDatabaseFilter(clienv.Getenv("TEST_DATABASE_PATTERN", ""))
				if err != nil {
					return err
				}
				targets = repairTargets(tenants, filter, includeTest)
			}

			var errs error
			for _, name := range targets {
				missing, err := repairDatabase(ctx, dbs.Tenants, name, dryRun)
				if err != nil {
					logger.Warn("schema repair failed", zap.String("database", name), zap.Error(err))
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}

				status := "ok"
				switch {
				case len(missing) > 0 && dryRun:
					status = "missing " + strings.Join(missing, ",")
				case len(missing) > 0:
					status = "added " + strings.Join(missing, ",")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, status)
			}
			return errs
		},
	}

	db.Register(c)
	c.Flags().StringVar(&database, "database", "", "tenant database identifier; all active tenants when empty")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "report missing columns without altering tables")
	c.Flags().BoolVar(&includeTest, "include-test", false, "also repair databases matching TEST_DATABASE_PATTERN")
	return c
}

// repairTargets lists the distinct databases of tenants, in registry order. Reserved test
// databases are left out unless includeTest is set.
func repairTargets(tenants []persistence.TenantRow, filter *tenant.DatabaseFilter, includeTest bool) []string {
	seen := make(map[string]struct{}, len(tenants))
	targets := make([]string, 0, len(tenants))
	for _, t := range tenants {
		if t.DatabaseIdentifier == nil {
			continue
		}
		name := strings.TrimSpace(*t.DatabaseIdentifier)
		if name == "" {
			continue
		}
		if !includeTest && filter.Skip(&name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	return targets
}

func repairDatabase(ctx context.Context, pools *persistence.PoolManager, name string, dryRun bool) ([]string, error) {
	pool, err := pools.Pool(ctx, name)
	if err != nil {
		return nil, err
	}

	missing, err := persistence.MissingColumns(ctx, pool, persistence.UsersTable, persistence.OptionalUserColumns)
	if err != nil || dryRun || len(missing) == 0 {
		return missing, err
	}

	if err := persistence.EnsureOptionalColumns(ctx, pool, persistence.UsersTable, persistence.OptionalUserColumns); err != nil {
		return nil, err
	}
	return missing, nil
}

func listTenants(ctx context.Context, dbs *clienv.Databases) ([]persistence.TenantRow, error) {
	registry, err := persistence.NewTenantRegistry(dbs.Main)
	if err != nil {
		return nil, err
	}
	return registry.ListActiveTenants(ctx)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
