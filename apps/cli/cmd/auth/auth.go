package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/clienv"
	authrepo "github.com/zenGate-Global/agencydesk/domains/auth/be/repo"
	authservice "github.com/zenGate-Global/agencydesk/domains/auth/be/service"
	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
)

// Command groups the authentication helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication utilities (login smoke test, password hashes)",
	}

	cmd.AddCommand(loginCommand())
	cmd.AddCommand(hashCommand())
	return cmd
}

type loginOutput struct {
	AccessToken  string    `json:"accessToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	Database     string    `json:"database,omitempty"`
	Roles        []string  `json:"roles"`
}

func loginCommand() *cobra.Command {
	var (
		db           clienv.DatabaseFlags
		email        string
		password     string
		secret       string
		issuerName   string
		audience     string
		ttl          time.Duration
		queryTimeout time.Duration
		cryptMode    string
		testPattern  string
		tokenOnly    bool
	)

	c := &cobra.Command{
		Use:   "login",
		Short: "Run the full login flow against the configured databases and print the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, logger, err := clienv.Context(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			mode, err := authrepo.ParseCryptMode(cryptMode)
			if err != nil {
				return err
			}
			filter, err := tenant.NewDatabaseFilter(testPattern)
			if err != nil {
				return err
			}

			issuer, err := platformauth.NewIssuer(platformauth.IssuerConfig{
				Secret:   secret,
				Issuer:   issuerName,
				Audience: audience,
				TTL:      ttl,
			})
			if err != nil {
				return fmt.Errorf("--jwt-secret or JWT_SECRET: %w", err)
			}

			dbs, err := db.Open(ctx)
			if err != nil {
				return err
			}
			defer dbs.Close()

			repository, err := authrepo.NewPostgresRepository(dbs.Main, dbs.Tenants, persistence.NewSchemaRepairer(), authrepo.Config{
				MainDatabase: dbs.MainDatabase(),
				CryptMode:    mode,
			})
			if err != nil {
				return err
			}

			locator := authservice.NewLocator(repository, authservice.LocatorConfig{
				TenantQueryTimeout: queryTimeout,
				Databases:          filter,
			}, logger)

			session, err := authservice.New(locator, issuer).Authenticate(ctx, email, password)
			if err != nil {
				var validationErr *authservice.ValidationError
				if errors.As(err, &validationErr) {
					return fmt.Errorf("%w: %v", err, validationErr.Fields)
				}
				return err
			}

			logger.Info("login succeeded", zap.Strings("tenant_pools", dbs.Tenants.Databases()))

			if tokenOnly {
				fmt.Fprintln(cmd.OutOrStdout(), session.Token)
				return nil
			}

			out := loginOutput{
				AccessToken:  session.Token,
				ExpiresAt:    session.ExpiresAt,
				UserID:       session.Match.UserID.String(),
				IsSuperAdmin: session.Match.IsSuperAdmin,
				Roles:        session.Match.Roles,
			}
			if session.Match.Tenant != nil {
				out.Database = session.Match.Tenant.DatabaseIdentifier
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	db.Register(c)
	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "account password")
	c.Flags().StringVar(&secret, "jwt-secret", clienv.Getenv("JWT_SECRET", ""), "token signing secret (env JWT_SECRET)")
	c.Flags().StringVar(&issuerName, "issuer", clienv.Getenv("TOKEN_ISSUER", platformauth.DefaultIssuer), "token issuer (env TOKEN_ISSUER)")
	c.Flags().StringVar(&audience, "audience", clienv.Getenv("TOKEN_AUDIENCE", platformauth.DefaultAudience), "token audience (env TOKEN_AUDIENCE)")
	c.Flags().DurationVar(&ttl, "ttl", platformauth.DefaultTokenTTL, "token lifetime")
	c.Flags().DurationVar(&queryTimeout, "tenant-query-timeout", 10*time.Second, "time budget per tenant database")
	c.Flags().StringVar(&cryptMode, "crypt-mode", clienv.Getenv("PASSWORD_CRYPT_MODE", string(authrepo.CryptModeDatabase)), "crypt verification: database (pgcrypto) or local (env PASSWORD_CRYPT_MODE)")
	c.Flags().StringVar(&testPattern, "test-database-pattern", clienv.Getenv("TEST_DATABASE_PATTERN", ""), "regexp of tenant databases skipped during login (env TEST_DATABASE_PATTERN)")
	c.Flags().BoolVar(&tokenOnly, "token-only", false, "print only the access token")

	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")

	return c
}
