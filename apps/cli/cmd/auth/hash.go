package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
)

func hashCommand() *cobra.Command {
	var (
		password string
		scheme   string
	)

	c := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password for seeding an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := platformauth.HashPassword(scheme, password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	c.Flags().StringVar(&password, "password", "", "plaintext password")
	c.Flags().StringVar(&scheme, "scheme", platformauth.SchemeBcrypt, "hash scheme: bcrypt or sha512crypt")

	_ = c.MarkFlagRequired("password")

	return c
}
