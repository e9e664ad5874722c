package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountCreateCommand())
	return cmd
}

func newAccountCreateCommand() *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a member or administrator account",
		Example: `  helpdeskctl account create --email ops@example.com --password 's3cret-pass' --role administrator`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			if env.stores.MigrateOnStart() {
				if err := env.stores.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			authService := service.NewAuthService(env.cfg.Auth, service.AuthDependencies{
				AccountRepo: env.stores.Accounts,
				Logger:      env.logger,
			})
			if name == "" {
				name = email
			}
			account, err := authService.CreateAccount(cmd.Context(), name, email, password, domain.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s account %d (%s)\n", account.Role, account.ID, account.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the email)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 8 characters (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "Role: member or administrator")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
