package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/bootstrap"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the record store schema up to date",
		Long:  `Applies the embedded Postgres migrations, or runs SQLite auto-migration, depending on STORE_DRIVER.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.stores.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", env.stores.Driver())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the embedded Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range persistence.MigrationNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}

type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	stores *bootstrap.Stores
}

func initEnv(ctx context.Context) (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	return &cliEnv{cfg: cfg, logger: logger, stores: stores}, nil
}

func (e *cliEnv) close() {
	e.stores.Close()
	_ = e.logger.Sync()
}
