package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/persistence"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to Postgres",
		Long: `Apply every .sql file of the migrations directory in lexical order.

Examples:
  workflowctl migrate
  workflowctl migrate --dir ./migrations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := cliLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if pg.PoolHandle() == nil {
				return fmt.Errorf("POSTGRES_DSN is required")
			}
			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations from %s applied\n", color.GreenString("✓"), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	return cmd
}
