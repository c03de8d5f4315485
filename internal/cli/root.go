// Package cli implements the workflowctl commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/app"
	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/observability"
)

// env lazily builds the runtime so that --help and flag errors never touch storage.
type env struct {
	bootstrap func(ctx context.Context) (*app.Runtime, error)
	rt        *app.Runtime
}

func (e *env) runtime(ctx context.Context) (*app.Runtime, error) {
	if e.rt != nil {
		return e.rt, nil
	}
	rt, err := e.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	e.rt = rt
	return rt, nil
}

func (e *env) close() {
	if e.rt != nil {
		e.rt.Close()
		_ = e.rt.Logger.Sync()
		e.rt = nil
	}
}

// RootCmd returns the workflowctl root command.
func RootCmd() *cobra.Command {
	return newRootCmd(&env{bootstrap: defaultBootstrap})
}

func defaultBootstrap(ctx context.Context) (*app.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.Bootstrap(ctx, cfg, logger, app.Options{})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// cliLogger keeps informational output off the terminal unless LOG_LEVEL asks for it.
func cliLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := cfg.Logger
	if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	return observability.NewLogger(logCfg, "workflowctl")
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:          "workflowctl",
		Short:        "Operate the ticket workflow service",
		Long:         `workflowctl runs migrations, seeds the support directory, replays pending ticket-service notifications, inspects routing state and issues tokens for internal callers.`,
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd(e))
	root.AddCommand(reconcileCmd(e))
	root.AddCommand(stateCmd(e))
	root.AddCommand(historyCmd(e))
	root.AddCommand(groupsCmd(e))
	root.AddCommand(tokenCmd())
	return root
}
