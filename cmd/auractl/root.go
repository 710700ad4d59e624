package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/aura/internal/config"
	"example.com/aura/internal/logging"
	persistence "example.com/aura/internal/persistence/postgres"
)

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "auractl",
		Short:         "Operate the aura backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger, err := logging.New(a.cfg.LogLevel, a.cfg.Environment)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.AddCommand(
		newMigrateCmd(a),
		newDLQCmd(a),
		newFailuresCmd(a),
		newMissionsCmd(a),
	)
	return cmd
}

func (a *app) openRepository(ctx context.Context) (*persistence.Repository, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, a.cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return persistence.NewRepository(pool), pool, nil
}
