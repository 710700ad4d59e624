package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/aura/internal/outbox"
	httptransport "example.com/aura/internal/transport/http"
)

const defaultDLQBatchSize = 50

func newDLQCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Retry or quarantine dead-lettered outbox events",
	}

	var batch int
	once := &cobra.Command{
		Use:   "once",
		Short: "Run a single DLQ pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			manager := outbox.NewDLQManager(pool, a.cfg.DLQMaxRetries, a.cfg.DLQBaseDelay, a.logger)
			processed, err := manager.RunOnce(ctx, batch)
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d entries\n", processed)
			return err
		},
	}
	once.Flags().IntVar(&batch, "batch", defaultDLQBatchSize, "entries examined per pass")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run DLQ passes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, pool, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			manager := outbox.NewDLQManager(pool, a.cfg.DLQMaxRetries, a.cfg.DLQBaseDelay, a.logger)

			go func() {
				if err := httptransport.Serve(ctx, httptransport.NewMetricsServer(a.cfg.MetricsAddress), a.logger); err != nil {
					a.logger.Error("metrics server error", zap.Error(err))
				}
			}()

			ticker := time.NewTicker(a.cfg.DLQPollInterval)
			defer ticker.Stop()

			a.logger.Info("dlq manager started",
				zap.Duration("interval", a.cfg.DLQPollInterval),
				zap.Int("max_retries", a.cfg.DLQMaxRetries))

			for {
				select {
				case <-ctx.Done():
					a.logger.Info("dlq manager stopping")
					return nil
				case <-ticker.C:
					if _, err := manager.RunOnce(ctx, batch); err != nil {
						a.logger.Error("dlq pass failed", zap.Error(err))
					}
				}
			}
		},
	}
	run.Flags().IntVar(&batch, "batch", defaultDLQBatchSize, "entries examined per pass")

	cmd.AddCommand(once, run)
	return cmd
}
