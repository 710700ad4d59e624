package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"example.com/aura/internal/ingest"
	"example.com/aura/internal/ledger"
	persistence "example.com/aura/internal/persistence/postgres"
	"example.com/aura/internal/scoring"
	"example.com/aura/internal/strava"
	"example.com/aura/internal/token"
)

func newFailuresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and replay failed webhook notifications",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List unresolved failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, pool, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			failures, err := repo.ListFailures(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTAGE\tOWNER\tOBJECT\tATTEMPTS\tCREATED\tREASON")
			for _, f := range failures {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
					f.ID, f.Stage, f.OwnerID, f.ObjectID, f.Attempts, f.CreatedAt.Format(time.RFC3339), f.Reason)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	replay := &cobra.Command{
		Use:   "replay",
		Short: "Re-run unresolved failures through ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, pool, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			pipeline := a.newPipeline(repo)
			report, err := pipeline.Replay(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d resolved=%d failed=%d\n", report.Attempted, report.Resolved, report.Failed)
			for outcome, n := range report.Outcomes {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", outcome, n)
			}
			return nil
		},
	}
	replay.Flags().IntVar(&limit, "limit", 50, "maximum failures replayed")

	cmd.AddCommand(list, replay)
	return cmd
}

func (a *app) newPipeline(repo *persistence.Repository) *ingest.Pipeline {
	oauth := strava.NewOAuth(strava.OAuthConfig{
		ClientID:     a.cfg.Strava.ClientID,
		ClientSecret: a.cfg.Strava.ClientSecret,
		RedirectURL:  a.cfg.Strava.RedirectURL,
		BaseURL:      a.cfg.Strava.OAuthBaseURL,
		Timeout:      a.cfg.Strava.HTTPTimeout,
	})
	opts := []token.Option{token.WithLogger(a.logger), token.WithSafetyMargin(a.cfg.TokenSafetyMargin)}
	if a.cfg.RedisAddress != "" {
		// Replay may race a live API instance refreshing the same credential.
		opts = append(opts, token.WithLocker(token.NewRedisLocker(redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddress}), a.logger)))
	}
	return ingest.NewPipeline(
		repo,
		token.NewManager(repo, oauth, opts...),
		strava.NewClient(a.cfg.Strava.APIBaseURL, a.cfg.Strava.HTTPTimeout),
		scoring.NewEngine(a.cfg.Scoring),
		ledger.New(repo, a.cfg.Ledger, a.logger),
		ingest.WithFailureStore(repo),
		ingest.WithLogger(a.logger),
	)
}
