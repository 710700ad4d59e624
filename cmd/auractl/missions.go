package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/aura/internal/ledger"
	"example.com/aura/internal/missions"
)

func newMissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Manage daily missions",
	}

	var day string
	generate := &cobra.Command{
		Use:   "generate <account-id>",
		Short: "Generate or show an account's missions for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, pool, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			g := missions.NewGenerator(repo, ledger.New(repo, a.cfg.Ledger, a.logger),
				missions.WithPerDay(a.cfg.MissionsPerDay),
				missions.WithLocation(a.cfg.Location()),
				missions.WithLogger(a.logger),
			)
			if day == "" {
				day = g.Today()
			}
			set, err := g.GenerateOrFetch(ctx, args[0], day)
			if err != nil {
				return err
			}
			for _, m := range set {
				status := "open"
				if m.Completed {
					status = "done"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-4s  %4d xp  %s\n", m.ID, status, m.XP, m.Description)
			}
			return nil
		},
	}
	generate.Flags().StringVar(&day, "day", "", "calendar day (YYYY-MM-DD), defaults to today")

	cmd.AddCommand(generate)
	return cmd
}
