package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eraforge/internal/ledger"
	"eraforge/internal/metrics"
	"eraforge/internal/oracle"
)

func worldCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Inspect stored worlds",
	}
	cmd.AddCommand(worldListCmd(configPath))
	cmd.AddCommand(worldShowCmd(configPath))
	cmd.AddCommand(worldDeleteCmd(configPath))
	return cmd
}

func worldDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <world-id>",
		Short: "Delete a world and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worldID, err := parseWorldID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, logger, err := openStoreOnly(ctx, *configPath)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := st.DeleteWorld(ctx, worldID); err != nil {
				return err
			}
			logger.Info("world deleted", "world_id", worldID)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted world %d.\n", worldID)
			return nil
		},
	}
}

func worldListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all worlds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStoreOnly(ctx, *configPath)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			worlds, err := st.ListWorlds(ctx)
			if err != nil {
				return err
			}
			if len(worlds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No worlds yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tERA\tUPDATED\tOPENING")
			for _, w := range worlds {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", w.ID, oracle.Era(w.Year), w.UpdatedAt.Format("2006-01-02 15:04"), firstLine(w.Description, 60))
			}
			return tw.Flush()
		},
	}
}

func worldShowCmd(configPath *string) *cobra.Command {
	var newsLimit int
	var turnLimit int
	cmd := &cobra.Command{
		Use:   "show <world-id>",
		Short: "Show a world's description, treasury, metrics, news and turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worldID, err := parseWorldID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, logger, err := openStoreOnly(ctx, *configPath)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			w, err := st.GetWorld(ctx, worldID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "World %d, %s\n\n%s\n\n", w.ID, oracle.Era(w.Year), w.Description)

			acct, err := ledger.New(st, logger).Current(ctx, w.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Treasury: balance %s, multiplier %s, budget %s\n",
				acct.Balance.StringFixed(2), acct.Multiplier.String(), acct.Budget().StringFixed(2))

			m, err := st.LatestMetrics(ctx, w.ID)
			if err != nil {
				return err
			}
			if m != nil {
				printMetrics(out, m.Metrics)
			}

			news, err := st.ListNews(ctx, w.ID, newsLimit)
			if err != nil {
				return err
			}
			if len(news) > 0 {
				fmt.Fprintln(out, "\nNews:")
				for _, item := range news {
					fmt.Fprintf(out, "  [%s] %s\n", oracle.Era(item.Year), item.Body)
				}
			}

			turns, err := st.ListTurns(ctx, w.ID, turnLimit)
			if err != nil {
				return err
			}
			if len(turns) > 0 {
				fmt.Fprintln(out, "\nTurns:")
				for _, t := range turns {
					fmt.Fprintf(out, "  [%s] %s (cost %s, balance %s)\n",
						oracle.Era(t.Year), firstLine(t.Initiative, 50), t.EstimatedCost.StringFixed(2), t.Balance.StringFixed(2))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&newsLimit, "news", 5, "Number of recent news digests to show")
	cmd.Flags().IntVar(&turnLimit, "turns", 10, "Number of recent turns to show")
	return cmd
}

func printMetrics(out io.Writer, snap metrics.Snapshot) {
	fmt.Fprintln(out, "Metrics:")
	for _, key := range metrics.Keys() {
		v, _ := snap.Get(key)
		fmt.Fprintf(out, "  %-28s %d\n", key, v)
	}
}

func firstLine(s string, width int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > width {
		return line[:width-3] + "..."
	}
	return line
}
