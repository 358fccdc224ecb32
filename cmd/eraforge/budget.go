package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eraforge/internal/ledger"
)

func budgetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "budget <world-id>",
		Short: "Print what a world may spend on its next initiative",
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

			if _, err := st.GetWorld(ctx, worldID); err != nil {
				return err
			}
			acct, err := ledger.New(st, logger).Current(ctx, worldID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance:    %s\n", acct.Balance.StringFixed(2))
			fmt.Fprintf(out, "Multiplier: %s\n", acct.Multiplier.String())
			fmt.Fprintf(out, "Budget:     %s\n", acct.Budget().StringFixed(2))
			return nil
		},
	}
}

func parseWorldID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid world id %q", raw)
	}
	return id, nil
}
