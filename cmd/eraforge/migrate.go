package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, logger, err := openStoreOnly(ctx, *configPath)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			logger.Info("schema ready")
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
