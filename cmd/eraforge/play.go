package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eraforge/internal/tui"
)

func playCmd(configPath *string) *cobra.Command {
	var user string
	var logPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer logFile.Close()

			a, err := newApp(ctx, *configPath, logFile)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return tui.Run(ctx, a.game, user)
		},
	}
	cmd.Flags().StringVar(&user, "user", "local", "Player id")
	cmd.Flags().StringVar(&logPath, "log-file", "eraforge.log", "Where to write logs while the screen is in use")
	return cmd
}
