package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eraforge/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	server := mcp.NewServer(a.game, a.store, version, a.log)
	a.log.Info("serving MCP over stdio", "provider", a.cfg.Oracle.Provider, "driver", a.cfg.Database.Driver)
	return server.Run(ctx, &sdk.StdioTransport{})
}
