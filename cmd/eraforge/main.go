package main

import (
	"os"

	"github.com/spf13/cobra"

	"eraforge/internal/config"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:          "eraforge",
		Short:        "Turn-based world simulation driven by an oracle",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the project config")

	root.AddCommand(initCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(playCmd(&configPath))
	root.AddCommand(budgetCmd(&configPath))
	root.AddCommand(worldCmd(&configPath))
	root.AddCommand(auditCmd(&configPath))
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
