package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd(configPath *string) *cobra.Command {
	var projectName string
	var provider string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter eraforge.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(*configPath, projectName, provider)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&provider, "provider", "openai", "Oracle provider (openai or gemini)")
	return cmd
}

func runInit(configPath, projectName, provider string) error {
	if provider != "openai" && provider != "gemini" {
		return fmt.Errorf("unsupported oracle provider %q", provider)
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	contents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  driver: sqlite\n  dsn: sqlite://%s.db\n\noracle:\n  provider: %s\n  temperature: 0.7\n  timeout: 60s\n\neconomy:\n  starting_balance: \"1000.00\"\n  starting_multiplier: \"1.00\"\n\ngame:\n  min_year: -10000\n  max_year: 2025\n  news: true\n\nlog:\n  level: info\n  format: text\n", projectName, projectName, provider)
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	return nil
}
