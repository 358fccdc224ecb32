package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"eraforge/internal/audit"
	"eraforge/internal/oracle"
)

func auditCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check stored worlds for ledger and metrics inconsistencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStoreOnly(ctx, *configPath)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			report, err := audit.Run(ctx, st)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
}

func printReport(out io.Writer, report *audit.Report) error {
	var errorIssues []audit.Issue
	var warnIssues []audit.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case audit.SeverityError:
			errorIssues = append(errorIssues, issue)
		case audit.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintf(out, "No issues found in %d worlds.\n", report.Worlds)
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "Errors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(out, "")
		}
		fmt.Fprintf(out, "Warnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("audit found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []audit.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(out, "  - world %d (%s): %s (%s)\n", issue.WorldID, oracle.Era(issue.Year), issue.Message, issue.Code)
	}
}
