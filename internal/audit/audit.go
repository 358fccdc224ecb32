// Package audit checks stored worlds for states no turn should leave behind.
package audit

import (
	"context"
	"fmt"
	"strings"

	"eraforge/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
	SeverityInfo  Severity = "info"
)

const (
	codeEmptyDescription  = "empty_description"
	codeUnfunded          = "unfunded_world"
	codeMissingMetrics    = "missing_metrics"
	codeNonPositiveFactor = "non_positive_multiplier"
	codeNegativeBalance   = "negative_balance"
	codeLedgerDrift       = "ledger_drift"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	WorldID  int64
	Year     int
}

type Report struct {
	Worlds int
	Issues []Issue
}

// Count returns how many issues have the given severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

type Source interface {
	ListWorlds(ctx context.Context) ([]store.World, error)
	LatestEconomy(ctx context.Context, worldID int64) (*store.EconomicRecord, error)
	LatestMetrics(ctx context.Context, worldID int64) (*store.MetricsRecord, error)
	ListTurns(ctx context.Context, worldID int64, limit int) ([]store.TurnRecord, error)
}

func Run(ctx context.Context, src Source) (*Report, error) {
	if src == nil {
		return nil, fmt.Errorf("store is required")
	}

	worlds, err := src.ListWorlds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}

	issues := make([]Issue, 0)
	for _, w := range worlds {
		if strings.TrimSpace(w.Description) == "" {
			issues = append(issues, issueFor(w, SeverityError, codeEmptyDescription, "world has no description"))
		}

		econ, err := src.LatestEconomy(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("latest economy for world %d: %w", w.ID, err)
		}
		issues = append(issues, checkEconomy(w, econ)...)

		m, err := src.LatestMetrics(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("latest metrics for world %d: %w", w.ID, err)
		}
		if m == nil {
			issues = append(issues, issueFor(w, SeverityWarn, codeMissingMetrics, "world has no metrics snapshot"))
		}

		turns, err := src.ListTurns(ctx, w.ID, 1)
		if err != nil {
			return nil, fmt.Errorf("list turns for world %d: %w", w.ID, err)
		}
		if len(turns) > 0 && econ != nil {
			issues = append(issues, checkDrift(w, econ, turns[0])...)
		}
	}

	return &Report{Worlds: len(worlds), Issues: issues}, nil
}

func checkEconomy(w store.World, econ *store.EconomicRecord) []Issue {
	if econ == nil {
		return []Issue{issueFor(w, SeverityWarn, codeUnfunded, "world has no economic record")}
	}
	var issues []Issue
	if !econ.Multiplier.IsPositive() {
		issues = append(issues, issueFor(w, SeverityWarn, codeNonPositiveFactor,
			fmt.Sprintf("multiplier is %s, every budget will be zero or negative", econ.Multiplier)))
	}
	if econ.Balance.IsNegative() {
		issues = append(issues, issueFor(w, SeverityInfo, codeNegativeBalance,
			fmt.Sprintf("treasury is in debt: %s", econ.Balance.StringFixed(2))))
	}
	return issues
}

// checkDrift compares the newest turn with the newest ledger record. They
// commit together, so a mismatch means the ledger was written outside a turn.
func checkDrift(w store.World, econ *store.EconomicRecord, last store.TurnRecord) []Issue {
	if econ.Balance.Equal(last.Balance) && econ.Multiplier.Equal(last.Multiplier) {
		return nil
	}
	return []Issue{issueFor(w, SeverityWarn, codeLedgerDrift,
		fmt.Sprintf("turn %s left %s × %s but the ledger holds %s × %s",
			last.ID, last.Balance, last.Multiplier, econ.Balance, econ.Multiplier))}
}

func issueFor(w store.World, severity Severity, code, message string) Issue {
	return Issue{
		Severity: severity,
		Code:     code,
		Message:  message,
		WorldID:  w.ID,
		Year:     w.Year,
	}
}
