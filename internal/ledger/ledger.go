// Package ledger owns a world's treasury: the balance, its growth
// multiplier, and the budget derived from them each turn. All arithmetic is
// exact decimal.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"eraforge/internal/store"
)

// Repository is the persistence the ledger needs. Both store.Store and
// store.Tx satisfy it.
type Repository interface {
	LatestEconomy(ctx context.Context, worldID int64) (*store.EconomicRecord, error)
	AppendEconomy(ctx context.Context, rec store.EconomicRecord) error
}

// Account is a world's treasury at one point in time.
type Account struct {
	Balance    decimal.Decimal
	Multiplier decimal.Decimal
}

// Budget is the amount available for a turn.
func (a Account) Budget() decimal.Decimal {
	return a.Balance.Mul(a.Multiplier)
}

// Settle returns the account after a turn: the budget less cost becomes the
// new balance, and delta is added to the multiplier. Nothing is clamped.
func (a Account) Settle(cost, delta decimal.Decimal) Account {
	return Account{
		Balance:    a.Budget().Sub(cost),
		Multiplier: a.Multiplier.Add(delta),
	}
}

type Ledger struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func New(repo Repository, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{repo: repo, log: logger, now: time.Now}
}

// WithRepository returns a ledger sharing this one's logger and clock but
// reading and writing through repo, typically a transaction.
func (l *Ledger) WithRepository(repo Repository) *Ledger {
	return &Ledger{repo: repo, log: l.log, now: l.now}
}

// SetClock replaces the timestamp source for new records.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Current returns the latest account. A world with no record yet is
// unfunded: zero balance and zero multiplier.
func (l *Ledger) Current(ctx context.Context, worldID int64) (Account, error) {
	rec, err := l.repo.LatestEconomy(ctx, worldID)
	if err != nil {
		return Account{}, fmt.Errorf("reading economy for world %d: %w", worldID, err)
	}
	if rec == nil {
		return Account{Balance: decimal.Zero, Multiplier: decimal.Zero}, nil
	}
	return Account{Balance: rec.Balance, Multiplier: rec.Multiplier}, nil
}

// ComputeBudget reads the latest record and returns balance × multiplier.
// It is never cached.
func (l *Ledger) ComputeBudget(ctx context.Context, worldID int64) (decimal.Decimal, error) {
	acct, err := l.Current(ctx, worldID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Budget(), nil
}

// ResolveTurn settles cost and delta against the latest account and appends
// the result as a new record.
func (l *Ledger) ResolveTurn(ctx context.Context, worldID int64, cost, delta decimal.Decimal) (Account, error) {
	acct, err := l.Current(ctx, worldID)
	if err != nil {
		return Account{}, err
	}
	next := acct.Settle(cost, delta)
	if err := l.Fund(ctx, worldID, next); err != nil {
		return Account{}, err
	}
	l.log.Debug("ledger settled",
		"world_id", worldID,
		"budget", acct.Budget().String(),
		"cost", cost.String(),
		"delta", delta.String(),
		"balance", next.Balance.String(),
		"multiplier", next.Multiplier.String(),
	)
	return next, nil
}

// Fund appends acct as the world's newest record.
func (l *Ledger) Fund(ctx context.Context, worldID int64, acct Account) error {
	rec := store.EconomicRecord{
		WorldID:    worldID,
		Balance:    acct.Balance,
		Multiplier: acct.Multiplier,
		RecordedAt: l.now().UTC(),
	}
	if err := l.repo.AppendEconomy(ctx, rec); err != nil {
		return fmt.Errorf("writing economy for world %d: %w", worldID, err)
	}
	return nil
}
