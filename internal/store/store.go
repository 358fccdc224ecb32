package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eraforge/internal/metrics"
)

var ErrNotFound = errors.New("not found")

// Tx is the set of reads and writes available both on a store and inside
// a transaction. Latest* methods return nil, nil when no record exists.
type Tx interface {
	CreateWorld(ctx context.Context, year int, description string) (*World, error)
	GetWorld(ctx context.Context, id int64) (*World, error)
	UpdateWorld(ctx context.Context, id int64, year int, description string) error
	AppendDescription(ctx context.Context, id int64, text string) error

	LatestEconomy(ctx context.Context, worldID int64) (*EconomicRecord, error)
	AppendEconomy(ctx context.Context, rec EconomicRecord) error

	LatestMetrics(ctx context.Context, worldID int64) (*MetricsRecord, error)
	AppendMetrics(ctx context.Context, worldID int64, snapshot metrics.Snapshot) error

	SaveCharacter(ctx context.Context, c Character) (*Character, error)
	LatestCharacter(ctx context.Context, worldID int64, userID string) (*Character, error)

	SaveNews(ctx context.Context, item NewsItem) error
	RecordTurn(ctx context.Context, rec TurnRecord) error
}

type Store interface {
	Tx

	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// WithinTx runs fn in one transaction; any error from fn rolls it back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListWorlds(ctx context.Context) ([]World, error)
	DeleteWorld(ctx context.Context, id int64) error
	EconomyHistory(ctx context.Context, worldID int64, limit int) ([]EconomicRecord, error)
	ListNews(ctx context.Context, worldID int64, limit int) ([]NewsItem, error)
	ListTurns(ctx context.Context, worldID int64, limit int) ([]TurnRecord, error)
}

// JoinDescription appends text to a world description with a blank line
// between paragraphs.
func JoinDescription(current, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return current
	}
	if strings.TrimSpace(current) == "" {
		return text
	}
	return strings.TrimRight(current, "\n") + "\n\n" + text
}

func WorldNotFound(id int64) error {
	return fmt.Errorf("world %d: %w", id, ErrNotFound)
}
