package store

import (
	"time"

	"github.com/shopspring/decimal"

	"eraforge/internal/metrics"
)

type World struct {
	ID          int64
	Year        int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EconomicRecord is one point in a world's treasury history.
type EconomicRecord struct {
	ID         int64
	WorldID    int64
	Balance    decimal.Decimal
	Multiplier decimal.Decimal
	RecordedAt time.Time
}

type MetricsRecord struct {
	ID         int64
	WorldID    int64
	Metrics    metrics.Snapshot
	RecordedAt time.Time
}

type Character struct {
	ID          int64
	WorldID     int64
	UserID      string
	Description string
	CreatedAt   time.Time
}

type NewsItem struct {
	ID        int64
	WorldID   int64
	Year      int
	Body      string
	CreatedAt time.Time
}

// TurnRecord is the audit row written for every committed turn.
type TurnRecord struct {
	ID              string
	WorldID         int64
	Year            int
	Initiative      string
	Outcome         string
	EstimatedCost   decimal.Decimal
	MultiplierDelta decimal.Decimal
	Balance         decimal.Decimal
	Multiplier      decimal.Decimal
	RecordedAt      time.Time
}
