package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"eraforge/internal/metrics"
	"eraforge/internal/store"
)

// NUMERIC columns travel as text so no value ever passes through float64.

func (q *queries) LatestEconomy(ctx context.Context, worldID int64) (*store.EconomicRecord, error) {
	row := q.q.QueryRow(ctx, `
SELECT id, world_id, balance::text, multiplier::text, recorded_at
FROM economy_records
WHERE world_id = $1
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`, worldID)

	rec, err := scanEconomy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest economy: %w", err)
	}
	return rec, nil
}

func (q *queries) AppendEconomy(ctx context.Context, rec store.EconomicRecord) error {
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = q.now()
	}
	_, err := q.q.Exec(ctx, `
INSERT INTO economy_records (world_id, balance, multiplier, recorded_at)
VALUES ($1, $2::numeric, $3::numeric, $4)
`, rec.WorldID, rec.Balance.String(), rec.Multiplier.String(), recorded.UTC())
	if err != nil {
		return fmt.Errorf("appending economy record: %w", err)
	}
	return nil
}

func (c *Client) EconomyHistory(ctx context.Context, worldID int64, limit int) ([]store.EconomicRecord, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, world_id, balance::text, multiplier::text, recorded_at
FROM economy_records
WHERE world_id = $1
ORDER BY recorded_at DESC, id DESC
LIMIT $2
`, worldID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing economy history: %w", err)
	}
	defer rows.Close()

	records := []store.EconomicRecord{}
	for rows.Next() {
		rec, err := scanEconomy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning economy record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating economy history: %w", err)
	}
	return records, nil
}

func scanEconomy(row pgx.Row) (*store.EconomicRecord, error) {
	var rec store.EconomicRecord
	var balance, multiplier string
	if err := row.Scan(&rec.ID, &rec.WorldID, &balance, &multiplier, &rec.RecordedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing balance %q: %w", balance, err)
	}
	if rec.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
		return nil, fmt.Errorf("parsing multiplier %q: %w", multiplier, err)
	}
	return &rec, nil
}

func (q *queries) LatestMetrics(ctx context.Context, worldID int64) (*store.MetricsRecord, error) {
	var rec store.MetricsRecord
	err := q.q.QueryRow(ctx, `
SELECT id, world_id, economy, social_stability, ecology, security, political_support, recorded_at
FROM metric_snapshots
WHERE world_id = $1
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`, worldID).Scan(
		&rec.ID,
		&rec.WorldID,
		&rec.Metrics.Economy,
		&rec.Metrics.SocialStability,
		&rec.Metrics.Ecology,
		&rec.Metrics.Security,
		&rec.Metrics.PoliticalSupport,
		&rec.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest metrics: %w", err)
	}
	return &rec, nil
}

func (q *queries) AppendMetrics(ctx context.Context, worldID int64, s metrics.Snapshot) error {
	_, err := q.q.Exec(ctx, `
INSERT INTO metric_snapshots (world_id, economy, social_stability, ecology, security, political_support, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		worldID,
		s.Economy,
		s.SocialStability,
		s.Ecology,
		s.Security,
		s.PoliticalSupport,
		q.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending metrics snapshot: %w", err)
	}
	return nil
}
