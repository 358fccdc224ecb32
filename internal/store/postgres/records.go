package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"eraforge/internal/store"
)

func (q *queries) SaveCharacter(ctx context.Context, c store.Character) (*store.Character, error) {
	err := q.q.QueryRow(ctx, `
INSERT INTO characters (world_id, user_id, description, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at
`, c.WorldID, c.UserID, c.Description, q.now().UTC()).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving character: %w", err)
	}
	return &c, nil
}

func (q *queries) LatestCharacter(ctx context.Context, worldID int64, userID string) (*store.Character, error) {
	var c store.Character
	err := q.q.QueryRow(ctx, `
SELECT id, world_id, user_id, description, created_at
FROM characters
WHERE world_id = $1 AND user_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`, worldID, userID).Scan(&c.ID, &c.WorldID, &c.UserID, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest character: %w", err)
	}
	return &c, nil
}

func (q *queries) SaveNews(ctx context.Context, item store.NewsItem) error {
	_, err := q.q.Exec(ctx, `
INSERT INTO world_news (world_id, in_game_year, body, created_at)
VALUES ($1, $2, $3, $4)
`, item.WorldID, item.Year, item.Body, q.now().UTC())
	if err != nil {
		return fmt.Errorf("saving news: %w", err)
	}
	return nil
}

func (c *Client) ListNews(ctx context.Context, worldID int64, limit int) ([]store.NewsItem, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, world_id, in_game_year, body, created_at
FROM world_news
WHERE world_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, worldID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	defer rows.Close()

	items := []store.NewsItem{}
	for rows.Next() {
		var item store.NewsItem
		if err := rows.Scan(&item.ID, &item.WorldID, &item.Year, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning news: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating news: %w", err)
	}
	return items, nil
}

func (q *queries) RecordTurn(ctx context.Context, rec store.TurnRecord) error {
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = q.now()
	}
	_, err := q.q.Exec(ctx, `
INSERT INTO turns (id, world_id, in_game_year, initiative, outcome, estimated_cost, multiplier_delta, balance, multiplier, recorded_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10)
`,
		rec.ID,
		rec.WorldID,
		rec.Year,
		rec.Initiative,
		rec.Outcome,
		rec.EstimatedCost.String(),
		rec.MultiplierDelta.String(),
		rec.Balance.String(),
		rec.Multiplier.String(),
		recorded.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

func (c *Client) ListTurns(ctx context.Context, worldID int64, limit int) ([]store.TurnRecord, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id::text, world_id, in_game_year, initiative, outcome,
       estimated_cost::text, multiplier_delta::text, balance::text, multiplier::text, recorded_at
FROM turns
WHERE world_id = $1
ORDER BY recorded_at DESC
LIMIT $2
`, worldID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := []store.TurnRecord{}
	for rows.Next() {
		var rec store.TurnRecord
		var amounts [4]string
		err := rows.Scan(
			&rec.ID,
			&rec.WorldID,
			&rec.Year,
			&rec.Initiative,
			&rec.Outcome,
			&amounts[0],
			&amounts[1],
			&amounts[2],
			&amounts[3],
			&rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		targets := []*decimal.Decimal{&rec.EstimatedCost, &rec.MultiplierDelta, &rec.Balance, &rec.Multiplier}
		for i, target := range targets {
			if *target, err = decimal.NewFromString(amounts[i]); err != nil {
				return nil, fmt.Errorf("parsing turn amount %q: %w", amounts[i], err)
			}
		}
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}
