package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"eraforge/internal/store"
)

func (q *queries) SaveCharacter(ctx context.Context, c store.Character) (*store.Character, error) {
	now := q.now().UTC()
	res, err := q.q.ExecContext(ctx, `
	INSERT INTO characters (world_id, user_id, description, created_at)
	VALUES (?, ?, ?, ?)
	`, c.WorldID, c.UserID, c.Description, unixNanos(now))
	if err != nil {
		return nil, fmt.Errorf("saving character: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading character id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	return &c, nil
}

func (q *queries) LatestCharacter(ctx context.Context, worldID int64, userID string) (*store.Character, error) {
	var c store.Character
	var created int64
	err := q.q.QueryRowContext(ctx, `
	SELECT id, world_id, user_id, description, created_at
	FROM characters
	WHERE world_id = ? AND user_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1
	`, worldID, userID).Scan(&c.ID, &c.WorldID, &c.UserID, &c.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest character: %w", err)
	}
	c.CreatedAt = fromUnixNanos(created)
	return &c, nil
}

func (q *queries) SaveNews(ctx context.Context, item store.NewsItem) error {
	_, err := q.q.ExecContext(ctx, `
	INSERT INTO world_news (world_id, in_game_year, body, created_at)
	VALUES (?, ?, ?, ?)
	`, item.WorldID, item.Year, item.Body, unixNanos(q.now()))
	if err != nil {
		return fmt.Errorf("saving news: %w", err)
	}
	return nil
}

func (c *Client) ListNews(ctx context.Context, worldID int64, limit int) ([]store.NewsItem, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT id, world_id, in_game_year, body, created_at
	FROM world_news
	WHERE world_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`, worldID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	defer rows.Close()

	items := []store.NewsItem{}
	for rows.Next() {
		var item store.NewsItem
		var created int64
		if err := rows.Scan(&item.ID, &item.WorldID, &item.Year, &item.Body, &created); err != nil {
			return nil, fmt.Errorf("scanning news: %w", err)
		}
		item.CreatedAt = fromUnixNanos(created)
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
	_, err := q.q.ExecContext(ctx, `
	INSERT INTO turns (id, world_id, in_game_year, initiative, outcome, estimated_cost, multiplier_delta, balance, multiplier, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		unixNanos(recorded),
	)
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

func (c *Client) ListTurns(ctx context.Context, worldID int64, limit int) ([]store.TurnRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT id, world_id, in_game_year, initiative, outcome, estimated_cost, multiplier_delta, balance, multiplier, recorded_at
	FROM turns
	WHERE world_id = ?
	ORDER BY recorded_at DESC, rowid DESC
	LIMIT ?
	`, worldID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := []store.TurnRecord{}
	for rows.Next() {
		var rec store.TurnRecord
		var cost, delta, balance, multiplier string
		var recorded int64
		err := rows.Scan(
			&rec.ID,
			&rec.WorldID,
			&rec.Year,
			&rec.Initiative,
			&rec.Outcome,
			&cost,
			&delta,
			&balance,
			&multiplier,
			&recorded,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		amounts := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&rec.EstimatedCost, cost},
			{&rec.MultiplierDelta, delta},
			{&rec.Balance, balance},
			{&rec.Multiplier, multiplier},
		}
		for _, a := range amounts {
			if *a.dst, err = decimal.NewFromString(a.src); err != nil {
				return nil, fmt.Errorf("parsing turn amount %q: %w", a.src, err)
			}
		}
		rec.RecordedAt = fromUnixNanos(recorded)
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}
