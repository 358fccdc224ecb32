package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eraforge/internal/store"
)

func (q *queries) CreateWorld(ctx context.Context, year int, description string) (*store.World, error) {
	now := q.now().UTC()
	res, err := q.q.ExecContext(ctx, `
	INSERT INTO worlds (in_game_year, description, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	`, year, description, unixNanos(now), unixNanos(now))
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading world id: %w", err)
	}
	return &store.World{ID: id, Year: year, Description: description, CreatedAt: now, UpdatedAt: now}, nil
}

func (q *queries) GetWorld(ctx context.Context, id int64) (*store.World, error) {
	var w store.World
	var created, updated int64
	err := q.q.QueryRowContext(ctx, `
	SELECT id, in_game_year, description, created_at, updated_at
	FROM worlds
	WHERE id = ?
	`, id).Scan(&w.ID, &w.Year, &w.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.WorldNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting world: %w", err)
	}
	w.CreatedAt = fromUnixNanos(created)
	w.UpdatedAt = fromUnixNanos(updated)
	return &w, nil
}

func (q *queries) UpdateWorld(ctx context.Context, id int64, year int, description string) error {
	res, err := q.q.ExecContext(ctx, `
	UPDATE worlds SET in_game_year = ?, description = ?, updated_at = ?
	WHERE id = ?
	`, year, description, unixNanos(q.now()), id)
	if err != nil {
		return fmt.Errorf("updating world: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating world: %w", err)
	}
	if n == 0 {
		return store.WorldNotFound(id)
	}
	return nil
}

func (q *queries) AppendDescription(ctx context.Context, id int64, text string) error {
	w, err := q.GetWorld(ctx, id)
	if err != nil {
		return err
	}
	return q.UpdateWorld(ctx, id, w.Year, store.JoinDescription(w.Description, text))
}

func (c *Client) ListWorlds(ctx context.Context) ([]store.World, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT id, in_game_year, description, created_at, updated_at
	FROM worlds
	ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing worlds: %w", err)
	}
	defer rows.Close()

	worlds := []store.World{}
	for rows.Next() {
		var w store.World
		var created, updated int64
		if err := rows.Scan(&w.ID, &w.Year, &w.Description, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning world: %w", err)
		}
		w.CreatedAt = fromUnixNanos(created)
		w.UpdatedAt = fromUnixNanos(updated)
		worlds = append(worlds, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating worlds: %w", err)
	}
	return worlds, nil
}
