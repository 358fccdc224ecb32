package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"eraforge/internal/store"
)

func (q *queries) CreateWorld(ctx context.Context, year int, description string) (*store.World, error) {
	now := q.now().UTC()
	w := store.World{Year: year, Description: description}
	err := q.q.QueryRow(ctx, `
INSERT INTO worlds (in_game_year, description, created_at, updated_at)
VALUES ($1, $2, $3, $3)
RETURNING id, created_at, updated_at
`, year, description, now).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}
	return &w, nil
}

func (q *queries) GetWorld(ctx context.Context, id int64) (*store.World, error) {
	var w store.World
	err := q.q.QueryRow(ctx, `
SELECT id, in_game_year, description, created_at, updated_at
FROM worlds
WHERE id = $1
`, id).Scan(&w.ID, &w.Year, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.WorldNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting world: %w", err)
	}
	return &w, nil
}

func (q *queries) UpdateWorld(ctx context.Context, id int64, year int, description string) error {
	tag, err := q.q.Exec(ctx, `
UPDATE worlds SET in_game_year = $2, description = $3, updated_at = $4
WHERE id = $1
`, id, year, description, q.now().UTC())
	if err != nil {
		return fmt.Errorf("updating world: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.WorldNotFound(id)
	}
	return nil
}

func (q *queries) AppendDescription(ctx context.Context, id int64, text string) error {
	// Row lock so a concurrent append cannot be lost between read and write.
	var year int
	var description string
	err := q.q.QueryRow(ctx, `SELECT in_game_year, description FROM worlds WHERE id = $1 FOR UPDATE`, id).
		Scan(&year, &description)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.WorldNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("locking world: %w", err)
	}
	return q.UpdateWorld(ctx, id, year, store.JoinDescription(description, text))
}

func (c *Client) ListWorlds(ctx context.Context) ([]store.World, error) {
	rows, err := c.pool.Query(ctx, `
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
		if err := rows.Scan(&w.ID, &w.Year, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning world: %w", err)
		}
		worlds = append(worlds, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating worlds: %w", err)
	}
	return worlds, nil
}
