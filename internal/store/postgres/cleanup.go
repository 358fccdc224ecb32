package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"eraforge/internal/store"
)

// DeleteWorld removes a world; its records go with it through ON DELETE
// CASCADE.
func (c *Client) DeleteWorld(ctx context.Context, id int64) error {
	var deleted int64
	err := c.pool.QueryRow(ctx, `DELETE FROM worlds WHERE id = $1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.WorldNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("deleting world %d: %w", id, err)
	}
	return nil
}
