package sqlite

import (
	"context"
	"fmt"

	"eraforge/internal/store"
)

var worldChildTables = []string{"turns", "world_news", "characters", "metric_snapshots", "economy_records"}

// DeleteWorld removes a world and every record that belongs to it.
func (c *Client) DeleteWorld(ctx context.Context, id int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range worldChildTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE world_id = ?", id); err != nil {
			return fmt.Errorf("deleting %s for world %d: %w", table, id, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM worlds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting world %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return store.WorldNotFound(id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}
