package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are unix nanoseconds; money columns hold exact decimal text.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS worlds (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		in_game_year INTEGER NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS economy_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id    INTEGER NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		balance     TEXT NOT NULL,
		multiplier  TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metric_snapshots (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id          INTEGER NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		economy           INTEGER NOT NULL,
		social_stability  INTEGER NOT NULL,
		ecology           INTEGER NOT NULL,
		security          INTEGER NOT NULL,
		political_support INTEGER NOT NULL,
		recorded_at       INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS characters (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id    INTEGER NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_news (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id     INTEGER NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		in_game_year INTEGER NOT NULL,
		body         TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id               TEXT PRIMARY KEY,
		world_id         INTEGER NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
		in_game_year     INTEGER NOT NULL,
		initiative       TEXT NOT NULL,
		outcome          TEXT NOT NULL,
		estimated_cost   TEXT NOT NULL,
		multiplier_delta TEXT NOT NULL,
		balance          TEXT NOT NULL,
		multiplier       TEXT NOT NULL,
		recorded_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_economy_world_recorded ON economy_records (world_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_metrics_world_recorded ON metric_snapshots (world_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_characters_world_user ON characters (world_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_news_world ON world_news (world_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_world ON turns (world_id, recorded_at);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := splitStatements(ddl)
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
