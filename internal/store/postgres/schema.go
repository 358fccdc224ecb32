package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All statements run in one implicit transaction; IF NOT EXISTS keeps
	// repeated runs idempotent.
	ddl := `
CREATE TABLE IF NOT EXISTS worlds (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    in_game_year INTEGER NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS economy_records (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id    BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
    balance     NUMERIC NOT NULL,
    multiplier  NUMERIC NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metric_snapshots (
    id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id          BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
    economy           INTEGER NOT NULL,
    social_stability  INTEGER NOT NULL,
    ecology           INTEGER NOT NULL,
    security          INTEGER NOT NULL,
    political_support INTEGER NOT NULL,
    recorded_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS characters (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id    BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
    user_id     TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS world_news (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id     BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
    in_game_year INTEGER NOT NULL,
    body         TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS turns (
    id               UUID PRIMARY KEY,
    world_id         BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
    in_game_year     INTEGER NOT NULL,
    initiative       TEXT NOT NULL,
    outcome          TEXT NOT NULL,
    estimated_cost   NUMERIC NOT NULL,
    multiplier_delta NUMERIC NOT NULL,
    balance          NUMERIC NOT NULL,
    multiplier       NUMERIC NOT NULL,
    recorded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_economy_world_recorded ON economy_records (world_id, recorded_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_world_recorded ON metric_snapshots (world_id, recorded_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_characters_world_user ON characters (world_id, user_id);
CREATE INDEX IF NOT EXISTS idx_news_world ON world_news (world_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_turns_world ON turns (world_id, recorded_at DESC);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
