package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id           BIGSERIAL PRIMARY KEY,
		username     TEXT NOT NULL UNIQUE,
		phone_number TEXT NOT NULL DEFAULT '',
		coins        BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		id         BIGSERIAL PRIMARY KEY,
		card       TEXT NOT NULL,
		status     TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id        BIGSERIAL PRIMARY KEY,
		round_id  BIGINT NOT NULL REFERENCES rounds(id),
		player_id BIGINT NOT NULL REFERENCES players(id),
		side      TEXT NOT NULL,
		amount    BIGINT NOT NULL CHECK (amount > 0),
		UNIQUE (round_id, player_id, side)
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		id              BIGSERIAL PRIMARY KEY,
		round_id        BIGINT NOT NULL REFERENCES rounds(id),
		player_id       BIGINT NOT NULL REFERENCES players(id),
		won             BOOLEAN NOT NULL,
		amount_bet      BIGINT NOT NULL,
		amount_won_loss BIGINT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bids_round ON bids (round_id)`,
	`CREATE INDEX IF NOT EXISTS idx_results_round ON results (round_id)`,
}

// EnsureSchema creates the game tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	log.Info().Msg("database schema ensured")
	return nil
}
