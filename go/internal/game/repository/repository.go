package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/engine"
	"github.com/earnplay/cardbattle/go/internal/models"
	"github.com/earnplay/cardbattle/go/internal/sqlutil"
)

// ErrPlayerNotFound is returned when a player id has no row.
var ErrPlayerNotFound = errors.New("player not found")

// Repository persists rounds, bids, wallets, and results in Postgres.
// It implements engine.Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRound inserts a new active round for the dealt card.
func (r *Repository) CreateRound(ctx context.Context, card models.Card, startTime time.Time) (*models.Round, error) {
	const query = `
		INSERT INTO rounds (card, status, start_time)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	round := models.Round{
		Card:      card,
		Status:    models.RoundStatusActive,
		StartTime: startTime,
	}
	err := r.pool.QueryRow(ctx, query, card.Slug(), models.RoundStatusActive, startTime).
		Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	log.Debug().Int64("round_id", round.ID).Str("card", card.String()).Msg("round created")
	return &round, nil
}

// SetRoundStatus advances a round through its lifecycle. endTime is only set
// when the round closes.
func (r *Repository) SetRoundStatus(ctx context.Context, roundID int64, status models.RoundStatus, endTime *time.Time) error {
	const query = `
		UPDATE rounds
		SET status = $2, end_time = COALESCE($3, end_time)
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, roundID, status, endTime)
	if err != nil {
		return fmt.Errorf("failed to update round %d: %w", roundID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round %d not found", roundID)
	}
	return nil
}

// PlaceBid deducts the stake from the player's wallet and upserts their bid
// for the round, all in one transaction. Re-bidding on the same side adds to
// the existing stake. Returns the player's post-deduction state.
func (r *Repository) PlaceBid(ctx context.Context, playerID, roundID int64, side models.Side, amount int64) (*models.Player, error) {
	var player models.Player
	err := sqlutil.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Row-lock the wallet so concurrent bids cannot overdraw it.
		const lockQuery = `
			SELECT id, username, phone_number, coins, created_at, updated_at
			FROM players
			WHERE id = $1
			FOR UPDATE`
		err := tx.QueryRow(ctx, lockQuery, playerID).Scan(
			&player.ID, &player.Username, &player.PhoneNumber,
			&player.Coins, &player.CreatedAt, &player.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock player %d: %w", playerID, err)
		}

		if player.Coins < amount {
			return engine.ErrInsufficientFunds
		}

		const deductQuery = `
			UPDATE players
			SET coins = coins - $2, updated_at = now()
			WHERE id = $1
			RETURNING coins, updated_at`
		if err := tx.QueryRow(ctx, deductQuery, playerID, amount).Scan(&player.Coins, &player.UpdatedAt); err != nil {
			return fmt.Errorf("failed to deduct stake: %w", err)
		}

		const bidQuery = `
			INSERT INTO bids (round_id, player_id, side, amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (round_id, player_id, side)
			DO UPDATE SET amount = bids.amount + EXCLUDED.amount`
		if _, err := tx.Exec(ctx, bidQuery, roundID, playerID, side, amount); err != nil {
			return fmt.Errorf("failed to record bid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("round_id", roundID).
		Int64("player_id", playerID).
		Str("side", string(side)).
		Int64("amount", amount).
		Msg("bid placed")
	return &player, nil
}

// BidsForRound returns every bid on the round joined with its player,
// ordered by placement.
func (r *Repository) BidsForRound(ctx context.Context, roundID int64) ([]engine.RoundBid, error) {
	const query = `
		SELECT b.side, b.amount,
		       p.id, p.username, p.phone_number, p.coins, p.created_at, p.updated_at
		FROM bids b
		JOIN players p ON p.id = b.player_id
		WHERE b.round_id = $1
		ORDER BY b.id`

	rows, err := r.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var bids []engine.RoundBid
	for rows.Next() {
		var bid engine.RoundBid
		if err := rows.Scan(
			&bid.Side, &bid.Amount,
			&bid.Player.ID, &bid.Player.Username, &bid.Player.PhoneNumber,
			&bid.Player.Coins, &bid.Player.CreatedAt, &bid.Player.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// CreditPlayer adds winnings to a wallet and returns the updated player.
func (r *Repository) CreditPlayer(ctx context.Context, playerID, amount int64) (*models.Player, error) {
	const query = `
		UPDATE players
		SET coins = coins + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, username, phone_number, coins, created_at, updated_at`

	var player models.Player
	err := r.pool.QueryRow(ctx, query, playerID, amount).Scan(
		&player.ID, &player.Username, &player.PhoneNumber,
		&player.Coins, &player.CreatedAt, &player.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit player %d: %w", playerID, err)
	}
	return &player, nil
}

// SaveResult records one player's outcome for a settled round.
func (r *Repository) SaveResult(ctx context.Context, roundID, playerID int64, won bool, amountBet, amountWonLoss int64) error {
	const query = `
		INSERT INTO results (round_id, player_id, won, amount_bet, amount_won_loss)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, roundID, playerID, won, amountBet, amountWonLoss); err != nil {
		return fmt.Errorf("failed to save result for player %d: %w", playerID, err)
	}
	return nil
}

// GetPlayer fetches a player by id.
func (r *Repository) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	const query = `
		SELECT id, username, phone_number, coins, created_at, updated_at
		FROM players
		WHERE id = $1`

	var player models.Player
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&player.ID, &player.Username, &player.PhoneNumber,
		&player.Coins, &player.CreatedAt, &player.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", playerID, err)
	}
	return &player, nil
}
