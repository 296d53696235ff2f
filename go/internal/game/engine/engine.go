package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// Store defines what the engine needs from the persistence layer.
type Store interface {
	CreateRound(ctx context.Context, card models.Card, startTime time.Time) (*models.Round, error)
	SetRoundStatus(ctx context.Context, roundID int64, status models.RoundStatus, endTime *time.Time) error
	PlaceBid(ctx context.Context, playerID, roundID int64, side models.Side, amount int64) (*models.Player, error)
	BidsForRound(ctx context.Context, roundID int64) ([]RoundBid, error)
	CreditPlayer(ctx context.Context, playerID, amount int64) (*models.Player, error)
	SaveResult(ctx context.Context, roundID, playerID int64, won bool, amountBet, amountWonLoss int64) error
	GetPlayer(ctx context.Context, playerID int64) (*models.Player, error)
}

// Broadcaster carries event envelopes from the engine to whatever fans them
// out to connected clients.
type Broadcaster interface {
	Publish(env events.Envelope) error
}

// Config holds the round timing parameters.
type Config struct {
	BetWindow       time.Duration `yaml:"bet_window"`
	ResultWindow    time.Duration `yaml:"result_window"`
	CountdownWindow time.Duration `yaml:"countdown_window"`
}

// DefaultConfig matches the live game's pacing: 30s of bidding, 3s of
// results, 3s between rounds.
func DefaultConfig() Config {
	return Config{
		BetWindow:       30 * time.Second,
		ResultWindow:    3 * time.Second,
		CountdownWindow: 3 * time.Second,
	}
}

// Engine runs the authoritative round loop: deal a card, hold the betting
// window open, settle, pay out, and start the next round. All round and
// wallet state lives in the store; clients only ever see broadcasts.
type Engine struct {
	config Config
	store  Store
	bus    Broadcaster
	clock  clockwork.Clock
	rng    *rand.Rand

	mu      sync.Mutex
	current *models.Round
}

// New builds an engine. The rng seeds card selection and is injectable for
// deterministic tests.
func New(config Config, store Store, bus Broadcaster, clk clockwork.Clock, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		config: config,
		store:  store,
		bus:    bus,
		clock:  clk,
		rng:    rng,
	}
}

// Run drives rounds until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Dur("bet_window", e.config.BetWindow).
		Dur("result_window", e.config.ResultWindow).
		Msg("round engine started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("round engine shutting down")
			return nil
		}
		if err := e.runRound(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("round failed; pausing before retry")
			if !e.sleep(ctx, e.config.CountdownWindow) {
				return nil
			}
		}
	}
}

func (e *Engine) runRound(ctx context.Context) error {
	deck := models.Deck()
	card := deck[e.rng.Intn(len(deck))]

	startTime := e.clock.Now().UTC()
	round, err := e.store.CreateRound(ctx, card, startTime)
	if err != nil {
		return fmt.Errorf("create round: %w", err)
	}

	e.mu.Lock()
	e.current = round
	e.mu.Unlock()

	log.Info().Int64("round_id", round.ID).Str("card", card.String()).Msg("round started")

	e.broadcast(events.TypeRoundStart, events.NewRoundStart(round.ID, card, startTime))

	// Bidding window: a timer frame every second so clients stay pinned to
	// the server clock.
	if !e.tickPhase(ctx, round.ID, startTime, e.config.BetWindow, models.WirePhaseBidding) {
		return ctx.Err()
	}

	if err := e.settleRound(ctx, round); err != nil {
		return err
	}

	resultStart := e.clock.Now().UTC()
	if !e.tickPhase(ctx, round.ID, resultStart, e.config.ResultWindow, models.WirePhaseResults) {
		return ctx.Err()
	}

	endTime := e.clock.Now().UTC()
	if err := e.store.SetRoundStatus(ctx, round.ID, models.RoundStatusCompleted, &endTime); err != nil {
		log.Error().Err(err).Int64("round_id", round.ID).Msg("failed to complete round")
	}

	if !e.tickPhase(ctx, round.ID, endTime, e.config.CountdownWindow, models.WirePhaseCountdown) {
		return ctx.Err()
	}
	return nil
}

// tickPhase broadcasts a timer frame once per second until the phase window
// elapses. Returns false when ctx was cancelled.
func (e *Engine) tickPhase(ctx context.Context, roundID int64, phaseStart time.Time, window time.Duration, phase string) bool {
	deadline := phaseStart.Add(window)
	e.broadcast(events.TypeTimerUpdate, events.NewTimerUpdate(roundID, phaseStart, phase))

	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.Chan():
			if !e.clock.Now().Before(deadline) {
				return true
			}
			e.broadcast(events.TypeTimerUpdate, events.NewTimerUpdate(roundID, phaseStart, phase))
		}
	}
}

// settleRound closes the betting window, computes payouts, credits winners
// and pushes the results plus fresh balances.
func (e *Engine) settleRound(ctx context.Context, round *models.Round) error {
	if err := e.store.SetRoundStatus(ctx, round.ID, models.RoundStatusResults, nil); err != nil {
		return fmt.Errorf("mark round results: %w", err)
	}

	bids, err := e.store.BidsForRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("load round bids: %w", err)
	}

	settlement := Settle(*round, bids)

	for i, b := range bids {
		row := settlement.Rows[i]
		won := b.Side == settlement.WinningSide
		if won && row.FinalWin > 0 {
			player, err := e.store.CreditPlayer(ctx, b.Player.ID, row.FinalWin)
			if err != nil {
				log.Error().Err(err).Int64("player_id", b.Player.ID).Msg("failed to credit winner")
				continue
			}
			e.sendToPlayer(player.ID, events.TypeBalanceUpdate, events.NewBalanceUpdate(player.Coins))
		}
		if err := e.store.SaveResult(ctx, round.ID, b.Player.ID, won, row.Bid, row.FinalWin); err != nil {
			log.Error().Err(err).Int64("player_id", b.Player.ID).Msg("failed to record result")
		}
	}

	e.broadcast(events.TypeResultsShow, events.NewResultsShow(settlement))
	log.Info().
		Int64("round_id", round.ID).
		Str("winning_side", string(settlement.WinningSide)).
		Int("rows", len(settlement.Rows)).
		Msg("round settled")
	return nil
}

// ErrBettingClosed rejects wagers outside the betting window.
var ErrBettingClosed = errors.New("betting window closed")

// ErrInsufficientFunds rejects wagers exceeding the player's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// PlaceBid validates and records a wager, then broadcasts the new aggregate
// totals. The placing player gets a correlated acknowledgement plus a
// balance push; everyone gets the roster.
func (e *Engine) PlaceBid(ctx context.Context, playerID int64, cmd events.PlaceBid) {
	ack := events.BidAck{Type: events.TypeBidAck, RequestID: cmd.RequestID, RoundID: cmd.RoundID}

	reject := func(reason string) {
		ack.Accepted = false
		ack.Reason = reason
		if player, err := e.store.GetPlayer(ctx, playerID); err == nil {
			ack.Coins = player.Coins
		}
		e.sendToPlayer(playerID, events.TypeBidAck, ack)
	}

	side, err := models.ParseSide(cmd.Side)
	if err != nil {
		reject("Invalid side selection")
		return
	}
	if cmd.Amount < 1 {
		reject("Invalid bid amount")
		return
	}

	round := e.CurrentRound()
	if round == nil || !e.bettingOpen(round) {
		reject("Betting is closed")
		return
	}
	if cmd.RoundID != 0 && cmd.RoundID != round.ID {
		reject("Round already finished")
		return
	}

	player, err := e.store.PlaceBid(ctx, playerID, round.ID, side, cmd.Amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			reject("Insufficient funds")
			return
		}
		log.Error().Err(err).Int64("player_id", playerID).Msg("failed to store bid")
		reject("Server error")
		return
	}

	ack.Accepted = true
	ack.Coins = player.Coins
	e.sendToPlayer(playerID, events.TypeBidAck, ack)
	e.sendToPlayer(playerID, events.TypeBalanceUpdate, events.NewBalanceUpdate(player.Coins))
	e.broadcastBids(ctx, round.ID)

	log.Info().
		Int64("player_id", playerID).
		Int64("round_id", round.ID).
		Str("side", string(side)).
		Int64("amount", cmd.Amount).
		Msg("bid accepted")
}

// SnapshotFrames returns the frames a freshly attached connection needs to
// synchronize mid-round: the current round, its timer, the roster, and the
// player's balance.
func (e *Engine) SnapshotFrames(ctx context.Context, playerID int64) ([][]byte, error) {
	round := e.CurrentRound()
	if round == nil {
		return nil, nil
	}

	var frames [][]byte
	appendFrame := func(frame any) error {
		data, err := events.Marshal(frame)
		if err != nil {
			return err
		}
		frames = append(frames, data)
		return nil
	}

	if err := appendFrame(events.NewRoundStart(round.ID, round.Card, round.StartTime)); err != nil {
		return nil, err
	}
	phase := models.WirePhaseWaiting
	if e.bettingOpen(round) {
		phase = models.WirePhaseBidding
	}
	if err := appendFrame(events.NewTimerUpdate(round.ID, round.StartTime, phase)); err != nil {
		return nil, err
	}

	if entries, err := e.rosterEntries(ctx, round.ID); err == nil {
		if err := appendFrame(events.NewBidsUpdate(round.ID, entries)); err != nil {
			return nil, err
		}
	}

	if player, err := e.store.GetPlayer(ctx, playerID); err == nil {
		if err := appendFrame(events.NewBalanceUpdate(player.Coins)); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// CurrentRound returns the round in progress, or nil between rounds.
func (e *Engine) CurrentRound() *models.Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	copied := *e.current
	return &copied
}

func (e *Engine) bettingOpen(round *models.Round) bool {
	return e.clock.Now().Before(round.StartTime.Add(e.config.BetWindow))
}

func (e *Engine) rosterEntries(ctx context.Context, roundID int64) ([]events.BidEntry, error) {
	bids, err := e.store.BidsForRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	entries := make([]events.BidEntry, len(bids))
	for i, b := range bids {
		entries[i] = events.BidEntry{
			Username:    b.Player.Username,
			PhoneNumber: b.Player.PhoneNumber,
			Amount:      b.Amount,
			Side:        string(b.Side),
		}
	}
	return entries, nil
}

func (e *Engine) broadcastBids(ctx context.Context, roundID int64) {
	entries, err := e.rosterEntries(ctx, roundID)
	if err != nil {
		log.Error().Err(err).Int64("round_id", roundID).Msg("failed to load roster for broadcast")
		return
	}
	e.broadcast(events.TypeBidsUpdate, events.NewBidsUpdate(roundID, entries))
}

func (e *Engine) broadcast(t events.Type, frame any) {
	env, err := events.WrapBroadcast(t, frame)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to envelope broadcast")
		return
	}
	if err := e.bus.Publish(env); err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to publish broadcast")
	}
}

func (e *Engine) sendToPlayer(playerID int64, t events.Type, frame any) {
	env, err := events.WrapForPlayer(t, playerID, frame)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to envelope player event")
		return
	}
	if err := e.bus.Publish(env); err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to publish player event")
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
