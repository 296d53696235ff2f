package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/client/clock"
	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// Config holds the timing parameters of a round session.
type Config struct {
	BetWindow     time.Duration // length of the bidding phase
	ResultDisplay time.Duration // how long the settlement summary stays up
	AckTimeout    time.Duration // how long to wait for a bid acknowledgement
}

// DefaultConfig matches the live game's timing.
func DefaultConfig() Config {
	return Config{
		BetWindow:     30 * time.Second,
		ResultDisplay: 3 * time.Second,
		AckTimeout:    5 * time.Second,
	}
}

// Session owns all client-side round state: the current round, the user's
// pending wager, the mirrored balance, and the per-side totals. Every event
// handler and user action runs under one mutex, so handlers are atomic with
// respect to their own event and a handler observing partial state is
// impossible.
type Session struct {
	config    Config
	clk       clockwork.Clock
	countdown *clock.Countdown
	sender    Sender
	renderer  Renderer
	sink      NotificationSink

	mu sync.Mutex

	// Round state.
	roundID     int64
	card        models.Card
	phase       models.Phase
	startTime   time.Time
	totals      models.SideTotals
	roster      []events.BidEntry

	// Bid ledger.
	balance      int64
	selectedSide models.Side
	currentBid   int64
	confirmed    bool

	// Outstanding place_bid correlation.
	pendingReqID string
	ackStop      chan struct{}

	// Cancellation for the settlement auto-dismiss timer.
	dismissStop chan struct{}
}

// New builds a session wired to its collaborators. The transport session
// feeds HandleFrame; the presentation layer drives SelectSide, IncreaseStake
// and Confirm.
func New(config Config, clk clockwork.Clock, sender Sender, renderer Renderer, sink NotificationSink) *Session {
	s := &Session{
		config:   config,
		clk:      clk,
		sender:   sender,
		renderer: renderer,
		sink:     sink,
		phase:    models.PhaseIdle,
	}
	s.countdown = clock.NewCountdown(clk, config.BetWindow, s.handleTick)
	return s
}

// Close stops any running timers.
func (s *Session) Close() {
	s.countdown.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelDismissLocked()
	s.cancelAckLocked()
}

// SelectSide records the side the user wants to wager on. Pure local state;
// nothing is sent to the server.
func (s *Session) SelectSide(side models.Side) error {
	if !side.Valid() {
		return ErrInvalidSelection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed {
		return ErrAlreadyConfirmed
	}
	s.selectedSide = side
	return nil
}

// IncreaseStake accumulates a stake-button press into the pending bid. The
// pending amount can never exceed the mirrored balance.
func (s *Session) IncreaseStake(amount int64) error {
	if amount <= 0 {
		return ErrInvalidSelection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed {
		return ErrAlreadyConfirmed
	}
	if s.currentBid+amount > s.balance {
		s.sink.Notify(LevelError, "Insufficient balance!")
		return ErrInsufficientBalance
	}
	s.currentBid += amount
	s.renderer.UserBidUpdated(s.selectedSide, s.currentBid)
	return nil
}

// Confirm submits the pending wager. It requires a selected side, a positive
// stake within balance, an open betting window, and no prior confirmation
// this round. On success the stake is added optimistically to the local side
// total; the next authoritative bids broadcast supersedes that value.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		return ErrAlreadyConfirmed
	}
	if !s.selectedSide.Valid() || s.currentBid == 0 {
		s.sink.Notify(LevelError, "Please select a side and amount!")
		return ErrInvalidSelection
	}
	if s.currentBid > s.balance {
		s.sink.Notify(LevelError, "Exceeds balance!")
		return ErrInsufficientBalance
	}
	if !s.bettingOpenLocked() {
		s.sink.Notify(LevelError, "Betting is closed for this round")
		return ErrBettingClosed
	}

	cmd := events.NewPlaceBid(uuid.New().String(), s.roundID, s.currentBid, s.selectedSide)
	if err := s.sender.SendPlaceBid(cmd); err != nil {
		log.Error().Err(err).Int64("round_id", s.roundID).Msg("failed to send place_bid")
		s.sink.Notify(LevelError, "Connection error - bid not sent")
		return err
	}

	s.confirmed = true
	s.pendingReqID = cmd.RequestID

	// Optimistic one-redraw update; the next bids broadcast is the truth.
	s.totals.Add(s.selectedSide, s.currentBid)
	s.renderer.TotalsUpdated(s.totals, s.roster)
	s.renderer.UserBidUpdated(s.selectedSide, s.currentBid)

	s.watchAck(cmd.RequestID)
	return nil
}

// bettingOpenLocked is the sole gate on wager submission: the server must
// have declared the bidding phase and the window must still have time left.
func (s *Session) bettingOpenLocked() bool {
	if s.phase != models.PhaseBidding || s.startTime.IsZero() {
		return false
	}
	return s.countdown.Remaining(s.startTime) > 0
}

// watchAck arms a timer that surfaces a transport error if the server never
// acknowledges the outstanding bid. The matching ack stops the timer through
// cancelAckLocked. Caller holds s.mu.
func (s *Session) watchAck(reqID string) {
	stop := make(chan struct{})
	s.ackStop = stop
	timer := s.clk.NewTimer(s.config.AckTimeout)
	go func() {
		select {
		case <-timer.Chan():
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.ackStop == stop {
				s.ackStop = nil
			}
			if s.pendingReqID != reqID {
				return
			}
			s.pendingReqID = ""
			log.Warn().Str("request_id", reqID).Msg("bid acknowledgement timed out")
			s.sink.Notify(LevelError, "No confirmation received for your bid")
		case <-stop:
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
		}
	}()
}

func (s *Session) cancelAckLocked() {
	if s.ackStop != nil {
		close(s.ackStop)
		s.ackStop = nil
	}
}

func (s *Session) handleTick(remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer.TimerTick(remaining)
	if remaining == 0 && s.phase == models.PhaseBidding {
		s.phase = models.PhaseLocked
		s.renderer.BettingEnabled(false)
	}
}

func (s *Session) cancelDismissLocked() {
	if s.dismissStop != nil {
		close(s.dismissStop)
		s.dismissStop = nil
	}
}

// Snapshot accessors. Primarily for the presentation layer and tests.

func (s *Session) RoundID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundID
}

func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Session) CurrentBid() (models.Side, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedSide, s.currentBid, s.confirmed
}

func (s *Session) Totals() models.SideTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

func (s *Session) BettingOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bettingOpenLocked()
}

func (s *Session) Card() models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.card
}
