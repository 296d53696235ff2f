package session

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// HandleFrame decodes one server frame and applies it. Exactly one handler
// runs per frame. A malformed frame is surfaced as a transient user notice
// and changes no state; an unrecognized type is ignored for forward
// compatibility.
func (s *Session) HandleFrame(data []byte) error {
	frameType, err := events.Peek(data)
	if err != nil {
		s.sink.Notify(LevelError, "Connection error - please refresh!")
		return fmt.Errorf("malformed frame: %w", err)
	}

	switch frameType {
	case events.TypeRoundStart:
		return decodeAndApply(s, data, s.handleRoundStart)
	case events.TypeTimerUpdate:
		return decodeAndApply(s, data, s.handleTimerUpdate)
	case events.TypeBidsUpdate:
		return decodeAndApply(s, data, s.handleBidsUpdate)
	case events.TypeResultsShow:
		return decodeAndApply(s, data, s.handleResultsShow)
	case events.TypeBalanceUpdate:
		return decodeAndApply(s, data, s.handleBalanceUpdate)
	case events.TypeBidAck:
		return decodeAndApply(s, data, s.handleBidAck)
	case events.TypeError:
		return decodeAndApply(s, data, func(ev events.ErrorNotice) error {
			s.sink.Notify(LevelError, ev.Message)
			return nil
		})
	default:
		log.Debug().Str("type", string(frameType)).Msg("ignoring unrecognized frame type")
		return nil
	}
}

// decodeAndApply fully decodes the payload before any state is touched, so a
// half-parsed frame can never leave the round partially updated.
func decodeAndApply[T any](s *Session, data []byte, apply func(T) error) error {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sink.Notify(LevelError, "Connection error - please refresh!")
		return fmt.Errorf("decode frame: %w", err)
	}
	return apply(ev)
}

// staleLocked rejects events for a round other than the current one. A zero
// round id is accepted for compatibility with servers that do not stamp
// events.
func (s *Session) staleLocked(roundID int64) bool {
	return roundID != 0 && s.roundID != 0 && roundID != s.roundID
}

// handleRoundStart hard-resets the session for a fresh round. Any
// unacknowledged local bid is discarded; the server never saw it commit.
func (s *Session) handleRoundStart(ev events.RoundStart) error {
	card, err := models.ParseCard(ev.Card)
	if err != nil {
		s.sink.Notify(LevelError, "Connection error - please refresh!")
		return fmt.Errorf("round_start: %w", err)
	}

	s.mu.Lock()
	s.cancelDismissLocked()
	s.cancelAckLocked()

	s.roundID = ev.RoundID
	s.card = card
	s.phase = models.PhaseIdle
	s.startTime = ev.StartTime
	s.totals = models.SideTotals{}
	s.roster = nil

	s.selectedSide = ""
	s.currentBid = 0
	s.confirmed = false
	s.pendingReqID = ""

	view := RoundView{RoundID: ev.RoundID, Card: card, IsPicture: card.IsPicture()}
	s.renderer.RoundStarted(view)
	s.renderer.TotalsUpdated(s.totals, nil)
	s.renderer.UserBidUpdated("", 0)
	s.renderer.BettingEnabled(false)
	s.mu.Unlock()

	if !ev.StartTime.IsZero() {
		s.countdown.Restart(ev.StartTime)
	}

	log.Debug().Int64("round_id", ev.RoundID).Str("card", card.String()).Msg("round started")
	return nil
}

// handleTimerUpdate resynchronizes the countdown to the server clock and
// gates the betting controls.
func (s *Session) handleTimerUpdate(ev events.TimerUpdate) error {
	s.mu.Lock()
	if s.staleLocked(ev.RoundID) {
		current := s.roundID
		s.mu.Unlock()
		log.Debug().Int64("round_id", ev.RoundID).Int64("current", current).Msg("dropping stale timer update")
		return nil
	}

	if !ev.StartTime.IsZero() {
		s.startTime = ev.StartTime
	}

	switch ev.Phase {
	case models.WirePhaseBidding:
		s.phase = models.PhaseBidding
	case models.WirePhaseResults:
		s.phase = models.PhaseRevealing
	case models.WirePhaseCountdown:
		s.phase = models.PhaseSettled
	default:
		s.phase = models.PhaseLocked
	}

	open := s.bettingOpenLocked()
	s.renderer.BettingEnabled(open)
	startTime := s.startTime
	restart := s.phase == models.PhaseBidding && !startTime.IsZero()
	s.mu.Unlock()

	if restart {
		s.countdown.Restart(startTime)
	}
	return nil
}

// handleBidsUpdate replaces the aggregate totals and roster wholesale. The
// server order of the roster is preserved.
func (s *Session) handleBidsUpdate(ev events.BidsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(ev.RoundID) {
		log.Debug().Int64("round_id", ev.RoundID).Msg("dropping stale bids update")
		return nil
	}

	totals := models.SideTotals{}
	for _, bid := range ev.Bids {
		side, err := models.ParseSide(bid.Side)
		if err != nil {
			// Treat an unknown side as zero contribution rather than
			// corrupting the totals.
			log.Warn().Str("side", bid.Side).Msg("bids update carried unknown side")
			continue
		}
		totals.Add(side, bid.Amount)
	}

	s.totals = totals
	s.roster = ev.Bids
	s.renderer.TotalsUpdated(s.totals, s.roster)
	return nil
}

// handleResultsShow is terminal for the round: project the payout summary,
// zero the totals, and schedule the auto-dismiss.
func (s *Session) handleResultsShow(ev events.ResultsShow) error {
	settlement := ProjectSettlement(ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(ev.RoundID) {
		log.Debug().Int64("round_id", ev.RoundID).Msg("dropping stale results")
		return nil
	}

	s.phase = models.PhaseSettled
	s.totals = models.SideTotals{}
	s.roster = nil
	s.renderer.BettingEnabled(false)
	s.renderer.TotalsUpdated(s.totals, nil)
	s.renderer.SettlementShown(settlement)

	s.cancelDismissLocked()
	stop := make(chan struct{})
	s.dismissStop = stop

	timer := s.clk.NewTimer(s.config.ResultDisplay)
	go func() {
		select {
		case <-timer.Chan():
			s.mu.Lock()
			if s.dismissStop == stop {
				s.dismissStop = nil
				s.renderer.SettlementDismissed()
			}
			s.mu.Unlock()
		case <-stop:
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
		}
	}()
	return nil
}

// handleBalanceUpdate mirrors the authoritative balance. It can arrive in
// any phase; balances are never inferred locally from bid outcomes.
func (s *Session) handleBalanceUpdate(ev events.BalanceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = ev.Coins
	s.renderer.BalanceUpdated(ev.Coins)
	return nil
}

// handleBidAck resolves the outstanding place_bid correlation.
func (s *Session) handleBidAck(ev events.BidAck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.RequestID == "" || ev.RequestID != s.pendingReqID {
		log.Debug().Str("request_id", ev.RequestID).Msg("ignoring unmatched bid ack")
		return nil
	}
	s.pendingReqID = ""
	s.cancelAckLocked()

	s.balance = ev.Coins
	s.renderer.BalanceUpdated(ev.Coins)

	if ev.Accepted {
		s.sink.Notify(LevelSuccess, "Bid placed")
		return nil
	}

	// The server rejected the wager; allow the user to try again within the
	// same round.
	s.confirmed = false
	reason := ev.Reason
	if reason == "" {
		reason = "Bid rejected"
	}
	s.sink.Notify(LevelError, reason)
	return nil
}
