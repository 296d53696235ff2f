package events

import (
	"time"

	"github.com/earnplay/cardbattle/go/internal/models"
)

// RoundStart announces a fresh round. It unconditionally supersedes whatever
// round a client currently holds. The card descriptor is the broadcast form,
// e.g. "ACE of spades".
type RoundStart struct {
	Type      Type      `json:"type"`
	RoundID   int64     `json:"round_id"`
	Card      string    `json:"card"`
	StartTime time.Time `json:"start_time"`
}

func NewRoundStart(roundID int64, card models.Card, startTime time.Time) RoundStart {
	return RoundStart{Type: TypeRoundStart, RoundID: roundID, Card: card.String(), StartTime: startTime}
}

// TimerUpdate carries the authoritative round start time and phase. Clients
// derive the countdown from start_time rather than trusting any locally
// decremented counter.
type TimerUpdate struct {
	Type      Type      `json:"type"`
	RoundID   int64     `json:"round_id"`
	StartTime time.Time `json:"start_time"`
	Phase     string    `json:"phase"`
}

func NewTimerUpdate(roundID int64, startTime time.Time, phase string) TimerUpdate {
	return TimerUpdate{Type: TypeTimerUpdate, RoundID: roundID, StartTime: startTime, Phase: phase}
}

// BidEntry is one roster line in a bids broadcast. The field names keep the
// original ORM join names so existing clients stay compatible.
type BidEntry struct {
	Username    string `json:"player__user__username"`
	PhoneNumber string `json:"player__user__db_phone_number"`
	Amount      int64  `json:"amount"`
	Side        string `json:"side"`
}

// BidsUpdate replaces the full roster and both side totals wholesale.
type BidsUpdate struct {
	Type    Type       `json:"type"`
	RoundID int64      `json:"round_id"`
	Bids    []BidEntry `json:"bids"`
}

func NewBidsUpdate(roundID int64, bids []BidEntry) BidsUpdate {
	return BidsUpdate{Type: TypeBidsUpdate, RoundID: roundID, Bids: bids}
}

// ResultRow mirrors models.SettlementRow on the wire.
type ResultRow struct {
	Username string `json:"username"`
	Bid      int64  `json:"bid"`
	Share    int64  `json:"share"`
	Fee      int64  `json:"fee"`
	FinalWin int64  `json:"final_win"`
}

// ResultsShow is the terminal event for a round.
type ResultsShow struct {
	Type        Type        `json:"type"`
	RoundID     int64       `json:"round_id"`
	WinningSide string      `json:"winning_side"`
	Card        string      `json:"card"`
	Results     []ResultRow `json:"results"`
}

func NewResultsShow(s models.Settlement) ResultsShow {
	rows := make([]ResultRow, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = ResultRow{
			Username: r.Username,
			Bid:      r.Bid,
			Share:    r.Share,
			Fee:      r.Fee,
			FinalWin: r.FinalWin,
		}
	}
	return ResultsShow{
		Type:        TypeResultsShow,
		RoundID:     s.RoundID,
		WinningSide: string(s.WinningSide),
		Card:        s.Card.String(),
		Results:     rows,
	}
}

// BalanceUpdate pushes the authoritative coin balance. It may arrive at any
// time, independent of round phase.
type BalanceUpdate struct {
	Type  Type  `json:"type"`
	Coins int64 `json:"coins"`
}

func NewBalanceUpdate(coins int64) BalanceUpdate {
	return BalanceUpdate{Type: TypeBalanceUpdate, Coins: coins}
}

// BidAck correlates a place_bid command with its server-side outcome.
type BidAck struct {
	Type      Type   `json:"type"`
	RequestID string `json:"request_id"`
	RoundID   int64  `json:"round_id"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	Coins     int64  `json:"coins"`
}

// PlaceBid is the client's wager command.
type PlaceBid struct {
	Type      Type   `json:"type"`
	RequestID string `json:"request_id"`
	RoundID   int64  `json:"round_id"`
	Amount    int64  `json:"amount"`
	Side      string `json:"side"`
}

func NewPlaceBid(requestID string, roundID int64, amount int64, side models.Side) PlaceBid {
	return PlaceBid{Type: TypePlaceBid, RequestID: requestID, RoundID: roundID, Amount: amount, Side: string(side)}
}

// ErrorNotice is a transient, user-visible failure message.
type ErrorNotice struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

func NewErrorNotice(message string) ErrorNotice {
	return ErrorNotice{Type: TypeError, Message: message}
}
