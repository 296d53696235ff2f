package models

import "time"

// Bid is a player's confirmed wager within a round.
type Bid struct {
	ID        int64     `json:"id"`
	PlayerID  int64     `json:"player_id"`
	RoundID   int64     `json:"round_id"`
	Side      Side      `json:"side"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// SideTotals holds the per-side sums of all players' confirmed bids for the
// current round. The server is authoritative; clients overwrite wholesale on
// every bids broadcast and never merge.
type SideTotals struct {
	Number  int64 `json:"number"`
	Picture int64 `json:"picture"`
}

// Add accumulates amount into the given side's total.
func (t *SideTotals) Add(side Side, amount int64) {
	switch side {
	case SidePicture:
		t.Picture += amount
	default:
		t.Number += amount
	}
}

// Of returns the total for one side.
func (t SideTotals) Of(side Side) int64 {
	if side == SidePicture {
		return t.Picture
	}
	return t.Number
}

// Pool is the combined stake across both sides.
func (t SideTotals) Pool() int64 {
	return t.Number + t.Picture
}
