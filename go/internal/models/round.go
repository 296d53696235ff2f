package models

import "time"

// RoundStatus defines the server-side status of a round.
type RoundStatus string

const (
	RoundStatusWaiting   RoundStatus = "WAIT"
	RoundStatusActive    RoundStatus = "ACTIVE"
	RoundStatusResults   RoundStatus = "RESULTS"
	RoundStatusCompleted RoundStatus = "DONE"
)

// Round is one play cycle from card reveal through settlement.
type Round struct {
	ID        int64       `json:"id"`
	Card      Card        `json:"card"`
	Status    RoundStatus `json:"status"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Phase is the client-visible stage of the current round. The server only
// ever declares "bidding" or not-bidding on the wire; the richer states exist
// so the session can gate user actions precisely.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBidding   Phase = "bidding"
	PhaseLocked    Phase = "locked"
	PhaseRevealing Phase = "revealing"
	PhaseSettled   Phase = "settled"
)

// Wire-level phase strings broadcast by the round engine.
const (
	WirePhaseBidding   = "bidding"
	WirePhaseResults   = "results"
	WirePhaseCountdown = "countdown"
	WirePhaseWaiting   = "waiting"
)
