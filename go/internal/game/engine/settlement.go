package engine

import (
	"math"

	"github.com/earnplay/cardbattle/go/internal/models"
)

const (
	// Winners are paid up to 1.95x their stake, scaled down pro-rata when
	// the round's pool cannot cover every winner.
	winMultiplier = 1.95
	// The house takes 10% of each gross payout.
	feeRate = 0.10
)

// RoundBid is one player's aggregate stake on one side of a round.
type RoundBid struct {
	Player models.Player
	Side   models.Side
	Amount int64
}

// Settle computes the payout summary for a finished round. Winning bids
// share the round's pool: each winner's desired gross is 1.95x the stake,
// scaled by pool/total-desired when the pool is short. The fee is 10% of the
// gross share and the net is what gets credited. Losing bids appear with
// zeroed payout columns.
func Settle(round models.Round, bids []RoundBid) models.Settlement {
	winSide := round.Card.WinningSide()
	settlement := models.Settlement{
		RoundID:     round.ID,
		WinningSide: winSide,
		Card:        round.Card,
	}
	if len(bids) == 0 {
		return settlement
	}

	var pool int64
	for _, b := range bids {
		pool += b.Amount
	}

	var totalDesired int64
	desired := make([]int64, len(bids))
	for i, b := range bids {
		if b.Side != winSide {
			continue
		}
		desired[i] = int64(math.Round(float64(b.Amount) * winMultiplier))
		totalDesired += desired[i]
	}

	scale := 1.0
	if totalDesired > pool && totalDesired > 0 {
		scale = float64(pool) / float64(totalDesired)
	}

	for i, b := range bids {
		row := models.SettlementRow{
			Username: b.Player.DisplayName(),
			Bid:      b.Amount,
		}
		if b.Side == winSide {
			share := int64(math.Round(float64(desired[i]) * scale))
			fee := int64(math.Round(float64(share) * feeRate))
			row.Share = share
			row.Fee = fee
			row.FinalWin = share - fee
		}
		settlement.Rows = append(settlement.Rows, row)
	}
	return settlement
}
