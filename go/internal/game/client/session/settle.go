package session

import (
	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// ProjectSettlement converts a results frame into the payout summary. It is
// a pure projection: every figure is passed through verbatim, no payout math
// is recomputed client-side. An empty results list projects to zero rows.
func ProjectSettlement(ev events.ResultsShow) models.Settlement {
	card, err := models.ParseCard(ev.Card)
	if err != nil {
		// The card is display-only at this point; a malformed descriptor
		// must not suppress the payout rows.
		card = models.Card{Rank: ev.Card}
	}

	rows := make([]models.SettlementRow, len(ev.Results))
	for i, r := range ev.Results {
		rows[i] = models.SettlementRow{
			Username: r.Username,
			Bid:      r.Bid,
			Share:    r.Share,
			Fee:      r.Fee,
			FinalWin: r.FinalWin,
		}
	}

	side, err := models.ParseSide(ev.WinningSide)
	if err != nil {
		side = models.Side(ev.WinningSide)
	}

	return models.Settlement{
		RoundID:     ev.RoundID,
		WinningSide: side,
		Card:        card,
		Rows:        rows,
	}
}
