package models

// SettlementRow is one per-player line of a round's payout summary. All
// figures are computed by the round engine; clients display them verbatim.
type SettlementRow struct {
	Username string `json:"username"`
	Bid      int64  `json:"bid"`
	Share    int64  `json:"share"`
	Fee      int64  `json:"fee"`
	FinalWin int64  `json:"final_win"`
}

// Settlement is the terminal outcome of a round.
type Settlement struct {
	RoundID     int64           `json:"round_id"`
	WinningSide Side            `json:"winning_side"`
	Card        Card            `json:"card"`
	Rows        []SettlementRow `json:"rows"`
}
