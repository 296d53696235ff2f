package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnplay/cardbattle/go/internal/models"
)

func pictureRound(id int64) models.Round {
	return models.Round{ID: id, Card: models.Card{Rank: "ACE", Suit: "spades"}}
}

func TestSettleScalesShareToPool(t *testing.T) {
	round := pictureRound(1)
	bids := []RoundBid{
		{Player: models.Player{ID: 1, Username: "alice"}, Side: models.SidePicture, Amount: 50},
		{Player: models.Player{ID: 2, Username: "bob"}, Side: models.SideNumber, Amount: 30},
	}

	// Pool is 80 but alice's desired gross is round(50 * 1.95) = 98, so her
	// share scales down to the pool.
	s := Settle(round, bids)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, models.SidePicture, s.WinningSide)

	alice := s.Rows[0]
	assert.Equal(t, int64(50), alice.Bid)
	assert.Equal(t, int64(80), alice.Share)
	assert.Equal(t, int64(8), alice.Fee)
	assert.Equal(t, int64(72), alice.FinalWin)

	bob := s.Rows[1]
	assert.Equal(t, int64(30), bob.Bid)
	assert.Zero(t, bob.Share)
	assert.Zero(t, bob.FinalWin)
}

func TestSettleUnconstrainedPool(t *testing.T) {
	round := pictureRound(2)
	bids := []RoundBid{
		{Player: models.Player{ID: 1, Username: "alice"}, Side: models.SidePicture, Amount: 100},
		{Player: models.Player{ID: 2, Username: "bob"}, Side: models.SideNumber, Amount: 100},
	}

	// Pool 200 covers the desired 195, so no scaling applies.
	s := Settle(round, bids)
	alice := s.Rows[0]
	assert.Equal(t, int64(195), alice.Share)
	assert.Equal(t, int64(20), alice.Fee)
	assert.Equal(t, int64(175), alice.FinalWin)
}

func TestSettleSplitsPoolAcrossWinners(t *testing.T) {
	round := pictureRound(3)
	bids := []RoundBid{
		{Player: models.Player{ID: 1, Username: "alice"}, Side: models.SidePicture, Amount: 100},
		{Player: models.Player{ID: 2, Username: "bob"}, Side: models.SidePicture, Amount: 50},
		{Player: models.Player{ID: 3, Username: "carol"}, Side: models.SideNumber, Amount: 30},
	}

	s := Settle(round, bids)
	require.Len(t, s.Rows, 3)

	// Both winners scale by the same factor, so the larger stake keeps the
	// larger share and neither exceeds the pool.
	assert.Greater(t, s.Rows[0].Share, s.Rows[1].Share)
	assert.LessOrEqual(t, s.Rows[0].Share+s.Rows[1].Share, int64(180)+1)
	assert.Zero(t, s.Rows[2].FinalWin)
}

func TestSettleAllLosers(t *testing.T) {
	round := models.Round{ID: 4, Card: models.Card{Rank: "10", Suit: "clubs"}}
	bids := []RoundBid{
		{Player: models.Player{ID: 1, Username: "alice"}, Side: models.SidePicture, Amount: 40},
	}

	s := Settle(round, bids)
	assert.Equal(t, models.SideNumber, s.WinningSide)
	require.Len(t, s.Rows, 1)
	assert.Zero(t, s.Rows[0].Share)
	assert.Zero(t, s.Rows[0].Fee)
	assert.Zero(t, s.Rows[0].FinalWin)
}

func TestSettleEmptyRound(t *testing.T) {
	s := Settle(pictureRound(5), nil)
	assert.Empty(t, s.Rows)
	assert.Equal(t, models.SidePicture, s.WinningSide)
}

func TestSettleFallsBackToPhoneName(t *testing.T) {
	round := pictureRound(6)
	bids := []RoundBid{
		{Player: models.Player{ID: 9, PhoneNumber: "555-0101"}, Side: models.SidePicture, Amount: 10},
	}

	s := Settle(round, bids)
	assert.Equal(t, "555-0101", s.Rows[0].Username)
}
