package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnplay/cardbattle/go/internal/models"
)

func TestPeek(t *testing.T) {
	frame, err := Marshal(NewBalanceUpdate(250))
	require.NoError(t, err)

	frameType, err := Peek(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeBalanceUpdate, frameType)
}

func TestPeekRejectsMalformedFrames(t *testing.T) {
	_, err := Peek([]byte("{not json"))
	assert.Error(t, err)

	_, err = Peek([]byte(`{"amount": 10}`))
	assert.Error(t, err, "frame without a type discriminator must be rejected")
}

func TestBidEntryKeepsWireFieldNames(t *testing.T) {
	data, err := Marshal(NewBidsUpdate(7, []BidEntry{
		{Username: "alice", PhoneNumber: "555", Amount: 50, Side: "number"},
	}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	bids := raw["bids"].([]any)
	entry := bids[0].(map[string]any)
	assert.Equal(t, "alice", entry["player__user__username"])
	assert.Equal(t, "555", entry["player__user__db_phone_number"])
}

func TestEnvelopeRoundTrip(t *testing.T) {
	start := NewRoundStart(42, models.Card{Rank: "ACE", Suit: "spades"}, time.Now().UTC())
	env, err := WrapBroadcast(TypeRoundStart, start)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Zero(t, env.PlayerID)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, TypeRoundStart, decoded.Type)

	frameType, err := Peek(decoded.Frame)
	require.NoError(t, err)
	assert.Equal(t, TypeRoundStart, frameType)
}

func TestWrapForPlayerTargets(t *testing.T) {
	env, err := WrapForPlayer(TypeBidAck, 9, BidAck{Type: TypeBidAck, RequestID: "r1", Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(9), env.PlayerID)
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"event_id":"x","frame":{}}`))
	assert.Error(t, err)
}
