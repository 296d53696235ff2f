package events

import (
	"encoding/json"
	"fmt"
)

// Type discriminates every frame exchanged with game clients. Inbound and
// outbound frames are flat JSON objects carrying a "type" field alongside
// their payload fields.
type Type string

const (
	// Server -> client.
	TypeRoundStart    Type = "round_start"
	TypeTimerUpdate   Type = "timer.update"
	TypeBidsUpdate    Type = "bids.update"
	TypeResultsShow   Type = "results.show"
	TypeBalanceUpdate Type = "balance.update"
	TypeBidAck        Type = "bid.ack"
	TypeError         Type = "error"

	// Client -> server.
	TypePlaceBid        Type = "place_bid"
	TypeGetInitialState Type = "get_initial_state"
)

// Peek extracts the type discriminator without decoding the payload.
func Peek(data []byte) (Type, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("decode frame type: %w", err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("frame missing type discriminator")
	}
	return head.Type, nil
}

// Marshal encodes a frame struct to its wire form. The frame's own Type
// field must already be set; constructors in this package guarantee that.
func Marshal(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
