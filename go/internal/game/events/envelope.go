package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a wire frame for transport over the message bus between the
// round engine and the gateway. PlayerID targets a single player's
// connections; zero means broadcast to everyone in the game.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Type      Type            `json:"type"`
	PlayerID  int64           `json:"player_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Frame     json.RawMessage `json:"frame"`
}

// WrapBroadcast envelopes a frame destined for every connection.
func WrapBroadcast(t Type, frame any) (Envelope, error) {
	return wrap(t, 0, frame)
}

// WrapForPlayer envelopes a frame destined for one player only.
func WrapForPlayer(t Type, playerID int64, frame any) (Envelope, error) {
	return wrap(t, playerID, frame)
}

func wrap(t Type, playerID int64, frame any) (Envelope, error) {
	data, err := Marshal(frame)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   uuid.New().String(),
		Type:      t,
		PlayerID:  playerID,
		Timestamp: time.Now().UTC(),
		Frame:     data,
	}, nil
}

// DecodeEnvelope parses a bus message back into an Envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("event envelope missing type")
	}
	return env, nil
}
