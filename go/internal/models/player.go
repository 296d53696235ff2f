package models

import (
	"strconv"
	"time"
)

// Player is a registered participant with a coin balance. Accounts and
// authentication live in a separate subsystem; the game only needs the
// display identity and the wallet.
type Player struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	PhoneNumber string    `json:"phone_number"`
	Coins       int64     `json:"coins"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName mirrors the account subsystem's fallback chain: username first,
// then phone number, then a numeric handle.
func (p Player) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	return "player-" + strconv.FormatInt(p.ID, 10)
}
