package models

import (
	"fmt"
	"strings"
)

// Side is one of the two mutually exclusive wager categories.
type Side string

const (
	SideNumber  Side = "number"
	SidePicture Side = "picture"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideNumber || s == SidePicture
}

// ParseSide normalizes a wire-level side string.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(raw) {
	case string(SideNumber):
		return SideNumber, nil
	case string(SidePicture):
		return SidePicture, nil
	default:
		return "", fmt.Errorf("unknown side %q", raw)
	}
}

// Card is a revealed card descriptor.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

var pictureRanks = map[string]bool{
	"JACK":  true,
	"QUEEN": true,
	"KING":  true,
	"ACE":   true,
}

// ParseCard parses the wire descriptor, either "ACE of spades" or
// "ace_of_spades".
func ParseCard(raw string) (Card, error) {
	var parts []string
	if strings.Contains(raw, "_") {
		parts = strings.Split(raw, "_")
	} else {
		parts = strings.Fields(raw)
	}
	if len(parts) != 3 || strings.ToLower(parts[1]) != "of" {
		return Card{}, fmt.Errorf("malformed card descriptor %q", raw)
	}
	return Card{Rank: parts[0], Suit: parts[2]}, nil
}

// IsPicture reports whether the rank classifies the card as a picture card.
// This is a game rule: {JACK, QUEEN, KING, ACE} win for "picture", everything
// else wins for "number".
func (c Card) IsPicture() bool {
	return pictureRanks[strings.ToUpper(c.Rank)]
}

// WinningSide returns the side this card pays out.
func (c Card) WinningSide() Side {
	if c.IsPicture() {
		return SidePicture
	}
	return SideNumber
}

// String renders the broadcast form, e.g. "ACE of spades".
func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// Slug renders the asset form, e.g. "ace_of_spades".
func (c Card) Slug() string {
	return strings.ToLower(c.Rank) + "_of_" + strings.ToLower(c.Suit)
}

// Deck returns the full playing deck for the card game.
func Deck() []Card {
	suits := []string{"hearts", "diamonds", "clubs", "spades"}
	ranks := []string{"2", "4", "6", "8", "10", "jack", "queen", "king", "ace"}
	deck := make([]Card, 0, len(suits)*len(ranks))
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	return deck
}
