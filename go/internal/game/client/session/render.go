package session

import (
	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// Level classifies a user-visible notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// NotificationSink receives transient user-visible notices (toasts in the
// original browser client). Owned by the page shell, not by this package.
type NotificationSink interface {
	Notify(level Level, message string)
}

// RoundView is the presentation snapshot published when a round starts.
type RoundView struct {
	RoundID   int64
	Card      models.Card
	IsPicture bool
}

// Renderer is the presentation surface the session projects state onto.
// Implementations must not call back into the session from within a
// callback; they draw and return.
type Renderer interface {
	RoundStarted(view RoundView)
	TimerTick(remaining int)
	BettingEnabled(enabled bool)
	TotalsUpdated(totals models.SideTotals, roster []events.BidEntry)
	UserBidUpdated(side models.Side, amount int64)
	BalanceUpdated(coins int64)
	SettlementShown(s models.Settlement)
	SettlementDismissed()
}

// Sender is the outbound half of the transport session.
type Sender interface {
	SendPlaceBid(cmd events.PlaceBid) error
}
