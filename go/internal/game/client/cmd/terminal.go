package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/earnplay/cardbattle/go/internal/game/client/session"
	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// terminalRenderer draws the game surface with pterm. Callbacks arrive from
// the session's goroutines; pterm printers are safe for that.
type terminalRenderer struct{}

func newTerminalRenderer() *terminalRenderer {
	return &terminalRenderer{}
}

func (t *terminalRenderer) RoundStarted(view session.RoundView) {
	side := "NUMBER"
	if view.IsPicture {
		side = "PICTURE"
	}
	pterm.Println()
	pterm.DefaultSection.Printfln("Round #%d", view.RoundID)
	pterm.Info.Printfln("Card drawn: %s (%s side wins)", pterm.LightCyan(view.Card.String()), side)
}

func (t *terminalRenderer) TimerTick(remaining int) {
	if remaining <= 5 && remaining > 0 {
		pterm.Print(pterm.LightRed(fmt.Sprintf(" %ds", remaining)))
		return
	}
	if remaining%10 == 0 && remaining > 0 {
		pterm.Info.Printfln("%d seconds left to bid", remaining)
	}
}

func (t *terminalRenderer) BettingEnabled(enabled bool) {
	if enabled {
		pterm.Info.Println("Betting is open: [n]umber / [p]icture, +<amount>, [c]onfirm")
		return
	}
	pterm.Println()
	pterm.Info.Println("Betting is closed")
}

func (t *terminalRenderer) TotalsUpdated(totals models.SideTotals, roster []events.BidEntry) {
	pterm.Info.Printfln("Pool: number %s / picture %s",
		pterm.LightGreen(fmt.Sprint(totals.Number)),
		pterm.LightGreen(fmt.Sprint(totals.Picture)),
	)
	for _, entry := range roster {
		pterm.Printfln("  %s bid %d on %s", displayName(entry), entry.Amount, entry.Side)
	}
}

func (t *terminalRenderer) UserBidUpdated(side models.Side, amount int64) {
	pterm.Info.Printfln("Your bid: %d on %s", amount, side)
}

func (t *terminalRenderer) BalanceUpdated(coins int64) {
	pterm.Info.Printfln("Balance: %s coins", pterm.LightGreen(fmt.Sprint(coins)))
}

func (t *terminalRenderer) SettlementShown(s models.Settlement) {
	pterm.Println()
	pterm.DefaultSection.Printfln("Round #%d results", s.RoundID)
	pterm.Info.Printfln("Winning side: %s (%s)", pterm.LightCyan(string(s.WinningSide)), s.Card.String())

	if len(s.Rows) == 0 {
		pterm.Info.Println("No winners this round")
		return
	}
	data := pterm.TableData{{"Player", "Bid", "Share", "Fee", "Won"}}
	for _, row := range s.Rows {
		data = append(data, []string{
			row.Username,
			fmt.Sprint(row.Bid),
			fmt.Sprint(row.Share),
			fmt.Sprint(row.Fee),
			pterm.LightGreen(fmt.Sprint(row.FinalWin)),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Printfln("failed to render results: %v", err)
	}
}

func (t *terminalRenderer) SettlementDismissed() {
	pterm.Info.Println("Next round starting soon...")
}

func displayName(entry events.BidEntry) string {
	if entry.Username != "" {
		return entry.Username
	}
	if entry.PhoneNumber != "" {
		return entry.PhoneNumber
	}
	return "anonymous"
}

// terminalSink prints transient notices the way the browser client toasts.
type terminalSink struct{}

func (terminalSink) Notify(level session.Level, message string) {
	switch level {
	case session.LevelSuccess:
		pterm.Success.Println(message)
	case session.LevelError:
		pterm.Error.Println(message)
	default:
		pterm.Info.Println(message)
	}
}
