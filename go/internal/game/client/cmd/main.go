package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/client"
	"github.com/earnplay/cardbattle/go/internal/game/client/session"
	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// senderRelay bridges the session's outbound frames to the stream client.
// The session and client reference each other, so the hookup happens after
// both exist.
type senderRelay struct {
	sender session.Sender
}

func (r *senderRelay) SendPlaceBid(cmd events.PlaceBid) error {
	if r.sender == nil {
		return client.ErrNotConnected
	}
	return r.sender.SendPlaceBid(cmd)
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws/card_game", "game server websocket endpoint")
	playerID := flag.Int64("player", 0, "player id")
	token := flag.String("token", "", "session token")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *playerID <= 0 {
		pterm.Error.Println("a positive -player id is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := client.DefaultConfig(fmt.Sprintf("%s?player_id=%d", *serverURL, *playerID))
	config.Token = *token

	sink := terminalSink{}
	renderer := newTerminalRenderer()

	// The session sends through the client and the client hands frames to
	// the session, so wire the sender through a late-bound relay.
	relay := &senderRelay{}
	sess := session.New(session.DefaultConfig(), clockwork.NewRealClock(), relay, renderer, sink)
	defer sess.Close()

	stream := client.New(config, sess, sink)
	relay.sender = stream

	go func() {
		if err := stream.Run(ctx); err != nil {
			pterm.Error.Printfln("game stream failed: %v", err)
			cancel()
		}
	}()

	pterm.DefaultSection.Println("Card Battle")
	pterm.Info.Println("Commands: n (number), p (picture), +<amount>, c (confirm), s (status), q (quit)")

	runInputLoop(ctx, cancel, sess)
}

func runInputLoop(ctx context.Context, cancel context.CancelFunc, sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(line, sess); err != nil {
			if err == errQuit {
				cancel()
				return
			}
			pterm.Error.Println(err.Error())
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(line string, sess *session.Session) error {
	switch {
	case line == "q" || line == "quit":
		return errQuit
	case line == "n" || line == "number":
		return sess.SelectSide(models.SideNumber)
	case line == "p" || line == "picture":
		return sess.SelectSide(models.SidePicture)
	case line == "c" || line == "confirm":
		return sess.Confirm()
	case line == "s" || line == "status":
		printStatus(sess)
		return nil
	case strings.HasPrefix(line, "+"):
		amount, err := strconv.ParseInt(line[1:], 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("usage: +<amount>, e.g. +50")
		}
		return sess.IncreaseStake(amount)
	default:
		return fmt.Errorf("unknown command %q", line)
	}
}

func printStatus(sess *session.Session) {
	side, amount, confirmed := sess.CurrentBid()
	totals := sess.Totals()
	pterm.Info.Printfln("Round #%d phase=%s balance=%d", sess.RoundID(), sess.Phase(), sess.Balance())
	if amount > 0 {
		state := "pending"
		if confirmed {
			state = "confirmed"
		}
		pterm.Info.Printfln("Your bid: %d on %s (%s)", amount, side, state)
	}
	pterm.Info.Printfln("Pool: number %d / picture %d", totals.Number, totals.Picture)
}
