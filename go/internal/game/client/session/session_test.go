package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnplay/cardbattle/go/internal/game/events"
	"github.com/earnplay/cardbattle/go/internal/models"
)

// fakeSender records outbound wagers.
type fakeSender struct {
	mu   sync.Mutex
	sent []events.PlaceBid
	err  error
}

func (f *fakeSender) SendPlaceBid(cmd events.PlaceBid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSender) last() (events.PlaceBid, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return events.PlaceBid{}, false
	}
	return f.sent[len(f.sent)-1], true
}

// fakeSink records notifications.
type fakeSink struct {
	mu       sync.Mutex
	messages []string
	levels   []Level
}

func (f *fakeSink) Notify(level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, level)
	f.messages = append(f.messages, message)
}

func (f *fakeSink) has(message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m == message {
			return true
		}
	}
	return false
}

// fakeRenderer records presentation callbacks.
type fakeRenderer struct {
	mu          sync.Mutex
	rounds      []RoundView
	totals      []models.SideTotals
	settlements []models.Settlement
	dismissed   int
	balances    []int64
	enabled     []bool
}

func (f *fakeRenderer) RoundStarted(view RoundView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, view)
}

func (f *fakeRenderer) TimerTick(remaining int) {}

func (f *fakeRenderer) BettingEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = append(f.enabled, enabled)
}

func (f *fakeRenderer) TotalsUpdated(totals models.SideTotals, roster []events.BidEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals = append(f.totals, totals)
}

func (f *fakeRenderer) UserBidUpdated(side models.Side, amount int64) {}

func (f *fakeRenderer) BalanceUpdated(coins int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances = append(f.balances, coins)
}

func (f *fakeRenderer) SettlementShown(s models.Settlement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, s)
}

func (f *fakeRenderer) SettlementDismissed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
}

func (f *fakeRenderer) dismissedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dismissed
}

func (f *fakeRenderer) lastRound() (RoundView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rounds) == 0 {
		return RoundView{}, false
	}
	return f.rounds[len(f.rounds)-1], true
}

func (f *fakeRenderer) lastSettlement() (models.Settlement, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.settlements) == 0 {
		return models.Settlement{}, false
	}
	return f.settlements[len(f.settlements)-1], true
}

type fixture struct {
	clk      *clockwork.FakeClock
	sender   *fakeSender
	sink     *fakeSink
	renderer *fakeRenderer
	session  *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clk:      clockwork.NewFakeClock(),
		sender:   &fakeSender{},
		sink:     &fakeSink{},
		renderer: &fakeRenderer{},
	}
	f.session = New(DefaultConfig(), f.clk, f.sender, f.renderer, f.sink)
	t.Cleanup(f.session.Close)
	return f
}

func (f *fixture) deliver(t *testing.T, frame any) {
	t.Helper()
	data, err := events.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, f.session.HandleFrame(data))
}

// startRound drives the session into an open betting window with the given
// balance.
func (f *fixture) startRound(t *testing.T, roundID int64, balance int64) {
	t.Helper()
	start := f.clk.Now()
	card := models.Card{Rank: "ACE", Suit: "spades"}
	f.deliver(t, events.NewRoundStart(roundID, card, start))
	f.deliver(t, events.NewTimerUpdate(roundID, start, models.WirePhaseBidding))
	f.deliver(t, events.NewBalanceUpdate(balance))
}

func TestRoundStartResetsSession(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())

	side, amount, confirmed := f.session.CurrentBid()
	assert.Equal(t, models.SideNumber, side)
	assert.Equal(t, int64(50), amount)
	assert.True(t, confirmed)

	f.deliver(t, events.NewRoundStart(2, models.Card{Rank: "4", Suit: "hearts"}, f.clk.Now()))

	assert.Equal(t, int64(2), f.session.RoundID())
	assert.Equal(t, models.PhaseIdle, f.session.Phase())
	_, amount, confirmed = f.session.CurrentBid()
	assert.Zero(t, amount)
	assert.False(t, confirmed)
	assert.Equal(t, models.SideTotals{}, f.session.Totals())
}

func TestRoundStartClassifiesCard(t *testing.T) {
	f := newFixture(t)
	f.deliver(t, events.NewRoundStart(1, models.Card{Rank: "ACE", Suit: "spades"}, f.clk.Now()))

	view, ok := f.renderer.lastRound()
	require.True(t, ok)
	assert.True(t, view.IsPicture)

	f.deliver(t, events.NewRoundStart(2, models.Card{Rank: "10", Suit: "hearts"}, f.clk.Now()))
	view, _ = f.renderer.lastRound()
	assert.False(t, view.IsPicture)
}

func TestBettingStaysOpenLateInWindow(t *testing.T) {
	f := newFixture(t)
	start := f.clk.Now().Add(-28 * time.Second)
	f.deliver(t, events.NewRoundStart(1, models.Card{Rank: "ACE", Suit: "spades"}, start))
	f.deliver(t, events.NewTimerUpdate(1, start, models.WirePhaseBidding))
	f.deliver(t, events.NewBalanceUpdate(500))

	assert.True(t, f.session.BettingOpen(), "2 seconds left still accepts wagers")

	require.NoError(t, f.session.SelectSide(models.SidePicture))
	require.NoError(t, f.session.IncreaseStake(20))
	require.NoError(t, f.session.Confirm())
}

func TestConfirmRequiresSelectionAndStake(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	err := f.session.Confirm()
	assert.ErrorIs(t, err, ErrInvalidSelection)
	assert.True(t, f.sink.has("Please select a side and amount!"))

	_, ok := f.sender.last()
	assert.False(t, ok, "nothing may be sent without a complete wager")
}

func TestStakeCappedByBalance(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 100)

	require.NoError(t, f.session.SelectSide(models.SidePicture))
	require.NoError(t, f.session.IncreaseStake(60))

	err := f.session.IncreaseStake(60)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, f.sink.has("Insufficient balance!"))

	_, amount, _ := f.session.CurrentBid()
	assert.Equal(t, int64(60), amount, "a rejected press leaves the stake unchanged")
}

func TestConfirmRejectedOutsideBiddingPhase(t *testing.T) {
	f := newFixture(t)
	start := f.clk.Now()
	f.deliver(t, events.NewRoundStart(1, models.Card{Rank: "10", Suit: "clubs"}, start))
	f.deliver(t, events.NewBalanceUpdate(500))

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))

	err := f.session.Confirm()
	assert.ErrorIs(t, err, ErrBettingClosed)
}

func TestBettingClosesWhenWindowElapsed(t *testing.T) {
	f := newFixture(t)
	start := f.clk.Now().Add(-31 * time.Second)
	f.deliver(t, events.NewRoundStart(1, models.Card{Rank: "10", Suit: "clubs"}, start))
	f.deliver(t, events.NewTimerUpdate(1, start, models.WirePhaseBidding))
	f.deliver(t, events.NewBalanceUpdate(500))

	assert.False(t, f.session.BettingOpen())

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	assert.ErrorIs(t, f.session.Confirm(), ErrBettingClosed)
}

func TestConfirmSendsPlaceBidOnce(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 7, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())

	cmd, ok := f.sender.last()
	require.True(t, ok)
	assert.Equal(t, events.TypePlaceBid, cmd.Type)
	assert.Equal(t, int64(7), cmd.RoundID)
	assert.Equal(t, int64(50), cmd.Amount)
	assert.Equal(t, "number", cmd.Side)
	assert.NotEmpty(t, cmd.RequestID)

	// Optimistic local total until the next broadcast.
	assert.Equal(t, int64(50), f.session.Totals().Number)

	assert.ErrorIs(t, f.session.Confirm(), ErrAlreadyConfirmed)
	assert.ErrorIs(t, f.session.SelectSide(models.SidePicture), ErrAlreadyConfirmed)
	assert.ErrorIs(t, f.session.IncreaseStake(10), ErrAlreadyConfirmed)
}

func TestConfirmSurfacesSendFailure(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)
	f.sender.err = errors.New("stream down")

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))

	err := f.session.Confirm()
	assert.Error(t, err)
	assert.True(t, f.sink.has("Connection error - bid not sent"))

	_, _, confirmed := f.session.CurrentBid()
	assert.False(t, confirmed, "a failed send must not lock the wager")
}

func TestBidsUpdateReplacesTotalsWholesale(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())
	assert.Equal(t, int64(50), f.session.Totals().Number)

	// The authoritative broadcast no longer contains our optimistic total.
	f.deliver(t, events.NewBidsUpdate(1, []events.BidEntry{
		{Username: "alice", Amount: 30, Side: "picture"},
	}))

	totals := f.session.Totals()
	assert.Equal(t, int64(0), totals.Number)
	assert.Equal(t, int64(30), totals.Picture)
}

func TestBidsUpdateSkipsUnknownSides(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	f.deliver(t, events.NewBidsUpdate(1, []events.BidEntry{
		{Username: "alice", Amount: 30, Side: "picture"},
		{Username: "mallory", Amount: 99, Side: "edge"},
	}))

	totals := f.session.Totals()
	assert.Equal(t, int64(30), totals.Picture)
	assert.Equal(t, int64(0), totals.Number)
}

func TestStaleRoundFramesDropped(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 5, 500)

	f.deliver(t, events.NewBidsUpdate(99, []events.BidEntry{
		{Username: "ghost", Amount: 1000, Side: "number"},
	}))
	assert.Equal(t, models.SideTotals{}, f.session.Totals())

	f.deliver(t, events.NewTimerUpdate(99, f.clk.Now(), models.WirePhaseResults))
	assert.Equal(t, models.PhaseBidding, f.session.Phase())
}

func TestZeroRoundIDFramesAccepted(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 5, 500)

	f.deliver(t, events.NewBidsUpdate(0, []events.BidEntry{
		{Username: "legacy", Amount: 25, Side: "number"},
	}))
	assert.Equal(t, int64(25), f.session.Totals().Number)
}

func TestBidAckAccepted(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())
	cmd, _ := f.sender.last()

	f.deliver(t, events.BidAck{
		Type:      events.TypeBidAck,
		RequestID: cmd.RequestID,
		RoundID:   1,
		Accepted:  true,
		Coins:     450,
	})

	assert.Equal(t, int64(450), f.session.Balance())
	assert.True(t, f.sink.has("Bid placed"))

	_, _, confirmed := f.session.CurrentBid()
	assert.True(t, confirmed)
}

func TestBidAckRejectedAllowsRetry(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())
	cmd, _ := f.sender.last()

	f.deliver(t, events.BidAck{
		Type:      events.TypeBidAck,
		RequestID: cmd.RequestID,
		RoundID:   1,
		Accepted:  false,
		Reason:    "Insufficient balance",
		Coins:     500,
	})

	assert.True(t, f.sink.has("Insufficient balance"))
	_, _, confirmed := f.session.CurrentBid()
	assert.False(t, confirmed, "a rejected wager must be retryable")

	require.NoError(t, f.session.Confirm())
}

func TestBidAckIgnoresUnmatchedRequestID(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())

	f.deliver(t, events.BidAck{
		Type:      events.TypeBidAck,
		RequestID: "someone-elses-request",
		Accepted:  false,
		Coins:     1,
	})

	assert.Equal(t, int64(500), f.session.Balance(), "unmatched acks must not touch the ledger")
	_, _, confirmed := f.session.CurrentBid()
	assert.True(t, confirmed)
}

func TestAckTimeoutSurfacesWarning(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())

	f.clk.Advance(DefaultConfig().AckTimeout)

	assert.Eventually(t, func() bool {
		return f.sink.has("No confirmation received for your bid")
	}, time.Second, time.Millisecond)
}

func TestAckStopsTimeoutWatch(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	require.NoError(t, f.session.SelectSide(models.SideNumber))
	require.NoError(t, f.session.IncreaseStake(50))
	require.NoError(t, f.session.Confirm())
	cmd, _ := f.sender.last()

	f.deliver(t, events.BidAck{
		Type:      events.TypeBidAck,
		RequestID: cmd.RequestID,
		RoundID:   1,
		Accepted:  true,
		Coins:     450,
	})

	f.clk.Advance(DefaultConfig().AckTimeout)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, f.sink.has("No confirmation received for your bid"))
}

func TestResultsShowProjectsAndDismisses(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	f.deliver(t, events.ResultsShow{
		Type:        events.TypeResultsShow,
		RoundID:     1,
		WinningSide: "picture",
		Card:        "ACE of spades",
		Results: []events.ResultRow{
			{Username: "alice", Bid: 50, Share: 80, Fee: 8, FinalWin: 72},
		},
	})

	assert.Equal(t, models.PhaseSettled, f.session.Phase())
	assert.Equal(t, models.SideTotals{}, f.session.Totals(), "totals reset when results show")

	settlement, ok := f.renderer.lastSettlement()
	require.True(t, ok)
	assert.Equal(t, models.SidePicture, settlement.WinningSide)
	require.Len(t, settlement.Rows, 1)
	assert.Equal(t, int64(72), settlement.Rows[0].FinalWin)

	f.clk.Advance(DefaultConfig().ResultDisplay)
	assert.Eventually(t, func() bool {
		return f.renderer.dismissedCount() == 1
	}, time.Second, time.Millisecond)
}

func TestRoundStartCancelsPendingDismiss(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	f.deliver(t, events.ResultsShow{
		Type:        events.TypeResultsShow,
		RoundID:     1,
		WinningSide: "number",
		Card:        "10 of clubs",
	})

	// The next round arrives before the display window elapses.
	f.deliver(t, events.NewRoundStart(2, models.Card{Rank: "4", Suit: "hearts"}, f.clk.Now()))
	f.clk.Advance(DefaultConfig().ResultDisplay)

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, f.renderer.dismissedCount(), "superseded settlement must not dismiss later")
}

func TestBalanceUpdateMirrorsServer(t *testing.T) {
	f := newFixture(t)
	f.deliver(t, events.NewBalanceUpdate(1234))
	assert.Equal(t, int64(1234), f.session.Balance())
}

func TestMalformedFrameNotifiesAndChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.startRound(t, 1, 500)

	err := f.session.HandleFrame([]byte("{broken"))
	assert.Error(t, err)
	assert.True(t, f.sink.has("Connection error - please refresh!"))
	assert.Equal(t, int64(1), f.session.RoundID())
}

func TestUnknownFrameTypeIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.HandleFrame([]byte(`{"type":"future.event","x":1}`)))
}

func TestErrorNoticeForwardedToSink(t *testing.T) {
	f := newFixture(t)
	f.deliver(t, events.NewErrorNotice("Server restarting"))
	assert.True(t, f.sink.has("Server restarting"))
}
