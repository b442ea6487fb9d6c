package market

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/bridge"
	"github.com/walachey/magicmarket-sub000/internal/indicator"
	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

type recordingAdvisor struct {
	name string

	ticks    []string
	newDays  int
	executes []time.Duration
	veto     bool
	vetoed   int
}

func (a *recordingAdvisor) Name() string { return a.name }

func (a *recordingAdvisor) Execute(elapsed time.Duration, now time.Time) {
	a.executes = append(a.executes, elapsed)
}

func (a *recordingAdvisor) OnNewTick(currencyPair string, date model.Date, now time.Time) {
	a.ticks = append(a.ticks, fmt.Sprintf("%s@%d", currencyPair, now.Unix()))
}

func (a *recordingAdvisor) OnNewDay() { a.newDays++ }

func (a *recordingAdvisor) AcceptNewTrade(trade *model.Trade) bool {
	if a.veto {
		a.vetoed++
		return false
	}
	return true
}

func testMarket(t *testing.T) (*Market, *bridge.Loopback) {
	t.Helper()
	conn := bridge.NewLoopback()
	dir := t.TempDir()
	m := New(zap.NewNop(), conn, nil, Config{
		AccountName: "demo",
		UID:         "tester",
		DataDir:     dir,
		SaveDir:     dir,
		Persist:     false,
	})
	return m, conn
}

var marketBase = time.Date(2014, time.January, 30, 12, 0, 0, 0, time.UTC)

func tickMessage(pair string, bid, ask string, at time.Time) string {
	return fmt.Sprintf("T demo %s %s %s %d", pair, bid, ask, at.Unix())
}

func TestAddEventMergePolicy(t *testing.T) {
	m, _ := testMarket(t)
	date := model.DateOf(marketBase)

	older := model.NewTick("EURUSD", date, marketBase)
	newer := model.NewTick("EURUSD", date, marketBase.Add(time.Second))
	otherPair := model.NewTick("USDJPY", date, marketBase)

	m.addEvent(older)
	m.addEvent(older) // structural duplicate, dropped
	if len(m.events) != 1 {
		t.Fatalf("expected 1 event after duplicate, got %d", len(m.events))
	}

	m.addEvent(newer) // replaces the queued older event
	if len(m.events) != 1 || !m.events[0].Time.Equal(newer.Time) {
		t.Fatalf("expected the newer event to replace, got %+v", m.events)
	}

	m.addEvent(older) // older than queued, dropped
	if len(m.events) != 1 || !m.events[0].Time.Equal(newer.Time) {
		t.Fatalf("expected the older event to be dropped, got %+v", m.events)
	}

	m.addEvent(otherPair) // unrelated instrument queues separately
	if len(m.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.events))
	}
}

func TestTickMessageFeedsStoreAndEvents(t *testing.T) {
	m, _ := testMarket(t)

	m.parseMessage(tickMessage("EURUSD", "1.3605", "1.3607", marketBase))

	stock, ok := m.Stock("EURUSD")
	if !ok {
		t.Fatal("expected the stock to exist")
	}
	day, ok := stock.GetTradingDay(model.DateOf(marketBase), false)
	if !ok || len(day.Ticks()) != 1 {
		t.Fatal("expected one stored tick")
	}
	if !day.Ticks()[0].Bid.Eq(fixed.FromFloat64(1.3605)) {
		t.Fatalf("unexpected stored bid: %s", day.Ticks()[0].Bid)
	}
	if len(m.events) != 1 || m.events[0].Type != model.NewTickEvent {
		t.Fatalf("expected one queued tick event, got %+v", m.events)
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	m, _ := testMarket(t)

	for _, message := range []string{
		"",
		"T",
		"T demo EURUSD 1.36", // missing fields
		"T demo EURUSD abc def 123",
		"A demo 100 foo 0 0",
		"O demo not-json",
		"X demo what",
	} {
		m.parseMessage(message)
	}

	if len(m.events) != 0 {
		t.Fatalf("expected no events from malformed input, got %d", len(m.events))
	}
	if len(m.trades) != 0 {
		t.Fatalf("expected no trades from malformed input, got %d", len(m.trades))
	}
}

func TestAccountMessage(t *testing.T) {
	m, _ := testMarket(t)

	m.parseMessage("A demo 100 10000.50 250 9750.50")

	account := m.Account()
	if !account.Leverage.Eq(fixed.FromInt(100, 0)) {
		t.Fatalf("unexpected leverage: %s", account.Leverage)
	}
	if !account.Balance.Eq(fixed.FromFloat64(10000.50)) {
		t.Fatalf("unexpected balance: %s", account.Balance)
	}
}

func TestRunDispatchesAndSteps(t *testing.T) {
	m, conn := testMarket(t)
	advisor := &recordingAdvisor{name: "probe"}
	m.AddExpert(advisor)

	messages := [][]string{
		{tickMessage("EURUSD", "1.3605", "1.3607", marketBase)},
		{tickMessage("EURUSD", "1.3606", "1.3608", marketBase.Add(time.Second))},
		// Same second: dispatched, but no second execute.
		{tickMessage("EURUSD", "1.3607", "1.3609", marketBase.Add(time.Second))},
	}
	step := 0
	feed := func() error {
		if step >= len(messages) {
			return ErrFinished
		}
		for _, message := range messages[step] {
			conn.Push(message)
		}
		step++
		return nil
	}

	if err := m.Run(context.Background(), feed); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(advisor.ticks) != 3 {
		t.Fatalf("expected 3 tick dispatches, got %d", len(advisor.ticks))
	}
	// Executes only on strictly increasing elapsed time: once, at 1s.
	if len(advisor.executes) != 1 || advisor.executes[0] != time.Second {
		t.Fatalf("unexpected execute calls: %v", advisor.executes)
	}
}

// orderingAdvisor tags every callback with the value its indicator holds at
// that moment, exposing the relative order of indicator updates, expert
// callbacks and day-rollover resets.
type orderingAdvisor struct {
	sma *indicator.SMA
	log []string
}

func (a *orderingAdvisor) Name() string { return "sequence" }

func (a *orderingAdvisor) observe(what string) {
	value := "nan"
	if !math.IsNaN(a.sma.Value()) {
		value = fmt.Sprintf("%.4f", a.sma.Value())
	}
	a.log = append(a.log, what+"/"+value)
}

func (a *orderingAdvisor) Execute(elapsed time.Duration, now time.Time) {
	a.observe("execute")
}

func (a *orderingAdvisor) OnNewTick(currencyPair string, date model.Date, now time.Time) {
	a.observe("tick")
}

func (a *orderingAdvisor) OnNewDay() {
	a.observe("newday")
}

func (a *orderingAdvisor) AcceptNewTrade(trade *model.Trade) bool { return true }

// TestStepAndRolloverOrdering drives the full loop across a day boundary
// and asserts the dispatch sequence: indicators fold the window before any
// expert executes in the same step, and a rollover notifies experts while
// the old day's value still stands, resetting indicators before the new
// day's first tick is dispatched.
func TestStepAndRolloverOrdering(t *testing.T) {
	m, conn := testMarket(t)
	advisor := &orderingAdvisor{sma: m.Indicators().SMA("EURUSD", 4, 10)}
	m.AddExpert(advisor)

	nextDay := marketBase.Add(24 * time.Hour)
	messages := []string{
		tickMessage("EURUSD", "1.3700", "1.3700", marketBase),
		tickMessage("EURUSD", "1.3700", "1.3700", marketBase.Add(time.Second)),
		tickMessage("EURUSD", "1.3800", "1.3800", nextDay),
	}
	step := 0
	feed := func() error {
		if step >= len(messages) {
			return ErrFinished
		}
		conn.Push(messages[step])
		step++
		return nil
	}

	if err := m.Run(context.Background(), feed); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		"tick/nan",        // first tick, elapsed zero, no execute yet
		"tick/nan",        // second tick dispatched before the step updates
		"execute/1.3700",  // the step folded the window before executing
		"newday/1.3700",   // rollover: experts see the old value, pre-reset
		"tick/nan",        // reset done before the new day's tick dispatch
		"execute/1.3800",  // the new day's step starts from fresh state
	}
	if len(advisor.log) != len(want) {
		t.Fatalf("unexpected dispatch sequence: %v", advisor.log)
	}
	for i := range want {
		if advisor.log[i] != want[i] {
			t.Fatalf("unexpected dispatch at %d:\n got %v\nwant %v", i, advisor.log, want)
		}
	}
}

func TestDayRolloverNotifiesExpertsOnce(t *testing.T) {
	m, _ := testMarket(t)
	advisor := &recordingAdvisor{name: "probe"}
	m.AddExpert(advisor)

	m.parseMessage(tickMessage("EURUSD", "1.36", "1.3601", marketBase))
	m.dispatchEvents()
	if advisor.newDays != 0 {
		t.Fatal("first day must not trigger a rollover")
	}

	nextDay := marketBase.Add(24 * time.Hour)
	m.parseMessage(tickMessage("EURUSD", "1.37", "1.3701", nextDay))
	m.dispatchEvents()
	if advisor.newDays != 1 {
		t.Fatalf("expected 1 rollover, got %d", advisor.newDays)
	}
	if len(advisor.ticks) != 2 {
		t.Fatalf("expected both ticks dispatched, got %d", len(advisor.ticks))
	}
}

func TestNewTradeVetoAbortsWithoutSideEffects(t *testing.T) {
	m, conn := testMarket(t)
	veto := &recordingAdvisor{name: "censor", veto: true}
	m.AddExpert(veto)

	trade := model.Buy("EURUSD", fixed.FromFloat64(0.01))
	trade.OrderPrice = fixed.FromFloat64(1.3605)

	if m.NewTrade(trade) {
		t.Fatal("expected the trade to be vetoed")
	}
	if veto.vetoed != 1 {
		t.Fatalf("expected one veto, got %d", veto.vetoed)
	}
	if len(m.OpenTrades()) != 0 {
		t.Fatal("expected no open trades after veto")
	}
	if _, ok := conn.Receive(); ok {
		t.Fatal("expected no command after veto")
	}
}

func TestNewTradeEmitsSetCommand(t *testing.T) {
	m, conn := testMarket(t)

	trade := model.Sell("EURUSD", fixed.FromFloat64(0.01))
	trade.OrderPrice = fixed.FromFloat64(1.3605)
	trade.TakeProfit = fixed.FromFloat64(1.3585)
	trade.StopLoss = fixed.FromFloat64(1.3625)

	if !m.NewTrade(trade) {
		t.Fatal("expected the trade to be accepted")
	}
	opened := m.OpenTrades()
	if len(opened) != 1 || opened[0].TicketID != 1 {
		t.Fatalf("expected one trade with ticket 1, got %+v", opened)
	}

	command, ok := conn.Receive()
	if !ok {
		t.Fatal("expected a set command")
	}
	want := "cmd|demo|tester set 1 EURUSD 1.3605 1.3585 1.3625 0.01"
	if command != want {
		t.Fatalf("unexpected command:\n got %q\nwant %q", command, want)
	}
}

func TestOrdersSnapshotRebuildsTrades(t *testing.T) {
	m, _ := testMarket(t)

	// Seed a trade with an adjusted stop loss, then let the snapshot
	// replace it with a stale copy. The sidecar must restore the tighter
	// limit.
	if !m.NewTrade(model.Trade{
		CurrencyPair: "EURUSD",
		Type:         model.TradeBuy,
		OrderPrice:   fixed.FromFloat64(1.3600),
		LotSize:      fixed.FromFloat64(0.01),
	}) {
		t.Fatal("expected the seed trade to be accepted")
	}
	seeded := m.OpenTrades()[0]
	seeded.SetStopLoss(fixed.FromFloat64(1.3610))

	snapshot := fmt.Sprintf(`O demo [{"pair":"EURUSD","type":0,"ticket_id":%d,"open_price":1.3600,"stop_loss":1.3590,"take_profit":0,"lots":0.01}]`, seeded.TicketID)
	m.parseMessage(snapshot)

	trades := m.OpenTrades()
	if len(trades) != 1 {
		t.Fatalf("expected one trade after snapshot, got %d", len(trades))
	}
	rebuilt := trades[0]
	if rebuilt == seeded {
		t.Fatal("expected the snapshot to rebuild the trade")
	}
	if !rebuilt.StopLoss.Eq(fixed.FromFloat64(1.3610)) {
		t.Fatalf("expected the sidecar to restore stop loss 1.3610, got %s", rebuilt.StopLoss)
	}
}

func TestBroadcastFormats(t *testing.T) {
	m, conn := testMarket(t)

	m.UpdateMood("rsi", -1, 0.75)
	m.UpdateParameter("RSI", 82.5)

	if message, _ := conn.Receive(); message != "M rsi -1 0.75" {
		t.Fatalf("unexpected mood message: %q", message)
	}
	if message, _ := conn.Receive(); message != "P RSI 82.5" {
		t.Fatalf("unexpected parameter message: %q", message)
	}
}
