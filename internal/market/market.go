// Package market hosts the event-driven trading engine: it owns the tick
// store, the open trades, the advisors and their indicators, and schedules
// all of them from the bridge message stream.
package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/bridge"
	"github.com/walachey/magicmarket-sub000/internal/expert"
	"github.com/walachey/magicmarket-sub000/internal/indicator"
	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/statistics"
	"github.com/walachey/magicmarket-sub000/internal/store"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// ErrFinished signals a feed callback has no more data to replay.
var ErrFinished = errors.New("feed finished")

// Feed is an optional per-iteration driver, used by the replay engine to
// publish the next slice of historical messages before the market drains
// its inbound side.
type Feed func() error

// CommandHandler consumes trade commands addressed to the executing side.
// In replay mode the virtual market registers itself here.
type CommandHandler interface {
	OnCommand(args []string)
}

// Config carries the market's identity and storage settings.
type Config struct {
	AccountName string
	UID         string

	// Virtual switches the command prefix to the replay vocabulary.
	Virtual bool

	// DataDir is the tick store root, SaveDir the trade sidecar and report
	// root.
	DataDir string
	SaveDir string

	// Persist enables tick log writes; replay runs with it off.
	Persist bool

	// Sleep throttles the live loop. Zero means run hot (replay).
	Sleep time.Duration
}

type Market struct {
	logger *zap.Logger
	conn   bridge.Connection
	cfg    Config

	stocks     map[string]*store.Stock
	trades     []*model.Trade
	experts    []expert.Advisor
	indicators *indicator.Registry
	statistics *statistics.Registry
	commands   CommandHandler

	events  []model.Event
	account model.Account

	currentDate  model.Date
	lastTickTime time.Time
	sessionStart time.Time
	lastElapsed  time.Duration

	ticketCounter int32
}

func New(logger *zap.Logger, conn bridge.Connection, stats *statistics.Registry, cfg Config) *Market {
	m := &Market{
		logger:     logger,
		conn:       conn,
		cfg:        cfg,
		stocks:     make(map[string]*store.Stock),
		statistics: stats,
	}
	m.indicators = indicator.NewRegistry(logger, m)

	// The limit adjuster guards every account, so it is always on board.
	m.AddExpert(expert.NewLimitAdjuster(m))
	return m
}

// AddExpert registers an advisor. Registration order is dispatch order.
func (m *Market) AddExpert(advisor expert.Advisor) {
	m.experts = append(m.experts, advisor)
	m.logger.Info("expert registered", zap.String("name", advisor.Name()))
}

// SetCommandHandler routes inbound trade commands, replay mode only.
func (m *Market) SetCommandHandler(handler CommandHandler) {
	m.commands = handler
}

func (m *Market) Indicators() *indicator.Registry { return m.indicators }

func (m *Market) Account() model.Account { return m.account }

func (m *Market) LastTickTime() time.Time { return m.lastTickTime }

// OpenTrades returns a snapshot of the open trade list. Advisors may close
// trades while iterating it.
func (m *Market) OpenTrades() []*model.Trade {
	out := make([]*model.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Stock returns the instrument's tick history if it is already loaded or
// has persisted data on disk.
func (m *Market) Stock(currencyPair string) (*store.Stock, bool) {
	if stock, ok := m.stocks[currencyPair]; ok {
		return stock, true
	}
	if _, err := os.Stat(filepath.Join(m.cfg.DataDir, currencyPair)); err != nil {
		return nil, false
	}
	return m.getOrCreateStock(currencyPair), true
}

func (m *Market) getOrCreateStock(currencyPair string) *store.Stock {
	if stock, ok := m.stocks[currencyPair]; ok {
		return stock
	}
	stock := store.NewStock(m.logger, currencyPair, m.cfg.DataDir, m.cfg.Persist)
	m.stocks[currencyPair] = stock
	return stock
}

// Run is the scheduler loop: drive the feed, drain the bridge, dispatch
// events, then let indicators and experts execute once per elapsed second
// of market time. Returns nil when the feed reports ErrFinished or the
// context ends.
func (m *Market) Run(ctx context.Context, feed Feed) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if feed != nil {
			if err := feed(); err != nil {
				if errors.Is(err, ErrFinished) {
					return nil
				}
				return err
			}
		}

		for {
			message, ok := m.conn.Receive()
			if !ok {
				break
			}
			m.parseMessage(message)
		}

		m.dispatchEvents()
		m.timeStep()

		if m.cfg.Sleep > 0 {
			time.Sleep(m.cfg.Sleep)
		}
	}
}

// addEvent queues an event, deduplicating structurally identical ones and
// keeping only the youngest event per type and instrument.
func (m *Market) addEvent(event model.Event) {
	for i := range m.events {
		if m.events[i].Equals(event) {
			return
		}
		if m.events[i].YoungerThan(event) {
			m.events[i] = event
			return
		}
		if event.YoungerThan(m.events[i]) {
			return
		}
	}
	m.events = append(m.events, event)
}

func (m *Market) dispatchEvents() {
	for _, event := range m.events {
		if event.Time.After(m.lastTickTime) {
			m.lastTickTime = event.Time
		}

		// Day rollover resets all derived state before the first tick of
		// the new day reaches anyone.
		if m.currentDate != event.Date {
			if !m.currentDate.IsZero() {
				for _, advisor := range m.experts {
					advisor.OnNewDay()
				}
				m.indicators.ResetAll()
			}
			m.currentDate = event.Date
		}

		switch event.Type {
		case model.NewTickEvent:
			for _, advisor := range m.experts {
				advisor.OnNewTick(event.CurrencyPair, event.Date, event.Time)
			}
		case model.TimerEvent:
		}
	}
	m.events = m.events[:0]
}

// timeStep fires once per strictly increasing second of elapsed market
// time: indicators first so experts see fresh values, then a statistics
// snapshot.
func (m *Market) timeStep() {
	if m.lastTickTime.IsZero() {
		return
	}
	if m.sessionStart.IsZero() {
		m.sessionStart = m.lastTickTime
	}

	elapsed := m.lastTickTime.Sub(m.sessionStart)
	if elapsed <= m.lastElapsed {
		return
	}
	m.lastElapsed = elapsed

	m.indicators.UpdateAll(elapsed, m.lastTickTime)
	for _, advisor := range m.experts {
		advisor.Execute(elapsed, m.lastTickTime)
	}
	if m.statistics != nil {
		m.statistics.Log()
	}
}

func (m *Market) commandPrefix() string {
	if m.cfg.Virtual {
		return "C VM"
	}
	return fmt.Sprintf("cmd|%s|%s", m.cfg.AccountName, m.cfg.UID)
}

func (m *Market) send(message string) {
	if err := m.conn.Send(message); err != nil {
		m.logger.Warn("bridge send failed", zap.String("message", message), zap.Error(err))
	}
}

// NewTrade proposes a trade to every advisor and, if none vetoes, opens it
// and issues the set command. The first veto aborts with no side effects.
func (m *Market) NewTrade(trade model.Trade) bool {
	for _, advisor := range m.experts {
		if !advisor.AcceptNewTrade(&trade) {
			m.logger.Info("trade vetoed",
				zap.String("by", advisor.Name()),
				zap.Object("trade", &trade))
			return false
		}
	}

	m.ticketCounter++
	trade.TicketID = m.ticketCounter
	accepted := &trade
	m.trades = append(m.trades, accepted)

	m.send(fmt.Sprintf("%s set %d %s %s %s %s %s",
		m.commandPrefix(), tradeTypeCode(accepted.Type), accepted.CurrencyPair,
		accepted.OrderPrice, accepted.TakeProfit, accepted.StopLoss, accepted.LotSize))
	m.logger.Info("trade opened", zap.Object("trade", accepted))
	return true
}

// UpdateTrade pushes adjusted limits out to the executing side.
func (m *Market) UpdateTrade(trade *model.Trade) {
	m.send(fmt.Sprintf("%s reset %d %s %s",
		m.commandPrefix(), trade.TicketID, trade.TakeProfit, trade.StopLoss))
}

// CloseTrade issues the unset command and forgets the trade.
func (m *Market) CloseTrade(trade *model.Trade) {
	m.send(fmt.Sprintf("%s unset %d", m.commandPrefix(), trade.TicketID))
	trade.RemoveSaveFile(m.cfg.SaveDir)

	for i, open := range m.trades {
		if open == trade {
			m.trades = append(m.trades[:i], m.trades[i+1:]...)
			break
		}
	}
	m.logger.Info("trade closed", zap.Object("trade", trade))
}

func (m *Market) UpdateMood(name string, mood, certainty float64) {
	m.send(fmt.Sprintf("M %s %v %v", name, mood, certainty))
}

func (m *Market) UpdateParameter(name string, value float64) {
	m.send(fmt.Sprintf("P %s %v", name, value))
}

func (m *Market) Chat(name, message string) {
	m.send(fmt.Sprintf("! %s %d %s", name, m.lastTickTime.Unix(), message))
}

// Close releases the tick store and flushes statistics.
func (m *Market) Close() {
	for _, stock := range m.stocks {
		stock.Close()
	}
	if m.statistics != nil {
		m.statistics.Close()
	}
}

func tradeTypeCode(t model.TradeType) int {
	if t == model.TradeSell {
		return 1
	}
	return 0
}

// orderPayload is the wire shape of one entry in the O snapshot.
type orderPayload struct {
	Pair       string  `json:"pair"`
	Type       int     `json:"type"`
	TicketID   int32   `json:"ticket_id"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Lots       float64 `json:"lots"`
}

// parseMessage handles one bridge message. The first token is the message
// type, the second the sending account. Malformed messages are dropped
// with a warning; the stream must survive a misbehaving terminal.
func (m *Market) parseMessage(message string) {
	fields := strings.Fields(message)
	if len(fields) < 2 {
		m.logger.Warn("malformed bridge message", zap.String("message", message))
		return
	}

	switch fields[0] {
	case "T":
		m.parseTick(message, fields)
	case "O":
		m.parseOrders(message)
	case "A":
		m.parseAccount(message, fields)
	case "C":
		if m.commands != nil {
			m.commands.OnCommand(fields[2:])
		}
	default:
		m.logger.Warn("unknown bridge message", zap.String("message", message))
	}
}

func (m *Market) parseTick(message string, fields []string) {
	if len(fields) != 6 {
		m.logger.Warn("malformed tick message", zap.String("message", message))
		return
	}

	bid, errBid := fixed.FromString(fields[3])
	ask, errAsk := fixed.FromString(fields[4])
	unix, errTime := strconv.ParseInt(fields[5], 10, 64)
	if errBid != nil || errAsk != nil || errTime != nil {
		m.logger.Warn("malformed tick message", zap.String("message", message))
		return
	}

	pair := fields[2]
	tick := model.Tick{Time: time.Unix(unix, 0).UTC(), Bid: bid, Ask: ask}
	m.getOrCreateStock(pair).ReceiveFreshTick(tick)

	m.addEvent(model.NewTick(pair, tick.Date(), tick.Time))
}

// parseOrders replaces the open trade list with the terminal's snapshot.
// The outgoing trades save their adjusted limits first, the incoming ones
// load them back, so limit adjustments survive the round trip.
func (m *Market) parseOrders(message string) {
	parts := strings.SplitN(message, " ", 3)
	if len(parts) < 3 {
		m.logger.Warn("malformed orders message", zap.String("message", message))
		return
	}

	for _, trade := range m.trades {
		if err := trade.Save(m.cfg.SaveDir, false); err != nil {
			m.logger.Warn("unable to save trade", zap.Error(err))
		}
	}
	m.trades = m.trades[:0]

	var orders []orderPayload
	if err := json.Unmarshal([]byte(parts[2]), &orders); err != nil {
		m.logger.Warn("malformed orders payload", zap.Error(err))
		return
	}

	for _, order := range orders {
		trade := &model.Trade{
			TicketID:     order.TicketID,
			CurrencyPair: order.Pair,
			Type:         model.TradeBuy,
			OrderPrice:   fixed.FromFloat64(order.OpenPrice),
			StopLoss:     fixed.FromFloat64(order.StopLoss),
			TakeProfit:   fixed.FromFloat64(order.TakeProfit),
			LotSize:      fixed.FromFloat64(order.Lots),
		}
		if order.Type != 0 {
			trade.Type = model.TradeSell
		}
		trade.Load(m.cfg.SaveDir)
		m.trades = append(m.trades, trade)

		if trade.TicketID >= m.ticketCounter {
			m.ticketCounter = trade.TicketID
		}
	}
}

func (m *Market) parseAccount(message string, fields []string) {
	if len(fields) != 6 {
		m.logger.Warn("malformed account message", zap.String("message", message))
		return
	}

	values := make([]fixed.Point, 4)
	for i, field := range fields[2:] {
		value, err := fixed.FromString(field)
		if err != nil {
			m.logger.Warn("malformed account message", zap.String("message", message))
			return
		}
		values[i] = value
	}
	m.account = model.Account{
		Leverage:   values[0],
		Balance:    values[1],
		Margin:     values[2],
		MarginFree: values[3],
	}
}
