// Package simulation replays recorded tick history through the live engine.
// The virtual market impersonates the bridge: it publishes historical T, A
// and O messages to the market and executes the C commands coming back, so
// the engine under test runs unchanged.
package simulation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/bridge"
	"github.com/walachey/magicmarket-sub000/internal/market"
	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/statistics"
	"github.com/walachey/magicmarket-sub000/internal/store"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// firstTicket offsets virtual ticket ids so they never collide with ids a
// real terminal would assign.
const firstTicket = 1000

// Config selects the replay period and instruments.
type Config struct {
	// LeadingPair paces the replay; its ticks define the clock.
	LeadingPair string
	// SecondaryPairs are published in between leading ticks.
	SecondaryPairs []string

	Begin model.Date
	End   model.Date

	// FromHour/ToHour bound the replayed hours of each day; zero means
	// unbounded.
	FromHour int
	ToHour   int

	// MinTicksPerDay is the data sufficiency threshold; days at or below
	// it are skipped.
	MinTicksPerDay int

	DataDir string
	SaveDir string
}

// tradeMeta is the per-trade lifecycle record behind the replay report.
type tradeMeta struct {
	tradeType model.TradeType
	openedAt  time.Time
	profit    float64
	closedAt  time.Time
	forced    bool
}

// VirtualMarket drives a Market through a recorded period. It implements
// bridge.Connection (the market's feed side) and market.CommandHandler (the
// executing side).
type VirtualMarket struct {
	logger *zap.Logger
	cfg    Config

	queue *bridge.Loopback

	date         model.Date
	leadingStock *store.Stock
	leadingTicks []model.Tick
	secondary    []*store.TradingDay
	secondaryIdx []int

	tickIndex    int
	lastTick     model.Tick
	haveLastTick bool
	finished     bool

	trades       []*model.Trade
	meta         map[int32]*tradeMeta
	closedMeta   map[int32]*tradeMeta
	tradeCounter int32

	totalProfitPips float64
	wonTrades       int
	lostTrades      int

	priceEstimate float64
	lastKnown     map[string]float64

	reportHeaderWritten bool
}

func New(logger *zap.Logger, stats *statistics.Registry, cfg Config) *VirtualMarket {
	if cfg.MinTicksPerDay == 0 {
		cfg.MinTicksPerDay = 15000
	}

	vm := &VirtualMarket{
		logger:       logger,
		cfg:          cfg,
		queue:        bridge.NewLoopback(),
		date:         cfg.Begin,
		meta:         make(map[int32]*tradeMeta),
		closedMeta:   make(map[int32]*tradeMeta),
		tradeCounter: firstTicket,
		lastKnown:    make(map[string]float64),
	}

	if stats != nil {
		stats.Add(statistics.Variable{
			Name:        "price_estimate",
			Description: "Future-aware estimation of efficiency of trades.",
			Get:         func() float64 { return vm.priceEstimate },
		})
		pairs := append([]string{cfg.LeadingPair}, cfg.SecondaryPairs...)
		for _, pair := range pairs {
			pair := pair
			stats.Add(statistics.Variable{
				Name:        pair,
				Description: fmt.Sprintf("Current price of %s.", pair),
				Get:         func() float64 { return vm.lastKnownPrice(pair) },
			})
		}
	}

	vm.prepareDayData()
	return vm
}

// Send is the market's outbound side. Trade commands loop back into the
// market's inbound queue, where the parser routes them to OnCommand;
// broadcast messages have no audience in replay and are dropped.
func (vm *VirtualMarket) Send(message string) error {
	if strings.HasPrefix(message, "C ") {
		vm.queue.Push(message)
	} else {
		vm.logger.Debug("broadcast dropped", zap.String("message", message))
	}
	return nil
}

// Receive is the market's inbound side.
func (vm *VirtualMarket) Receive() (string, bool) {
	return vm.queue.Receive()
}

// Execute publishes the next replay step. It is the market's feed callback
// and returns market.ErrFinished once the period is exhausted.
func (vm *VirtualMarket) Execute() error {
	if vm.finished {
		vm.reportTotals()
		return market.ErrFinished
	}

	// The day-end check runs first so the market has processed everything
	// published for the previous tick before the day is evaluated.
	if vm.tickIndex >= len(vm.leadingTicks) {
		vm.evaluateDay()
		vm.saveTrades()
		vm.advanceDay()

		if vm.finished {
			vm.reportTotals()
			return market.ErrFinished
		}
	}

	vm.predictTradeEfficiency()
	vm.publishGeneralInfo()

	var previousTime time.Time
	if vm.haveLastTick {
		previousTime = vm.lastTick.Time
	}

	vm.lastTick = vm.leadingTicks[vm.tickIndex]
	vm.haveLastTick = true
	vm.tickIndex++
	vm.sendTick(vm.cfg.LeadingPair, vm.lastTick)

	// Secondary instruments follow the leading clock: everything in
	// (previousTime, leadingTime] goes out now, in day order.
	for i, day := range vm.secondary {
		ticks := day.Ticks()
		idx := vm.secondaryIdx[i]
		for idx < len(ticks) {
			tick := ticks[idx]
			if !previousTime.IsZero() && !tick.Time.After(previousTime) {
				idx++
				continue
			}
			if tick.Time.After(vm.lastTick.Time) {
				break
			}
			vm.sendTick(day.CurrencyPair(), tick)
			idx++
		}
		vm.secondaryIdx[i] = idx
	}

	if vm.cfg.ToHour > 0 && !previousTime.IsZero() && previousTime.UTC().Hour() > vm.cfg.ToHour {
		vm.tickIndex = len(vm.leadingTicks)
	}
	return nil
}

// OnCommand executes one trade command from the market. The reset command
// is deliberately not handled; limit adjustments ride along in the trade
// sidecar files instead.
func (vm *VirtualMarket) OnCommand(args []string) {
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "set":
		vm.openTrade(args[1:])
	case "unset":
		vm.closeTrade(args[1:])
	case "reset":
	default:
		vm.logger.Warn("unknown trade command", zap.Strings("args", args))
	}
}

func (vm *VirtualMarket) openTrade(args []string) {
	if len(args) != 6 {
		vm.logger.Warn("malformed set command", zap.Strings("args", args))
		return
	}

	typeCode, errType := strconv.Atoi(args[0])
	price, errPrice := fixed.FromString(args[2])
	takeProfit, errTP := fixed.FromString(args[3])
	stopLoss, errSL := fixed.FromString(args[4])
	lots, errLots := fixed.FromString(args[5])
	if errType != nil || errPrice != nil || errTP != nil || errSL != nil || errLots != nil {
		vm.logger.Warn("malformed set command", zap.Strings("args", args))
		return
	}

	trade := &model.Trade{
		CurrencyPair: args[1],
		Type:         model.TradeBuy,
		OrderPrice:   price,
		TakeProfit:   takeProfit,
		StopLoss:     stopLoss,
		LotSize:      lots,
	}
	if typeCode != 0 {
		trade.Type = model.TradeSell
	}

	vm.tradeCounter++
	trade.TicketID = vm.tradeCounter
	trade.RemoveSaveFile(vm.cfg.SaveDir)
	vm.trades = append(vm.trades, trade)
	vm.meta[trade.TicketID] = &tradeMeta{tradeType: trade.Type, openedAt: vm.lastTick.Time}

	vm.logger.Info("virtual trade opened", zap.Object("trade", trade))
}

func (vm *VirtualMarket) closeTrade(args []string) {
	if len(args) != 1 {
		vm.logger.Warn("malformed unset command", zap.Strings("args", args))
		return
	}
	ticket, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		vm.logger.Warn("malformed unset command", zap.Strings("args", args))
		return
	}

	for i, trade := range vm.trades {
		if trade.TicketID != int32(ticket) {
			continue
		}
		vm.evaluateTrade(trade, false)
		trade.RemoveSaveFile(vm.cfg.SaveDir)
		vm.trades = append(vm.trades[:i], vm.trades[i+1:]...)
		vm.logger.Info("virtual trade closed", zap.Object("trade", trade))
		return
	}
}

// evaluateTrade books the trade's profit in pips against the last leading
// tick. Trades in other instruments cannot be priced against the leading
// clock and are skipped.
func (vm *VirtualMarket) evaluateTrade(trade *model.Trade, forced bool) {
	if trade.CurrencyPair != vm.cfg.LeadingPair {
		return
	}

	profitPoints := trade.ProfitAtTick(vm.lastTick).Div(fixed.OnePip)
	profit, _ := profitPoints.Float64()

	if profit > 0 {
		vm.wonTrades++
	} else if profit < 0 {
		vm.lostTrades++
	}
	vm.totalProfitPips += profit

	if meta, ok := vm.meta[trade.TicketID]; ok {
		meta.profit = profit
		meta.closedAt = vm.lastTick.Time
		meta.forced = forced
		vm.closedMeta[trade.TicketID] = meta
	}
}

// evaluateDay force-closes everything still open at day end. Each trade is
// booked exactly once; the day data cleanup drops the list afterwards.
func (vm *VirtualMarket) evaluateDay() {
	for _, trade := range vm.trades {
		vm.evaluateTrade(trade, true)
	}
}

func (vm *VirtualMarket) advanceDay() {
	vm.date = vm.date.Next()
	vm.prepareDayData()
}

// prepareDayData loads the next day with enough data for all instruments,
// skipping thin days up to the period end. Replay stocks never persist;
// republishing the ticks through the market must not grow the source logs.
func (vm *VirtualMarket) prepareDayData() {
	for {
		if vm.date.After(vm.cfg.End) {
			vm.finished = true
			return
		}

		vm.trades = vm.trades[:0]
		vm.meta = make(map[int32]*tradeMeta)
		vm.closedMeta = make(map[int32]*tradeMeta)
		vm.secondary = nil
		vm.secondaryIdx = nil
		vm.tickIndex = 0
		vm.haveLastTick = false

		leadingStock, leading, ok := vm.loadDay(vm.cfg.LeadingPair)
		if !ok {
			continue
		}
		vm.leadingStock = leadingStock
		vm.leadingTicks = leading.Ticks()

		sufficient := true
		for _, pair := range vm.cfg.SecondaryPairs {
			_, day, ok := vm.loadDay(pair)
			if !ok {
				sufficient = false
				break
			}
			vm.secondary = append(vm.secondary, day)
			vm.secondaryIdx = append(vm.secondaryIdx, 0)
		}
		if !sufficient {
			continue
		}

		if vm.cfg.FromHour > 0 {
			for vm.tickIndex < len(vm.leadingTicks) {
				tick := vm.leadingTicks[vm.tickIndex]
				if tick.Time.UTC().Hour() >= vm.cfg.FromHour {
					break
				}
				vm.lastTick = tick
				vm.haveLastTick = true
				vm.tickIndex++
			}
		}

		vm.logger.Info("replay day prepared",
			zap.Stringer("date", vm.date),
			zap.Int("ticks", len(vm.leadingTicks)),
			zap.Int("starting_at", vm.tickIndex))
		return
	}
}

// loadDay reads one instrument's persisted day. A missing or thin day
// advances the replay date.
func (vm *VirtualMarket) loadDay(pair string) (*store.Stock, *store.TradingDay, bool) {
	stock := store.NewStock(vm.logger, pair, vm.cfg.DataDir, false)
	day, ok := stock.GetTradingDay(vm.date, false)
	if !ok || len(day.Ticks()) <= vm.cfg.MinTicksPerDay {
		count := 0
		if ok {
			count = len(day.Ticks())
		}
		vm.logger.Warn("not enough ticks, skipping day",
			zap.String("pair", pair),
			zap.Stringer("date", vm.date),
			zap.Int("ticks", count))
		vm.date = vm.date.Next()
		return nil, nil, false
	}
	return stock, day, true
}

func (vm *VirtualMarket) sendTick(pair string, tick model.Tick) {
	mid, _ := tick.Mid().Float64()
	vm.lastKnown[pair] = mid
	vm.queue.Push(fmt.Sprintf("T VM %s %s %s %d", pair, tick.Bid, tick.Ask, tick.Time.Unix()))
}

func (vm *VirtualMarket) lastKnownPrice(pair string) float64 {
	if price, ok := vm.lastKnown[pair]; ok {
		return price
	}
	return nan()
}

// orderState mirrors the terminal's order snapshot fields.
type orderState struct {
	Pair       string  `json:"pair"`
	Type       int     `json:"type"`
	TicketID   int32   `json:"ticket_id"`
	OpenPrice  float64 `json:"open_price"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	OpenTime   int64   `json:"open_time"`
	ExpireTime int64   `json:"expire_time"`
	Lots       float64 `json:"lots"`
	Profit     float64 `json:"profit"`
}

// publishGeneralInfo precedes every tick with the account state and the
// open-order snapshot, the same sequence a live terminal produces. The
// account message carries the running replay results instead of balances.
func (vm *VirtualMarket) publishGeneralInfo() {
	vm.queue.Push(fmt.Sprintf("A VM 0 %v %v %v",
		vm.totalProfitPips, float64(vm.wonTrades), float64(vm.lostTrades)))

	orders := make([]orderState, 0, len(vm.trades))
	for _, trade := range vm.trades {
		openPrice, _ := trade.OrderPrice.Float64()
		takeProfit, _ := trade.TakeProfit.Float64()
		stopLoss, _ := trade.StopLoss.Float64()
		lots, _ := trade.LotSize.Float64()
		profit, _ := trade.ProfitAtTick(vm.lastTick).Div(fixed.OnePip).Float64()

		var openTime int64
		if meta, ok := vm.meta[trade.TicketID]; ok {
			openTime = meta.openedAt.Unix()
		}

		orders = append(orders, orderState{
			Pair:       trade.CurrencyPair,
			Type:       tradeTypeCode(trade.Type),
			TicketID:   trade.TicketID,
			OpenPrice:  openPrice,
			TakeProfit: takeProfit,
			StopLoss:   stopLoss,
			OpenTime:   openTime,
			Lots:       lots,
			Profit:     profit,
		})
	}

	payload, err := json.Marshal(orders)
	if err != nil {
		vm.logger.Warn("unable to encode order snapshot", zap.Error(err))
		return
	}
	vm.queue.Push(fmt.Sprintf("O VM %s", payload))
}

func tradeTypeCode(t model.TradeType) int {
	if t == model.TradeSell {
		return 1
	}
	return 0
}
