package expert

import (
	"time"

	"github.com/walachey/magicmarket-sub000/internal/indicator"
	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/store"
)

// Advisor is one trading agent driven by the market scheduler. Execute runs
// once per time step, OnNewTick once per dispatched tick event, OnNewDay on
// date rollover. AcceptNewTrade lets every advisor veto a proposed trade
// before it is sent out.
type Advisor interface {
	Name() string
	Execute(elapsed time.Duration, now time.Time)
	OnNewTick(currencyPair string, date model.Date, now time.Time)
	OnNewDay()
	AcceptNewTrade(trade *model.Trade) bool
}

// MarketAccess is the slice of the market that advisors are allowed to
// touch. Implemented by the market; an interface so advisors can be tested
// against a stub.
type MarketAccess interface {
	Stock(currencyPair string) (*store.Stock, bool)
	Indicators() *indicator.Registry

	OpenTrades() []*model.Trade
	NewTrade(trade model.Trade) bool
	UpdateTrade(trade *model.Trade)
	CloseTrade(trade *model.Trade)

	LastTickTime() time.Time

	UpdateMood(name string, mood, certainty float64)
	UpdateParameter(name string, value float64)
	Chat(name, message string)
}

// Base carries the mood and chat state shared by all advisors. Both mood
// and chat are change-only so a stable opinion does not flood the bridge.
type Base struct {
	market MarketAccess
	name   string

	lastMessage   string
	lastMood      float64
	lastCertainty float64
}

func NewBase(market MarketAccess, name string) Base {
	return Base{market: market, name: name}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Market() MarketAccess { return b.market }

func (b *Base) Execute(elapsed time.Duration, now time.Time) {}

func (b *Base) OnNewTick(currencyPair string, date model.Date, now time.Time) {}

func (b *Base) OnNewDay() {}

func (b *Base) AcceptNewTrade(trade *model.Trade) bool { return true }

func (b *Base) LastMood() (mood, certainty float64) {
	return b.lastMood, b.lastCertainty
}

// SetMood broadcasts the advisor's opinion, mood in [-1, 1] (buy positive)
// and certainty in [0, 1]. Repeated identical opinions are not re-sent.
func (b *Base) SetMood(mood, certainty float64) {
	if mood == b.lastMood && certainty == b.lastCertainty {
		return
	}
	b.lastMood = mood
	b.lastCertainty = certainty
	b.market.UpdateMood(b.name, mood, certainty)
}

// Say emits a chat message, suppressing immediate repeats.
func (b *Base) Say(message string) {
	if message == b.lastMessage {
		return
	}
	b.lastMessage = message
	b.market.Chat(b.name, message)
}
