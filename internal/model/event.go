package model

import "time"

type EventType uint8

const (
	NewTickEvent EventType = iota
	TimerEvent
)

// Event is a transient scheduler notification. Equality is structural, so
// the queue can deduplicate identical notifications.
type Event struct {
	Type         EventType
	CurrencyPair string
	Date         Date
	Time         time.Time
}

func NewTick(pair string, date Date, t time.Time) Event {
	return Event{Type: NewTickEvent, CurrencyPair: pair, Date: date, Time: t}
}

func (e Event) Equals(other Event) bool {
	return e.Type == other.Type &&
		e.CurrencyPair == other.CurrencyPair &&
		e.Date == other.Date &&
		e.Time.Equal(other.Time)
}

// YoungerThan orders events of compatible type and instrument by time. Events
// of different type or instrument are never ordered against each other.
func (e Event) YoungerThan(other Event) bool {
	return e.Type == other.Type &&
		e.CurrencyPair == other.CurrencyPair &&
		(e.Date.Before(other.Date) || e.Time.Before(other.Time))
}
