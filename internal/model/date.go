package model

import (
	"fmt"
	"time"
)

// Date identifies one calendar day in UTC. Trading days and their persisted
// tick logs are keyed by it.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	year, month, day := t.UTC().Date()
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) Next() Date {
	return DateOf(d.StartOfDay().Add(24 * time.Hour))
}

func (d Date) StartOfDay() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool {
	return d.StartOfDay().Before(other.StartOfDay())
}

func (d Date) After(other Date) bool {
	return d.StartOfDay().After(other.StartOfDay())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// String matches the tick log file name scheme, e.g. "2014-1-30".
func (d Date) String() string {
	return fmt.Sprintf("%d-%d-%d", d.Year, int(d.Month), d.Day)
}
