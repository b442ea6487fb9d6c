package store

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

var periodBase = time.Date(2014, time.January, 30, 12, 0, 0, 0, time.UTC)

// fixtureStock has mid prices 1, 2, 3, 4 at +0s, +10s, +20s, +30s.
func fixtureStock(t *testing.T) *Stock {
	t.Helper()
	stock := NewStock(zap.NewNop(), "EURUSD", t.TempDir(), false)
	for i, mid := range []int{1, 2, 3, 4} {
		price := fixed.FromInt(mid, 0)
		stock.ReceiveFreshTick(model.Tick{
			Time: periodBase.Add(time.Duration(i) * 10 * time.Second),
			Bid:  price,
			Ask:  price,
		})
	}
	return stock
}

func expectValue(t *testing.T, name string, got fixed.Point, ok bool, want int) {
	t.Helper()
	if !ok {
		t.Fatalf("%s: expected a value", name)
	}
	if !got.Eq(fixed.FromInt(want, 0)) {
		t.Fatalf("%s: expected %d, got %s", name, want, got)
	}
}

func TestTimePeriodAggregates(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase.Add(10*time.Second), periodBase.Add(20*time.Second))

	high, ok := period.High()
	expectValue(t, "high", high, ok, 3)
	low, ok := period.Low()
	expectValue(t, "low", low, ok, 2)
	open, ok := period.Open()
	expectValue(t, "open", open, ok, 1)
	closing, ok := period.Close()
	expectValue(t, "close", closing, ok, 3)

	average, ok := period.Average()
	if !ok {
		t.Fatal("average: expected a value")
	}
	want := fixed.FromInt(5, 0).DivInt(2)
	if !average.Eq(want) {
		t.Fatalf("average: expected %s, got %s", want, average)
	}
}

func TestTimePeriodOpenAtFirstTick(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase, periodBase.Add(20*time.Second))

	if _, ok := period.Open(); ok {
		t.Fatal("expected no open value when the window starts at the first tick")
	}
	closing, ok := period.Close()
	expectValue(t, "close", closing, ok, 3)
}

func TestTimePeriodCloseIgnoresStart(t *testing.T) {
	stock := fixtureStock(t)

	// Window strictly after the last tick still closes on the last tick.
	period := stock.TimePeriodOf(periodBase.Add(40*time.Second), periodBase.Add(50*time.Second))
	closing, ok := period.Close()
	expectValue(t, "close", closing, ok, 4)

	if _, ok := period.High(); ok {
		t.Fatal("expected no high value without in-range ticks")
	}
}

func TestTimePeriodToVector(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase, periodBase.Add(30*time.Second))

	values, ok := period.ToVector(10 * time.Second)
	if !ok {
		t.Fatal("expected a resampled vector")
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(values))
	}
	for i, want := range []int{1, 2, 3, 4} {
		if !values[i].Eq(fixed.FromInt(want, 0)) {
			t.Fatalf("sample %d: expected %d, got %s", i, want, values[i])
		}
	}
}

func TestTimePeriodToVectorHoldsLastValue(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase.Add(5*time.Second), periodBase.Add(35*time.Second))

	values, ok := period.ToVector(10 * time.Second)
	if !ok {
		t.Fatal("expected a resampled vector")
	}
	for i, want := range []int{1, 2, 3, 4} {
		if !values[i].Eq(fixed.FromInt(want, 0)) {
			t.Fatalf("sample %d: expected %d, got %s", i, want, values[i])
		}
	}
}

func TestTimePeriodRejectsCrossDayWindows(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase.Add(-24*time.Hour), periodBase.Add(30*time.Second))

	if _, ok := period.High(); ok {
		t.Fatal("expected no high value across days")
	}
	if _, ok := period.ToVector(time.Hour); ok {
		t.Fatal("expected no vector across days")
	}
	// Close only consults the day owning the end time.
	closing, ok := period.Close()
	expectValue(t, "close", closing, ok, 4)
}

func TestTimePeriodMaxTickGap(t *testing.T) {
	stock := fixtureStock(t)

	period := stock.TimePeriodOf(periodBase, periodBase.Add(30*time.Second))
	gap, ok := period.MaxTickGap()
	if !ok {
		t.Fatal("expected a gap value")
	}
	if gap != 10*time.Second {
		t.Fatalf("expected 10s gap, got %s", gap)
	}

	single := stock.TimePeriodOf(periodBase, periodBase.Add(5*time.Second))
	if _, ok := single.MaxTickGap(); ok {
		t.Fatal("expected no gap value with fewer than two ticks")
	}
}

func TestTimePeriodMutatorsRejectInversion(t *testing.T) {
	stock := fixtureStock(t)
	period := stock.TimePeriodOf(periodBase, periodBase.Add(10*time.Second))

	if period.ExpandEndTime(-20 * time.Second) {
		t.Fatal("expected inverted end expansion to be rejected")
	}
	if period.ExpandStartTime(-20 * time.Second) {
		t.Fatal("expected inverted start expansion to be rejected")
	}
	if !period.ExpandStartTime(5 * time.Second) {
		t.Fatal("expected valid start expansion to be accepted")
	}
	if !period.Start().Equal(periodBase.Add(-5 * time.Second)) {
		t.Fatalf("unexpected start after expansion: %s", period.Start())
	}

	period.Shift(time.Minute)
	if !period.End().Equal(periodBase.Add(70 * time.Second)) {
		t.Fatalf("unexpected end after shift: %s", period.End())
	}
}
