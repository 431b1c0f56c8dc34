// Package marketdata holds the panel and bar types every other package
// consumes: an ordered, date-indexed sequence of OHLCV bars per symbol.
package marketdata

import (
	"fmt"
	"sort"
	"time"
)

// Date is a calendar-only date (no time of day, no zone). Always stored
// truncated to UTC midnight so equality and ordering are well-defined.
type Date struct {
	t time.Time
}

// NewDate builds a Date from a y/m/d triple.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string, the signal key format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("marketdata: parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format("2006-01-02")
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports calendar-date equality.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays returns d shifted by n calendar days (used for holding_days math,
// not trading-day math).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysSince returns the number of calendar days between o and d (d - o).
func (d Date) DaysSince(o Date) int {
	return int(d.t.Sub(o.t).Hours() / 24)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// PriceBar is a dated OHLCV record. AdjustedClose is used only by
// indicators that compute returns; OHLCV fields are used raw.
type PriceBar struct {
	Date          Date
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	AdjustedClose float64
}

// PricePanel is an ordered sequence of PriceBar for one symbol, strictly
// increasing by trading date. It is a struct-of-arrays internally so
// indicator kernels can walk parallel float64 slices without per-row
// allocation in the hot loop.
type PricePanel struct {
	Symbol string
	bars   []PriceBar
	dates  []Date
}

// NewPricePanel builds a panel from bars already in ascending date order.
// It does not re-sort or de-duplicate; callers that cannot guarantee
// ordering should use Validate to catch it.
func NewPricePanel(symbol string, bars []PriceBar) *PricePanel {
	dates := make([]Date, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
	}
	return &PricePanel{Symbol: symbol, bars: bars, dates: dates}
}

// Len returns the number of bars in the panel.
func (p *PricePanel) Len() int { return len(p.bars) }

// Bar returns the bar at position i (O(1)).
func (p *PricePanel) Bar(i int) PriceBar { return p.bars[i] }

// Bars returns the full underlying slice; callers must not mutate it.
func (p *PricePanel) Bars() []PriceBar { return p.bars }

// Dates returns the panel's date column; callers must not mutate it.
func (p *PricePanel) Dates() []Date { return p.dates }

// Closes extracts the close column as a parallel float64 slice.
func (p *PricePanel) Closes() []float64 {
	out := make([]float64, len(p.bars))
	for i, b := range p.bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column.
func (p *PricePanel) Highs() []float64 {
	out := make([]float64, len(p.bars))
	for i, b := range p.bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column.
func (p *PricePanel) Lows() []float64 {
	out := make([]float64, len(p.bars))
	for i, b := range p.bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume column.
func (p *PricePanel) Volumes() []float64 {
	out := make([]float64, len(p.bars))
	for i, b := range p.bars {
		out[i] = b.Volume
	}
	return out
}

// IndexOf returns the position of date d via binary search, and whether
// it was found (O(log n)).
func (p *PricePanel) IndexOf(d Date) (int, bool) {
	i := sort.Search(len(p.dates), func(i int) bool {
		return !p.dates[i].Before(d)
	})
	if i < len(p.dates) && p.dates[i].Equal(d) {
		return i, true
	}
	return i, false
}

// BarOn returns the bar exactly on date d, if present.
func (p *PricePanel) BarOn(d Date) (PriceBar, bool) {
	i, ok := p.IndexOf(d)
	if !ok {
		return PriceBar{}, false
	}
	return p.bars[i], true
}

// FirstDate returns the panel's earliest date, or the zero Date if empty.
func (p *PricePanel) FirstDate() Date {
	if len(p.dates) == 0 {
		return Date{}
	}
	return p.dates[0]
}

// LastDate returns the panel's latest date, or the zero Date if empty.
func (p *PricePanel) LastDate() Date {
	if len(p.dates) == 0 {
		return Date{}
	}
	return p.dates[len(p.dates)-1]
}

// InputShapeError reports a malformed panel: missing column, non-monotonic
// dates, or negative prices. run_backtest fails the whole run before the
// daily loop starts when this is returned.
type InputShapeError struct {
	Symbol string
	Reason string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("marketdata: input shape error for %s: %s", e.Symbol, e.Reason)
}

// Validate checks the monotonic-date and non-negative-price invariants of
// §3: high >= max(open, close) >= min(open, close) >= low; volume >= 0;
// strictly increasing dates, no duplicates.
func (p *PricePanel) Validate() error {
	for i, b := range p.bars {
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
			return &InputShapeError{Symbol: p.Symbol, Reason: "negative OHLCV field"}
		}
		hi := b.Open
		if b.Close > hi {
			hi = b.Close
		}
		lo := b.Open
		if b.Close < lo {
			lo = b.Close
		}
		if b.High < hi || b.Low > lo {
			return &InputShapeError{Symbol: p.Symbol, Reason: "high/low inconsistent with open/close"}
		}
		if i > 0 && !b.Date.After(p.bars[i-1].Date) {
			return &InputShapeError{Symbol: p.Symbol, Reason: "dates not strictly increasing"}
		}
	}
	return nil
}

// UnionDates returns the sorted, de-duplicated union of dates across all
// panels, the driver of the backtest engine's daily loop.
func UnionDates(panels map[string]*PricePanel) []Date {
	seen := make(map[string]Date)
	for _, p := range panels {
		for _, d := range p.Dates() {
			seen[d.String()] = d
		}
	}
	out := make([]Date, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
