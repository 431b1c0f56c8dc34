// Package portfolio holds the position/trade entities and the engine's
// running account state: open positions, closed trades, and the equity
// curve.
package portfolio

import "sepa-engine/marketdata"

// ExitReason classifies why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitTrailing   ExitReason = "TRAILING_STOP"
	ExitSignal     ExitReason = "SIGNAL"
)

// Position is a live, mutable open position. It is created on entry,
// mutated daily by mark-to-market, and destroyed on exit.
type Position struct {
	Symbol       string
	Shares       int
	EntryPrice   float64
	EntryDate    marketdata.Date
	StopLoss     float64
	TakeProfit   float64
	CurrentPrice float64
	CurrentDate  marketdata.Date
}

// CostBasis is shares * entry_price.
func (p *Position) CostBasis() float64 { return float64(p.Shares) * p.EntryPrice }

// CurrentValue is shares * current_price.
func (p *Position) CurrentValue() float64 { return float64(p.Shares) * p.CurrentPrice }

// UnrealizedPnL is current_value - cost_basis.
func (p *Position) UnrealizedPnL() float64 { return p.CurrentValue() - p.CostBasis() }

// UnrealizedPnLPct is unrealized pnl as a fraction of cost basis; 0 if
// cost basis is 0 (should not happen for shares > 0, but guarded anyway).
func (p *Position) UnrealizedPnLPct() float64 {
	cb := p.CostBasis()
	if cb == 0 {
		return 0
	}
	return p.UnrealizedPnL() / cb
}

// UpdatePrice marks the position to the given price/date. Callers are
// responsible for updating StopLoss separately via the risk manager.
func (p *Position) UpdatePrice(price float64, date marketdata.Date) {
	p.CurrentPrice = price
	p.CurrentDate = date
}

// Trade is an immutable record created when a Position is closed.
type Trade struct {
	Symbol        string
	EntryDate     marketdata.Date
	EntryPrice    float64
	ExitDate      marketdata.Date
	ExitPrice     float64
	Shares        int
	ProfitLoss    float64
	ProfitLossPct float64
	ExitReason    ExitReason
}

// HoldingDays is the calendar-day span between entry and exit.
func (t Trade) HoldingDays() int { return t.ExitDate.DaysSince(t.EntryDate) }

// IsWinner reports whether the trade closed profitably.
func (t Trade) IsWinner() bool { return t.ProfitLoss > 0 }

// NewTrade closes out a position into an immutable Trade record at the
// given exit price/date/reason.
func NewTrade(p *Position, exitDate marketdata.Date, exitPrice float64, reason ExitReason) Trade {
	pnl := (exitPrice - p.EntryPrice) * float64(p.Shares)
	pnlPct := 0.0
	if p.EntryPrice != 0 {
		pnlPct = (exitPrice - p.EntryPrice) / p.EntryPrice
	}
	return Trade{
		Symbol:        p.Symbol,
		EntryDate:     p.EntryDate,
		EntryPrice:    p.EntryPrice,
		ExitDate:      exitDate,
		ExitPrice:     exitPrice,
		Shares:        p.Shares,
		ProfitLoss:    pnl,
		ProfitLossPct: pnlPct,
		ExitReason:    reason,
	}
}

// Portfolio is the engine's process-lifetime account state: cash, open
// positions keyed by symbol (at most one per symbol), the append-only
// trade log, and the daily equity curve with its running peak.
type Portfolio struct {
	Cash        float64
	Positions   map[string]*Position
	positionOrd []string // insertion order, for deterministic iteration
	Trades      []Trade
	EquityCurve []float64
	PeakEquity  float64
}

// NewPortfolio starts a portfolio with the given initial cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		Cash:      initialCash,
		Positions: make(map[string]*Position),
	}
}

// OpenPosition adds a new position, debits cash, and records insertion
// order. Caller must have already verified symbol is not already open.
func (pf *Portfolio) OpenPosition(p *Position) {
	pf.Positions[p.Symbol] = p
	pf.positionOrd = append(pf.positionOrd, p.Symbol)
	pf.Cash -= p.CostBasis()
}

// ClosePosition removes a position, credits cash at the exit price, and
// appends the resulting Trade.
func (pf *Portfolio) ClosePosition(symbol string, exitDate marketdata.Date, exitPrice float64, reason ExitReason) Trade {
	p := pf.Positions[symbol]
	trade := NewTrade(p, exitDate, exitPrice, reason)
	pf.Cash += float64(p.Shares) * exitPrice
	pf.Trades = append(pf.Trades, trade)
	delete(pf.Positions, symbol)
	for i, s := range pf.positionOrd {
		if s == symbol {
			pf.positionOrd = append(pf.positionOrd[:i], pf.positionOrd[i+1:]...)
			break
		}
	}
	return trade
}

// OrderedPositions returns open positions in insertion order, the
// deterministic iteration order required by the exit-evaluation step.
func (pf *Portfolio) OrderedPositions() []*Position {
	out := make([]*Position, 0, len(pf.positionOrd))
	for _, s := range pf.positionOrd {
		out = append(out, pf.Positions[s])
	}
	return out
}

// TotalEquity is cash + sum of open positions' current value.
func (pf *Portfolio) TotalEquity() float64 {
	total := pf.Cash
	for _, p := range pf.Positions {
		total += p.CurrentValue()
	}
	return total
}

// SnapshotEquity appends the current total equity to the curve and
// advances PeakEquity monotonically.
func (pf *Portfolio) SnapshotEquity() float64 {
	value := pf.TotalEquity()
	pf.EquityCurve = append(pf.EquityCurve, value)
	if value > pf.PeakEquity {
		pf.PeakEquity = value
	}
	return value
}

// CurrentDrawdown is (peak - value)/peak, clamped to 0 if peak <= 0.
func (pf *Portfolio) CurrentDrawdown(value float64) float64 {
	if pf.PeakEquity <= 0 {
		return 0
	}
	dd := (pf.PeakEquity - value) / pf.PeakEquity
	if dd < 0 {
		return 0
	}
	return dd
}
