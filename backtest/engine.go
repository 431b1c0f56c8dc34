// Package backtest implements the positions-first daily event loop: a
// deterministic simulation that marks open positions to market, evaluates
// exits, snapshots equity, and admits new entries, in that strict order,
// for every trading date in the input panels.
package backtest

import (
	"fmt"
	"log"
	"math"
	"sort"

	"sepa-engine/indicators"
	"sepa-engine/marketdata"
	"sepa-engine/portfolio"
	"sepa-engine/risk"
)

var logger = log.New(log.Writer(), "backtest: ", log.LstdFlags)

// Signal is a buy candidate for one date, produced by the scanner layer.
// The engine is agnostic to which detector produced it.
type Signal struct {
	Date       marketdata.Date
	Symbol     string
	Confidence float64
}

// Config holds the engine-level knobs not owned by the risk manager.
type Config struct {
	InitialCapital float64
	MaxPositions   int
}

// NewDefaultConfig returns a reasonable starting configuration.
func NewDefaultConfig() Config {
	return Config{InitialCapital: 100000, MaxPositions: 20}
}

// Result is the outbound record of a completed backtest run.
type Result struct {
	Trades        []portfolio.Trade
	EquityCurve   []float64
	OpenPositions []*portfolio.Position
}

// Engine owns a Portfolio for the duration of one run. It must not be
// shared across goroutines, and a single run is never parallelized
// internally.
type Engine struct {
	Config      Config
	RiskManager *risk.Manager
	Portfolio   *portfolio.Portfolio

	// atrCache holds the lazily-computed ATR(14) column per symbol,
	// recomputed once a panel first reaches 14 bars.
	atrCache map[string][]float64
}

// NewEngine builds an Engine with a fresh portfolio seeded at the
// configured initial capital.
func NewEngine(cfg Config, rm *risk.Manager) *Engine {
	return &Engine{
		Config:      cfg,
		RiskManager: rm,
		Portfolio:   portfolio.NewPortfolio(cfg.InitialCapital),
		atrCache:    make(map[string][]float64),
	}
}

// Run replays the daily loop over the union of dates across priceData,
// filtered to [start, end], consuming signals keyed by YYYY-MM-DD. It
// validates every panel's shape before the loop starts (InputShape is
// fatal); everything else the loop tolerates per the error handling
// design (DataGap, IndicatorWarmup, InsufficientCash, DrawdownGate).
func (e *Engine) Run(priceData map[string]*marketdata.PricePanel, signals map[string][]Signal, start, end *marketdata.Date) (*Result, error) {
	for symbol, panel := range priceData {
		if err := panel.Validate(); err != nil {
			return nil, fmt.Errorf("backtest: %s: %w", symbol, err)
		}
	}

	dates := marketdata.UnionDates(priceData)
	dates = filterDateRange(dates, start, end)

	for _, d := range dates {
		e.processDay(d, priceData, signals[d.String()])
	}

	open := e.Portfolio.OrderedPositions()
	return &Result{
		Trades:        e.Portfolio.Trades,
		EquityCurve:   e.Portfolio.EquityCurve,
		OpenPositions: open,
	}, nil
}

func filterDateRange(dates []marketdata.Date, start, end *marketdata.Date) []marketdata.Date {
	if start == nil && end == nil {
		return dates
	}
	out := dates[:0:0]
	for _, d := range dates {
		if start != nil && d.Before(*start) {
			continue
		}
		if end != nil && d.After(*end) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// processDay executes the (a)->(b)->(c)->(d) ordering for one trading
// date. This ordering is load-bearing; do not reorder.
func (e *Engine) processDay(d marketdata.Date, priceData map[string]*marketdata.PricePanel, daySignals []Signal) {
	e.markToMarket(d, priceData)
	e.evaluateExits(d, priceData)
	portfolioValue := e.Portfolio.SnapshotEquity()
	if len(daySignals) > 0 {
		e.admitEntries(d, priceData, daySignals, portfolioValue)
	}
}

// markToMarket is step (a): for every open position whose panel has a
// bar on d, refresh current_price/current_date, lazily refresh ATR(14),
// and update the trailing stop. Positions with no bar on d (DataGap) are
// left untouched: previous price and stop are retained.
func (e *Engine) markToMarket(d marketdata.Date, priceData map[string]*marketdata.PricePanel) {
	for _, pos := range e.Portfolio.OrderedPositions() {
		panel, ok := priceData[pos.Symbol]
		if !ok {
			continue
		}
		idx, ok := panel.IndexOf(d)
		if !ok {
			continue
		}
		bar := panel.Bar(idx)
		pos.UpdatePrice(bar.Close, d)

		atr := math.NaN()
		if idx+1 >= 14 {
			atr = e.atrAt(pos.Symbol, panel, idx)
		}
		pos.StopLoss = e.RiskManager.UpdateTrailingStop(pos.EntryPrice, pos.StopLoss, bar.Close, atr)
	}
}

// atrAt returns ATR(14) at position idx for symbol's panel, computing
// and caching the full column the first time it is needed.
func (e *Engine) atrAt(symbol string, panel *marketdata.PricePanel, idx int) float64 {
	col, ok := e.atrCache[symbol]
	if !ok || len(col) != panel.Len() {
		col = indicators.ATR(panel.Highs(), panel.Lows(), panel.Closes(), 14)
		e.atrCache[symbol] = col
	}
	if idx >= len(col) {
		return math.NaN()
	}
	return col[idx]
}

// evaluateExits is step (b): iterate open positions in deterministic
// (insertion) order; stop-loss takes precedence over take-profit when
// both trigger on the same bar; at most one exit per position per day.
func (e *Engine) evaluateExits(d marketdata.Date, priceData map[string]*marketdata.PricePanel) {
	for _, pos := range e.Portfolio.OrderedPositions() {
		switch {
		case pos.CurrentPrice <= pos.StopLoss:
			e.Portfolio.ClosePosition(pos.Symbol, d, pos.CurrentPrice, portfolio.ExitStopLoss)
		case pos.CurrentPrice >= pos.TakeProfit:
			e.Portfolio.ClosePosition(pos.Symbol, d, pos.CurrentPrice, portfolio.ExitTakeProfit)
		}
	}
}

// admitEntries is step (d): sort today's signals by confidence
// descending with a stable symbol tie-break, then admit in order subject
// to the position cap, the drawdown gate, and cash availability.
func (e *Engine) admitEntries(d marketdata.Date, priceData map[string]*marketdata.PricePanel, daySignals []Signal, portfolioValue float64) {
	ordered := make([]Signal, len(daySignals))
	copy(ordered, daySignals)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	currentDrawdown := e.Portfolio.CurrentDrawdown(portfolioValue)

	for _, sig := range ordered {
		if len(e.Portfolio.Positions) >= e.Config.MaxPositions {
			break
		}
		if e.RiskManager.CheckDrawdownLimit(currentDrawdown) {
			break
		}
		if _, open := e.Portfolio.Positions[sig.Symbol]; open {
			continue
		}
		panel, ok := priceData[sig.Symbol]
		if !ok {
			continue
		}
		idx, ok := panel.IndexOf(d)
		if !ok {
			continue
		}
		bar := panel.Bar(idx)
		entry := bar.Close
		stop := e.RiskManager.InitialStop(entry)
		tp := e.RiskManager.TakeProfit(entry)

		shares := e.RiskManager.PositionSize(portfolioValue, entry, stop)
		if shares <= 0 {
			continue
		}
		cost := float64(shares) * entry
		if cost > e.Portfolio.Cash {
			shares = int(math.Floor(e.Portfolio.Cash / entry))
			if shares <= 0 {
				continue
			}
		}

		pos := &portfolio.Position{
			Symbol:       sig.Symbol,
			Shares:       shares,
			EntryPrice:   entry,
			EntryDate:    d,
			StopLoss:     stop,
			TakeProfit:   tp,
			CurrentPrice: entry,
			CurrentDate:  d,
		}
		e.Portfolio.OpenPosition(pos)
	}
}
