// Package performance computes trade-level and equity-curve-level
// metrics from a completed backtest run: total/annualized return, CAGR,
// Sharpe, Sortino, max drawdown, win rate, and profit factor.
package performance

import (
	"math"

	"sepa-engine/portfolio"
)

const (
	tradingDaysPerYear  = 252
	defaultRiskFreeRate = 0.04
)

// Metrics is the outbound metrics object of §6's Result record.
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	CAGR             float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	FinalValue       float64
}

// Calculator computes the metrics object from trades, an equity curve,
// and the run's initial capital.
type Calculator struct {
	RiskFreeRate float64
}

// NewCalculator returns a Calculator using the default annual risk-free
// rate.
func NewCalculator() *Calculator {
	return &Calculator{RiskFreeRate: defaultRiskFreeRate}
}

// CalculateAll computes every metric in one pass.
func (c *Calculator) CalculateAll(trades []portfolio.Trade, equityCurve []float64, initialCapital float64) Metrics {
	total := c.TotalReturn(equityCurve, initialCapital)
	final := 0.0
	if len(equityCurve) > 0 {
		final = equityCurve[len(equityCurve)-1]
	}
	wins, losses := 0, 0
	for _, t := range trades {
		if t.IsWinner() {
			wins++
		} else {
			losses++
		}
	}
	return Metrics{
		TotalReturn:      total,
		AnnualizedReturn: c.AnnualizedReturn(equityCurve, initialCapital),
		CAGR:             c.CAGR(equityCurve, initialCapital),
		SharpeRatio:      c.SharpeRatio(equityCurve),
		SortinoRatio:     c.SortinoRatio(equityCurve),
		MaxDrawdown:      c.MaxDrawdown(equityCurve),
		WinRate:          c.WinRate(trades),
		ProfitFactor:     c.ProfitFactor(trades),
		TotalTrades:      len(trades),
		WinningTrades:    wins,
		LosingTrades:     losses,
		FinalValue:       final,
	}
}

// TotalReturn is equity[-1]/initial_capital - 1; 0 if the curve is empty.
func (c *Calculator) TotalReturn(equityCurve []float64, initialCapital float64) float64 {
	if len(equityCurve) == 0 || initialCapital == 0 {
		return 0
	}
	return equityCurve[len(equityCurve)-1]/initialCapital - 1
}

// AnnualizedReturn is (1+total_return)^(252/n) - 1.
func (c *Calculator) AnnualizedReturn(equityCurve []float64, initialCapital float64) float64 {
	n := len(equityCurve)
	if n == 0 {
		return 0
	}
	total := c.TotalReturn(equityCurve, initialCapital)
	return math.Pow(1+total, float64(tradingDaysPerYear)/float64(n)) - 1
}

// CAGR is (final/initial)^(252/n) - 1, zero-guarded for non-positive
// initial capital or an empty curve.
func (c *Calculator) CAGR(equityCurve []float64, initialCapital float64) float64 {
	n := len(equityCurve)
	if n == 0 || initialCapital <= 0 {
		return 0
	}
	final := equityCurve[n-1]
	return math.Pow(final/initialCapital, float64(tradingDaysPerYear)/float64(n)) - 1
}

func dailyReturns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equityCurve[i]-prev)/prev)
	}
	return out
}

func meanOf(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func stdevOf(series []float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	m := meanOf(series)
	var sumSq float64
	for _, v := range series {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// SharpeRatio is mean(r - rf_daily)/stdev(r - rf_daily) * sqrt(252); 0 if
// the series is empty or its stdev is 0.
func (c *Calculator) SharpeRatio(equityCurve []float64) float64 {
	returns := dailyReturns(equityCurve)
	if len(returns) == 0 {
		return 0
	}
	rfDaily := c.RiskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfDaily
	}
	sd := stdevOf(excess)
	if sd == 0 {
		return 0
	}
	return meanOf(excess) / sd * math.Sqrt(tradingDaysPerYear)
}

// SortinoRatio is the same computation as Sharpe but using the stdev of
// only the negative excess returns; 0 if there is no downside.
func (c *Calculator) SortinoRatio(equityCurve []float64) float64 {
	returns := dailyReturns(equityCurve)
	if len(returns) == 0 {
		return 0
	}
	rfDaily := c.RiskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - rfDaily
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	sd := stdevOf(downside)
	if sd == 0 {
		return 0
	}
	return meanOf(excess) / sd * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown is max over i of (peak_i - equity_i)/peak_i, reported as
// an absolute value.
func (c *Calculator) MaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}
	peak := equityCurve[0]
	maxDD := 0.0
	for _, v := range equityCurve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}

// WinRate is |winners|/|trades|; 0 if no trades.
func (c *Calculator) WinRate(trades []portfolio.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.IsWinner() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// ProfitFactor is gross profit / |gross loss|; +Inf if there are no
// losses but some profit; 0 if there are no profits.
func (c *Calculator) ProfitFactor(trades []portfolio.Trade) float64 {
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.ProfitLoss > 0 {
			grossProfit += t.ProfitLoss
		} else {
			grossLoss += -t.ProfitLoss
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}
