// Package indicators computes pure technical indicator columns over a
// price panel: SMA, EMA, RSI, MACD, ATR, 52-week high/low, rolling
// volume average, and Mansfield relative strength against a benchmark.
//
// Every kernel returns a slice the same length as its input, with
// leading positions set to math.NaN() until the warm-up window is
// satisfied. Downstream consumers must treat NaN as "absent", never as
// zero.
package indicators

import "math"

// SMA computes the simple moving average over a window of p bars.
// y[i] = mean(close[i-p+1..i]) for i >= p-1; NaN otherwise.
func SMA(series []float64, p int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || len(series) < p {
		return out
	}
	sum := 0.0
	for i := 0; i < p; i++ {
		sum += series[i]
	}
	out[p-1] = sum / float64(p)
	for i := p; i < len(series); i++ {
		sum = sum - series[i-p] + series[i]
		out[i] = sum / float64(p)
	}
	return out
}

// EMA computes the exponential moving average with span p.
// y[0] = close[0]; y[i] = alpha*close[i] + (1-alpha)*y[i-1], alpha = 2/(p+1).
func EMA(series []float64, p int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	alpha := 2.0 / (float64(p) + 1.0)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rma is Wilder's smoothing (running moving average), the basis of RSI
// (ATR uses a plain SMA of true range instead): seeded by a plain SMA over the first period bars, then
// alpha = 1/period thereafter.
func rma(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(series) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += series[i]
	}
	out[period-1] = sum / float64(period)
	alpha := 1.0 / float64(period)
	for i := period; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the 14-period Relative Strength Index using Wilder
// smoothing of gains vs losses. Range [0,100]; undefined for the first
// 14 bars.
func RSI(close []float64, period int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(close) < period+1 {
		return out
	}
	gains := make([]float64, len(close))
	losses := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		delta := close[i] - close[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := rma(gains[1:], period)
	avgLoss := rma(losses[1:], period)
	for i := period; i < len(close); i++ {
		ag := avgGain[i-1]
		al := avgLoss[i-1]
		if math.IsNaN(ag) || math.IsNaN(al) {
			continue
		}
		if al == 0 {
			if ag == 0 {
				out[i] = 50
			} else {
				out[i] = 100
			}
			continue
		}
		rs := ag / al
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult holds the three MACD(12,26,9) columns.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes macd = EMA(fast) - EMA(slow); signal = EMA(signalPeriod)
// of macd; hist = macd - signal.
func MACD(close []float64, fast, slow, signalPeriod int) MACDResult {
	emaFast := EMA(close, fast)
	emaSlow := EMA(close, slow)
	macd := make([]float64, len(close))
	for i := range close {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal := EMA(macd, signalPeriod)
	hist := make([]float64, len(close))
	for i := range close {
		hist[i] = macd[i] - signal[i]
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: hist}
}

// TrueRange computes TR[i] = max(H-L, |H-Cprev|, |L-Cprev|); TR[0] = H-L
// (no previous close).
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the Average True Range as the SMA(period) of true range.
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	return SMA(tr, period)
}

// RollingHigh computes the rolling maximum over window bars, with
// min_periods=1 (partial windows allowed at the start).
func RollingHigh(series []float64, window int) []float64 {
	return rollingExtreme(series, window, true)
}

// RollingLow computes the rolling minimum over window bars, with
// min_periods=1.
func RollingLow(series []float64, window int) []float64 {
	return rollingExtreme(series, window, false)
}

func rollingExtreme(series []float64, window int, isMax bool) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		best := series[lo]
		for j := lo + 1; j <= i; j++ {
			if (isMax && series[j] > best) || (!isMax && series[j] < best) {
				best = series[j]
			}
		}
		out[i] = best
	}
	return out
}

// VolumeAvg computes the SMA(period) of the volume column. The pattern
// indicator bundle calls it with period 50.
func VolumeAvg(volume []float64, period int) []float64 {
	return SMA(volume, period)
}

// MansfieldRS computes symbol relative strength against a benchmark on
// common dates: RP = S/B; SMA252(RP); RS = (RP/SMA252(RP) - 1) * 10.
// symbolClose and benchClose must already be aligned to the same date
// axis (same length, position i is the same calendar date in both);
// callers are responsible for that alignment (AlignOnCommonDates
// produces such inputs).
func MansfieldRS(symbolClose, benchClose []float64, window int) []float64 {
	n := len(symbolClose)
	rp := make([]float64, n)
	for i := 0; i < n; i++ {
		if benchClose[i] == 0 {
			rp[i] = math.NaN()
			continue
		}
		rp[i] = symbolClose[i] / benchClose[i]
	}
	smaRP := SMA(rp, window)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(rp[i]) || math.IsNaN(smaRP[i]) || smaRP[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (rp[i]/smaRP[i] - 1) * 10
	}
	return out
}

// AlignOnCommonDates intersects two date-keyed series by date string and
// returns the aligned close columns plus the shared date axis, in
// ascending order. Used to prepare MansfieldRS inputs.
func AlignOnCommonDates(symDates []string, symClose []float64, benchDates []string, benchClose []float64) (dates []string, sym []float64, bench []float64) {
	benchIdx := make(map[string]int, len(benchDates))
	for i, d := range benchDates {
		benchIdx[d] = i
	}
	for i, d := range symDates {
		if j, ok := benchIdx[d]; ok {
			dates = append(dates, d)
			sym = append(sym, symClose[i])
			bench = append(bench, benchClose[j])
		}
	}
	return dates, sym, bench
}
