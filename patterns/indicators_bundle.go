package patterns

import (
	"math"

	"sepa-engine/indicators"
	"sepa-engine/marketdata"
)

// Indicators bundles the pre-computed indicator columns every detector
// needs, so the scanner computes them once per symbol rather than each
// detector recomputing its own SMA passes.
type Indicators struct {
	SMA50       []float64
	SMA150      []float64
	SMA200      []float64
	High52w     []float64
	Low52w      []float64
	VolumeAvg50 []float64
	ATR14       []float64
	// MansfieldRS is nil when no benchmark panel was supplied; criterion
	// 8 of the Trend Template is then skipped rather than failed.
	MansfieldRS []float64
}

// BuildIndicators computes the shared indicator bundle for one panel,
// optionally against a benchmark panel for Mansfield RS.
func BuildIndicators(panel *marketdata.PricePanel, benchmark *marketdata.PricePanel) *Indicators {
	closes := panel.Closes()
	highs := panel.Highs()
	lows := panel.Lows()
	vols := panel.Volumes()

	ind := &Indicators{
		SMA50:       indicators.SMA(closes, 50),
		SMA150:      indicators.SMA(closes, 150),
		SMA200:      indicators.SMA(closes, 200),
		High52w:     indicators.RollingHigh(highs, 252),
		Low52w:      indicators.RollingLow(lows, 252),
		VolumeAvg50: indicators.VolumeAvg(vols, 50),
		ATR14:       indicators.ATR(highs, lows, closes, 14),
	}
	if benchmark != nil {
		symDates := dateStrings(panel.Dates())
		benchDates := dateStrings(benchmark.Dates())
		alignedDates, symAligned, benchAligned := indicators.AlignOnCommonDates(symDates, closes, benchDates, benchmark.Closes())
		rs := indicators.MansfieldRS(symAligned, benchAligned, 252)
		ind.MansfieldRS = reindexToSymbol(symDates, alignedDates, rs)
	}
	return ind
}

func dateStrings(dates []marketdata.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

// reindexToSymbol maps an aligned (common-date) series back onto the
// symbol's original date axis; positions with no common-date value are
// left as NaN.
func reindexToSymbol(symDates, alignedDates []string, aligned []float64) []float64 {
	out := make([]float64, len(symDates))
	for i := range out {
		out[i] = math.NaN()
	}
	pos := make(map[string]int, len(alignedDates))
	for i, d := range alignedDates {
		pos[d] = i
	}
	for i, d := range symDates {
		if j, ok := pos[d]; ok {
			out[i] = aligned[j]
		}
	}
	return out
}
