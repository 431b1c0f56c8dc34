// Package patterns implements the six chart-pattern detectors of the
// trend-following methodology: Trend Template, VCP, Cup-and-Handle,
// Double Bottom, High-Tight Flag, and Weinstein Stage. Every detector
// shares the same contract: detect(symbol, panel) -> PatternResult?,
// side-effect free, tolerant of short panels, deterministic.
package patterns

import (
	"math"

	"sepa-engine/marketdata"
)

// PatternType tags which detector produced a PatternResult.
type PatternType string

const (
	TrendTemplate  PatternType = "TREND_TEMPLATE"
	VCP            PatternType = "VCP"
	CupForming     PatternType = "CUP_FORMING"
	CupAndHandle   PatternType = "CUP_AND_HANDLE"
	DoubleBottom   PatternType = "DOUBLE_BOTTOM"
	HighTightFlag  PatternType = "HIGH_TIGHT_FLAG"
	WeinsteinStage PatternType = "WEINSTEIN_STAGE"
)

// Meta is the common erased view over a detector's pattern-specific
// numeric fields. Each detector has its own concrete meta struct rather
// than a dynamic map, since the field set is known at compile time.
type Meta interface {
	patternMeta()
}

// PatternResult is an immutable detection emitted by a single detector
// on a single symbol at a single date.
type PatternResult struct {
	PatternType        PatternType
	Symbol             string
	DetectionDate      marketdata.Date
	ConfidenceScore    float64
	Confirmed          bool
	MeetsTrendTemplate bool
	WeinsteinStageNum  int // -1 if not applicable
	Meta               Meta
}

// Detector is the shared contract every pattern detector implements.
type Detector interface {
	Name() string
	Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult
}

// FindLocalExtrema returns the indices of local maxima and minima in
// series: i is a local max iff series[i] > series[i-k] and
// series[i] > series[i+k] for every k in [1, order]; symmetric for
// minima. Indices within `order` of either edge can never qualify.
func FindLocalExtrema(series []float64, order int) (maxima, minima []int) {
	n := len(series)
	for i := order; i < n-order; i++ {
		isMax := true
		isMin := true
		for k := 1; k <= order; k++ {
			if !(series[i] > series[i-k] && series[i] > series[i+k]) {
				isMax = false
			}
			if !(series[i] < series[i-k] && series[i] < series[i+k]) {
				isMin = false
			}
			if !isMax && !isMin {
				break
			}
		}
		if isMax {
			maxima = append(maxima, i)
		}
		if isMin {
			minima = append(minima, i)
		}
	}
	return maxima, minima
}

// calculateSlope is an ordinary-least-squares slope over the index axis
// 0..len(series)-1. No detector in this package calls it.
func calculateSlope(series []float64) float64 {
	n := len(series)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// isVolumeDryingUp compares the mean volume of the most recent window
// bars against the mean volume of the window immediately preceding it.
func isVolumeDryingUp(volume []float64, window int, thresholdRatio float64) bool {
	n := len(volume)
	if n < 2*window {
		return false
	}
	recent := mean(volume[n-window:])
	prior := mean(volume[n-2*window : n-window])
	if prior == 0 {
		return false
	}
	return recent < thresholdRatio*prior
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func maxOf(series []float64) float64 {
	m := math.Inf(-1)
	for _, v := range series {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(series []float64) float64 {
	m := math.Inf(1)
	for _, v := range series {
		if v < m {
			m = v
		}
	}
	return m
}

func argmaxIndices(series []float64, indices []int) int {
	best := indices[0]
	for _, i := range indices[1:] {
		if series[i] > series[best] {
			best = i
		}
	}
	return best
}

func isNaNAny(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func windowStart(n, maxBars int) int {
	start := n - maxBars
	if start < 0 {
		start = 0
	}
	return start
}
