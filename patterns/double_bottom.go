package patterns

import "sepa-engine/marketdata"

const (
	dbMaxLookbackBars = 100
	dbMinSeparation   = 10
	dbMaxSeparation   = 50
	dbMaxDiffPct      = 5.0
)

// DoubleBottomMeta carries the geometry of the detected W-shape.
type DoubleBottomMeta struct {
	SeparationDays int
	Undercut       bool
	MiddlePeak     float64
	DiffPct        float64
}

func (DoubleBottomMeta) patternMeta() {}

// DoubleBottomDetector finds two comparable lows separated by an
// intervening rally, the classic W-bottom reversal.
type DoubleBottomDetector struct{}

func (DoubleBottomDetector) Name() string { return string(DoubleBottom) }

func (DoubleBottomDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	if n < dbMinSeparation+2 {
		return nil
	}
	lows := panel.Lows()
	highs := panel.Highs()
	start := windowStart(n, dbMaxLookbackBars)
	lowWindow := lows[start:]
	highWindow := highs[start:]

	_, minima := FindLocalExtrema(lowWindow, 5)
	if len(minima) < 2 {
		return nil
	}

	firstRel, secondRel, diffPct, found := bestDoubleBottomPair(lowWindow, minima)
	if !found {
		return nil
	}

	firstVal, secondVal := lowWindow[firstRel], lowWindow[secondRel]
	middlePeak := maxOf(highWindow[firstRel+1 : secondRel])
	undercut := secondVal < firstVal

	confidence := 75.0
	if undercut {
		confidence = 85.0
	}

	return &PatternResult{
		PatternType:       DoubleBottom,
		Symbol:            symbol,
		DetectionDate:     panel.Bar(n - 1).Date,
		ConfidenceScore:   confidence,
		Confirmed:         true,
		WeinsteinStageNum: -1,
		Meta: DoubleBottomMeta{
			SeparationDays: secondRel - firstRel,
			Undercut:       undercut,
			MiddlePeak:     middlePeak,
			DiffPct:        diffPct,
		},
	}
}

// bestDoubleBottomPair scans minima pairs in ascending order and returns
// the most recent qualifying pair (largest second index), matching the
// current, still-relevant setup rather than an older historical one.
func bestDoubleBottomPair(window []float64, minima []int) (first, second int, diffPct float64, found bool) {
	for a := 0; a < len(minima); a++ {
		for b := a + 1; b < len(minima); b++ {
			i, j := minima[a], minima[b]
			sep := j - i
			if sep < dbMinSeparation || sep > dbMaxSeparation {
				continue
			}
			if window[i] == 0 {
				continue
			}
			diff := absPct(window[j], window[i])
			if diff > dbMaxDiffPct {
				continue
			}
			if !found || j > second {
				first, second, diffPct, found = i, j, diff, true
			}
		}
	}
	return first, second, diffPct, found
}
