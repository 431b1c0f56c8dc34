package patterns

import "sepa-engine/marketdata"

const (
	cupMaxLookbackBars = 325
	cupMinSeparation   = 35
	cupMaxSeparation   = 325
	cupMinDepthPct     = 12.0
	cupMaxDepthPct     = 35.0
	cupPeakTolerance   = 10.0
	cupFormingMinBars  = 5
)

// CupMeta carries the geometry of the detected cup (and handle, if any).
type CupMeta struct {
	CupDepthPct    float64
	PeakDiffPct    float64
	CupLengthDays  int
	HandleLow      float64
	CupMidpoint    float64
	BarsAfterRight int
}

func (CupMeta) patternMeta() {}

// CupAndHandleDetector finds a rounded cup between two comparable peaks
// followed by a shallow handle pullback.
type CupAndHandleDetector struct{}

func (CupAndHandleDetector) Name() string { return string(CupAndHandle) }

func (CupAndHandleDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	if n < cupMinSeparation+2 {
		return nil
	}
	highs := panel.Highs()
	lows := panel.Lows()
	start := windowStart(n, cupMaxLookbackBars)
	highWindow := highs[start:]
	lowWindow := lows[start:]

	maxima, _ := FindLocalExtrema(highWindow, 5)
	if len(maxima) < 2 {
		return nil
	}

	leftRel, rightRel, found := bestCupPeakPair(highWindow, maxima)
	if !found {
		return nil
	}

	leftVal, rightVal := highWindow[leftRel], highWindow[rightRel]
	bottomVal := minOf(lowWindow[leftRel+1 : rightRel])
	if leftVal <= 0 {
		return nil
	}

	cupDepth := (leftVal - bottomVal) / leftVal * 100
	if cupDepth < cupMinDepthPct || cupDepth > cupMaxDepthPct {
		return nil
	}
	peakDiff := absPct(rightVal, leftVal)
	if peakDiff > cupPeakTolerance {
		return nil
	}

	lastRel := len(highWindow) - 1
	barsAfterRight := lastRel - rightRel
	cupLeftAbs := start + leftRel
	cupRightAbs := start + rightRel

	if barsAfterRight < cupFormingMinBars {
		return &PatternResult{
			PatternType:       CupForming,
			Symbol:            symbol,
			DetectionDate:     panel.Bar(n - 1).Date,
			ConfidenceScore:   60,
			Confirmed:         false,
			WeinsteinStageNum: -1,
			Meta: CupMeta{
				CupDepthPct:    cupDepth,
				PeakDiffPct:    peakDiff,
				CupLengthDays:  cupRightAbs - cupLeftAbs,
				BarsAfterRight: barsAfterRight,
			},
		}
	}

	cupMidpoint := (leftVal + bottomVal) / 2
	handleLow := minOf(lowWindow[rightRel+1:])
	if handleLow < cupMidpoint {
		return nil
	}

	return &PatternResult{
		PatternType:       CupAndHandle,
		Symbol:            symbol,
		DetectionDate:     panel.Bar(n - 1).Date,
		ConfidenceScore:   80,
		Confirmed:         true,
		WeinsteinStageNum: -1,
		Meta: CupMeta{
			CupDepthPct:    cupDepth,
			PeakDiffPct:    peakDiff,
			CupLengthDays:  cupRightAbs - cupLeftAbs,
			HandleLow:      handleLow,
			CupMidpoint:    cupMidpoint,
			BarsAfterRight: barsAfterRight,
		},
	}
}

// bestCupPeakPair picks the two highest local maxima whose separation
// lies in [cupMinSeparation, cupMaxSeparation], maximizing combined
// height among qualifying pairs.
func bestCupPeakPair(window []float64, maxima []int) (left, right int, found bool) {
	bestScore := -1.0
	for a := 0; a < len(maxima); a++ {
		for b := a + 1; b < len(maxima); b++ {
			i, j := maxima[a], maxima[b]
			sep := j - i
			if sep < cupMinSeparation || sep > cupMaxSeparation {
				continue
			}
			score := window[i] + window[j]
			if score > bestScore {
				bestScore = score
				left, right = i, j
				found = true
			}
		}
	}
	return left, right, found
}

func absPct(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / b * 100
}
