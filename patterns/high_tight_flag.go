package patterns

import "sepa-engine/marketdata"

const (
	htfMinPoleLenBars  = 20
	htfMaxPoleLenBars  = 40
	htfMinPoleEndOff   = 10
	htfMaxPoleEndOff   = 35
	htfPoleEndOffStep  = 5
	htfMinPriorGainPct = 100.0
	htfMaxConsolidPct  = 25.0
	htfConfidence      = 90.0
)

// HighTightFlagMeta carries the pole and flag geometry.
type HighTightFlagMeta struct {
	PriorGainPct     float64
	ConsolidationPct float64
	PoleLengthBars   int
	PoleEndOffset    int
}

func (HighTightFlagMeta) patternMeta() {}

// HighTightFlagDetector finds a near-vertical pole (>=100% gain in 4-8
// weeks) followed by a shallow flag consolidation.
type HighTightFlagDetector struct{}

func (HighTightFlagDetector) Name() string { return string(HighTightFlag) }

func (HighTightFlagDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	closes := panel.Closes()
	highs := panel.Highs()
	lows := panel.Lows()

	for poleLen := htfMinPoleLenBars; poleLen <= htfMaxPoleLenBars; poleLen++ {
		for poleEndOffset := htfMinPoleEndOff; poleEndOffset <= htfMaxPoleEndOff; poleEndOffset += htfPoleEndOffStep {
			poleEndIdx := n - 1 - poleEndOffset
			poleStartIdx := poleEndIdx - poleLen
			if poleStartIdx < 0 || poleEndIdx >= n || poleEndIdx <= poleStartIdx {
				continue
			}
			poleStartClose := closes[poleStartIdx]
			if poleStartClose <= 0 {
				continue
			}
			poleEndHigh := highs[poleEndIdx]
			gain := poleEndHigh/poleStartClose - 1
			if gain < htfMinPriorGainPct/100.0 {
				continue
			}

			flagMax := maxOf(highs[poleEndIdx:n])
			flagMin := minOf(lows[poleEndIdx:n])
			if flagMax <= 0 {
				continue
			}
			consolidation := (flagMax - flagMin) / flagMax * 100
			if consolidation > htfMaxConsolidPct {
				continue
			}

			return &PatternResult{
				PatternType:       HighTightFlag,
				Symbol:            symbol,
				DetectionDate:     panel.Bar(n - 1).Date,
				ConfidenceScore:   htfConfidence,
				Confirmed:         true,
				WeinsteinStageNum: -1,
				Meta: HighTightFlagMeta{
					PriorGainPct:     gain * 100,
					ConsolidationPct: consolidation,
					PoleLengthBars:   poleLen,
					PoleEndOffset:    poleEndOffset,
				},
			}
		}
	}
	return nil
}
