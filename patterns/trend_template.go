package patterns

import "sepa-engine/marketdata"

// TrendTemplateMeta carries the numeric fields the Minervini eight-
// criterion filter evaluated.
type TrendTemplateMeta struct {
	SMA50               float64
	SMA150              float64
	SMA200              float64
	DistanceFromHighPct float64
	DistanceFromLowPct  float64
	RSChecked           bool
}

func (TrendTemplateMeta) patternMeta() {}

// TrendTemplateDetector implements the eight-criterion Minervini trend
// filter, evaluated on the panel's last bar.
type TrendTemplateDetector struct{}

func (TrendTemplateDetector) Name() string { return string(TrendTemplate) }

func (TrendTemplateDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	if n == 0 || n-21 < 0 {
		return nil
	}
	i := n - 1
	closes := panel.Closes()
	c := closes[i]

	sma50, sma150, sma200 := ind.SMA50[i], ind.SMA150[i], ind.SMA200[i]
	sma200prior := ind.SMA200[i-20]
	if isNaNAny(sma50, sma150, sma200, sma200prior) {
		return nil
	}

	// 1. close > SMA150 and close > SMA200
	if !(c > sma150 && c > sma200) {
		return nil
	}
	// 2. SMA150 > SMA200
	if !(sma150 > sma200) {
		return nil
	}
	// 3. SMA200 today > SMA200 twenty bars ago
	if !(sma200 > sma200prior) {
		return nil
	}
	// 4. SMA50 > SMA150 and SMA50 > SMA200
	if !(sma50 > sma150 && sma50 > sma200) {
		return nil
	}
	// 5. close > SMA50
	if !(c > sma50) {
		return nil
	}

	low52, high52 := ind.Low52w[i], ind.High52w[i]
	if isNaNAny(low52, high52) || low52 <= 0 || high52 <= 0 {
		return nil
	}
	// 6. close >= 1.30 * 52-week low
	if !(c >= 1.30*low52) {
		return nil
	}
	// 7. close >= 0.75 * 52-week high
	if !(c >= 0.75*high52) {
		return nil
	}

	// 8. Mansfield RS, if available, must be positive.
	rsChecked := false
	if ind.MansfieldRS != nil && i < len(ind.MansfieldRS) && !isNaNAny(ind.MansfieldRS[i]) {
		rsChecked = true
		if !(ind.MansfieldRS[i] > 0) {
			return nil
		}
	}

	confidence := 70.0
	if rsChecked {
		confidence = 90.0
	}

	return &PatternResult{
		PatternType:        TrendTemplate,
		Symbol:             symbol,
		DetectionDate:      panel.Bar(i).Date,
		ConfidenceScore:    confidence,
		Confirmed:          true,
		MeetsTrendTemplate: true,
		WeinsteinStageNum:  -1,
		Meta: TrendTemplateMeta{
			SMA50:               sma50,
			SMA150:              sma150,
			SMA200:              sma200,
			DistanceFromHighPct: (high52 - c) / high52 * 100,
			DistanceFromLowPct:  (c - low52) / low52 * 100,
			RSChecked:           rsChecked,
		},
	}
}
