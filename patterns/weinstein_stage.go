package patterns

import "sepa-engine/marketdata"

const (
	weinsteinMAPeriod     = 150
	weinsteinSlopeWindow  = 20
	weinsteinMinBars      = 170
	weinsteinChangeThresh = 0.5
)

// WeinsteinMeta carries the moving-average change that drove the stage
// classification.
type WeinsteinMeta struct {
	MAChangePct float64
	MA150       float64
}

func (WeinsteinMeta) patternMeta() {}

// WeinsteinStageDetector classifies a security's long-term trend into
// one of Stan Weinstein's four stages (or a transitional stage 0).
type WeinsteinStageDetector struct{}

func (WeinsteinStageDetector) Name() string { return string(WeinsteinStage) }

func (WeinsteinStageDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	if n < weinsteinMinBars {
		return nil
	}
	i := n - 1
	closes := panel.Closes()
	ma := ind.SMA150[i]
	maPrior := ind.SMA150[i-weinsteinSlopeWindow]
	if isNaNAny(ma, maPrior) || maPrior == 0 {
		return nil
	}

	price := closes[i]
	maChange := (ma - maPrior) / maPrior * 100

	var stage int
	var confidence float64
	var confirmed bool

	switch {
	case price > ma && maChange > weinsteinChangeThresh:
		stage, confidence, confirmed = 2, 85, true
	case price > ma && absFloat(maChange) <= weinsteinChangeThresh:
		stage, confidence, confirmed = 3, 65, false
	case price <= ma && maChange < -weinsteinChangeThresh:
		stage, confidence, confirmed = 4, 70, false
	case price <= ma && absFloat(maChange) <= weinsteinChangeThresh:
		stage, confidence, confirmed = 1, 60, false
	default:
		stage, confidence, confirmed = 0, 40, false
	}

	return &PatternResult{
		PatternType:       WeinsteinStage,
		Symbol:            symbol,
		DetectionDate:     panel.Bar(i).Date,
		ConfidenceScore:   confidence,
		Confirmed:         confirmed,
		WeinsteinStageNum: stage,
		Meta: WeinsteinMeta{
			MAChangePct: maChange,
			MA150:       ma,
		},
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
