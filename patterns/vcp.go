package patterns

import "sepa-engine/marketdata"

const (
	vcpMinContractions = 2
	vcpMaxContractions = 5
	vcpToleranceRatio  = 1.2
	vcpTightnessPct    = 15.0
	vcpMaxLookbackBars = 250
	vcpVolumeWindow    = 20
	vcpVolumeThreshold = 0.8
)

// VCPMeta carries the contraction depths the detector measured.
type VCPMeta struct {
	ContractionCount int
	Depths           []float64
	LastDepthPct     float64
	VolumeDryUp      bool
}

func (VCPMeta) patternMeta() {}

// VCPDetector finds a Volatility Contraction Pattern: a dominant prior
// high followed by a sequence of progressively shallower pullbacks.
type VCPDetector struct{}

func (VCPDetector) Name() string { return string(VCP) }

func (VCPDetector) Detect(symbol string, panel *marketdata.PricePanel, ind *Indicators) *PatternResult {
	n := panel.Len()
	if n < 2*5+2 {
		return nil
	}
	highs := panel.Highs()
	lows := panel.Lows()
	start := windowStart(n, vcpMaxLookbackBars)
	highWindow := highs[start:]
	lowWindow := lows[start:]

	maxima, _ := FindLocalExtrema(highWindow, 5)
	if len(maxima) < 2 {
		return nil
	}

	baseRel := argmaxIndices(highWindow, maxima)
	var highsSeq []int
	highsSeq = append(highsSeq, baseRel)
	for _, m := range maxima {
		if m > baseRel {
			highsSeq = append(highsSeq, m)
		}
	}
	if len(highsSeq) < vcpMinContractions+1 {
		return nil
	}

	var depths []float64
	for k := 0; k < len(highsSeq)-1; k++ {
		h1, h2 := highsSeq[k], highsSeq[k+1]
		if h2-h1 < 2 {
			return nil
		}
		lowVal := minOf(lowWindow[h1+1 : h2])
		highVal := highWindow[h1]
		if highVal <= 0 {
			return nil
		}
		depth := (highVal - lowVal) / highVal * 100
		depths = append(depths, depth)
	}

	count := len(depths)
	if count < vcpMinContractions || count > vcpMaxContractions {
		return nil
	}
	for k := 1; k < count; k++ {
		if depths[k] > vcpToleranceRatio*depths[k-1] {
			return nil
		}
	}
	lastDepth := depths[count-1]
	if lastDepth >= vcpTightnessPct {
		return nil
	}

	volumes := panel.Volumes()
	dryUp := isVolumeDryingUp(volumes, vcpVolumeWindow, vcpVolumeThreshold)

	confidence := 70.0
	if dryUp {
		confidence = 85.0
	}

	return &PatternResult{
		PatternType:       VCP,
		Symbol:            symbol,
		DetectionDate:     panel.Bar(n - 1).Date,
		ConfidenceScore:   confidence,
		Confirmed:         false,
		WeinsteinStageNum: -1,
		Meta: VCPMeta{
			ContractionCount: count,
			Depths:           depths,
			LastDepthPct:     lastDepth,
			VolumeDryUp:      dryUp,
		},
	}
}
