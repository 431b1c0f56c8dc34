// Package scanner runs the configured detector set across a universe of
// symbols and filters actionable setups by confidence and confirmation.
package scanner

import (
	"log"
	"sort"
	"sync"

	"sepa-engine/marketdata"
	"sepa-engine/patterns"
)

// DefaultConfidenceThreshold is the actionable-setup confidence gate.
const DefaultConfidenceThreshold = 70.0

var logger = log.New(log.Writer(), "scanner: ", log.LstdFlags)

// Scanner runs a fixed detector list against a universe of panels.
type Scanner struct {
	Detectors           []patterns.Detector
	ConfidenceThreshold float64
}

// NewScanner builds a Scanner with the six reference detectors and the
// default confidence threshold.
func NewScanner() *Scanner {
	return &Scanner{
		Detectors: []patterns.Detector{
			patterns.TrendTemplateDetector{},
			patterns.VCPDetector{},
			patterns.CupAndHandleDetector{},
			patterns.DoubleBottomDetector{},
			patterns.HighTightFlagDetector{},
			patterns.WeinsteinStageDetector{},
		},
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// ScanUniverse runs every detector against every symbol's panel. A
// panicking detector is recovered, logged, and contributes no result for
// that symbol — scanning the rest of the universe continues unaffected.
func (s *Scanner) ScanUniverse(panels map[string]*marketdata.PricePanel, benchmark *marketdata.PricePanel) map[string][]patterns.PatternResult {
	out := make(map[string][]patterns.PatternResult, len(panels))
	for symbol, panel := range panels {
		out[symbol] = s.scanSymbol(symbol, panel, benchmark)
	}
	return out
}

func (s *Scanner) scanSymbol(symbol string, panel *marketdata.PricePanel, benchmark *marketdata.PricePanel) []patterns.PatternResult {
	ind := patterns.BuildIndicators(panel, benchmark)
	var results []patterns.PatternResult
	for _, d := range s.Detectors {
		if r := s.runDetector(d, symbol, panel, ind); r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// runDetector isolates a single detector invocation so a panic never
// aborts the scan (DetectorFailure, per the error handling design).
func (s *Scanner) runDetector(d patterns.Detector, symbol string, panel *marketdata.PricePanel, ind *patterns.Indicators) (result *patterns.PatternResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Printf("detector %s failed on %s: %v", d.Name(), symbol, rec)
			result = nil
		}
	}()
	return d.Detect(symbol, panel, ind)
}

// ActionableSetups filters results with confidence >= threshold AND
// (confirmed OR meets_trend_template), sorted descending by confidence
// with a stable lexical tie-break by symbol.
func (s *Scanner) ActionableSetups(scanned map[string][]patterns.PatternResult) []patterns.PatternResult {
	threshold := s.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	var out []patterns.PatternResult
	for _, results := range scanned {
		for _, r := range results {
			if r.ConfidenceScore >= threshold && (r.Confirmed || r.MeetsTrendTemplate) {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// ScanProgress reports one symbol's completion during an async scan.
type ScanProgress struct {
	Symbol       string
	PatternCount int
}

// ScanUniverseAsync fans the symbols out over a pool of `workers`
// goroutines (4 if workers <= 0), emitting a ScanProgress event per completed symbol on
// progress. progress is closed when the scan finishes; callers that do
// not want progress updates may pass a nil channel.
func (s *Scanner) ScanUniverseAsync(panels map[string]*marketdata.PricePanel, benchmark *marketdata.PricePanel, workers int, progress chan<- ScanProgress) map[string][]patterns.PatternResult {
	if workers <= 0 {
		workers = 4
	}
	type job struct {
		symbol string
		panel  *marketdata.PricePanel
	}
	jobs := make(chan job)
	results := make(map[string][]patterns.PatternResult, len(panels))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r := s.scanSymbol(j.symbol, j.panel, benchmark)
				mu.Lock()
				results[j.symbol] = r
				mu.Unlock()
				if progress != nil {
					progress <- ScanProgress{Symbol: j.symbol, PatternCount: len(r)}
				}
			}
		}()
	}

	go func() {
		for symbol, panel := range panels {
			jobs <- job{symbol: symbol, panel: panel}
		}
		close(jobs)
	}()

	wg.Wait()
	if progress != nil {
		close(progress)
	}
	return results
}
