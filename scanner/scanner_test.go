package scanner

import (
	"testing"

	"sepa-engine/marketdata"
)

func syntheticUptrendPanel(symbol string, n int, start float64, step float64) *marketdata.PricePanel {
	bars := make([]marketdata.PriceBar, n)
	date := marketdata.NewDate(2020, 1, 1)
	price := start
	for i := 0; i < n; i++ {
		price += step
		bars[i] = marketdata.PriceBar{
			Date: date, Open: price, High: price * 1.01, Low: price * 0.99,
			Close: price, Volume: 1_000_000,
		}
		date = date.AddDays(1)
	}
	return marketdata.NewPricePanel(symbol, bars)
}

func TestScanUniverseSwallowsNothingOnShortPanels(t *testing.T) {
	s := NewScanner()
	panels := map[string]*marketdata.PricePanel{
		"SHORT": marketdata.NewPricePanel("SHORT", []marketdata.PriceBar{
			{Date: marketdata.NewDate(2024, 1, 2), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		}),
	}
	out := s.ScanUniverse(panels, nil)
	if len(out["SHORT"]) != 0 {
		t.Fatalf("expected no detections on a 1-bar panel, got %v", out["SHORT"])
	}
}

func TestActionableSetupsGateAndSort(t *testing.T) {
	s := NewScanner()
	panels := map[string]*marketdata.PricePanel{
		"AAA": syntheticUptrendPanel("AAA", 280, 50, 0.5),
		"BBB": syntheticUptrendPanel("BBB", 280, 50, 0.6),
		"ZZZ": syntheticUptrendPanel("ZZZ", 5, 50, 0.1),
	}
	scanned := s.ScanUniverse(panels, nil)
	actionable := s.ActionableSetups(scanned)

	for _, r := range actionable {
		if r.ConfidenceScore < s.ConfidenceThreshold {
			t.Fatalf("actionable result below threshold: %+v", r)
		}
		if !r.Confirmed && !r.MeetsTrendTemplate {
			t.Fatalf("actionable result neither confirmed nor meets_trend_template: %+v", r)
		}
	}
	for i := 1; i < len(actionable); i++ {
		prev, cur := actionable[i-1], actionable[i]
		if prev.ConfidenceScore < cur.ConfidenceScore {
			t.Fatalf("actionable setups not sorted descending by confidence at %d", i)
		}
		if prev.ConfidenceScore == cur.ConfidenceScore && prev.Symbol > cur.Symbol {
			t.Fatalf("equal-confidence tie-break not lexical by symbol at %d", i)
		}
	}
}

func TestScanUniverseAsyncMatchesSync(t *testing.T) {
	s := NewScanner()
	panels := map[string]*marketdata.PricePanel{
		"AAA": syntheticUptrendPanel("AAA", 280, 50, 0.5),
		"BBB": syntheticUptrendPanel("BBB", 280, 30, 0.2),
	}
	sync1 := s.ScanUniverse(panels, nil)
	progress := make(chan ScanProgress, len(panels))
	async := s.ScanUniverseAsync(panels, nil, 2, progress)

	count := 0
	for range progress {
		count++
	}
	if count != len(panels) {
		t.Fatalf("progress events = %d, want %d", count, len(panels))
	}
	for symbol := range sync1 {
		if len(sync1[symbol]) != len(async[symbol]) {
			t.Fatalf("async/sync mismatch for %s: %d vs %d", symbol, len(sync1[symbol]), len(async[symbol]))
		}
	}
}
