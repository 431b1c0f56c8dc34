package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sepa-engine/scanner"
	"sepa-engine/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return NewServer(st)
}

func closesBars(closes []float64) []BarDTO {
	bars := make([]BarDTO, len(closes))
	for i, c := range closes {
		bars[i] = BarDTO{
			Date: dateAt(i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1_000_000,
		}
	}
	return bars
}

func dateAt(i int) string {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
}

func TestRunBacktestEndToEnd(t *testing.T) {
	s := newTestServer(t)

	closes := []float64{100, 102, 105, 110, 115, 120, 125, 130, 135, 140}
	body := BacktestRequest{
		Panels: map[string][]BarDTO{
			"ACME": closesBars(closes),
		},
		Signals: map[string][]SignalDTO{
			dateAt(0): {{Symbol: "ACME", Confidence: 90}},
		},
		InitialCapital: 100000,
		MaxPositions:   20,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/backtests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /backtests status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected non-empty run id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/backtests/"+resp.ID, nil)
	getRec := httptest.NewRecorder()
	s.Engine.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET /backtests/:id status = %d, body = %s", getRec.Code, getRec.Body.String())
	}
}

func TestGetBacktestMissingID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/backtests/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRunBacktestRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/backtests", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestScanHubBroadcastAndUnsubscribe(t *testing.T) {
	hub := NewScanHub()
	ch := hub.Subscribe("scan-1")
	hub.Broadcast("scan-1", scanner.ScanProgress{Symbol: "ACME", PatternCount: 2})

	select {
	case evt := <-ch:
		if evt.Symbol != "ACME" || evt.PatternCount != 2 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	default:
		t.Fatal("expected buffered event on subscriber channel")
	}

	hub.Unsubscribe("scan-1", ch)
	if _, open := <-ch; open {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestScanHubBroadcastDropsOnFullBuffer(t *testing.T) {
	hub := NewScanHub()
	ch := hub.Subscribe("scan-2")
	for i := 0; i < 32; i++ {
		hub.Broadcast("scan-2", scanner.ScanProgress{Symbol: "X", PatternCount: i})
	}
	// Must not block or panic even when the subscriber never drains.
	hub.Unsubscribe("scan-2", ch)
}
