// Package httpapi exposes the engine over HTTP and websocket: running a
// backtest synchronously, fetching a persisted result, and streaming
// scan progress to subscribers. Transport only — all decision logic
// lives in backtest, scanner, risk, and performance.
package httpapi

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sepa-engine/backtest"
	"sepa-engine/marketdata"
	"sepa-engine/performance"
	"sepa-engine/risk"
	"sepa-engine/scanner"
	"sepa-engine/store"
)

var logger = log.New(log.Writer(), "httpapi: ", log.LstdFlags)

// Server wires the engine, scanner, and store behind gin routes.
type Server struct {
	Engine  *gin.Engine
	store   *store.Store
	scanner *scanner.Scanner
	hub     *ScanHub
}

// NewServer builds a gin engine with the backtest/scan routes registered.
func NewServer(st *store.Store) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		Engine:  router,
		store:   st,
		scanner: scanner.NewScanner(),
		hub:     NewScanHub(),
	}

	router.POST("/backtests", s.handleRunBacktest)
	router.GET("/backtests/:id", s.handleGetBacktest)
	router.GET("/scans/:id/stream", s.handleScanStream)
	return s
}

// BacktestRequest is the inbound POST /backtests body.
type BacktestRequest struct {
	Panels         map[string][]BarDTO    `json:"panels" binding:"required"`
	Signals        map[string][]SignalDTO `json:"signals"`
	InitialCapital float64                `json:"initial_capital"`
	MaxPositions   int                    `json:"max_positions"`
}

// BarDTO is the wire shape of one OHLCV bar.
type BarDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SignalDTO is the wire shape of one buy signal.
type SignalDTO struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
}

// handleRunBacktest runs run_backtest synchronously: the engine has no
// suspension points, so there is nothing to make async inside the core.
func (s *Server) handleRunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	panels, err := dtoToPanels(req.Panels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := backtest.NewDefaultConfig()
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.MaxPositions > 0 {
		cfg.MaxPositions = req.MaxPositions
	}

	eng := backtest.NewEngine(cfg, risk.NewManager(risk.NewDefaultConfig()))
	signals := dtoToSignals(req.Signals)

	result, err := eng.Run(panels, signals, nil, nil)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	metrics := performance.NewCalculator().CalculateAll(result.Trades, result.EquityCurve, cfg.InitialCapital)

	runID, err := s.store.SaveRun(result, metrics, "", "")
	if err != nil {
		logger.Printf("save run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": runID, "metrics": metrics})
}

// handleGetBacktest returns the persisted result for a run id.
func (s *Server) handleGetBacktest(c *gin.Context) {
	id := c.Param("id")
	metrics, err := s.store.LoadMetrics(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
		return
	}
	trades, err := s.store.LoadTrades(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	curve, err := s.store.LoadEquityCurve(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics, "trades": trades, "equity_curve": curve})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleScanStream upgrades to a websocket and forwards ScanProgress
// events for the named scan id until the client disconnects.
func (s *Server) handleScanStream(c *gin.Context) {
	id := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Printf("websocket upgrade failed for scan %s: %v", id, err)
		return
	}
	defer conn.Close()

	events := s.hub.Subscribe(id)
	defer s.hub.Unsubscribe(id, events)

	for evt := range events {
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}

// RunScan runs a scan across panels, broadcasting progress to any
// websocket subscribers of scanID, and returns the progress events it
// observed, one per scanned symbol.
func (s *Server) RunScan(scanID string, panels map[string]*marketdata.PricePanel, benchmark *marketdata.PricePanel) []scanner.ScanProgress {
	progress := make(chan scanner.ScanProgress)
	go func() {
		s.scanner.ScanUniverseAsync(panels, benchmark, 4, progress)
	}()
	var seen []scanner.ScanProgress
	for evt := range progress {
		seen = append(seen, evt)
		s.hub.Broadcast(scanID, evt)
	}
	return seen
}

func dtoToPanels(in map[string][]BarDTO) (map[string]*marketdata.PricePanel, error) {
	out := make(map[string]*marketdata.PricePanel, len(in))
	for symbol, bars := range in {
		parsed := make([]marketdata.PriceBar, len(bars))
		for i, b := range bars {
			d, err := marketdata.ParseDate(b.Date)
			if err != nil {
				return nil, fmt.Errorf("httpapi: %s bar %d: %w", symbol, i, err)
			}
			parsed[i] = marketdata.PriceBar{
				Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
			}
		}
		out[symbol] = marketdata.NewPricePanel(symbol, parsed)
	}
	return out, nil
}

func dtoToSignals(in map[string][]SignalDTO) map[string][]backtest.Signal {
	out := make(map[string][]backtest.Signal, len(in))
	for dateKey, sigs := range in {
		d, err := marketdata.ParseDate(dateKey)
		if err != nil {
			continue
		}
		converted := make([]backtest.Signal, len(sigs))
		for i, s := range sigs {
			converted[i] = backtest.Signal{Date: d, Symbol: s.Symbol, Confidence: s.Confidence}
		}
		out[dateKey] = converted
	}
	return out
}

// ScanHub broadcasts ScanProgress events to any number of websocket
// subscribers, keyed by scan id. Mirrors the teacher's SharedWSManager
// fan-out, redirected at scan progress instead of live quote ticks.
type ScanHub struct {
	mu          sync.Mutex
	subscribers map[string][]chan scanner.ScanProgress
}

// NewScanHub builds an empty hub.
func NewScanHub() *ScanHub {
	return &ScanHub{subscribers: make(map[string][]chan scanner.ScanProgress)}
}

// Subscribe registers a new channel for scanID and returns it.
func (h *ScanHub) Subscribe(scanID string) chan scanner.ScanProgress {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan scanner.ScanProgress, 16)
	h.subscribers[scanID] = append(h.subscribers[scanID], ch)
	return ch
}

// Unsubscribe removes and closes a previously-subscribed channel.
func (h *ScanHub) Unsubscribe(scanID string, ch chan scanner.ScanProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[scanID]
	for i, s := range subs {
		if s == ch {
			h.subscribers[scanID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

// Broadcast sends evt to every subscriber of scanID, dropping it for any
// subscriber whose buffer is full rather than blocking the scan.
func (h *ScanHub) Broadcast(scanID string, evt scanner.ScanProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers[scanID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
