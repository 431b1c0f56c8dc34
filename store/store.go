// Package store persists backtest runs to sqlite via gorm: one row per
// trade, one row per equity observation, and one summary metrics row per
// run, matching the persisted state layout of the external interfaces.
// The core engine types carry no ORM tags; this package owns the
// row-shaped DTOs and the conversion boundary between them.
package store

import (
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sepa-engine/backtest"
	"sepa-engine/performance"
	"sepa-engine/portfolio"
)

// BacktestRun is the parent row identifying one run_backtest invocation.
type BacktestRun struct {
	ID        string `gorm:"primaryKey"`
	StartDate string
	EndDate   string
	CreatedAt time.Time
}

// TradeRecord is one row per closed trade, field order matching §3.
type TradeRecord struct {
	ID            uint    `gorm:"primaryKey"`
	RunID         string  `gorm:"index;not null"`
	Symbol        string
	EntryDate     string
	EntryPrice    float64
	ExitDate      string
	ExitPrice     float64
	Shares        int
	ProfitLoss    float64
	ProfitLossPct float64
	ExitReason    string
}

// EquityPoint is one row per daily equity observation: (seq, value),
// where Seq is the observation's position in the equity curve. No date
// is stored.
type EquityPoint struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"index;not null"`
	Seq   int
	Value float64
}

// MetricsRecord is the single summary row matching the outbound metrics
// object. Prices carry two fractional digits, ratios four, enforced here
// at the DTO-conversion boundary.
type MetricsRecord struct {
	RunID            string `gorm:"primaryKey"`
	TotalReturn      float64
	AnnualizedReturn float64
	CAGR             float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	FinalValue       float64
}

// Store wraps a gorm DB handle scoped to the backtest schema.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a sqlite database at path and
// migrates the backtest schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&BacktestRun{}, &TradeRecord{}, &EquityPoint{}, &MetricsRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveRun persists one completed backtest's trades, equity curve, and
// summary metrics under a fresh run id, returning that id.
func (s *Store) SaveRun(result *backtest.Result, metrics performance.Metrics, startDate, endDate string) (string, error) {
	runID := uuid.NewString()
	run := BacktestRun{ID: runID, StartDate: startDate, EndDate: endDate, CreatedAt: time.Now()}

	return runID, s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("store: create run: %w", err)
		}
		for _, t := range result.Trades {
			rec := tradeToRecord(runID, t)
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("store: create trade: %w", err)
			}
		}
		for i, v := range result.EquityCurve {
			pt := EquityPoint{RunID: runID, Seq: i, Value: round2(v)}
			if err := tx.Create(&pt).Error; err != nil {
				return fmt.Errorf("store: create equity point: %w", err)
			}
		}
		m := metricsToRecord(runID, metrics)
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("store: create metrics: %w", err)
		}
		return nil
	})
}

// LoadMetrics fetches the summary metrics row for a run.
func (s *Store) LoadMetrics(runID string) (MetricsRecord, error) {
	var m MetricsRecord
	if err := s.db.First(&m, "run_id = ?", runID).Error; err != nil {
		return MetricsRecord{}, fmt.Errorf("store: load metrics %s: %w", runID, err)
	}
	return m, nil
}

// LoadTrades fetches every trade row for a run, in insertion order.
func (s *Store) LoadTrades(runID string) ([]TradeRecord, error) {
	var trades []TradeRecord
	if err := s.db.Where("run_id = ?", runID).Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("store: load trades %s: %w", runID, err)
	}
	return trades, nil
}

// LoadEquityCurve fetches the equity curve for a run, ordered by seq.
func (s *Store) LoadEquityCurve(runID string) ([]float64, error) {
	var points []EquityPoint
	if err := s.db.Where("run_id = ?", runID).Order("seq asc").Find(&points).Error; err != nil {
		return nil, fmt.Errorf("store: load equity curve %s: %w", runID, err)
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out, nil
}

func tradeToRecord(runID string, t portfolio.Trade) TradeRecord {
	return TradeRecord{
		RunID:         runID,
		Symbol:        t.Symbol,
		EntryDate:     t.EntryDate.String(),
		EntryPrice:    round2(t.EntryPrice),
		ExitDate:      t.ExitDate.String(),
		ExitPrice:     round2(t.ExitPrice),
		Shares:        t.Shares,
		ProfitLoss:    round2(t.ProfitLoss),
		ProfitLossPct: round4(t.ProfitLossPct),
		ExitReason:    string(t.ExitReason),
	}
}

func metricsToRecord(runID string, m performance.Metrics) MetricsRecord {
	return MetricsRecord{
		RunID:            runID,
		TotalReturn:      round4(m.TotalReturn),
		AnnualizedReturn: round4(m.AnnualizedReturn),
		CAGR:             round4(m.CAGR),
		SharpeRatio:      round4(m.SharpeRatio),
		SortinoRatio:     round4(m.SortinoRatio),
		MaxDrawdown:      round4(m.MaxDrawdown),
		WinRate:          round4(m.WinRate),
		ProfitFactor:     round4(m.ProfitFactor),
		TotalTrades:      m.TotalTrades,
		WinningTrades:    m.WinningTrades,
		LosingTrades:     m.LosingTrades,
		FinalValue:       round2(m.FinalValue),
	}
}

func round2(v float64) float64 { return roundTo(v, 100) }
func round4(v float64) float64 { return roundTo(v, 10000) }

func roundTo(v, scale float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return float64(int64(v*scale+sign(v)*0.5)) / scale
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
