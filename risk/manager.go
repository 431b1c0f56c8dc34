// Package risk implements the stateless risk-management policy used by
// the backtest engine: initial stop, trailing-stop update, position
// sizing, and the drawdown gate. It holds no portfolio state of its own;
// every operation takes whatever snapshot it needs as an argument.
package risk

import "math"

// Config holds the seven risk parameters of the trend-following
// methodology. Defaults match the reference policy.
type Config struct {
	InitialStopLossPct    float64
	TrailingTriggerPct    float64
	TrailingATRMultiplier float64
	MaxPositionSizePct    float64
	MaxPortfolioRiskPct   float64
	MaxDrawdownLimit      float64
	TakeProfitPct         float64
}

// NewDefaultConfig returns the reference defaults.
func NewDefaultConfig() Config {
	return Config{
		InitialStopLossPct:    0.10,
		TrailingTriggerPct:    0.15,
		TrailingATRMultiplier: 2.0,
		MaxPositionSizePct:    0.10,
		MaxPortfolioRiskPct:   0.02,
		MaxDrawdownLimit:      0.20,
		TakeProfitPct:         0.20,
	}
}

// Manager evaluates the configured policy. It carries no mutable state;
// all methods are pure functions of their arguments plus Config.
type Manager struct {
	Config Config
}

// NewManager builds a Manager with the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{Config: cfg}
}

// InitialStop is entry * (1 - initial_stop_loss_pct).
func (m *Manager) InitialStop(entry float64) float64 {
	return entry * (1 - m.Config.InitialStopLossPct)
}

// TakeProfit is entry * (1 + take_profit_pct).
func (m *Manager) TakeProfit(entry float64) float64 {
	return entry * (1 + m.Config.TakeProfitPct)
}

// UpdateTrailingStop computes the new stop for a position given the
// current price and an optional ATR reading (NaN if unavailable).
// Stops never ratchet down: the return value is max(currentStop, candidate).
func (m *Manager) UpdateTrailingStop(entryPrice, currentStop, price, atr float64) float64 {
	gain := (price - entryPrice) / entryPrice
	if gain < m.Config.TrailingTriggerPct {
		return currentStop
	}
	var candidate float64
	if !math.IsNaN(atr) && atr > 0 {
		candidate = price - m.Config.TrailingATRMultiplier*atr
	} else {
		candidate = price * (1 - m.Config.InitialStopLossPct)
	}
	return math.Max(currentStop, candidate)
}

// PositionSize computes the share count for a new entry: the smaller of
// a size-based cap and a risk-based cap (risk-based only applies when
// entry > stop). Always a non-negative integer.
func (m *Manager) PositionSize(equity, entry, stop float64) int {
	if entry <= 0 {
		return 0
	}
	sharesBySize := int(math.Floor(equity * m.Config.MaxPositionSizePct / entry))
	if entry <= stop {
		if sharesBySize < 0 {
			return 0
		}
		return sharesBySize
	}
	sharesByRisk := int(math.Floor(equity * m.Config.MaxPortfolioRiskPct / (entry - stop)))
	shares := sharesBySize
	if sharesByRisk < shares {
		shares = sharesByRisk
	}
	if shares < 0 {
		return 0
	}
	return shares
}

// CheckDrawdownLimit reports whether the current drawdown has breached
// the configured limit.
func (m *Manager) CheckDrawdownLimit(currentDrawdown float64) bool {
	return currentDrawdown >= m.Config.MaxDrawdownLimit
}

// CheckCorrelationRisk is a preserved stub: a real implementation needs
// sector/industry metadata that this engine does not own (symbol-master
// management is an external collaborator). Always returns false.
func (m *Manager) CheckCorrelationRisk(symbol string, openSymbols []string) bool {
	return false
}
