package risk

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"TradePilot/internal/domain/models"
	applogger "TradePilot/pkg/logger"
)

const (
	// ContractSize converts lots to units for notional/risk math.
	ContractSize = 100000.0
	// MaxPositionRiskUSD caps any single position's estimated risk so one bad
	// data point cannot dominate the aggregate.
	MaxPositionRiskUSD = 10000.0
	// NoStopRiskPct estimates risk for positions without a stop-loss.
	NoStopRiskPct = 0.02
	// MissingTickDiscount shrinks the notional estimate when tick economics
	// are absent; the estimate is flagged low-confidence.
	MissingTickDiscount = 0.1

	minLotSize = 0.01
	maxLotSize = 100.0
)

// Admission-gate failure reasons. Each gate owns exactly one reason string.
const (
	ReasonMaxPositions      = "Maximum positions reached"
	ReasonDrawdown          = "Drawdown limit exceeded"
	ReasonWeeklyDrawdown    = "Weekly drawdown limit exceeded"
	ReasonDailyLoss         = "Daily loss limit exceeded"
	ReasonTotalRisk         = "Total portfolio risk limit exceeded"
	ReasonSymbolLimit       = "Symbol position limit reached"
	ReasonSymbolDirectional = "Same-direction position limit reached for symbol"
)

// Manager is the single source of truth for trade admission and sizing. It
// evaluates only; it never places or closes trades. Portfolio state arrives
// wholesale from the terminal bridge and is swapped atomically; the
// prediction hot path reads a consistent snapshot without locking writers
// out for long.
type Manager struct {
	mu     sync.RWMutex
	l      *applogger.Logger
	limits models.RiskLimits
	snap   models.PortfolioSnapshot

	dailyStartBalance float64
	dailyResetAt      time.Time
}

// NewManager creates a risk manager with the given limits.
func NewManager(limits models.RiskLimits, l *applogger.Logger) *Manager {
	return &Manager{
		l:      l,
		limits: limits,
		snap: models.PortfolioSnapshot{
			SymbolPositions: map[string]int{},
			PositionRisks:   map[int64]models.RiskAmount{},
		},
		dailyResetAt: time.Now(),
	}
}

// SetAccountInfo records balance/equity/margin and refreshes the daily-loss
// figure against a baseline that resets once 24h have elapsed.
func (m *Manager) SetAccountInfo(balance, equity, margin float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if equity <= 0 {
		equity = balance
	}
	m.snap.Balance = balance
	m.snap.Equity = equity
	m.snap.Margin = margin
	if margin > 0 {
		m.snap.MarginLevel = equity / margin * 100
	}

	now := time.Now()
	if m.dailyStartBalance == 0 || now.Sub(m.dailyResetAt) >= 24*time.Hour {
		m.dailyStartBalance = balance
		m.dailyResetAt = now
	}
	if m.dailyStartBalance > 0 {
		loss := (m.dailyStartBalance - equity) / m.dailyStartBalance * 100
		if loss < 0 {
			loss = 0
		}
		m.snap.DailyLossPct = loss
	}
	if balance > 0 && equity < balance {
		m.snap.CurrentDrawdown = (balance - equity) / balance * 100
	} else {
		m.snap.CurrentDrawdown = 0
	}
	m.snap.UpdatedAt = now
}

// SetPositionsData replaces the tracked position set wholesale and
// recomputes per-symbol counts, aggregate P&L and total risk.
//
// When a positive weekly drawdown has been supplied, the aggregate risk is
// scaled up linearly with it (up to 3x at 100% drawdown): existing drawdown
// is treated as evidence that held risk is worth more than face value. The
// same figure is also a hard gate on its own; that double-counting is
// inherited behavior, kept deliberately (see DESIGN.md).
func (m *Manager) SetPositionsData(positions []models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &m.snap
	snap.Positions = positions
	snap.TotalPositions = len(positions)
	snap.LongPositions = 0
	snap.ShortPositions = 0
	snap.OpenProfitLoss = 0
	snap.SymbolPositions = make(map[string]int, len(positions))
	snap.PositionRisks = make(map[int64]models.RiskAmount, len(positions))

	var totalRisk float64
	for i := range positions {
		p := &positions[i]
		if p.IsLong() {
			snap.LongPositions++
		} else {
			snap.ShortPositions++
		}
		snap.SymbolPositions[p.Symbol]++
		snap.OpenProfitLoss += p.ProfitLoss

		ra := calculatePositionRisk(p)
		snap.PositionRisks[p.Ticket] = ra
		totalRisk += ra.Amount
	}

	if snap.Balance > 0 {
		pct := totalRisk / snap.Balance * 100
		if dd := snap.WeeklyDrawdown; dd > 0 {
			mult := 1 + 2*dd/100
			if mult > 3 {
				mult = 3
			}
			pct *= mult
		}
		snap.TotalRiskPct = pct
	} else {
		snap.TotalRiskPct = 0
	}
	snap.UpdatedAt = time.Now()
}

// SetWeeklyDrawdown stores the terminal-computed weekly drawdown derived
// from broker deal history.
func (m *Manager) SetWeeklyDrawdown(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value < 0 {
		value = 0
	}
	m.snap.WeeklyDrawdown = value
}

// GetWeeklyDrawdown returns the stored weekly drawdown.
func (m *Manager) GetWeeklyDrawdown() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.WeeklyDrawdown
}

// Snapshot returns a copy of the current portfolio state.
func (m *Manager) Snapshot() models.PortfolioSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// calculatePositionRisk estimates money at risk for one position with a
// three-tier fallback: tick economics when present, a 2%-of-notional
// estimate when there is no stop, and a heavily discounted notional estimate
// when tick economics are missing. Unknown risk is neither zero nor
// unbounded.
func calculatePositionRisk(p *models.Position) models.RiskAmount {
	notional := p.Volume * p.CurrentPrice * ContractSize

	if p.StopLoss <= 0 {
		amount := notional * NoStopRiskPct
		return capRisk(models.RiskAmount{Amount: amount, Source: "no_stop_notional"})
	}

	dist := p.CurrentPrice - p.StopLoss
	if dist < 0 {
		dist = -dist
	}

	if p.TickSize > 0 && p.TickValue > 0 {
		amount := dist / p.TickSize * p.TickValue * p.Volume
		return capRisk(models.RiskAmount{Amount: amount, Source: "tick_economics"})
	}

	amount := notional * NoStopRiskPct * MissingTickDiscount
	return capRisk(models.RiskAmount{Amount: amount, Source: "notional_fallback"})
}

func capRisk(ra models.RiskAmount) models.RiskAmount {
	if ra.Amount > MaxPositionRiskUSD {
		ra.Amount = MaxPositionRiskUSD
		ra.Capped = true
	}
	if ra.Amount < 0 {
		ra.Amount = 0
	}
	return ra
}

// CalculateOptimalLotSize sizes a trade so the loss at stop equals the
// configured fraction of balance. An override above the per-trade ceiling is
// clamped, not rejected. A non-positive stop distance is a structured error.
func (m *Manager) CalculateOptimalLotSize(symbol string, entryPrice, stopLoss, accountBalance, riskOverride float64) models.LotCalculation {
	defer m.recoverConservative("lot calculation")

	riskPct := m.limits.RiskPerTradePct
	if riskOverride > 0 {
		riskPct = riskOverride
		if riskPct > m.limits.MaxRiskPerTradePct {
			riskPct = m.limits.MaxRiskPerTradePct
		}
	}

	dist := entryPrice - stopLoss
	if dist < 0 {
		dist = -dist
	}
	if dist <= 0 {
		return models.LotCalculation{Error: fmt.Sprintf("non-positive stop distance for %s", symbol)}
	}
	if accountBalance <= 0 {
		return models.LotCalculation{Error: "non-positive account balance"}
	}

	riskAmount := accountBalance * riskPct / 100
	lot := riskAmount / (dist * ContractSize)
	clamped := false
	if lot < minLotSize {
		lot = minLotSize
		clamped = true
	} else if lot > maxLotSize {
		lot = maxLotSize
		clamped = true
	}

	return models.LotCalculation{
		LotSize:      roundLot(lot),
		RiskAmount:   riskAmount,
		RiskPct:      riskPct,
		StopDistance: dist,
		Clamped:      clamped,
	}
}

// CanOpenNewTrade runs the admission gates in fixed order and returns on
// the first failure. Every gate is hard; none are advisory.
func (m *Manager) CanOpenNewTrade(symbol string, lotSize, stopLossDistance float64, direction string) models.TradeVerdict {
	defer m.recoverConservative("trade admission")

	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := &m.snap

	if snap.TotalPositions >= m.limits.MaxTotalPositions {
		return deny(ReasonMaxPositions, "open=%d max=%d", snap.TotalPositions, m.limits.MaxTotalPositions)
	}
	if snap.CurrentDrawdown >= m.limits.MaxDrawdownPct {
		return deny(ReasonDrawdown, "drawdown=%.2f%% max=%.2f%%", snap.CurrentDrawdown, m.limits.MaxDrawdownPct)
	}
	if snap.WeeklyDrawdown >= m.limits.MaxDrawdownPct {
		return deny(ReasonWeeklyDrawdown, "weekly=%.2f%% max=%.2f%%", snap.WeeklyDrawdown, m.limits.MaxDrawdownPct)
	}
	if snap.DailyLossPct >= m.limits.MaxDailyLossPct {
		return deny(ReasonDailyLoss, "daily_loss=%.2f%% max=%.2f%%", snap.DailyLossPct, m.limits.MaxDailyLossPct)
	}

	newRiskPct := 0.0
	if snap.Balance > 0 {
		newRiskPct = stopLossDistance * ContractSize * lotSize / snap.Balance * 100
	}
	if snap.TotalRiskPct+newRiskPct > m.limits.MaxTotalRiskPct {
		return deny(ReasonTotalRisk, "existing=%.2f%% new=%.2f%% max=%.2f%%",
			snap.TotalRiskPct, newRiskPct, m.limits.MaxTotalRiskPct)
	}

	if snap.SymbolPositions[symbol] >= m.limits.MaxPerSymbol {
		return deny(ReasonSymbolLimit, "symbol=%s open=%d max=%d",
			symbol, snap.SymbolPositions[symbol], m.limits.MaxPerSymbol)
	}

	sameDir := 0
	dir := strings.ToUpper(direction)
	for i := range snap.Positions {
		if snap.Positions[i].Symbol == symbol && strings.ToUpper(snap.Positions[i].Direction) == dir {
			sameDir++
		}
	}
	if sameDir >= m.limits.MaxPerSymbolDirection {
		return deny(ReasonSymbolDirectional, "symbol=%s direction=%s open=%d max=%d",
			symbol, direction, sameDir, m.limits.MaxPerSymbolDirection)
	}

	return models.TradeVerdict{Allowed: true}
}

// GetRiskStatus classifies the portfolio against the configured ceilings.
func (m *Manager) GetRiskStatus() models.RiskStatus {
	defer m.recoverConservative("risk status")

	m.mu.RLock()
	defer m.mu.RUnlock()

	status := models.RiskStatusLow
	switch {
	case m.snap.CurrentDrawdown >= 0.8*m.limits.MaxDrawdownPct ||
		m.snap.WeeklyDrawdown >= 0.8*m.limits.MaxDrawdownPct:
		status = models.RiskStatusHigh
	case m.snap.TotalRiskPct >= 0.8*m.limits.MaxTotalRiskPct ||
		m.snap.DailyLossPct >= 0.8*m.limits.MaxDailyLossPct:
		status = models.RiskStatusMedium
	}

	return models.RiskStatus{
		Status:    status,
		Portfolio: m.snap,
		Limits:    m.limits,
		Timestamp: time.Now(),
	}
}

// Limits returns the configured ceilings.
func (m *Manager) Limits() models.RiskLimits {
	return m.limits
}

// recoverConservative keeps the risk manager from ever crashing the hot
// path: the zero value of every return type here is the conservative one
// (lot 0, trade disallowed, status zero-valued).
func (m *Manager) recoverConservative(op string) {
	if r := recover(); r != nil && m.l != nil {
		m.l.Error("risk manager panic recovered",
			applogger.String("op", op), applogger.Any("panic", r))
	}
}

func deny(reason, format string, args ...any) models.TradeVerdict {
	return models.TradeVerdict{Allowed: false, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func roundLot(lot float64) float64 {
	return float64(int(lot*100+0.5)) / 100
}
