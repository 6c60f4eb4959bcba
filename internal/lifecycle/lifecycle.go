// Package lifecycle manages a position from twin-order staging through
// breakeven, trailing, and Friday-close. Its mutex-guarded in-memory
// cache over a zerolog logger follows the teacher's usual store shape,
// generalized from single-chain order tracking to spec.md §3's twin
// Scalp/Runner legs.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"brooksengine/internal/journal"
	"brooksengine/internal/riskstop"
	"brooksengine/internal/session"
	"brooksengine/internal/signal"
)

// Status is the lifecycle state of a twin-order position.
type Status string

const (
	StatusPending  Status = "pending"  // stop orders submitted, neither leg filled
	StatusActive   Status = "active"   // at least one leg filled, position open
	StatusClosed   Status = "closed"
)

// Leg is one half of the twin-order position.
type Leg struct {
	Magic         signal.Magic
	OrderID       string
	Quantity      float64
	EntryPrice    float64
	Filled        bool
	ClosedQty     float64
	TP            float64 // tp1 on the scalp leg, tp2 on the runner leg (recorded only: the runner's stop order is placed with tp 0); 0 on a single leg
	RealizedPnL   float64
}

// Position is the twin-order lifecycle record for one SignalID.
type Position struct {
	SignalID       uuid.UUID
	Symbol         string
	Side           signal.Side
	Kind           signal.Kind
	Status         Status
	Scalp          Leg
	Runner         Leg
	HardStop       float64 // structural/technical stop, moves only in the favorable direction
	TechnicalStop  float64 // the original signal stop, used for soft-stop comparisons
	BreakevenDone  bool
	OpenedAt       time.Time
	ClosedAt       time.Time
}

// Broker is the minimal order-placement surface lifecycle needs; the
// concrete internal/broker/binance adapter implements it.
type Broker interface {
	PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (orderID string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error
	ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error
}

// Repository persists Position snapshots; implemented by
// internal/database.PositionRepository.
type Repository interface {
	SavePosition(ctx context.Context, p *Position) error
	LoadOpenPositions(ctx context.Context, symbol string) ([]*Position, error)
}

// Manager owns every open Position for one symbol. One Manager
// per orchestrator task (spec.md §5).
type Manager struct {
	mu        sync.RWMutex
	broker    Broker
	repo      Repository
	journal   journal.Journal
	logger    zerolog.Logger
	riskCfg   riskstop.Config
	sessCfg   session.Config
	positions map[uuid.UUID]*Position
}

// NewManager constructs a Manager. jrnl may be nil (no trade journal).
func NewManager(broker Broker, repo Repository, jrnl journal.Journal, logger zerolog.Logger, riskCfg riskstop.Config, sessCfg session.Config) *Manager {
	return &Manager{
		broker:    broker,
		repo:      repo,
		journal:   jrnl,
		logger:    logger.With().Str("component", "lifecycle.Manager").Logger(),
		riskCfg:   riskCfg,
		sessCfg:   sessCfg,
		positions: make(map[uuid.UUID]*Position),
	}
}

// recordJournal writes e if a journal is configured, logging (never
// propagating) a write failure per spec.md §7's best-effort rule.
func (m *Manager) recordJournal(ctx context.Context, e journal.Event) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, e); err != nil {
		m.logger.Warn().Err(err).Str("signal_id", e.SignalID.String()).Msg("failed to write journal entry")
	}
}

// sizing splits the total quantity across the two legs; when the scalp
// unit would round to zero the signal becomes a single-leg runner
// (spec.md §3's "single lot unit" fallback).
func sizing(totalQty, lotStep float64) (scalpQty, runnerQty float64, singleLeg bool) {
	half := totalQty / 2
	scalpQty = roundToStep(half, lotStep)
	if scalpQty <= 0 {
		return 0, roundToStep(totalQty, lotStep), true
	}
	runnerQty = roundToStep(totalQty-scalpQty, lotStep)
	return scalpQty, runnerQty, false
}

func roundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := float64(int(qty/step + 0.5))
	return steps * step
}

// OpenPosition submits the twin stop orders for a new signal and records
// the pending Position, per spec.md §3's per-bar ordering step "submit
// new signal".
func (m *Manager) OpenPosition(ctx context.Context, sig signal.Signal, symbol string, totalQty, lotStep, entry, atr float64, tp2 float64) (*Position, error) {
	scalpQty, runnerQty, single := sizing(totalQty, lotStep)
	tp1 := riskstop.ScalpTP1(sig.Side, entry, sig.TechnicalStop)

	p := &Position{
		SignalID:      sig.ID,
		Symbol:        symbol,
		Side:          sig.Side,
		Kind:          sig.Kind,
		Status:        StatusPending,
		TechnicalStop: sig.TechnicalStop,
		HardStop:      sig.TechnicalStop,
		OpenedAt:      time.Now(),
	}

	if single {
		orderID, err := m.broker.PlaceStopOrder(ctx, symbol, sig.Side, runnerQty, sig.TechnicalStop, 0, signal.MagicSingle)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: place single-leg order: %w", err)
		}
		p.Runner = Leg{Magic: signal.MagicSingle, OrderID: orderID, Quantity: runnerQty}
	} else {
		scalpID, err := m.broker.PlaceStopOrder(ctx, symbol, sig.Side, scalpQty, sig.TechnicalStop, tp1, signal.MagicScalp)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: place scalp order: %w", err)
		}
		runnerID, err := m.broker.PlaceStopOrder(ctx, symbol, sig.Side, runnerQty, sig.TechnicalStop, 0, signal.MagicRunner)
		if err != nil {
			_ = m.broker.CancelOrder(ctx, symbol, scalpID)
			return nil, fmt.Errorf("lifecycle: place runner order: %w", err)
		}
		p.Scalp = Leg{Magic: signal.MagicScalp, OrderID: scalpID, Quantity: scalpQty, TP: tp1}
		p.Runner = Leg{Magic: signal.MagicRunner, OrderID: runnerID, Quantity: runnerQty, TP: tp2}
	}

	m.mu.Lock()
	m.positions[sig.ID] = p
	m.mu.Unlock()

	m.logger.Info().
		Str("signal_id", sig.ID.String()).
		Str("symbol", symbol).
		Str("kind", sig.Kind.String()).
		Float64("stop", sig.TechnicalStop).
		Msg("twin-order position staged")

	if m.repo != nil {
		if err := m.repo.SavePosition(ctx, p); err != nil {
			m.logger.Error().Err(err).Msg("failed to persist staged position")
		}
	}
	m.recordJournal(ctx, journal.Event{
		SignalID:      p.SignalID,
		Symbol:        symbol,
		Type:          journal.EventOpened,
		Kind:          sig.Kind.String(),
		Side:          sig.Side.String(),
		EntryPrice:    entry,
		Quantity:      totalQty,
		TechnicalStop: sig.TechnicalStop,
		Timestamp:     p.OpenedAt,
	})
	return p, nil
}

// OnLegFilled transitions a pending leg into an active one.
func (m *Manager) OnLegFilled(ctx context.Context, signalID uuid.UUID, magic signal.Magic, fillPrice float64) {
	m.mu.Lock()
	p, ok := m.positions[signalID]
	if !ok {
		m.mu.Unlock()
		return
	}
	leg := &p.Scalp
	if magic == signal.MagicRunner || magic == signal.MagicSingle {
		leg = &p.Runner
	}
	leg.Filled = true
	leg.EntryPrice = fillPrice
	p.Status = StatusActive
	m.mu.Unlock()

	if m.repo != nil {
		_ = m.repo.SavePosition(ctx, p)
	}
}

// PromoteBreakeven moves HardStop to entry (plus a one-tick buffer in the
// favorable direction) once the scalp leg's TP1 has been hit, per spec.md
// §3's breakeven rule.
func (m *Manager) PromoteBreakeven(ctx context.Context, signalID uuid.UUID, tick float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[signalID]
	if !ok || p.BreakevenDone || !p.Runner.Filled {
		return
	}
	entry := p.Runner.EntryPrice
	if p.Side == signal.Buy {
		p.HardStop = entry + tick
	} else {
		p.HardStop = entry - tick
	}
	p.BreakevenDone = true

	if err := m.broker.ModifyStop(ctx, p.Symbol, p.Runner.OrderID, p.HardStop); err != nil {
		m.logger.Error().Err(err).Str("signal_id", signalID.String()).Msg("failed to modify runner stop to breakeven")
	}
}

// TrailStructural advances HardStop to a newly confirmed swing in the
// favorable direction, never loosening it (spec.md §3's structural
// trailing rule).
func (m *Manager) TrailStructural(ctx context.Context, signalID uuid.UUID, newSwing float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[signalID]
	if !ok || !p.Runner.Filled {
		return
	}
	improved := (p.Side == signal.Buy && newSwing > p.HardStop) || (p.Side == signal.Sell && newSwing < p.HardStop)
	if !improved {
		return
	}
	p.HardStop = newSwing
	if err := m.broker.ModifyStop(ctx, p.Symbol, p.Runner.OrderID, p.HardStop); err != nil {
		m.logger.Error().Err(err).Str("signal_id", signalID.String()).Msg("failed to trail runner stop")
	}
}

// EvaluateSoftStop closes the runner leg at market when the technical
// (soft) stop has been confirmed violated, ahead of the hard stop order
// ever triggering — spec.md §3's per-bar ordering step "soft-stop
// evaluation".
func (m *Manager) EvaluateSoftStop(ctx context.Context, signalID uuid.UUID, close float64, mode riskstop.SoftStopConfirmMode, confirmCloses []float64, confirmBars int) {
	m.mu.RLock()
	p, ok := m.positions[signalID]
	m.mu.RUnlock()
	if !ok || p.Status != StatusActive {
		return
	}
	if !riskstop.CheckSoftStop(p.Side, p.TechnicalStop, close, mode, confirmCloses, confirmBars) {
		return
	}
	m.closePosition(ctx, p, "soft_stop")
}

// ExitOnClimax force-closes an active position when a climax-reversal
// signal fires against it (spec.md §3's climax-exit rule, which runs
// ahead of breakeven/trailing in the per-bar ordering).
func (m *Manager) ExitOnClimax(ctx context.Context, signalID uuid.UUID) {
	m.mu.RLock()
	p, ok := m.positions[signalID]
	m.mu.RUnlock()
	if !ok || p.Status != StatusActive {
		return
	}
	m.closePosition(ctx, p, "climax_exit")
}

// CloseForFridayOrWeekend flattens every active position ahead of the
// weekend gap, consulting internal/session's clock gate.
func (m *Manager) CloseForFridayOrWeekend(ctx context.Context, now time.Time) {
	g := session.Evaluate(now, m.sessCfg)
	if !g.IsFridayClose && !g.IsWeekend {
		return
	}
	m.mu.RLock()
	toClose := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Status == StatusActive {
			toClose = append(toClose, p)
		}
	}
	m.mu.RUnlock()
	for _, p := range toClose {
		m.closePosition(ctx, p, "session_close")
	}
}

func (m *Manager) closePosition(ctx context.Context, p *Position, reason string) {
	qty := p.Runner.Quantity - p.Runner.ClosedQty
	if p.Scalp.Filled {
		qty += p.Scalp.Quantity - p.Scalp.ClosedQty
	}
	if qty > 0 {
		if err := m.broker.ClosePosition(ctx, p.Symbol, qty, p.Side); err != nil {
			m.logger.Error().Err(err).Str("signal_id", p.SignalID.String()).Str("reason", reason).Msg("failed to close position")
			return
		}
	}

	m.mu.Lock()
	p.Status = StatusClosed
	p.ClosedAt = time.Now()
	delete(m.positions, p.SignalID)
	m.mu.Unlock()

	m.logger.Info().Str("signal_id", p.SignalID.String()).Str("reason", reason).Msg("position closed")
	if m.repo != nil {
		_ = m.repo.SavePosition(ctx, p)
	}
	m.recordJournal(ctx, journal.Event{
		SignalID:  p.SignalID,
		Symbol:    p.Symbol,
		Type:      journal.EventClosed,
		Kind:      p.Kind.String(),
		Side:      p.Side.String(),
		Reason:    reason,
		Timestamp: p.ClosedAt,
	})
}

// ActiveCount returns the number of open positions, used by the
// orchestrator's sizing tiers.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Get returns the Position for a signal ID, if still tracked.
func (m *Manager) Get(signalID uuid.UUID) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[signalID]
	return p, ok
}

// Positions returns a snapshot of every tracked Position, for the
// orchestrator's per-bar maintenance pass (trailing, breakeven, soft-stop).
func (m *Manager) Positions() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}
