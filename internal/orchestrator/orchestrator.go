// Package orchestrator wires one symbol's full per-bar pipeline together:
// internal/market's buffers feed internal/swing and internal/regime, whose
// output becomes a internal/pattern.Context for internal/dispatch; a
// dispatched signal is sized by internal/risk and staged by
// internal/lifecycle against a internal/broker.Adapter, gated throughout by
// internal/circuit. One Orchestrator runs per tracked symbol (there is no
// per-user split); internal/core supervises the whole set under an
// errgroup.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"brooksengine/internal/broker"
	"brooksengine/internal/circuit"
	"brooksengine/internal/dispatch"
	"brooksengine/internal/events"
	"brooksengine/internal/journal"
	"brooksengine/internal/lifecycle"
	"brooksengine/internal/logging"
	"brooksengine/internal/market"
	"brooksengine/internal/orderflow"
	"brooksengine/internal/pattern"
	"brooksengine/internal/regime"
	"brooksengine/internal/risk"
	"brooksengine/internal/riskstop"
	"brooksengine/internal/session"
	"brooksengine/internal/signal"
	"brooksengine/internal/swing"
)

// Config holds the per-symbol tunables an Orchestrator needs beyond the
// domain packages' own Config structs (which it takes as-is).
type Config struct {
	EMAPeriod    int
	ATRPeriod    int
	Lookback     int
	HTFEMAPeriod int

	SwingDepth int

	MaxOpenPositions int
	BreakevenTick    float64 // price-unit buffer added past entry on breakeven promotion

	SoftStopMode        riskstop.SoftStopConfirmMode
	SoftStopConfirmBars int

	Regime    regime.Config
	Pattern   pattern.Config
	RiskStop  riskstop.Config
	OrderFlow orderflow.Config
	Session   session.Config
	Dispatch  dispatch.Config
	Risk      risk.Config
	Breaker   *circuit.CircuitBreakerConfig
}

// DefaultConfig returns sane per-symbol defaults layered on the domain
// packages' own DefaultConfig()s.
func DefaultConfig() Config {
	return Config{
		EMAPeriod:           20,
		ATRPeriod:           14,
		Lookback:            120,
		HTFEMAPeriod:        20,
		SwingDepth:          40,
		MaxOpenPositions:    3,
		BreakevenTick:       0.0,
		SoftStopMode:        riskstop.SoftStopOnClose,
		SoftStopConfirmBars: 1,
		Regime:              regime.DefaultConfig(),
		Pattern:             pattern.DefaultConfig(),
		RiskStop:            riskstop.DefaultConfig(),
		OrderFlow:           orderflow.DefaultConfig(),
		Session:             session.DefaultConfig(),
		Dispatch:            dispatch.DefaultConfig(),
		Risk: risk.Config{
			MaxRiskPerTrade:    1.0,
			MaxDailyDrawdown:   5.0,
			MaxOpenPositions:   3,
			PositionSizeMethod: "percent",
		},
		Breaker: circuit.DefaultCircuitBreakerConfig(),
	}
}

// Orchestrator drives one symbol's bar-by-bar pipeline: regime
// classification, pattern dispatch, position sizing, and twin-order
// lifecycle maintenance.
type Orchestrator struct {
	symbol string
	cfg    Config
	logger *logging.Logger

	primary *market.Buffer
	htf     *market.HTFBuffer
	swings  *swing.Tracker

	classifier *regime.Classifier
	flow       *orderflow.Analyser
	dispatcher *dispatch.Dispatcher

	lifecycle *lifecycle.Manager
	breaker   *circuit.CircuitBreaker
	riskMgr   *risk.RiskManager
	adapter   broker.Adapter
	bus       *events.EventBus

	lastRegimeState regime.MarketState
	haveLastState   bool
}

// New constructs an Orchestrator for one symbol. repo and jrnl may be nil
// (no persistence / no trade journal); guard may be nil (single-process
// dedup only). zl is the zerolog.Logger handed down to internal/lifecycle,
// matching the teacher's lower-layer-uses-zerolog split described in
// SPEC_FULL.md §1; the orchestrator's own logging goes through
// internal/logging, the same "outer layer" logger the dispatcher and cmd/
// entrypoints use.
func New(symbol string, cfg Config, adapter broker.Adapter, repo lifecycle.Repository, jrnl journal.Journal, bus *events.EventBus, guard market.DedupGuard, zl zerolog.Logger) *Orchestrator {
	zl = zl.With().Str("component", "lifecycle.Manager").Str("symbol", symbol).Logger()
	log := logging.Default().WithComponent("orchestrator").WithField("symbol", symbol)

	riskMgr := risk.NewRiskManager(&cfg.Risk)

	return &Orchestrator{
		symbol:     symbol,
		cfg:        cfg,
		logger:     log,
		primary:    market.NewBuffer(symbol, "primary", cfg.EMAPeriod, cfg.ATRPeriod, cfg.Lookback, guard),
		htf:        market.NewHTFBuffer(symbol, "htf", cfg.HTFEMAPeriod),
		swings:     swing.New(cfg.SwingDepth),
		classifier: regime.New(cfg.Regime),
		flow:       orderflow.New(cfg.OrderFlow),
		dispatcher: dispatch.New(cfg.Dispatch),
		lifecycle:  lifecycle.NewManager(adapter, repo, jrnl, zl, cfg.RiskStop, cfg.Session),
		breaker:    circuit.NewCircuitBreaker(cfg.Breaker, bus),
		riskMgr:    riskMgr,
		adapter:    adapter,
		bus:        bus,
	}
}

// SetAccountBalance feeds the risk sizer the current account equity, read
// by the core engine's periodic balance poll.
func (o *Orchestrator) SetAccountBalance(balance float64) {
	o.riskMgr.UpdateAccountBalance(balance)
}

// PrimaryBufferLen reports how many primary-timeframe bars are buffered,
// used by internal/core's tests to confirm a bar producer's output
// actually reached this Orchestrator.
func (o *Orchestrator) PrimaryBufferLen() int {
	return o.primary.Len()
}

// Symbol returns the symbol this Orchestrator drives, read by
// internal/api's status endpoint.
func (o *Orchestrator) Symbol() string {
	return o.symbol
}

// Positions returns every position this symbol's lifecycle manager
// currently tracks (pending or active; a position leaves the set as soon
// as it closes), read by internal/api's status endpoint.
func (o *Orchestrator) Positions() []*lifecycle.Position {
	return o.lifecycle.Positions()
}

// OnTrade folds one executed trade tick into the order-flow analyser.
func (o *Orchestrator) OnTrade(t orderflow.Trade) {
	o.flow.OnTrade(t)
}

// OnHTFBarClose folds a newly closed higher-timeframe bar into the HTF
// direction reading.
func (o *Orchestrator) OnHTFBarClose(ctx context.Context, bar market.Bar) {
	o.htf.OnBarClose(ctx, bar)
}

// OnTick runs spec.md §5's cheap OnTickExitOnly path: a soft-stop safety
// check against the live bid/ask, with no structural recomputation. The
// tick monitor task calls this on every quote; it never touches ATR, EMA,
// or swing state.
func (o *Orchestrator) OnTick(ctx context.Context, bid, ask float64) {
	for _, p := range o.lifecycle.Positions() {
		if p.Status != lifecycle.StatusActive {
			continue
		}
		price := ask
		if p.Side == signal.Buy {
			price = bid
		}
		o.lifecycle.EvaluateSoftStop(ctx, p.SignalID, price, riskstop.SoftStopOnClose, nil, 0)
	}
}

// OnBarClose runs the full per-bar pipeline: regime update, maintenance of
// existing positions, then dispatch and sizing of a new signal if one
// fires. bar is the just-closed primary-timeframe candle.
func (o *Orchestrator) OnBarClose(ctx context.Context, bar market.Bar) error {
	isNew, err := o.primary.OnPrimaryBarClose(ctx, bar)
	if err != nil {
		return fmt.Errorf("orchestrator: bar close: %w", err)
	}
	if !isNew {
		return nil
	}

	bars := o.primary.Bars()
	ema := o.primary.EMA()
	atr := o.primary.ATR()

	inputs := make([]swing.BarInput, len(bars))
	for i, b := range bars {
		inputs[i] = swing.BarInput{High: b.High, Low: b.Low}
	}
	o.swings.Update(inputs)

	reg := o.classifier.Update(bars, ema, atr, o.swings)
	o.maybePublishRegimeChange(reg.State)

	_, htfDir := o.htf.Direction(atr)
	o.dispatcher.SetHTFDirection(htfDir)

	spread, err := o.adapter.CurrentSpread(ctx, o.symbol)
	if err != nil {
		o.logger.WithError(err).Warn("failed to read current spread, using zero")
		spread = 0
	}
	o.dispatcher.SetSpread(spread)

	o.runMaintenance(ctx, bar)

	pctx := pattern.Context{Bars: bars, EMA: ema, ATR: atr, Swings: o.swings, Regime: reg, Spread: spread}
	flowSnap := o.flow.Snapshot(time.Now())

	sig, found := o.dispatcher.DispatchNewBar(pctx, flowSnap)
	if !found {
		return nil
	}

	o.exitOpposingOnClimax(ctx, sig)

	if ok, reason := o.breaker.CanTrade(); !ok {
		o.logger.WithField("reason", reason).Info("circuit breaker blocked new entry")
		return nil
	}
	if o.lifecycle.ActiveCount() >= o.cfg.MaxOpenPositions {
		o.logger.Debug("max open positions reached, dropping signal")
		return nil
	}
	if canOpen, reason := o.riskMgr.CanOpenPosition(); !canOpen {
		o.logger.WithField("reason", reason).Info("risk manager blocked new entry")
		return nil
	}

	return o.openPosition(ctx, sig, bars, atr, reg)
}

func (o *Orchestrator) openPosition(ctx context.Context, sig signal.Signal, bars []market.Bar, atr float64, reg regime.Result) error {
	entry := bars[0].Close
	fb := fourBarFrom(bars)
	tp2 := riskstop.MeasuredMoveTP2(sig.Side, entry, atr, fb, reg.State, reg.TightChannelDir, reg.TightChannelExtreme)

	lotStep, err := o.adapter.LotStep(ctx, o.symbol)
	if err != nil {
		return fmt.Errorf("orchestrator: lot step: %w", err)
	}

	totalQty := o.riskMgr.CalculatePositionSize(entry, sig.TechnicalStop)
	if totalQty <= 0 {
		o.logger.Warn("computed position size is zero, skipping entry")
		return nil
	}

	pos, err := o.lifecycle.OpenPosition(ctx, sig, o.symbol, totalQty, lotStep, entry, atr, tp2)
	if err != nil {
		o.bus.PublishError("orchestrator", "open position failed", err)
		return err
	}

	o.riskMgr.RegisterPositionOpen()
	o.bus.PublishSignal(o.symbol, sig.Kind.String(), sig.Side.String(), entry, sig.TechnicalStop)
	o.bus.PublishTradeOpened(o.symbol, sig.Side.String(), entry, totalQty)
	o.logger.WithFields(map[string]interface{}{"kind": sig.Kind.String(), "signal_id": pos.SignalID.String()}).Info("position opened")
	return nil
}

// fourBarFrom builds the last-two-bars extreme state riskstop's stop/target
// formulas need, per internal/riskstop.FourBar's doc.
func fourBarFrom(bars []market.Bar) riskstop.FourBar {
	var fb riskstop.FourBar
	if len(bars) > 0 {
		fb.H1, fb.L1 = bars[0].High, bars[0].Low
	}
	if len(bars) > 1 {
		fb.H2, fb.L2 = bars[1].High, bars[1].Low
	}
	return fb
}

// exitOpposingOnClimax force-closes any active position on the opposite
// side of a freshly fired climax signal, per spec.md §3's climax-exit rule.
func (o *Orchestrator) exitOpposingOnClimax(ctx context.Context, sig signal.Signal) {
	if sig.Kind != signal.KindClimaxBuy && sig.Kind != signal.KindClimaxSell {
		return
	}
	for _, p := range o.lifecycle.Positions() {
		if p.Status == lifecycle.StatusActive && p.Side != sig.Side {
			o.lifecycle.ExitOnClimax(ctx, p.SignalID)
		}
	}
}

// runMaintenance advances every open position's soft-stop check, breakeven
// promotion, structural trailing, and session close ahead of considering a
// new signal, per spec.md §3's per-bar ordering.
func (o *Orchestrator) runMaintenance(ctx context.Context, bar market.Bar) {
	now := time.Unix(bar.OpenTime, 0).UTC()
	o.lifecycle.CloseForFridayOrWeekend(ctx, now)

	confirmBars := o.cfg.SoftStopConfirmBars
	closes := recentCloses(o.primary.Bars(), confirmBars)

	for _, p := range o.lifecycle.Positions() {
		if p.Status != lifecycle.StatusActive {
			continue
		}
		o.lifecycle.EvaluateSoftStop(ctx, p.SignalID, bar.Close, o.cfg.SoftStopMode, closes, confirmBars)

		if p.Runner.Filled && !p.BreakevenDone && p.Scalp.TP > 0 {
			hit := (p.Side == signal.Buy && bar.High >= p.Scalp.TP) || (p.Side == signal.Sell && bar.Low <= p.Scalp.TP)
			if hit {
				o.lifecycle.PromoteBreakeven(ctx, p.SignalID, o.cfg.BreakevenTick)
			}
		}

		if p.Runner.Filled {
			o.trailStructural(ctx, p)
		}
	}
}

func (o *Orchestrator) trailStructural(ctx context.Context, p *lifecycle.Position) {
	if p.Side == signal.Buy {
		if newSL, updated := o.swings.StructuralStopBuy(p.Runner.EntryPrice, p.HardStop, o.primary.ATR()); updated {
			o.lifecycle.TrailStructural(ctx, p.SignalID, newSL)
		}
		return
	}
	if newSL, updated := o.swings.StructuralStopSell(p.Runner.EntryPrice, p.HardStop, o.primary.ATR()); updated {
		o.lifecycle.TrailStructural(ctx, p.SignalID, newSL)
	}
}

func recentCloses(bars []market.Bar, n int) []float64 {
	if n > len(bars) {
		n = len(bars)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = bars[i].Close // oldest-first, matching riskstop.CheckSoftStop's window semantics
	}
	return out
}

func (o *Orchestrator) maybePublishRegimeChange(state regime.MarketState) {
	if o.haveLastState && state == o.lastRegimeState {
		return
	}
	if o.haveLastState {
		o.bus.PublishRegimeChanged(o.symbol, o.lastRegimeState.String(), state.String())
	}
	o.lastRegimeState = state
	o.haveLastState = true
}

// RecordTradeResult feeds a closed trade's PnL percentage to the circuit
// breaker and risk manager. No code in this module calls it.
func (o *Orchestrator) RecordTradeResult(pnlPercent, pnlAbsolute float64) {
	o.breaker.RecordTrade(pnlPercent)
	o.riskMgr.RegisterPositionClose(pnlAbsolute)
}
