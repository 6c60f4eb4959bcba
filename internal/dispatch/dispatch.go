// Package dispatch implements spec.md §4.E's signal dispatcher: detector
// ordering, hard gates, the TTR suppression gate, HTF-bypass, cooldown and
// the order-flow modifier. Grounded on
// original_source/logic/scan_market.py's per-bar scan loop and
// original_source/logic/htf_filter.py's HTF gate.
package dispatch

import (
	"brooksengine/internal/market"
	"brooksengine/internal/orderflow"
	"brooksengine/internal/pattern"
	"brooksengine/internal/regime"
	"brooksengine/internal/signal"
)

// Config holds the dispatcher tunables named in spec.md §6.2.
type Config struct {
	SignalCooldownBars      int     // default 3
	CooldownMinATRMove      float64 // 1.5
	CooldownMaxRangeATR     float64 // 2.0
	HTFBypassGapCount       int     // 5, mirrors regime.Config.HTFBypassGapCount
	EnableOrderFlow         bool
	OrderFlowDropThreshold  float64 // 0.3, a multiplier at/below this drops the signal
	Pattern                 pattern.Config
}

// DefaultConfig mirrors spec.md §6.2's defaults.
func DefaultConfig() Config {
	return Config{
		SignalCooldownBars:     3,
		CooldownMinATRMove:     1.5,
		CooldownMaxRangeATR:    2.0,
		HTFBypassGapCount:      5,
		OrderFlowDropThreshold: 0.3,
		Pattern:                pattern.DefaultConfig(),
	}
}

// lastEntry tracks the dispatcher's own cooldown bookkeeping per side.
type lastEntry struct {
	barsAgo     int
	priceAtEntry float64
	valid       bool
}

// Dispatcher owns the stateful H1/H2/L1/L2 machines and cooldown state
// across bars (spec.md §9: "each becomes a field of the owning
// component").
type Dispatcher struct {
	cfg Config

	hl *pattern.HLCounter
	h  *pattern.HState
	l  *pattern.LState

	lastBuy, lastSell lastEntry

	htfDirection string // "up"/"down"/"" (neutral), updated externally each HTF bar close
	spread       float64
}

// New constructs a Dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		cfg: cfg,
		hl:  pattern.NewHLCounter(cfg.Pattern),
		h:   pattern.NewHState(cfg.Pattern),
		l:   pattern.NewLState(cfg.Pattern),
	}
}

// SetHTFDirection updates the HTF-filter input; called by the HTF bar
// producer task of spec.md §5.
func (d *Dispatcher) SetHTFDirection(dir string) { d.htfDirection = dir }

// SetSpread records the current spread. The dispatcher only stores it; its
// gates and detectors do not read this field (detectors see the spread
// through pattern.Context.Spread).
func (d *Dispatcher) SetSpread(spread float64) { d.spread = spread }

// tickCooldowns ages the cooldown counters by one bar; called once per
// dispatched bar regardless of outcome.
func (d *Dispatcher) tickCooldowns() {
	if d.lastBuy.valid {
		d.lastBuy.barsAgo++
	}
	if d.lastSell.valid {
		d.lastSell.barsAgo++
	}
}

func (d *Dispatcher) recordEntry(side signal.Side, price float64) {
	if side == signal.Buy {
		d.lastBuy = lastEntry{barsAgo: 0, priceAtEntry: price, valid: true}
	} else {
		d.lastSell = lastEntry{barsAgo: 0, priceAtEntry: price, valid: true}
	}
}

func (d *Dispatcher) cooldownBlocks(side signal.Side, cur market.Bar, recentRangeATR float64) bool {
	e := d.lastBuy
	if side == signal.Sell {
		e = d.lastSell
	}
	if !e.valid || e.barsAgo >= d.cfg.SignalCooldownBars {
		return false
	}
	moved := cur.Close - e.priceAtEntry
	if moved < 0 {
		moved = -moved
	}
	if moved >= d.cfg.CooldownMinATRMove {
		return false
	}
	if recentRangeATR >= d.cfg.CooldownMaxRangeATR {
		return false
	}
	return true
}

// htfBlocks implements spec.md §4.E's HTF filter, including the 20-Gap
// bypass.
func (d *Dispatcher) htfBlocks(side signal.Side, reg regime.Result) bool {
	bypass := reg.State == regime.StateStrongTrend && reg.Gap.GapCount >= d.cfg.HTFBypassGapCount
	if bypass {
		return false
	}
	if side == signal.Buy && d.htfDirection == "down" {
		return true
	}
	if side == signal.Sell && d.htfDirection == "up" {
		return true
	}
	return false
}

// ttrSuppressesTrend implements spec.md §4.E's TTR gate: overlap-ratio of
// the last 20 bars < 0.4 and TR width < 2.5xATR suppresses
// trend-continuation/breakout signals.
func ttrSuppressesTrend(ctx pattern.Context, cfg Config) bool {
	n := 20
	if len(ctx.Bars) < n+1 {
		return false
	}
	overlapSum := 0.0
	for i := 0; i < n; i++ {
		overlapSum += ctx.Bars[i].Overlap(ctx.Bars[i+1])
	}
	avgOverlap := overlapSum / float64(n)
	if avgOverlap >= cfg.Pattern.TTROverlapMax {
		return false
	}
	hi, lo := ctx.Bars[0].High, ctx.Bars[0].Low
	for i := 1; i < n; i++ {
		hi = maxf(hi, ctx.Bars[i].High)
		lo = minf(lo, ctx.Bars[i].Low)
	}
	if ctx.ATR <= 0 {
		return false
	}
	return (hi - lo) <= cfg.Pattern.TTRRangeATRMult*ctx.ATR
}

// DispatchNewBar implements spec.md §4.E's dispatch_new_bar contract: runs
// the full ordering/gate cascade against the just-closed bar snapshot and
// returns at most one Signal.
func (d *Dispatcher) DispatchNewBar(ctx pattern.Context, flow orderflow.Snapshot) (signal.Signal, bool) {
	d.tickCooldowns()
	d.hl.Update(ctx.Bars, ctx.ATR, ctx.Swings)

	if len(ctx.Bars) == 0 {
		return signal.Signal{}, false
	}
	cur := ctx.Bars[0]

	if ctx.Regime.BarbWireActive {
		return signal.Signal{}, false
	}

	// Breakout-Mode pullback runs first and, if it fires, pre-empts
	// everything else this bar.
	if ctx.Regime.BreakoutModeActive {
		if sig, ok := pattern.DetectBreakoutPullback(ctx, d.cfg.Pattern); ok {
			return d.finalize(ctx, sig, flow)
		}
	}

	ttrSuppress := ttrSuppressesTrend(ctx, d.cfg)

	if !ttrSuppress {
		if sig, ok := d.runTrendContinuation(ctx); ok {
			if d.gateOK(ctx, sig, cur) {
				return d.finalize(ctx, sig, flow)
			}
		}
	}

	if sig, ok := d.runReversal(ctx); ok {
		if d.gateOK(ctx, sig, cur) {
			return d.finalize(ctx, sig, flow)
		}
	}

	return signal.Signal{}, false
}

func (d *Dispatcher) runTrendContinuation(ctx pattern.Context) (signal.Signal, bool) {
	if sig, ok := pattern.DetectSpike(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectMicroChannel(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := d.h.Detect(ctx, d.hl); ok {
		return sig, true
	}
	if sig, ok := d.l.Detect(ctx, d.hl); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectTrendBar(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectGapBar(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectTRBreakout(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if d.cfg.Pattern.EmergencySpikeEnabled {
		if sig, ok := pattern.DetectEmergencySpike(ctx, d.cfg.Pattern); ok {
			return sig, true
		}
	}
	if d.cfg.Pattern.MicroChannelH1Enabled {
		if sig, ok := pattern.DetectMicroChannelH1(ctx, d.cfg.Pattern, d.hl); ok {
			return sig, true
		}
	}
	return signal.Signal{}, false
}

func (d *Dispatcher) runReversal(ctx pattern.Context) (signal.Signal, bool) {
	if sig, ok := pattern.DetectClimax(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectWedge(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectMTR(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectFailedBreakout(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectDoubleTopBottom(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectOutsideBar(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectReversalBar(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectIIPattern(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectMeasuredMove(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	if sig, ok := pattern.DetectFinalFlagReversal(ctx, d.cfg.Pattern); ok {
		return sig, true
	}
	return signal.Signal{}, false
}

// gateOK applies the hard gates of spec.md §4.E that are common to every
// detector's output.
func (d *Dispatcher) gateOK(ctx pattern.Context, sig signal.Signal, cur market.Bar) bool {
	if ctx.Regime.State == regime.StateStrongTrend {
		trendSide := ctx.Regime.TightChannelDir
		if sig.Side != trendSide && sig.Kind.IsReversal() {
			return false
		}
	}
	if ctx.Regime.Cycle == regime.CycleSpike && sig.Kind.IsReversal() {
		if !(sig.Kind == signal.KindClimaxBuy || sig.Kind == signal.KindClimaxSell) || !d.cfg.Pattern.ClimaxStrictMode {
			return false
		}
	}
	if d.htfBlocks(sig.Side, ctx.Regime) {
		return false
	}
	recentRangeATR := 0.0
	if ctx.ATR > 0 && len(ctx.Bars) > 0 {
		recentRangeATR = cur.Range() / ctx.ATR
	}
	if d.cooldownBlocks(sig.Side, cur, recentRangeATR) {
		return false
	}
	return true
}

func (d *Dispatcher) finalize(ctx pattern.Context, sig signal.Signal, flow orderflow.Snapshot) (signal.Signal, bool) {
	if d.cfg.EnableOrderFlow {
		mult := orderflow.Multiplier(flow, sig.Side == signal.Buy)
		if mult <= d.cfg.OrderFlowDropThreshold {
			return signal.Signal{}, false
		}
	}
	if len(ctx.Bars) > 0 {
		d.recordEntry(sig.Side, ctx.Bars[0].Close)
	}
	return sig, true
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
