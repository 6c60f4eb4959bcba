// Package regime implements spec.md §4.C's market-regime classifier: the
// six-state MarketState/MarketCycle/AlwaysIn cascade, state inertia, the
// 20-Gap overextension machine, Barb-Wire, Measuring-Gap and Breakout-Mode
// flags. Detection order follows original_source/logic/market_state.py's
// actual if/elif cascade (StrongTrend → TightChannel → FinalFlag →
// TradingRange → Breakout → else Channel) — spec.md §4.C numbers the same
// six detectors 2-6 for exposition, not execution order; SPEC_FULL.md §4.C
// records this resolution.
package regime

import (
	"brooksengine/internal/market"
	"brooksengine/internal/signal"
	"brooksengine/internal/swing"
)

// MarketState is one of the six Brooks-methodology regimes.
type MarketState int

const (
	StateChannel MarketState = iota
	StateStrongTrend
	StateBreakout
	StateTradingRange
	StateTightChannel
	StateFinalFlag
)

func (s MarketState) String() string {
	switch s {
	case StateStrongTrend:
		return "strong_trend"
	case StateBreakout:
		return "breakout"
	case StateTradingRange:
		return "trading_range"
	case StateTightChannel:
		return "tight_channel"
	case StateFinalFlag:
		return "final_flag"
	default:
		return "channel"
	}
}

// MarketCycle is derived from MarketState per spec.md §3.
type MarketCycle int

const (
	CycleChannel MarketCycle = iota
	CycleSpike
	CycleTradingRange
)

func cycleFor(s MarketState) MarketCycle {
	switch s {
	case StateBreakout:
		return CycleSpike
	case StateTradingRange:
		return CycleTradingRange
	default:
		return CycleChannel
	}
}

// AlwaysIn is Brooks' single authoritative "who is in control now" scalar.
type AlwaysIn int

const (
	AlwaysInNeutral AlwaysIn = iota
	AlwaysInLong
	AlwaysInShort
)

func (a AlwaysIn) String() string {
	switch a {
	case AlwaysInLong:
		return "long"
	case AlwaysInShort:
		return "short"
	default:
		return "neutral"
	}
}

// Config holds every tunable named in spec.md §6.2 that the classifier
// consumes. It is plain data handed in at construction; this package never
// imports the config package (config/), which embeds this struct, per
// spec.md §9's no-back-edges design note.
type Config struct {
	StrongTrendScore       float64 // default 0.50
	TightChannelLookback   int     // 12
	TradingRangeLookback   int     // 20
	GapBarThreshold        int     // 20
	HTFBypassGapCount      int     // 5
	BarbWireMinBars        int     // 3
	BarbWireBodyRatio      float64 // 0.35
	MeasuringGapMinATRMult float64 // 0.3
	BreakoutModeATRMult    float64 // 1.5
	BreakoutModeBars       int     // 5
}

// DefaultConfig returns the constants from original_source/logic/constants.py,
// which SPEC_FULL.md §4.C confirms match spec.md §6.2's defaults byte-for-byte.
func DefaultConfig() Config {
	return Config{
		StrongTrendScore:       0.50,
		TightChannelLookback:   12,
		TradingRangeLookback:   20,
		GapBarThreshold:        20,
		HTFBypassGapCount:      5,
		BarbWireMinBars:        3,
		BarbWireBodyRatio:      0.35,
		MeasuringGapMinATRMult: 0.3,
		BreakoutModeATRMult:    1.5,
		BreakoutModeBars:       5,
	}
}

var minHold = map[MarketState]int{
	StateStrongTrend:  3,
	StateTightChannel: 3,
	StateTradingRange: 2,
	StateBreakout:     2,
	StateChannel:      1,
	StateFinalFlag:    1,
}

// GapInfo describes an active Measuring-Gap, spec.md §4.C bullet 10.
type GapInfo struct {
	Low, High float64
	Side      signal.Side
	BarsSince int
}

// TwentyGap is the overextension state machine of spec.md §3/§4.C bullet 8.
type TwentyGap struct {
	GapCount                 int
	Overextended             bool
	Direction                signal.Side
	WaitingForRecovery       bool
	ConsolidationCount       int
	PullbackExtreme          float64
	FirstPullbackComplete    bool
}

// Result is the classifier's per-bar output snapshot.
type Result struct {
	State    MarketState
	Cycle    MarketCycle
	AlwaysIn AlwaysIn

	TightChannelDir     signal.Side
	TightChannelExtreme float64

	TRHigh, TRLow float64

	BarbWireActive bool

	MeasuringGap *GapInfo

	BreakoutModeActive bool
	BreakoutModeBars   int

	Gap TwentyGap

	FinalFlagDir     signal.Side
	FinalFlagExtreme float64 // the tight channel's own extreme, pre-flag
	FinalFlagHigh    float64 // flag range high since the channel ended
	FinalFlagLow     float64
}

// Classifier runs the regime cascade on each newly closed bar. It owns all
// mutable regime state (no process-wide globals, per spec.md §9).
type Classifier struct {
	cfg Config

	state       MarketState
	holdBars    int
	alwaysIn    AlwaysIn

	tightChannelDir     signal.Side
	tightChannelExtreme float64

	trHigh, trLow float64

	barbWireRun int

	gap         TwentyGap
	measuring   *GapInfo

	breakoutModeActive bool
	breakoutModeBars   int
	breakoutModeExtreme float64

	finalFlagHigh, finalFlagLow float64
}

// New constructs a Classifier.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, state: StateChannel}
}

// Update runs the full cascade against the closed-bar snapshot (newest
// first, bars[0] = just-closed bar) and returns the new Result.
func (c *Classifier) Update(bars []market.Bar, ema, atr float64, swings *swing.Tracker) Result {
	if len(bars) == 0 || atr <= 0 {
		return Result{State: c.state, Cycle: cycleFor(c.state), AlwaysIn: c.alwaysIn}
	}

	c.updateAlwaysIn(bars, ema, atr, swings)

	tentative := c.classify(bars, ema, atr)
	c.applyInertia(tentative)

	c.updateTwentyGap(bars, ema, atr)
	c.updateBarbWire(bars, atr)
	c.updateMeasuringGap(bars, atr)
	c.updateBreakoutMode(bars, atr, swings)

	return Result{
		State:               c.state,
		Cycle:               cycleFor(c.state),
		AlwaysIn:            c.alwaysIn,
		TightChannelDir:      c.tightChannelDir,
		TightChannelExtreme: c.tightChannelExtreme,
		TRHigh:              c.trHigh,
		TRLow:               c.trLow,
		BarbWireActive:      c.barbWireRun >= c.cfg.BarbWireMinBars,
		MeasuringGap:        c.measuring,
		BreakoutModeActive:  c.breakoutModeActive,
		BreakoutModeBars:    c.breakoutModeBars,
		Gap:                 c.gap,
		FinalFlagDir:        c.tightChannelDir,
		FinalFlagExtreme:    c.tightChannelExtreme,
		FinalFlagHigh:       c.finalFlagHigh,
		FinalFlagLow:        c.finalFlagLow,
	}
}

// classify runs the cascade StrongTrend → TightChannel → FinalFlag →
// TradingRange → Breakout → else Channel, returning the tentative (pre-
// inertia) state.
func (c *Classifier) classify(bars []market.Bar, ema, atr float64) MarketState {
	if side, ok := c.strongTrend(bars, ema, atr); ok {
		c.tightChannelDir = side
		return StateStrongTrend
	}
	if side, extreme, ok := c.tightChannel(bars, atr); ok {
		c.tightChannelDir = side
		c.tightChannelExtreme = extreme
		return StateTightChannel
	}
	if c.finalFlag(bars, ema, atr) {
		return StateFinalFlag
	}
	if hi, lo, ok := c.tradingRange(bars, atr); ok {
		c.trHigh, c.trLow = hi, lo
		return StateTradingRange
	}
	if c.breakout(bars) {
		return StateBreakout
	}
	return StateChannel
}

func (c *Classifier) applyInertia(tentative MarketState) {
	if tentative == c.state {
		c.holdBars++
		return
	}
	if c.holdBars < minHold[c.state] {
		c.holdBars++
		return // locked in: the tentative change is ignored within the hold window
	}
	c.state = tentative
	c.holdBars = 1
}

// strongTrend scores the last 5 bars: 0.15 for each bullish bar closing
// above EMA (long) or bearish bar closing below EMA (short), plus the
// current close's distance from EMA in ATR units (distance/3, capped at
// 0.25). A side wins at >= StrongTrendScore with a lead of >= 0.1. Whether
// the bars are consecutive and whether highs/lows are rising or falling
// are not scored.
func (c *Classifier) strongTrend(bars []market.Bar, ema, atr float64) (signal.Side, bool) {
	n := 5
	if len(bars) < n {
		n = len(bars)
	}
	var longScore, shortScore float64
	for i := 0; i < n; i++ {
		b := bars[i]
		if b.IsBullish() && b.Close > ema {
			longScore += 0.15
		}
		if b.IsBearish() && b.Close < ema {
			shortScore += 0.15
		}
	}
	distATR := (bars[0].Close - ema) / atr
	if distATR > 0 {
		longScore += min1(distATR/3, 0.25)
	} else {
		shortScore += min1(-distATR/3, 0.25)
	}

	switch {
	case longScore >= c.cfg.StrongTrendScore && longScore-shortScore >= 0.1:
		return signal.Buy, true
	case shortScore >= c.cfg.StrongTrendScore && shortScore-longScore >= 0.1:
		return signal.Sell, true
	default:
		return 0, false
	}
}

func min1(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	if v < 0 {
		return 0
	}
	return v
}

// tightChannel implements spec.md §4.C bullet 3.
func (c *Classifier) tightChannel(bars []market.Bar, atr float64) (signal.Side, float64, bool) {
	n := c.cfg.TightChannelLookback
	if len(bars) < n+1 {
		return 0, 0, false
	}
	var bullish, bearish, newHigh, newLow, shallowPullback int
	runningHigh, runningLow := bars[n].High, bars[n].Low
	for i := n - 1; i >= 0; i-- {
		b := bars[i]
		if b.IsBullish() {
			bullish++
		} else if b.IsBearish() {
			bearish++
		}
		if b.High > runningHigh {
			newHigh++
			runningHigh = b.High
		}
		if b.Low < runningLow {
			newLow++
			runningLow = b.Low
		}
		prev := bars[i+1]
		if prev.Range() > 0 {
			pullback := 0.0
			if b.IsBullish() {
				pullback = (prev.High - b.Low)
			} else {
				pullback = (b.High - prev.Low)
			}
			if pullback >= 0 && pullback <= 0.25*prev.Range() {
				shallowPullback++
			}
		}
	}

	if float64(bullish)/float64(n) >= 0.6 && float64(newHigh)/float64(n) >= 0.5 && float64(shallowPullback)/float64(n) >= 0.4 {
		return signal.Buy, bars[0].High, true
	}
	if float64(bearish)/float64(n) >= 0.6 && float64(newLow)/float64(n) >= 0.5 && float64(shallowPullback)/float64(n) >= 0.4 {
		return signal.Sell, bars[0].Low, true
	}
	return 0, 0, false
}

// tradingRange implements spec.md §4.C bullet 4.
func (c *Classifier) tradingRange(bars []market.Bar, atr float64) (hi, lo float64, ok bool) {
	n := c.cfg.TradingRangeLookback
	if len(bars) < n {
		return 0, 0, false
	}
	hi, lo = bars[0].High, bars[0].Low
	for i := 1; i < n; i++ {
		hi = maxf(hi, bars[i].High)
		lo = minf(lo, bars[i].Low)
	}
	if hi-lo < 2*atr {
		return 0, 0, false
	}

	upperZone := hi - 0.25*(hi-lo)
	lowerZone := lo + 0.25*(hi-lo)
	var upperTouches, lowerTouches, emaCrosses int
	var prevAboveEMA *bool
	for i := 0; i < n; i++ {
		b := bars[i]
		if b.High >= upperZone {
			upperTouches++
		}
		if b.Low <= lowerZone {
			lowerTouches++
		}
		above := b.Close > (hi+lo)/2
		if prevAboveEMA != nil && *prevAboveEMA != above {
			emaCrosses++
		}
		prevAboveEMA = &above
	}

	if upperTouches >= 2 && lowerTouches >= 2 && emaCrosses >= 4 {
		return hi, lo, true
	}
	return 0, 0, false
}

// breakout implements spec.md §4.C bullet 5.
func (c *Classifier) breakout(bars []market.Bar) bool {
	if len(bars) < 11 {
		return false
	}
	var sum float64
	for i := 1; i <= 10; i++ {
		sum += bars[i].Body()
	}
	meanBody := sum / 10
	b := bars[0]
	return b.Body() > 1.5*meanBody && (b.ClosePosition() >= 0.7 || b.ClosePosition() <= 0.3)
}

// finalFlag qualifies when the current state is not TightChannel, has been
// held for 3-8 bars, and price is still >=0.5xATR from EMA in the last
// tight channel's direction. The length of the preceding tight channel is
// not checked, and the 3-8 count is the hold count of the current state,
// not of bars since the channel ended. It also records the flag's own
// high/low range (the bars since the channel ended, excluding the current
// one) for DetectFinalFlagReversal in internal/pattern, grounded on
// original_source/logic/final_flag_reversal.py's flag_high/flag_low.
func (c *Classifier) finalFlag(bars []market.Bar, ema, atr float64) bool {
	if c.state != StateTightChannel && (c.holdBars < 3 || c.holdBars > 8) {
		return false
	}
	if c.state == StateTightChannel {
		return false // still inside the channel itself
	}
	dist := (bars[0].Close - ema) / atr
	qualifies := dist >= 0.5
	if c.tightChannelDir == signal.Sell {
		qualifies = -dist >= 0.5
	}
	if !qualifies {
		return false
	}

	n := c.holdBars
	if n > len(bars)-1 {
		n = len(bars) - 1
	}
	if n < 1 {
		return false
	}
	hi, lo := bars[1].High, bars[1].Low
	for i := 2; i <= n; i++ {
		hi = maxf(hi, bars[i].High)
		lo = minf(lo, bars[i].Low)
	}
	c.finalFlagHigh, c.finalFlagLow = hi, lo
	return true
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
