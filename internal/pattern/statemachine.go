package pattern

import (
	"brooksengine/internal/market"
	"brooksengine/internal/regime"
	"brooksengine/internal/signal"
)

// HPhase/LPhase implement the four-state H1/H2 and L1/L2 machines from
// original_source/logic/state_machines.py, supplemented with its 0.3%
// EMA-tolerance trend filter and its minimum counting-bars gap between H1
// and H2 (spec.md describes the push-counting invariant but not these two
// details — SPEC_FULL.md §5 records them as restored distillation details).
type HPhase int

const (
	HWaitingForPullback HPhase = iota
	HInPullback
	H1Detected
	HWaitingForH2
)

type LPhase int

const (
	LWaitingForBounce LPhase = iota
	LInBounce
	L1Detected
	LWaitingForL2
)

// HState drives the H1/H2 detector.
type HState struct {
	cfg       Config
	phase     HPhase
	h1BarSeen int // bars elapsed since H1Detected, for the counting-bars rule
	h1Extreme float64
}

// NewHState constructs an HState.
func NewHState(cfg Config) *HState { return &HState{cfg: cfg} }

func (s *HState) isAboveEMAWithTolerance(close, ema float64) bool {
	return close > ema*(1-s.cfg.EMATolerancePct)
}

func hasCountingBars(barsSinceH1, min int) bool {
	return barsSinceH1 >= min
}

// Detect implements the H1/H2 state machine. It requires an "extremely
// strong" regime plus >=4 of the last 5 bars in trend direction for H1,
// and is blocked when the 20-Gap machine forbids the first pullback.
func (s *HState) Detect(ctx Context, hl *HLCounter) (signal.Signal, bool) {
	b, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	switch s.phase {
	case HWaitingForPullback:
		if hl.BuyPushes() >= 1 && s.isAboveEMAWithTolerance(b.Close, ctx.EMA) {
			s.phase = HInPullback
		}
		return signal.Signal{}, false

	case HInPullback:
		if b.Low < ctx.EMA && b.IsBearish() {
			return signal.Signal{}, false // deeper pullback, keep waiting
		}
		if b.IsBullish() && b.ClosePosition() >= 0.6 {
			h1Blocked := ctx.Regime.Gap.Overextended && !ctx.Regime.Gap.FirstPullbackComplete
			strongRegime := ctx.Regime.State == regime.StateStrongTrend && countTrendBars(ctx.Bars, signal.Buy) >= 4
			if h1Blocked || !strongRegime {
				return signal.Signal{}, false
			}
			stop := b.Low - stopBuffer(ctx.ATR, ctx.Spread)
			if !withinMaxStop(b.Close, stop, ctx.ATR, s.cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			s.phase = HWaitingForH2
			s.h1BarSeen = 0
			s.h1Extreme = b.High
			return signal.New(signal.KindH1Buy, signal.Buy, stop, 0, 0), true
		}
		return signal.Signal{}, false

	case HWaitingForH2:
		s.h1BarSeen++
		if b.High > s.h1Extreme && hasCountingBars(s.h1BarSeen, s.cfg.CountingBarsMin) && b.IsBullish() && b.ClosePosition() >= 0.6 {
			low1, ok := ctx.Swings.RecentSwingLow(1, true)
			stop := b.Low - stopBuffer(ctx.ATR, ctx.Spread)
			if ok {
				stop = low1.Price - stopBuffer(ctx.ATR, ctx.Spread)
			}
			if !withinMaxStop(b.Close, stop, ctx.ATR, s.cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			s.phase = HWaitingForPullback
			return signal.New(signal.KindH2Buy, signal.Buy, stop, 0, 0), true
		}
		if b.Low < ctx.EMA {
			s.phase = HWaitingForPullback
		}
		return signal.Signal{}, false
	}
	return signal.Signal{}, false
}

// LState mirrors HState for the sell side.
type LState struct {
	cfg       Config
	phase     LPhase
	l1BarSeen int
	l1Extreme float64
}

// NewLState constructs an LState.
func NewLState(cfg Config) *LState { return &LState{cfg: cfg} }

func (s *LState) isBelowEMAWithTolerance(close, ema float64) bool {
	return close < ema*(1+s.cfg.EMATolerancePct)
}

func (s *LState) Detect(ctx Context, hl *HLCounter) (signal.Signal, bool) {
	b, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	switch s.phase {
	case LWaitingForBounce:
		if hl.SellPushes() >= 1 && s.isBelowEMAWithTolerance(b.Close, ctx.EMA) {
			s.phase = LInBounce
		}
		return signal.Signal{}, false

	case LInBounce:
		if b.High > ctx.EMA && b.IsBullish() {
			return signal.Signal{}, false
		}
		if b.IsBearish() && b.ClosePosition() <= 0.4 {
			l1Blocked := ctx.Regime.Gap.Overextended && !ctx.Regime.Gap.FirstPullbackComplete
			strongRegime := ctx.Regime.State == regime.StateStrongTrend && countTrendBars(ctx.Bars, signal.Sell) >= 4
			if l1Blocked || !strongRegime {
				return signal.Signal{}, false
			}
			stop := b.High + stopBuffer(ctx.ATR, ctx.Spread)
			if !withinMaxStop(b.Close, stop, ctx.ATR, s.cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			s.phase = LWaitingForL2
			s.l1BarSeen = 0
			s.l1Extreme = b.Low
			return signal.New(signal.KindL1Sell, signal.Sell, stop, 0, 0), true
		}
		return signal.Signal{}, false

	case LWaitingForL2:
		s.l1BarSeen++
		if b.Low < s.l1Extreme && hasCountingBars(s.l1BarSeen, s.cfg.CountingBarsMin) && b.IsBearish() && b.ClosePosition() <= 0.4 {
			high1, ok := ctx.Swings.RecentSwingHigh(1, true)
			stop := b.High + stopBuffer(ctx.ATR, ctx.Spread)
			if ok {
				stop = high1.Price + stopBuffer(ctx.ATR, ctx.Spread)
			}
			if !withinMaxStop(b.Close, stop, ctx.ATR, s.cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			s.phase = LWaitingForBounce
			return signal.New(signal.KindL2Sell, signal.Sell, stop, 0, 0), true
		}
		if b.High > ctx.EMA {
			s.phase = LWaitingForBounce
		}
		return signal.Signal{}, false
	}
	return signal.Signal{}, false
}

func countTrendBars(bars []market.Bar, side signal.Side) int {
	n := 5
	if len(bars) < n {
		n = len(bars)
	}
	count := 0
	for i := 0; i < n; i++ {
		if (side == signal.Buy && bars[i].IsBullish()) || (side == signal.Sell && bars[i].IsBearish()) {
			count++
		}
	}
	return count
}

