package pattern

import (
	"brooksengine/internal/regime"
	"brooksengine/internal/signal"
)

// DetectFailedBreakout implements spec.md §4.D's Failed-Breakout detector,
// grounded on original_source/logic/patterns.py's detect_failed_breakout:
// only active inside a Trading Range, requires the current bar to make the
// first new extreme beyond a 10-bar lookback (not a continuation of an
// already-trending extreme), and a reversal bar closing back through at
// least 60% of its range.
func DetectFailedBreakout(ctx Context, cfg Config) (signal.Signal, bool) {
	const shortLookback = 10
	cur, ok := ctx.bar(0)
	if !ok || len(ctx.Bars) < shortLookback+1 || cur.Range() == 0 {
		return signal.Signal{}, false
	}
	if ctx.Regime.State != regime.StateTradingRange {
		return signal.Signal{}, false
	}

	maxLookbackHigh, minLookbackLow := ctx.Bars[1].High, ctx.Bars[1].Low
	for i := 1; i <= shortLookback; i++ {
		b, ok := ctx.bar(i)
		if !ok {
			break
		}
		maxLookbackHigh = maxf(maxLookbackHigh, b.High)
		minLookbackLow = minf(minLookbackLow, b.Low)
	}

	p1, okP1 := ctx.bar(1)
	p2, okP2 := ctx.bar(2)

	if cur.High > maxLookbackHigh {
		priorAbove := 0
		if okP1 && p1.High > maxLookbackHigh*0.999 {
			priorAbove++
		}
		if okP2 && p2.High > maxLookbackHigh*0.999 {
			priorAbove++
		}
		if priorAbove >= 2 {
			return signal.Signal{}, false
		}
		if okP1 && p1.Range() > 0 && (p1.Close-p1.Low)/p1.Range() > 0.7 && p1.IsBullish() {
			return signal.Signal{}, false
		}
		if cur.IsBearish() {
			closePos := (cur.High - cur.Close) / cur.Range()
			if closePos >= 0.6 {
				stop := twoBarStop(ctx, signal.Sell)
				if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
					return signal.Signal{}, false
				}
				return signal.New(signal.KindFailedBreakoutSell, signal.Sell, stop, ctx.Regime.TRHigh-ctx.Regime.TRLow, 0), true
			}
		}
	}

	if cur.Low < minLookbackLow {
		priorBelow := 0
		if okP1 && p1.Low < minLookbackLow*1.001 {
			priorBelow++
		}
		if okP2 && p2.Low < minLookbackLow*1.001 {
			priorBelow++
		}
		if priorBelow >= 2 {
			return signal.Signal{}, false
		}
		if okP1 && p1.Range() > 0 && (p1.High-p1.Close)/p1.Range() > 0.7 && p1.IsBearish() {
			return signal.Signal{}, false
		}
		if cur.IsBullish() {
			closePos := (cur.Close - cur.Low) / cur.Range()
			if closePos >= 0.6 {
				stop := twoBarStop(ctx, signal.Buy)
				if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
					return signal.Signal{}, false
				}
				return signal.New(signal.KindFailedBreakoutBuy, signal.Buy, stop, ctx.Regime.TRHigh-ctx.Regime.TRLow, 0), true
			}
		}
	}

	return signal.Signal{}, false
}
