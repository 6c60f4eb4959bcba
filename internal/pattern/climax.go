package pattern

import "brooksengine/internal/signal"

// DetectClimax implements spec.md §4.D's Climax detector, grounded on
// original_source/logic/patterns.py's detect_climax_reversal: a prior bar's
// range exceeding SpikeClimaxATRMult*ATR in the trend direction, followed by
// a reversal bar closing back through its open, a qualifying tail, and a
// deep enough prior move to rule out a shallow pullback.
func DetectClimax(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	prev, okPrev := ctx.bar(1)
	prior, okPrior := ctx.bar(3)
	if !ok || !okPrev || !okPrior || ctx.ATR <= 0 || cur.Range() == 0 {
		return signal.Signal{}, false
	}

	// Climax up -> reversal sell.
	if prev.Range() > cfg.SpikeClimaxATRMult*ctx.ATR && prev.IsBullish() {
		if cur.IsBearish() && cur.Close < prev.Close && cur.ClosePosition() <= 0.25 {
			upperTail := cur.High - maxf(cur.Open, cur.Close)
			if upperTail/cur.Range() < 0.15 {
				return signal.Signal{}, false
			}
			priorMove := prev.High - prior.Low
			if priorMove < 1.5*ctx.ATR {
				return signal.Signal{}, false
			}
			stop := twoBarStop(ctx, signal.Sell)
			if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			return signal.New(signal.KindClimaxSell, signal.Sell, stop, prev.Range(), 0), true
		}
	}

	// Climax down -> reversal buy.
	if prev.Range() > cfg.SpikeClimaxATRMult*ctx.ATR && prev.IsBearish() {
		if cur.IsBullish() && cur.Close > prev.Close && cur.ClosePosition() >= 0.75 {
			lowerTail := minf(cur.Open, cur.Close) - cur.Low
			if lowerTail/cur.Range() < 0.15 {
				return signal.Signal{}, false
			}
			priorMove := prior.High - prev.Low
			if priorMove < 1.5*ctx.ATR {
				return signal.Signal{}, false
			}
			stop := twoBarStop(ctx, signal.Buy)
			if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
				return signal.Signal{}, false
			}
			return signal.New(signal.KindClimaxBuy, signal.Buy, stop, prev.Range(), 0), true
		}
	}

	return signal.Signal{}, false
}

// twoBarStop is the "unified stop loss" of patterns.py: min/max of the
// previous two bars' extreme, widened to 2xATR from entry if that is
// further away.
func twoBarStop(ctx Context, side signal.Side) float64 {
	cur, _ := ctx.bar(0)
	b1, ok1 := ctx.bar(1)
	b2, ok2 := ctx.bar(2)
	if !ok1 || !ok2 {
		if side == signal.Buy {
			return cur.Close * 0.98
		}
		return cur.Close * 1.02
	}
	if side == signal.Buy {
		twoBarLow := minf(b1.Low, b2.Low)
		if ctx.ATR > 0 {
			return minf(twoBarLow, cur.Close-2*ctx.ATR)
		}
		return twoBarLow
	}
	twoBarHigh := maxf(b1.High, b2.High)
	if ctx.ATR > 0 {
		return maxf(twoBarHigh, cur.Close+2*ctx.ATR)
	}
	return twoBarHigh
}
