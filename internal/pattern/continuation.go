package pattern

import "brooksengine/internal/signal"

// DetectMeasuredMove implements spec.md §4.D's Measured-Move detector: the
// most recent impulse's base height (trading-range width, or the distance
// between the last two opposing swings otherwise) projected from the
// impulse's origin; when the current bar reaches within 0.1xATR of that
// projected level and shows a rejection bar, fires the reversal opposite
// the approaching move.
func DetectMeasuredMove(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	baseHeight := measuredMoveBase(ctx)
	if baseHeight <= 0 {
		return signal.Signal{}, false
	}

	high1, okH := ctx.Swings.RecentSwingHigh(1, true)
	low1, okL := ctx.Swings.RecentSwingLow(1, true)

	if okL && cur.High >= low1.Price+baseHeight-0.1*ctx.ATR && cur.IsBearish() && cur.BodyRatio() >= 0.4 && cur.ClosePosition() <= 0.4 {
		stop := cur.High + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindMeasuredMoveSell, signal.Sell, stop, baseHeight, 0), true
		}
	}
	if okH && cur.Low <= high1.Price-baseHeight+0.1*ctx.ATR && cur.IsBullish() && cur.BodyRatio() >= 0.4 && cur.ClosePosition() >= 0.6 {
		stop := cur.Low - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindMeasuredMoveBuy, signal.Buy, stop, baseHeight, 0), true
		}
	}
	return signal.Signal{}, false
}

func measuredMoveBase(ctx Context) float64 {
	if ctx.Regime.TRHigh > ctx.Regime.TRLow {
		h := ctx.Regime.TRHigh - ctx.Regime.TRLow
		if h >= 0.5*ctx.ATR && h <= 5*ctx.ATR {
			return h
		}
	}
	high1, okH := ctx.Swings.RecentSwingHigh(1, true)
	low1, okL := ctx.Swings.RecentSwingLow(1, true)
	if okH && okL {
		h := absf(high1.Price - low1.Price)
		if h >= 0.5*ctx.ATR && h <= 8*ctx.ATR {
			return h
		}
	}
	return 2 * ctx.ATR
}

// DetectTRBreakout implements spec.md §4.D's TR-Breakout detector: a close
// beyond the Trading-Range bounds with body-ratio>0.5.
func DetectTRBreakout(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 || ctx.Regime.TRHigh <= ctx.Regime.TRLow || cur.BodyRatio() <= 0.5 {
		return signal.Signal{}, false
	}

	if cur.Close > ctx.Regime.TRHigh && cur.IsBullish() {
		stop := minf(ctx.Regime.TRHigh-0.2*ctx.ATR, cur.Low-stopBuffer(ctx.ATR, ctx.Spread))
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindTRBreakoutBuy, signal.Buy, stop, ctx.Regime.TRHigh-ctx.Regime.TRLow, 0), true
		}
	}
	if cur.Close < ctx.Regime.TRLow && cur.IsBearish() {
		stop := maxf(ctx.Regime.TRLow+0.2*ctx.ATR, cur.High+stopBuffer(ctx.ATR, ctx.Spread))
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindTRBreakoutSell, signal.Sell, stop, ctx.Regime.TRHigh-ctx.Regime.TRLow, 0), true
		}
	}
	return signal.Signal{}, false
}

// DetectBreakoutPullback implements spec.md §4.D's Breakout-Pullback
// detector: while Breakout-Mode is active, the first pullback bar that
// retraces <=50% of the breakout bar's range and closes back toward the
// breakout direction.
func DetectBreakoutPullback(ctx Context, cfg Config) (signal.Signal, bool) {
	if !ctx.Regime.BreakoutModeActive || ctx.Regime.BreakoutModeBars == 0 {
		return signal.Signal{}, false
	}
	cur, ok := ctx.bar(0)
	breakoutBar, okB := ctx.bar(ctx.Regime.BreakoutModeBars)
	if !ok || !okB || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	if ctx.Regime.TightChannelDir == signal.Buy {
		retrace := breakoutBar.High - cur.Low
		if retrace > 0.5*breakoutBar.Range() {
			return signal.Signal{}, false
		}
		if cur.IsBullish() && cur.ClosePosition() >= 0.6 {
			stop := cur.Low - stopBuffer(ctx.ATR, ctx.Spread)
			if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
				return signal.New(signal.KindBreakoutPullbackBuy, signal.Buy, stop, 0, 0), true
			}
		}
		return signal.Signal{}, false
	}

	retrace := cur.High - breakoutBar.Low
	if retrace > 0.5*breakoutBar.Range() {
		return signal.Signal{}, false
	}
	if cur.IsBearish() && cur.ClosePosition() <= 0.4 {
		stop := cur.High + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindBreakoutPullbackSell, signal.Sell, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}

// DetectGapBar implements spec.md §4.D's Gap-Bar detector: a bar opening
// beyond the previous bar's extreme with zero overlap, continuing in the
// prevailing AlwaysIn direction.
func DetectGapBar(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	prev, okPrev := ctx.bar(1)
	if !ok || !okPrev || ctx.ATR <= 0 || cur.Overlap(prev) > 0 {
		return signal.Signal{}, false
	}

	if cur.Low > prev.High && ctx.Regime.AlwaysIn.String() == "long" && cur.IsBullish() {
		stop := prev.High - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindGapBarBuy, signal.Buy, stop, 0, 0), true
		}
	}
	if cur.High < prev.Low && ctx.Regime.AlwaysIn.String() == "short" && cur.IsBearish() {
		stop := prev.Low + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindGapBarSell, signal.Sell, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}
