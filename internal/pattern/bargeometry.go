package pattern

import "brooksengine/internal/signal"

// DetectTrendBar implements spec.md §4.D's Trend-Bar detector: a strong
// same-direction bar (body-ratio>0.6, close in the outer 20%, range
// >=0.8xATR) in the prevailing AlwaysIn direction, continuation-style.
func DetectTrendBar(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 || cur.Range() < 0.8*ctx.ATR || cur.BodyRatio() <= 0.6 {
		return signal.Signal{}, false
	}

	if cur.IsBullish() && cur.ClosePosition() >= 0.8 && ctx.Regime.AlwaysIn.String() == "long" {
		stop := cur.Low - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindTrendBarBuy, signal.Buy, stop, 0, 0), true
		}
	}
	if cur.IsBearish() && cur.ClosePosition() <= 0.2 && ctx.Regime.AlwaysIn.String() == "short" {
		stop := cur.High + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindTrendBarSell, signal.Sell, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}

// DetectReversalBar implements spec.md §4.D's Reversal-Bar detector: after
// an extended move (close >=1xATR from EMA), a bar rejecting the move with
// body-ratio>=0.5 and close-position opposite the trend's extreme.
func DetectReversalBar(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 || cur.BodyRatio() < 0.5 {
		return signal.Signal{}, false
	}
	distFromEMA := (cur.Close - ctx.EMA) / ctx.ATR

	if distFromEMA >= 1.0 && cur.IsBearish() && cur.ClosePosition() <= 0.3 {
		stop := cur.High + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindReversalBarSell, signal.Sell, stop, 0, 0), true
		}
	}
	if -distFromEMA >= 1.0 && cur.IsBullish() && cur.ClosePosition() >= 0.7 {
		stop := cur.Low - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindReversalBarBuy, signal.Buy, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}

// DetectIIPattern implements spec.md §4.D's ii/iii Inside Pattern detector:
// two (or three) consecutive inside bars following a trend move, confirmed
// by the current bar breaking the pattern's high/low in trend direction.
func DetectIIPattern(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	b1, ok1 := ctx.bar(1)
	b2, ok2 := ctx.bar(2)
	b3, ok3 := ctx.bar(3)
	if !ok || !ok1 || !ok2 || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	insideCount := 0
	patternHigh, patternLow := b1.High, b1.Low
	if b1.High <= b2.High && b1.Low >= b2.Low {
		insideCount++
		if ok3 && b2.High <= b3.High && b2.Low >= b3.Low {
			insideCount++
			patternHigh, patternLow = maxf(b1.High, b2.High), minf(b1.Low, b2.Low)
		}
	}
	if insideCount == 0 {
		return signal.Signal{}, false
	}

	if cur.Close > patternHigh && cur.IsBullish() {
		stop := patternLow - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindIIPatternBuy, signal.Buy, stop, 0, 0), true
		}
	}
	if cur.Close < patternLow && cur.IsBearish() {
		stop := patternHigh + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindIIPatternSell, signal.Sell, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}

// DetectOutsideBar implements spec.md §4.D's Outside-Bar reversal
// detector: the current bar's range engulfs the previous bar's, closing in
// the outer 25% opposite the engulfed bar's close.
func DetectOutsideBar(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	prev, okPrev := ctx.bar(1)
	if !ok || !okPrev || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}
	if !(cur.High > prev.High && cur.Low < prev.Low) {
		return signal.Signal{}, false
	}

	if cur.ClosePosition() <= 0.25 && prev.IsBullish() {
		stop := cur.High + stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindOutsideBarSell, signal.Sell, stop, 0, 0), true
		}
	}
	if cur.ClosePosition() >= 0.75 && prev.IsBearish() {
		stop := cur.Low - stopBuffer(ctx.ATR, ctx.Spread)
		if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.New(signal.KindOutsideBarBuy, signal.Buy, stop, 0, 0), true
		}
	}
	return signal.Signal{}, false
}
