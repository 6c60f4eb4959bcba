package regime

import (
	"brooksengine/internal/market"
	"brooksengine/internal/signal"
	"brooksengine/internal/swing"
)

// updateAlwaysIn runs the four-step priority cascade of spec.md §4.C
// bullet 1. Each step can flip AlwaysIn outright; only if none fire does
// the scoring step (d) decide, and even then it may choose Neutral.
func (c *Classifier) updateAlwaysIn(bars []market.Bar, ema, atr float64, swings *swing.Tracker) {
	if len(bars) < 2 {
		return
	}

	if side, ok := c.alwaysInTwoBarFlip(bars, ema); ok {
		c.alwaysIn = sideToAlwaysIn(side)
		return
	}
	if side, ok := c.alwaysInExtremeBar(bars, ema, atr, swings); ok {
		c.alwaysIn = sideToAlwaysIn(side)
		return
	}
	if side, ok := c.alwaysInStrongReversal(bars, atr); ok {
		c.alwaysIn = sideToAlwaysIn(side)
		return
	}
	c.alwaysIn = c.alwaysInScore(bars, ema, atr, swings)
}

func sideToAlwaysIn(s signal.Side) AlwaysIn {
	if s == signal.Buy {
		return AlwaysInLong
	}
	return AlwaysInShort
}

// (a) two consecutive bars of body-ratio >0.55 closing same-sided across EMA.
func (c *Classifier) alwaysInTwoBarFlip(bars []market.Bar, ema float64) (signal.Side, bool) {
	a, b := bars[0], bars[1]
	if a.BodyRatio() <= 0.55 || b.BodyRatio() <= 0.55 {
		return 0, false
	}
	if a.IsBullish() && b.IsBullish() && a.Close > ema && b.Close > ema {
		return signal.Buy, true
	}
	if a.IsBearish() && b.IsBearish() && a.Close < ema && b.Close < ema {
		return signal.Sell, true
	}
	return 0, false
}

// (b) one extreme bar that breaks EMA or the most recent swing and closes
// in the outer 25%.
func (c *Classifier) alwaysInExtremeBar(bars []market.Bar, ema, atr float64, swings *swing.Tracker) (signal.Side, bool) {
	b := bars[0]
	if len(bars) < 4 || atr <= 0 {
		return 0, false
	}
	meanPrevBody := (bars[1].Body() + bars[2].Body() + bars[3].Body()) / 3
	if b.Range() <= 1.0*atr || meanPrevBody <= 0 || b.Body() <= 2*meanPrevBody || b.BodyRatio() <= 0.6 {
		return 0, false
	}

	recentHigh, hasHigh := swings.RecentSwingHigh(1, true)
	recentLow, hasLow := swings.RecentSwingLow(1, true)

	if b.IsBullish() && b.ClosePosition() >= 0.75 {
		if b.Close > ema || (hasHigh && b.Close > recentHigh.Price) {
			return signal.Buy, true
		}
	}
	if b.IsBearish() && b.ClosePosition() <= 0.25 {
		if b.Close < ema || (hasLow && b.Close < recentLow.Price) {
			return signal.Sell, true
		}
	}
	return 0, false
}

// (c) strong reversal bar: range >1.2xATR, body-ratio >0.65, close in
// outer 25%.
func (c *Classifier) alwaysInStrongReversal(bars []market.Bar, atr float64) (signal.Side, bool) {
	b := bars[0]
	if atr <= 0 || b.Range() <= 1.2*atr || b.BodyRatio() <= 0.65 {
		return 0, false
	}
	if b.IsBullish() && b.ClosePosition() >= 0.75 {
		return signal.Buy, true
	}
	if b.IsBearish() && b.ClosePosition() <= 0.25 {
		return signal.Sell, true
	}
	return 0, false
}

// (d) scoring fallback: trend-direction strong bars in last 5 (down-
// weighted by overlap), higher-highs/lower-lows across last 4 swings, EMA
// side, last bar body & close-position.
func (c *Classifier) alwaysInScore(bars []market.Bar, ema, atr float64, swings *swing.Tracker) AlwaysIn {
	n := 5
	if len(bars) < n {
		n = len(bars)
	}
	var longScore, shortScore float64
	for i := 0; i < n; i++ {
		b := bars[i]
		weight := 1.0
		if i+1 < len(bars) {
			weight = 1.0 - b.Overlap(bars[i+1])*0.5
		}
		if b.IsBullish() && b.BodyRatio() > 0.5 {
			longScore += 0.08 * weight
		}
		if b.IsBearish() && b.BodyRatio() > 0.5 {
			shortScore += 0.08 * weight
		}
	}

	highs := swings.RecentHighs(4)
	lows := swings.RecentLows(4)
	hh := sequenceRising(highs)
	ll := sequenceFalling(lows)
	if hh {
		longScore += 0.2
	}
	if ll {
		shortScore += 0.2
	}

	if bars[0].Close > ema {
		longScore += 0.15
	} else {
		shortScore += 0.15
	}

	last := bars[0]
	if last.IsBullish() {
		longScore += 0.1 * last.ClosePosition()
	} else {
		shortScore += 0.1 * (1 - last.ClosePosition())
	}

	switch {
	case longScore >= 0.5 && longScore-shortScore >= 0.1:
		return AlwaysInLong
	case shortScore >= 0.5 && shortScore-longScore >= 0.1:
		return AlwaysInShort
	default:
		return AlwaysInNeutral
	}
}

// sequenceRising reports whether a newest-first swing-point slice is
// strictly decreasing as we go further back (i.e. higher highs over time).
func sequenceRising(points []swing.Point) bool {
	if len(points) < 2 {
		return false
	}
	for i := 0; i < len(points)-1; i++ {
		if points[i].Price <= points[i+1].Price {
			return false
		}
	}
	return true
}

func sequenceFalling(points []swing.Point) bool {
	if len(points) < 2 {
		return false
	}
	for i := 0; i < len(points)-1; i++ {
		if points[i].Price >= points[i+1].Price {
			return false
		}
	}
	return true
}
