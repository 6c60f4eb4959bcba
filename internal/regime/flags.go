package regime

import (
	"brooksengine/internal/market"
	"brooksengine/internal/signal"
	"brooksengine/internal/swing"
)

// updateTwentyGap implements spec.md §4.C bullet 8: GapCount counts
// trailing bars entirely outside the EMA in the trend direction; at
// GapCount>=threshold the state enters "overextended" and the first
// pullback to EMA is blocked for H1/L1 entries until release conditions
// are met (consolidation, double-top/bottom at the pullback extreme, or a
// confirmed EMA cross through two bars).
func (c *Classifier) updateTwentyGap(bars []market.Bar, ema, atr float64) {
	if c.alwaysIn == AlwaysInNeutral || atr <= 0 {
		c.gap = TwentyGap{}
		return
	}

	dir := signal.Buy
	if c.alwaysIn == AlwaysInShort {
		dir = signal.Sell
	}

	count := 0
	for _, b := range bars {
		outside := false
		if dir == signal.Buy {
			outside = b.Low > ema
		} else {
			outside = b.High < ema
		}
		if !outside {
			break
		}
		count++
	}
	c.gap.GapCount = count
	c.gap.Direction = dir

	if count >= c.cfg.GapBarThreshold && !c.gap.Overextended {
		c.gap.Overextended = true
		c.gap.WaitingForRecovery = true
		c.gap.FirstPullbackComplete = false
	}

	if !c.gap.Overextended {
		return
	}

	b := bars[0]
	touchedEMA := (dir == signal.Buy && b.Low <= ema) || (dir == signal.Sell && b.High >= ema)
	if touchedEMA && !c.gap.FirstPullbackComplete {
		if dir == signal.Buy {
			c.gap.PullbackExtreme = b.Low
		} else {
			c.gap.PullbackExtreme = b.High
		}
		c.gap.FirstPullbackComplete = true
	}

	if c.releaseTwentyGap(bars, ema, atr, dir) {
		c.gap = TwentyGap{}
	}
}

func (c *Classifier) releaseTwentyGap(bars []market.Bar, ema, atr float64, dir signal.Side) bool {
	// Consolidation: >=5 bars within 1.5xATR of each other.
	if len(bars) >= 5 {
		hi, lo := bars[0].High, bars[0].Low
		for i := 1; i < 5; i++ {
			hi = maxf(hi, bars[i].High)
			lo = minf(lo, bars[i].Low)
		}
		if hi-lo <= 1.5*atr {
			return true
		}
	}
	// Confirmed EMA cross through two bars.
	if len(bars) >= 2 {
		if dir == signal.Buy && bars[0].Close > ema && bars[1].Close > ema {
			return true
		}
		if dir == signal.Sell && bars[0].Close < ema && bars[1].Close < ema {
			return true
		}
	}
	return false
}

// updateBarbWire implements spec.md §4.C bullet 9: a run of small-body,
// heavily overlapping bars. The dispatcher suppresses all signals while
// active, releasing on a clean breakout bar.
func (c *Classifier) updateBarbWire(bars []market.Bar, atr float64) {
	if atr <= 0 {
		return
	}
	b := bars[0]
	small := b.BodyRatio() < c.cfg.BarbWireBodyRatio || b.Range() < 0.5*atr
	overlapsPrev := len(bars) > 1 && b.Overlap(bars[1]) > 0.5

	if small && (c.barbWireRun == 0 || overlapsPrev) {
		c.barbWireRun++
		return
	}

	if c.barbWireRun >= c.cfg.BarbWireMinBars && b.Range() > 0.5*atr && b.BodyRatio() > 0.5 {
		c.barbWireRun = 0 // breakout bar closes the wire, may arm Breakout-Mode
		return
	}
	c.barbWireRun = 0
}

// updateMeasuringGap implements spec.md §4.C bullet 10.
func (c *Classifier) updateMeasuringGap(bars []market.Bar, atr float64) {
	if c.measuring != nil {
		c.measuring.BarsSince++
		mid := (c.measuring.Low + c.measuring.High) / 2
		retraced := (c.measuring.Side == signal.Buy && bars[0].Close < mid) ||
			(c.measuring.Side == signal.Sell && bars[0].Close > mid)
		if retraced || c.measuring.BarsSince > 20 {
			c.measuring = nil
		}
		return
	}

	if len(bars) < 2 || atr <= 0 {
		return
	}
	cur, prev := bars[0], bars[1]
	if cur.Low > prev.High && cur.Low-prev.High >= c.cfg.MeasuringGapMinATRMult*atr && cur.BodyRatio() > 0.5 {
		c.measuring = &GapInfo{Low: prev.High, High: cur.Low, Side: signal.Buy}
		return
	}
	if prev.Low > cur.High && prev.Low-cur.High >= c.cfg.MeasuringGapMinATRMult*atr && cur.BodyRatio() > 0.5 {
		c.measuring = &GapInfo{Low: cur.High, High: prev.Low, Side: signal.Sell}
	}
}

// updateBreakoutMode implements spec.md §4.C bullet 11: entered on a bar
// breaking the most recent swing with range>=1.5xATR, body-ratio>0.6, close
// in the outer 25%; exits after 5 bars, a strong reversal bar, or 50%
// retracement.
func (c *Classifier) updateBreakoutMode(bars []market.Bar, atr float64, swings *swing.Tracker) {
	if atr <= 0 {
		return
	}
	b := bars[0]

	if c.breakoutModeActive {
		c.breakoutModeBars++
		retraced := false
		if c.tightChannelDir == signal.Buy {
			retraced = b.Close < c.breakoutModeExtreme-0.5*(c.breakoutModeExtreme-b.Low)
		}
		strongReversal := b.Range() > 1.2*atr && b.BodyRatio() > 0.65
		if c.breakoutModeBars >= c.cfg.BreakoutModeBars || strongReversal || retraced {
			c.breakoutModeActive = false
			c.breakoutModeBars = 0
		}
		return
	}

	if b.Range() < c.cfg.BreakoutModeATRMult*atr || b.BodyRatio() <= 0.6 {
		return
	}
	outer := b.ClosePosition() >= 0.75 || b.ClosePosition() <= 0.25
	if !outer {
		return
	}

	high, hasHigh := swings.RecentSwingHigh(1, true)
	low, hasLow := swings.RecentSwingLow(1, true)
	broke := (hasHigh && b.Close > high.Price) || (hasLow && b.Close < low.Price)
	if !broke {
		return
	}

	c.breakoutModeActive = true
	c.breakoutModeBars = 0
	c.breakoutModeExtreme = b.Close
}
