// Package riskstop implements spec.md §4.F's stop and take-profit
// computer, grounded byte-for-byte on original_source/logic/stop_loss.py
// and take_profit.py: GetBrooksStop (swing-preferred, bar-extreme
// fallback), CalculateUnifiedStopLoss (tighter-of rule in strong regimes),
// and the scalp/measured-move take-profits.
package riskstop

import (
	"brooksengine/internal/regime"
	"brooksengine/internal/signal"
	"brooksengine/internal/swing"
)

// Config holds the ATR multipliers named in spec.md §6.2.
type Config struct {
	MaxStopATRMult float64 // 3.0
	MinBufferATRMult float64 // 0.2
}

// DefaultConfig mirrors original_source/logic/constants.py.
func DefaultConfig() Config {
	return Config{MaxStopATRMult: 3.0, MinBufferATRMult: 0.2}
}

// FourBar is the minimal bar-extreme fallback state GetBrooksStop needs:
// the last two closed bars' highs/lows, matching the Python signature's
// h1/l1/h2/l2 parameters.
type FourBar struct {
	H1, L1, H2, L2 float64
}

// GetBrooksStop implements get_brooks_stop_loss: prefers the nearest
// confirmed-or-tentative swing on the stop side if within MaxStopATRMult,
// else falls back to the tighter/wider of the last two bars' extremes.
func GetBrooksStop(side signal.Side, entry, atr float64, swings *swing.Tracker, fb FourBar, spread float64, cfg Config) float64 {
	buf := spread
	if atr > 0 {
		buf += 0.3 * atr
	}
	minBuf := 0.0
	if atr > 0 {
		minBuf = atr * cfg.MinBufferATRMult
	}
	if buf < minBuf {
		buf = minBuf
	}

	if side == signal.Buy {
		if sw, ok := swings.RecentSwingLow(1, true); ok && sw.Price > 0 && sw.Price < entry {
			dist := entry - sw.Price
			if atr <= 0 || dist <= atr*cfg.MaxStopATRMult {
				return sw.Price - buf
			}
		}
		barLow := fb.L1
		if fb.L2 > 0 {
			barLow = minf(fb.L1, fb.L2)
		}
		if barLow <= 0 {
			return 0
		}
		sl := barLow - buf
		if sl >= entry {
			if atr > 0 {
				sl = entry - 0.3*atr
			} else {
				sl = entry - buf
			}
		}
		if atr > 0 && (entry-sl) > atr*cfg.MaxStopATRMult {
			sl = entry - atr*cfg.MaxStopATRMult
		}
		return sl
	}

	if sw, ok := swings.RecentSwingHigh(1, true); ok && sw.Price > 0 && sw.Price > entry {
		dist := sw.Price - entry
		if atr <= 0 || dist <= atr*cfg.MaxStopATRMult {
			return sw.Price + buf
		}
	}
	barHigh := fb.H1
	if fb.H2 > 0 {
		barHigh = maxf(fb.H1, fb.H2)
	}
	if barHigh <= 0 {
		return 0
	}
	sl := barHigh + buf
	if sl <= entry {
		if atr > 0 {
			sl = entry + 0.3*atr
		} else {
			sl = entry + buf
		}
	}
	if atr > 0 && (sl-entry) > atr*cfg.MaxStopATRMult {
		sl = entry + atr*cfg.MaxStopATRMult
	}
	return sl
}

// CalculateUnifiedStopLoss implements calculate_unified_stop_loss: in
// strong regimes (StrongTrend/Breakout/TightChannel) the stop is simply the
// tighter/wider of the last two bars' extremes plus a narrower buffer;
// otherwise it prefers the recent swing when that keeps distance within
// bound. Returns 0 when even the fallback stop exceeds MaxStopATRMult.
func CalculateUnifiedStopLoss(side signal.Side, atr, entry float64, state regime.MarketState, swings *swing.Tracker, fb FourBar, spread float64, cfg Config) float64 {
	isStrong := state == regime.StateStrongTrend || state == regime.StateBreakout || state == regime.StateTightChannel

	atrBuf := 0.0
	if atr > 0 {
		if isStrong {
			atrBuf = 0.3 * atr
		} else {
			atrBuf = 0.5 * atr
		}
	}
	minBuf := 0.0
	if atr > 0 {
		minBuf = atr * cfg.MinBufferATRMult
	}
	totalBuf := maxf(atrBuf, minBuf) + spread

	var sl, dist float64
	if isStrong {
		if side == signal.Buy {
			sl = minf(fb.L1, fb.L2) - totalBuf
			dist = entry - sl
		} else {
			sl = maxf(fb.H1, fb.H2) + totalBuf
			dist = sl - entry
		}
	} else if side == signal.Buy {
		if sw, ok := swings.RecentSwingLow(1, true); ok && sw.Price > 0 && atr > 0 && (entry-sw.Price-totalBuf) <= atr*cfg.MaxStopATRMult {
			sl = sw.Price - totalBuf
		} else {
			sl = minf(fb.L1, fb.L2) - totalBuf
		}
		dist = entry - sl
	} else {
		if sw, ok := swings.RecentSwingHigh(1, true); ok && sw.Price > 0 && atr > 0 && (sw.Price+totalBuf-entry) <= atr*cfg.MaxStopATRMult {
			sl = sw.Price + totalBuf
		} else {
			sl = maxf(fb.H1, fb.H2) + totalBuf
		}
		dist = sl - entry
	}

	if atr > 0 && dist > atr*cfg.MaxStopATRMult {
		return 0
	}
	return sl
}

// ScalpTP1 implements get_scalp_tp1: a 1:1 risk:reward target off the
// initial stop.
func ScalpTP1(side signal.Side, entry, initialSL float64) float64 {
	var risk float64
	if side == signal.Buy {
		risk = entry - initialSL
	} else {
		risk = initialSL - entry
	}
	if risk <= 0 {
		return 0
	}
	if side == signal.Buy {
		return entry + risk
	}
	return entry - risk
}

// MeasuredMoveTP2 implements get_measured_move_tp2: the tight-channel
// extreme when one is active and favorable, else 2x the last-two-bars
// height projected from entry; floored at 1.5xATR when that projection is
// inside 1xATR.
func MeasuredMoveTP2(side signal.Side, entry, atr float64, fb FourBar, state regime.MarketState, tightChannelDir signal.Side, tightChannelExtreme float64) float64 {
	if atr <= 0 {
		return 0
	}

	var tp2 float64
	if state == regime.StateTightChannel && tightChannelExtreme > 0 {
		if side == signal.Buy && tightChannelDir == signal.Buy && tightChannelExtreme > entry {
			tp2 = tightChannelExtreme
		} else if side == signal.Sell && tightChannelDir == signal.Sell && tightChannelExtreme < entry {
			tp2 = tightChannelExtreme
		}
	}

	if tp2 <= 0 {
		high12 := maxf(fb.H1, fb.H2)
		low12 := minf(fb.L1, fb.L2)
		height := high12 - low12
		if height <= 0 {
			height = 0.5 * atr
		}
		mapped := height * 2.0
		if side == signal.Buy {
			tp2 = entry + mapped
		} else {
			tp2 = entry - mapped
		}
	}

	var tp2Dist float64
	if side == signal.Buy {
		tp2Dist = tp2 - entry
	} else {
		tp2Dist = entry - tp2
	}
	if tp2Dist < atr {
		minDist := atr * 1.5
		if side == signal.Buy {
			tp2 = entry + minDist
		} else {
			tp2 = entry - minDist
		}
	}

	return tp2
}

// SoftStopConfirmMode mirrors constants.py's SOFT_STOP_CONFIRM_MODE.
type SoftStopConfirmMode int

const (
	SoftStopOnClose SoftStopConfirmMode = iota
	SoftStopOnBody
	SoftStopOnNConsecutiveCloses
)

// CheckSoftStop implements check_soft_stop: whether the position's soft
// (technical) stop has been violated closely enough to exit now, per the
// configured confirm mode.
func CheckSoftStop(side signal.Side, technicalSL, close float64, mode SoftStopConfirmMode, confirmCloses []float64, confirmBars int) bool {
	if mode == SoftStopOnNConsecutiveCloses && len(confirmCloses) > 0 {
		if confirmBars > len(confirmCloses) {
			confirmBars = len(confirmCloses)
		}
		window := confirmCloses[len(confirmCloses)-confirmBars:]
		broken := 0
		for _, cc := range window {
			if (side == signal.Buy && cc < technicalSL) || (side == signal.Sell && cc > technicalSL) {
				broken++
			}
		}
		return broken >= confirmBars
	}
	if side == signal.Buy {
		return close < technicalSL
	}
	return close > technicalSL
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
