package pattern

import (
	"brooksengine/internal/market"
	"brooksengine/internal/swing"
)

// HLCounter implements spec.md §4.D's H/L push counting, grounded on
// original_source/logic/hl_counter.py: a push is counted when a fresh swing
// exceeds the previous one with a qualifying pullback between them; counts
// reset on a reversal of the sequence, a significant new extreme, or a
// strong reversal bar.
type HLCounter struct {
	cfg Config

	buyPushes  int
	sellPushes int

	lastHighForBuy float64 // most recent swing high used to count a buy push
	lastLowForSell float64
}

// NewHLCounter constructs an HLCounter.
func NewHLCounter(cfg Config) *HLCounter {
	return &HLCounter{cfg: cfg}
}

// BuyPushes returns the current H-push count (H1 == 1, H2 == 2, ...).
func (h *HLCounter) BuyPushes() int { return h.buyPushes }

// SellPushes returns the current L-push count.
func (h *HLCounter) SellPushes() int { return h.sellPushes }

// Reset clears both counts — called on a Monday gap reset (spec.md §4.L).
func (h *HLCounter) Reset() {
	h.buyPushes = 0
	h.sellPushes = 0
}

// Update folds in the latest closed bar and swing state. A nil swings
// tracker leaves the counts unchanged.
func (h *HLCounter) Update(bars []market.Bar, atr float64, swings *swing.Tracker) {
	if len(bars) == 0 || atr <= 0 || swings == nil {
		return
	}
	b := bars[0]

	// Strong reversal bar resets both counts.
	if b.Range() > 0.8*atr && ((b.IsBullish() && b.ClosePosition() < 0.3) || (b.IsBearish() && b.ClosePosition() > 0.7)) {
		h.Reset()
		return
	}

	h.updateBuy(bars, atr, swings)
	h.updateSell(bars, atr, swings)
}

func (h *HLCounter) updateBuy(bars []market.Bar, atr float64, swings *swing.Tracker) {
	high2, ok2 := swings.RecentSwingHigh(2, false)
	high1, ok1 := swings.RecentSwingHigh(1, true)
	low1, okL1 := swings.RecentSwingLow(1, true)
	if !ok1 {
		return
	}

	// Reset on lower-low relative to the pullback between the last two
	// swing highs.
	if h.buyPushes > 0 && okL1 && ok2 && low1.Price < high2.Price-h.cfg.HLResetExtremeATR*atr {
		h.buyPushes = 0
	}

	if h.buyPushes == 0 {
		if ok2 && high1.Price > high2.Price && okL1 {
			pullback := high2.Price - low1.Price
			if pullback >= h.cfg.HLMinPullbackATR*atr {
				h.buyPushes = 1
				h.lastHighForBuy = high1.Price
			}
		}
		return
	}

	if high1.Price > h.lastHighForBuy {
		pullback := h.lastHighForBuy - bars[0].Low
		if pullback >= h.cfg.HLMinPullbackATR*atr || bars[0].Low < h.lastHighForBuy {
			h.buyPushes++
			h.lastHighForBuy = high1.Price
		}
	}

	// Significant new extreme beyond the previous swing resets the count.
	if ok2 && high1.Price-high2.Price >= h.cfg.HLResetExtremeATR*atr*3 {
		h.buyPushes = 1
		h.lastHighForBuy = high1.Price
	}
}

func (h *HLCounter) updateSell(bars []market.Bar, atr float64, swings *swing.Tracker) {
	low2, ok2 := swings.RecentSwingLow(2, false)
	low1, ok1 := swings.RecentSwingLow(1, true)
	high1, okH1 := swings.RecentSwingHigh(1, true)
	if !ok1 {
		return
	}

	if h.sellPushes > 0 && okH1 && ok2 && high1.Price > low2.Price+h.cfg.HLResetExtremeATR*atr {
		h.sellPushes = 0
	}

	if h.sellPushes == 0 {
		if ok2 && low1.Price < low2.Price && okH1 {
			pullback := high1.Price - low2.Price
			if pullback >= h.cfg.HLMinPullbackATR*atr {
				h.sellPushes = 1
				h.lastLowForSell = low1.Price
			}
		}
		return
	}

	if low1.Price < h.lastLowForSell {
		pullback := bars[0].High - h.lastLowForSell
		if pullback >= h.cfg.HLMinPullbackATR*atr || bars[0].High > h.lastLowForSell {
			h.sellPushes++
			h.lastLowForSell = low1.Price
		}
	}

	if ok2 && low2.Price-low1.Price >= h.cfg.HLResetExtremeATR*atr*3 {
		h.sellPushes = 1
		h.lastLowForSell = low1.Price
	}
}
